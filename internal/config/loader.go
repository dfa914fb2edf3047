package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConfigLoader 配置加载器
type ConfigLoader struct {
	configFile string
	envPrefix  string
	envFiles   []string
	viper      *viper.Viper
}

// NewConfigLoader 创建配置加载器
// configFile 为空时在 ./configs 和当前目录查找 config.yaml，找不到则只用默认值和环境变量
func NewConfigLoader(configFile, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = "DRACSCAN"
	}

	cl := &ConfigLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
		envFiles:   []string{".env"},
		viper:      viper.New(),
	}
	cl.setDefaults()
	return cl
}

// Viper 暴露底层 viper 实例，供命令行参数绑定 (BindPFlag)
func (cl *ConfigLoader) Viper() *viper.Viper {
	return cl.viper
}

// WithEnvFiles 指定 .env 文件列表
func (cl *ConfigLoader) WithEnvFiles(files ...string) *ConfigLoader {
	cl.envFiles = files
	return cl
}

// LoadConfig 加载配置
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	// .env 先于 AutomaticEnv 生效
	if err := NewEnvLoader(cl.envFiles...).Load(); err != nil {
		return nil, err
	}

	cl.viper.SetConfigType("yaml")
	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cl.viper.AutomaticEnv()

	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	var cfg Config
	if err := cl.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile 显式指定的文件必须存在；默认路径找不到不算错误
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configFile != "" {
		cl.viper.SetConfigFile(cl.configFile)
		return cl.viper.ReadInConfig()
	}

	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")
	cl.viper.SetConfigName("config")

	if err := cl.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// setDefaults 设置默认值
func (cl *ConfigLoader) setDefaults() {
	def := DefaultConfig()

	// App默认值
	cl.viper.SetDefault("app.name", def.App.Name)

	// 日志默认值
	cl.viper.SetDefault("log.level", def.Log.Level)
	cl.viper.SetDefault("log.format", def.Log.Format)
	cl.viper.SetDefault("log.output", def.Log.Output)
	cl.viper.SetDefault("log.file_path", def.Log.FilePath)
	cl.viper.SetDefault("log.max_size", def.Log.MaxSize)
	cl.viper.SetDefault("log.max_backups", def.Log.MaxBackups)
	cl.viper.SetDefault("log.max_age", def.Log.MaxAge)
	cl.viper.SetDefault("log.compress", def.Log.Compress)
	cl.viper.SetDefault("log.caller", def.Log.Caller)

	// 调度默认值
	cl.viper.SetDefault("scan.concurrency", def.Scan.Concurrency)
	cl.viper.SetDefault("scan.warn_threshold", def.Scan.WarnThreshold)
	cl.viper.SetDefault("scan.adaptive.enabled", def.Scan.Adaptive.Enabled)
	cl.viper.SetDefault("scan.adaptive.initial", def.Scan.Adaptive.Initial)
	cl.viper.SetDefault("scan.adaptive.min", def.Scan.Adaptive.Min)
	cl.viper.SetDefault("scan.adaptive.max", def.Scan.Adaptive.Max)

	// 探测默认值
	cl.viper.SetDefault("probe.port", def.Probe.Port)
	cl.viper.SetDefault("probe.connect_timeout", def.Probe.ConnectTimeout.String())
	cl.viper.SetDefault("probe.read_timeout", def.Probe.ReadTimeout.String())
	cl.viper.SetDefault("probe.response_timeout", def.Probe.ResponseTimeout.String())
	cl.viper.SetDefault("probe.proxy", def.Probe.Proxy)
	cl.viper.SetDefault("probe.username", def.Probe.Username)
	cl.viper.SetDefault("probe.password", def.Probe.Password)
	cl.viper.SetDefault("probe.max_body_bytes", def.Probe.MaxBodyBytes)

	// 导出默认值
	cl.viper.SetDefault("output.csv", "")
	cl.viper.SetDefault("output.json", "")
}

// GetConfigPath 获取实际使用的配置文件路径
func (cl *ConfigLoader) GetConfigPath() string {
	return cl.viper.ConfigFileUsed()
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Probe == nil || c.Scan == nil || c.Log == nil {
		return fmt.Errorf("incomplete config")
	}

	if c.Probe.Port <= 0 || c.Probe.Port > 65535 {
		return fmt.Errorf("invalid probe port: %d", c.Probe.Port)
	}
	if c.Probe.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.Probe.ConnectTimeout)
	}
	if c.Probe.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %s", c.Probe.ReadTimeout)
	}
	if c.Probe.ResponseTimeout < 0 {
		return fmt.Errorf("response timeout must not be negative, got %s", c.Probe.ResponseTimeout)
	}
	if c.Probe.Username == "" {
		return fmt.Errorf("probe username is required")
	}
	if c.Probe.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.Probe.MaxBodyBytes)
	}

	if c.Scan.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Scan.Concurrency)
	}
	if a := c.Scan.Adaptive; a.Enabled && (a.Min <= 0 || a.Max < a.Min) {
		return fmt.Errorf("invalid adaptive limits: min=%d max=%d", a.Min, a.Max)
	}

	return nil
}
