/**
 * 扫描器配置
 * @date: 2026.02.10
 * @description: 配置结构定义。优先级: 命令行参数 > 环境变量 (DRACSCAN_*) > 配置文件 > 默认值
 */
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 扫描器配置
type Config struct {
	// 应用配置
	App *AppConfig `yaml:"app" mapstructure:"app"`

	// 日志配置
	Log *LogConfig `yaml:"log" mapstructure:"log"`

	// 调度配置
	Scan *ScanConfig `yaml:"scan" mapstructure:"scan"`

	// 探测配置
	Probe *ProbeConfig `yaml:"probe" mapstructure:"probe"`

	// 结果导出配置
	Output *OutputConfig `yaml:"output" mapstructure:"output"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name string `yaml:"name" mapstructure:"name"` // 应用名称，用于版本输出
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别 (debug/info/warn/error)
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式 (json/text)
	Output     string `yaml:"output" mapstructure:"output"`           // 日志输出 (stdout/stderr/file)
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 最大文件大小（MB）
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 最大备份数
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 最大保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// ScanConfig 调度配置
// Concurrency 为 0 时每个主机一个 goroutine，不设上限
type ScanConfig struct {
	Concurrency   int            `yaml:"concurrency" mapstructure:"concurrency"`       // 固定并发上限 (0 = 不限制)
	Adaptive      AdaptiveConfig `yaml:"adaptive" mapstructure:"adaptive"`             // 自适应并发
	WarnThreshold uint64         `yaml:"warn_threshold" mapstructure:"warn_threshold"` // 无上限扇出时超过该主机数给出警告
}

// AdaptiveConfig AIMD 自适应并发配置，开启后优先于 Concurrency
type AdaptiveConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Initial int  `yaml:"initial" mapstructure:"initial"`
	Min     int  `yaml:"min" mapstructure:"min"`
	Max     int  `yaml:"max" mapstructure:"max"`
}

// ProbeConfig 探测配置
type ProbeConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`                         // 管理口端口
	ConnectTimeout  time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`   // 建连超时 (TCP + TLS 握手)
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`         // 等待响应头/读取响应体超时
	ResponseTimeout time.Duration `yaml:"response_timeout" mapstructure:"response_timeout"` // 整体响应超时 (0 = 不限制)
	Proxy           string        `yaml:"proxy" mapstructure:"proxy"`                       // SOCKS5 代理 (socks5://[user:pass@]host:port)
	Username        string        `yaml:"username" mapstructure:"username"`                 // 默认用户名
	Password        string        `yaml:"password" mapstructure:"password"`                 // 默认密码
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`     // 读取响应体的上限
}

// OutputConfig 结果导出配置
type OutputConfig struct {
	CSV  string `yaml:"csv" mapstructure:"csv"`   // 导出 CSV 路径
	JSON string `yaml:"json" mapstructure:"json"` // 导出 JSON 路径
}

// DefaultConfig 默认配置，与 ConfigLoader.setDefaults 保持一致
func DefaultConfig() *Config {
	return &Config{
		App: &AppConfig{
			Name: "dracscan",
		},
		Log: &LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   "./logs/dracscan.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
			Caller:     false,
		},
		Scan: &ScanConfig{
			Concurrency: 0,
			Adaptive: AdaptiveConfig{
				Enabled: false,
				Initial: 64,
				Min:     8,
				Max:     512,
			},
			WarnThreshold: 4096,
		},
		Probe: &ProbeConfig{
			Port:            443,
			ConnectTimeout:  5 * time.Second,
			ReadTimeout:     60 * time.Second,
			ResponseTimeout: 0,
			Username:        "root",
			Password:        "calvin",
			MaxBodyBytes:    1 << 20,
		},
		Output: &OutputConfig{},
	}
}

// probeConfigYAML 写文件时把时长输出为 "5s" 这样的字符串
type probeConfigYAML struct {
	Port            int    `yaml:"port"`
	ConnectTimeout  string `yaml:"connect_timeout"`
	ReadTimeout     string `yaml:"read_timeout"`
	ResponseTimeout string `yaml:"response_timeout"`
	Proxy           string `yaml:"proxy"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
}

// MarshalYAML 实现 yaml.Marshaler
func (p ProbeConfig) MarshalYAML() (interface{}, error) {
	return probeConfigYAML{
		Port:            p.Port,
		ConnectTimeout:  p.ConnectTimeout.String(),
		ReadTimeout:     p.ReadTimeout.String(),
		ResponseTimeout: p.ResponseTimeout.String(),
		Proxy:           p.Proxy,
		Username:        p.Username,
		Password:        p.Password,
		MaxBodyBytes:    p.MaxBodyBytes,
	}, nil
}

// WriteYAML 将配置写入 YAML 文件
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
