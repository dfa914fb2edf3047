/*
 * @date: 2026.02.10
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dracscan/internal/config"
	"dracscan/internal/pkg/logger"
)

var (
	cfgFile string

	// appConfig 由 PersistentPreRunE 加载，子命令直接使用
	appConfig *config.Config
	// usedConfigFile 实际读取的配置文件，未找到时为空
	usedConfigFile string
)

// flagKeys 命令行参数到配置项的映射，子命令存在该参数时绑定到 viper
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"port":             "probe.port",
	"connect-timeout":  "probe.connect_timeout",
	"read-timeout":     "probe.read_timeout",
	"response-timeout": "probe.response_timeout",
	"proxy":            "probe.proxy",
	"username":         "probe.username",
	"password":         "probe.password",
	"concurrency":      "scan.concurrency",
	"adaptive":         "scan.adaptive.enabled",
	"output-csv":       "output.csv",
	"output-json":      "output.json",
}

var rootCmd = &cobra.Command{
	Use:   "dracscan",
	Short: "Dell DRAC/iDRAC 默认凭据审计工具",
	Long: `dracscan 枚举指定 IPv4 网段内的全部主机，
使用出厂默认凭据 (root / calvin) 尝试登录 DRAC/iDRAC 管理界面，报告仍在使用默认凭据的主机。

示例:
  dracscan scan 10.0.0.0/24
  dracscan scan 10.0.0.0/16 --concurrency 256 --output-csv found.csv
  dracscan range 192.168.1.0/30
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		appConfig = cfg
		initCLILogger(cfg.Log)
		if usedConfigFile != "" {
			pterm.Debug.Printfln("Using config file: %s", usedConfigFile)
		}
		return nil
	},
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] dracscan crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "日志级别 (debug, info, warn, error)")

	rootCmd.AddCommand(NewScanCmd())
	rootCmd.AddCommand(NewRangeCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())
}

// loadConfig 读取配置文件、环境变量，并绑定当前命令上出现的参数
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewConfigLoader(cfgFile, "")

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := loader.Viper().BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg, err := loader.LoadConfig()
	if err != nil {
		return nil, err
	}
	usedConfigFile = loader.GetConfigPath()
	return cfg, nil
}

// initCLILogger 初始化 CLI 模式下的日志，并让 pterm 的输出跟随日志级别
func initCLILogger(logCfg *config.LogConfig) {
	switch logCfg.Level {
	case "debug":
		pterm.EnableDebugMessages()
	case "warn", "error", "fatal":
		pterm.DisableDebugMessages()
		pterm.Info = *pterm.Info.WithWriter(io.Discard)
	default:
		pterm.DisableDebugMessages()
	}

	if _, err := logger.InitLogger(logCfg); err != nil {
		pterm.Warning.Printfln("Failed to init logger: %v", err)
	}
}
