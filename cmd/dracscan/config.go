package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dracscan/internal/config"
)

// NewConfigCmd 创建 config 子命令
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件管理",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "生成默认配置文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().WriteYAML(path); err != nil {
				return err
			}
			pterm.Success.Printfln("Config written to %s", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "o", "configs/config.yaml", "输出路径")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "覆盖已存在的文件")
	return cmd
}
