package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dracscan/internal/core/lib/network/netrange"
)

// NewRangeCmd 创建 range 子命令，只计算网段不发起任何连接
func NewRangeCmd() *cobra.Command {
	var count bool

	cmd := &cobra.Command{
		Use:   "range <cidr>",
		Short: "列出网段内将被扫描的主机",
		Example: `  dracscan range 192.168.1.0/30
  dracscan range 10.0.0.0/8 --count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := netrange.Parse(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if count {
				fmt.Fprintln(out, rng.Size())
				return nil
			}
			for host := range rng.Hosts() {
				fmt.Fprintln(out, host)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&count, "count", false, "只输出主机数量")
	return cmd
}
