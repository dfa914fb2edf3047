package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dracscan/internal/config"
	"dracscan/internal/core/lib/network/dialer"
	"dracscan/internal/core/lib/network/netrange"
	"dracscan/internal/core/lib/network/qos"
	"dracscan/internal/core/reporter"
	"dracscan/internal/core/scanner/drac"
)

// NewScanCmd 创建 scan 子命令
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <cidr>",
		Short: "扫描网段内使用默认凭据的 DRAC",
		Long: `对网段内每个可用主机 (不含网络地址和广播地址) 并发发起一次登录尝试。
默认每个主机一个 goroutine、不设并发上限；扫描大网段时建议使用 --concurrency 或 --adaptive。
`,
		Example: `  # 扫描一个 C 段
  dracscan scan 10.0.0.0/24

  # 限制并发并导出结果
  dracscan scan 10.0.0.0/16 --concurrency 256 --output-csv found.csv --output-json found.json

  # 通过跳板机的 SOCKS5 代理扫描
  dracscan scan 172.16.0.0/24 --proxy socks5://127.0.0.1:1080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), appConfig, args[0])
		},
	}

	flags := cmd.Flags()
	flags.Int("port", drac.DefaultPort, "管理口端口")
	flags.Duration("connect-timeout", drac.DefaultConnectTimeout, "建连超时 (TCP + TLS 握手)")
	flags.Duration("read-timeout", drac.DefaultReadTimeout, "等待响应头/读取响应体超时")
	flags.Duration("response-timeout", 0, "整体响应超时 (0 = 不限制)")
	flags.String("proxy", "", "SOCKS5 代理 (socks5://[user:pass@]host:port)")
	flags.String("username", drac.DefaultUsername, "登录用户名")
	flags.String("password", drac.DefaultPassword, "登录密码")
	flags.IntP("concurrency", "c", 0, "并发上限 (0 = 每个主机一个 goroutine)")
	flags.Bool("adaptive", false, "启用自适应并发 (超时增多时自动降速)")
	flags.String("output-csv", "", "导出命中结果为 CSV")
	flags.String("output-json", "", "导出扫描计数与命中结果为 JSON")

	return cmd
}

func runScan(ctx context.Context, cfg *config.Config, cidr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. 解析网段，格式错误时不产生任何网络活动
	rng, err := netrange.Parse(cidr)
	if err != nil {
		return err
	}

	// 2. 构造探测器
	d, err := dialer.New(cfg.Probe.Proxy, cfg.Probe.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to create dialer: %w", err)
	}
	prober := drac.NewProber(drac.NewPayload(cfg.Probe.Username, cfg.Probe.Password), drac.ProberConfig{
		Port:            cfg.Probe.Port,
		ConnectTimeout:  cfg.Probe.ConnectTimeout,
		ReadTimeout:     cfg.Probe.ReadTimeout,
		ResponseTimeout: cfg.Probe.ResponseTimeout,
		MaxBodyBytes:    cfg.Probe.MaxBodyBytes,
		Dialer:          d,
	})

	// 3. 构造调度器
	scannerCfg := drac.ScannerConfig{
		Concurrency:   cfg.Scan.Concurrency,
		WarnThreshold: cfg.Scan.WarnThreshold,
	}
	if a := cfg.Scan.Adaptive; a.Enabled {
		scannerCfg.Limiter = qos.NewAdaptiveLimiter(a.Initial, a.Min, a.Max)
	}

	console := reporter.NewConsoleReporter()
	collector := reporter.NewCollector()
	scanner := drac.NewScanner(prober, reporter.NewMultiReporter(console, collector), scannerCfg)

	pterm.Info.Printfln("Scanning %s (%d hosts) as %s ...", rng, rng.Size(), cfg.Probe.Username)

	// 4. 执行
	summary, err := scanner.Scan(ctx, rng)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	// 5. 输出
	outcomes := collector.Outcomes()
	if err := console.PrintOutcomes(outcomes); err != nil {
		return err
	}
	if err := console.PrintSummary(summary); err != nil {
		return err
	}

	if path := cfg.Output.CSV; path != "" {
		if err := reporter.SaveCsvResult(path, outcomes); err != nil {
			return err
		}
		pterm.Info.Printfln("Results saved to %s", path)
	}
	if path := cfg.Output.JSON; path != "" {
		if err := reporter.SaveJsonResult(path, reporter.JsonReport{Summary: summary, Outcomes: outcomes}); err != nil {
			return err
		}
		pterm.Info.Printfln("Results saved to %s", path)
	}

	pterm.Debug.Printfln("scan %s took %s", summary.ScanID, summary.Duration.Round(time.Millisecond))
	return nil
}
