package drac

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dracscan/internal/core/lib/network/netrange"
	"dracscan/internal/core/lib/network/qos"
	"dracscan/internal/core/model"
	"dracscan/internal/core/reporter"
	"dracscan/internal/pkg/logger"
)

// HostProber 单主机探测接口，Prober 是默认实现
type HostProber interface {
	Probe(ctx context.Context, host string) model.ProbeResult
}

// ScannerConfig 调度参数
type ScannerConfig struct {
	ScanID string // 为空时自动生成

	// Concurrency 固定并发上限，0 表示每个主机一个 goroutine (默认，不设上限)
	Concurrency int

	// Limiter 自适应并发，非空时优先于 Concurrency
	Limiter *qos.AdaptiveLimiter

	// WarnThreshold 无上限扇出且主机数超过该值时输出警告，0 不警告
	WarnThreshold uint64
}

// Scanner 扫描调度器
// 对网段内每个主机并发执行一次探测，等待全部完成后返回。
// 命中结果串行交给 Sink，输出顺序不确定。
type Scanner struct {
	prober HostProber
	sink   reporter.Sink
	cfg    ScannerConfig

	sinkMu sync.Mutex
}

func NewScanner(prober HostProber, sink reporter.Sink, cfg ScannerConfig) *Scanner {
	if cfg.ScanID == "" {
		cfg.ScanID = model.NewScanID()
	}
	return &Scanner{
		prober: prober,
		sink:   sink,
		cfg:    cfg,
	}
}

// ScanID 本次扫描 ID
func (s *Scanner) ScanID() string {
	return s.cfg.ScanID
}

type counters struct {
	dispatched   atomic.Int64
	completed    atomic.Int64
	compromised  atomic.Int64
	rejected     atomic.Int64
	undetermined atomic.Int64
}

// Scan 扫描整个网段
// 返回时所有已派发的探测都已结束 (Dispatched == Completed)。
// 只有自适应模式下等待令牌时 ctx 结束才会返回错误，此时已派发的探测仍会等待完成。
func (s *Scanner) Scan(ctx context.Context, rng *netrange.Range) (model.ScanSummary, error) {
	start := time.Now()
	log := logger.WithFields(logrus.Fields{
		logger.FieldScanID: s.cfg.ScanID,
		logger.FieldTarget: rng.String(),
	})

	if s.cfg.Limiter == nil && s.cfg.Concurrency == 0 && s.cfg.WarnThreshold > 0 && rng.Size() > s.cfg.WarnThreshold {
		log.Warnf("unbounded fan-out over %d hosts, consider setting a concurrency limit", rng.Size())
	}
	log.Infof("scan started, %d hosts", rng.Size())

	var c counters
	// 不使用 errgroup.WithContext: 单个主机失败不能取消其他探测
	var g errgroup.Group
	if s.cfg.Limiter == nil && s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}

	var dispatchErr error
	for host := range rng.Hosts() {
		if s.cfg.Limiter != nil {
			if err := s.cfg.Limiter.Acquire(ctx); err != nil {
				dispatchErr = fmt.Errorf("dispatch stopped: %w", err)
				break
			}
		}

		c.dispatched.Add(1)
		g.Go(func() error {
			if s.cfg.Limiter != nil {
				defer s.cfg.Limiter.Release()
			}
			defer c.completed.Add(1)
			s.runProbe(ctx, host, &c)
			return nil
		})
	}
	_ = g.Wait()

	summary := model.ScanSummary{
		ScanID:       s.cfg.ScanID,
		Target:       rng.String(),
		Dispatched:   c.dispatched.Load(),
		Completed:    c.completed.Load(),
		Compromised:  c.compromised.Load(),
		Rejected:     c.rejected.Load(),
		Undetermined: c.undetermined.Load(),
		Duration:     time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"dispatched":   summary.Dispatched,
		"compromised":  summary.Compromised,
		"rejected":     summary.Rejected,
		"undetermined": summary.Undetermined,
	}).Infof("scan finished in %s", summary.Duration.Round(time.Millisecond))

	return summary, dispatchErr
}

// runProbe 执行单个探测并归类。探测器 panic 也只算作 Undetermined
func (s *Scanner) runProbe(ctx context.Context, host string, c *counters) {
	res := model.ProbeResult{Host: host, Status: model.ProbeStatusUndetermined}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res = model.ProbeResult{
					Host:   host,
					Status: model.ProbeStatusUndetermined,
					Err:    fmt.Errorf("probe panicked: %v", r),
				}
			}
		}()
		res = s.prober.Probe(ctx, host)
	}()

	switch res.Status {
	case model.ProbeStatusCompromised:
		c.compromised.Add(1)
		s.limiterSuccess()
		if res.Outcome != nil {
			outcome := *res.Outcome
			outcome.ScanID = s.cfg.ScanID
			s.emit(ctx, outcome)
		}
	case model.ProbeStatusRejected:
		c.rejected.Add(1)
		s.limiterSuccess()
	default:
		c.undetermined.Add(1)
		if s.cfg.Limiter != nil && errors.Is(res.Err, ErrTimeout) {
			s.cfg.Limiter.OnFailure()
		}
	}
}

func (s *Scanner) limiterSuccess() {
	if s.cfg.Limiter != nil {
		s.cfg.Limiter.OnSuccess()
	}
}

func (s *Scanner) emit(ctx context.Context, outcome model.ProbeOutcome) {
	if s.sink == nil {
		return
	}

	s.sinkMu.Lock()
	err := s.sink.Report(ctx, outcome)
	s.sinkMu.Unlock()

	if err != nil {
		logger.WithFields(logrus.Fields{
			logger.FieldScanID: s.cfg.ScanID,
			logger.FieldHost:   outcome.Host,
			logger.FieldError:  err.Error(),
		}).Warn("failed to report outcome")
	}
}
