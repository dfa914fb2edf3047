package drac

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dracscan/internal/core/lib/network/netrange"
	"dracscan/internal/core/lib/network/qos"
	"dracscan/internal/core/model"
	"dracscan/internal/core/reporter"
)

// mockProber 按主机返回预设结果，并记录并发峰值
type mockProber struct {
	delay  time.Duration
	decide func(host string) model.ProbeResult

	mu      sync.Mutex
	visited map[string]int

	inflight atomic.Int32
	peak     atomic.Int32
}

func newMockProber(delay time.Duration, decide func(host string) model.ProbeResult) *mockProber {
	return &mockProber{delay: delay, decide: decide, visited: make(map[string]int)}
}

func (m *mockProber) Probe(ctx context.Context, host string) model.ProbeResult {
	cur := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		p := m.peak.Load()
		if cur <= p || m.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	m.mu.Lock()
	m.visited[host]++
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.decide != nil {
		return m.decide(host)
	}
	return model.ProbeResult{Host: host, Status: model.ProbeStatusRejected}
}

func compromised(host string) model.ProbeResult {
	return model.ProbeResult{
		Host:   host,
		Status: model.ProbeStatusCompromised,
		Outcome: &model.ProbeOutcome{
			Host:        host,
			Compromised: true,
			Username:    DefaultUsername,
			Password:    DefaultPassword,
			FoundAt:     time.Now(),
		},
	}
}

func mustParse(t *testing.T, cidr string) *netrange.Range {
	t.Helper()
	r, err := netrange.Parse(cidr)
	require.NoError(t, err)
	return r
}

func TestScan_AllHostsCompleted(t *testing.T) {
	rng := mustParse(t, "10.0.0.0/24")

	modes := map[string]func() ScannerConfig{
		"unbounded": func() ScannerConfig { return ScannerConfig{} },
		"fixed":     func() ScannerConfig { return ScannerConfig{Concurrency: 16} },
		"adaptive":  func() ScannerConfig { return ScannerConfig{Limiter: qos.NewAdaptiveLimiter(8, 2, 32)} },
	}

	for name, cfg := range modes {
		t.Run(name, func(t *testing.T) {
			prober := newMockProber(time.Millisecond, nil)
			s := NewScanner(prober, nil, cfg())

			summary, err := s.Scan(context.Background(), rng)
			require.NoError(t, err)

			assert.Equal(t, int64(254), summary.Dispatched)
			assert.Equal(t, int64(254), summary.Completed)
			assert.Equal(t, int64(254), summary.Rejected)
			assert.Zero(t, summary.Compromised)
			assert.Zero(t, summary.Undetermined)
			assert.Equal(t, "10.0.0.0/24", summary.Target)
			assert.Equal(t, s.ScanID(), summary.ScanID)

			// 每个主机恰好探测一次
			assert.Len(t, prober.visited, 254)
			for host, n := range prober.visited {
				assert.Equal(t, 1, n, host)
			}
			assert.Zero(t, prober.inflight.Load())
		})
	}
}

func TestScan_FixedCapNeverExceeded(t *testing.T) {
	prober := newMockProber(5*time.Millisecond, nil)
	s := NewScanner(prober, nil, ScannerConfig{Concurrency: 4})

	summary, err := s.Scan(context.Background(), mustParse(t, "10.0.0.0/26"))
	require.NoError(t, err)

	assert.Equal(t, int64(62), summary.Completed)
	assert.LessOrEqual(t, prober.peak.Load(), int32(4))
}

func TestScan_AdaptiveCapNeverExceeded(t *testing.T) {
	limiter := qos.NewAdaptiveLimiter(3, 1, 3)
	prober := newMockProber(5*time.Millisecond, nil)
	s := NewScanner(prober, nil, ScannerConfig{Limiter: limiter})

	summary, err := s.Scan(context.Background(), mustParse(t, "10.0.0.0/27"))
	require.NoError(t, err)

	assert.Equal(t, int64(30), summary.Completed)
	assert.LessOrEqual(t, prober.peak.Load(), int32(3))
}

func TestScan_AdaptiveShrinksOnTimeout(t *testing.T) {
	limiter := qos.NewAdaptiveLimiter(20, 2, 20)
	prober := newMockProber(0, func(host string) model.ProbeResult {
		return model.ProbeResult{Host: host, Status: model.ProbeStatusUndetermined, Err: fmt.Errorf("%w: i/o timeout", ErrTimeout)}
	})
	s := NewScanner(prober, nil, ScannerConfig{Limiter: limiter})

	summary, err := s.Scan(context.Background(), mustParse(t, "10.0.0.0/28"))
	require.NoError(t, err)

	assert.Equal(t, int64(14), summary.Undetermined)
	assert.Equal(t, 2, limiter.CurrentLimit())
}

func TestScan_OnlyCompromisedReachSink(t *testing.T) {
	prober := newMockProber(0, func(host string) model.ProbeResult {
		switch host {
		case "192.168.1.5", "192.168.1.9":
			return compromised(host)
		case "192.168.1.7":
			return model.ProbeResult{Host: host, Status: model.ProbeStatusUndetermined, Err: ErrConnectionFailed}
		default:
			return model.ProbeResult{Host: host, Status: model.ProbeStatusRejected}
		}
	})
	collector := reporter.NewCollector()
	s := NewScanner(prober, collector, ScannerConfig{ScanID: "scan-42"})

	summary, err := s.Scan(context.Background(), mustParse(t, "192.168.1.0/28"))
	require.NoError(t, err)

	assert.Equal(t, int64(14), summary.Completed)
	assert.Equal(t, int64(2), summary.Compromised)
	assert.Equal(t, int64(1), summary.Undetermined)
	assert.Equal(t, int64(11), summary.Rejected)

	outcomes := collector.Outcomes()
	require.Len(t, outcomes, 2)

	var hosts []string
	for _, o := range outcomes {
		hosts = append(hosts, o.Host)
		assert.Equal(t, "scan-42", o.ScanID)
		assert.True(t, o.Compromised)
		assert.Equal(t, "root", o.Username)
		assert.Equal(t, "calvin", o.Password)
	}
	assert.ElementsMatch(t, []string{"192.168.1.5", "192.168.1.9"}, hosts)
}

// serialSink 检测 Report 是否被并发调用
type serialSink struct {
	active     atomic.Int32
	overlapped atomic.Bool
	count      atomic.Int32
}

func (s *serialSink) Report(ctx context.Context, o model.ProbeOutcome) error {
	if s.active.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	time.Sleep(time.Millisecond)
	s.active.Add(-1)
	s.count.Add(1)
	return nil
}

func TestScan_SinkSerialized(t *testing.T) {
	sink := &serialSink{}
	s := NewScanner(newMockProber(0, compromised), sink, ScannerConfig{})

	summary, err := s.Scan(context.Background(), mustParse(t, "10.1.0.0/26"))
	require.NoError(t, err)

	assert.Equal(t, int64(62), summary.Compromised)
	assert.Equal(t, int32(62), sink.count.Load())
	assert.False(t, sink.overlapped.Load())
}

type brokenSink struct{}

func (brokenSink) Report(ctx context.Context, o model.ProbeOutcome) error {
	return errors.New("disk full")
}

func TestScan_SinkErrorDoesNotAbort(t *testing.T) {
	s := NewScanner(newMockProber(0, compromised), brokenSink{}, ScannerConfig{})

	summary, err := s.Scan(context.Background(), mustParse(t, "10.2.0.0/29"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), summary.Completed)
	assert.Equal(t, int64(6), summary.Compromised)
}

func TestScan_ProbePanicContained(t *testing.T) {
	prober := newMockProber(0, func(host string) model.ProbeResult {
		if host == "10.3.0.2" {
			panic("boom")
		}
		return model.ProbeResult{Host: host, Status: model.ProbeStatusRejected}
	})
	s := NewScanner(prober, nil, ScannerConfig{})

	summary, err := s.Scan(context.Background(), mustParse(t, "10.3.0.0/29"))
	require.NoError(t, err)

	assert.Equal(t, int64(6), summary.Completed)
	assert.Equal(t, int64(1), summary.Undetermined)
	assert.Equal(t, int64(5), summary.Rejected)
}

func TestScan_EmptyRange(t *testing.T) {
	for _, cidr := range []string{"10.0.0.1/32", "10.0.0.0/31"} {
		t.Run(cidr, func(t *testing.T) {
			prober := newMockProber(0, nil)
			summary, err := NewScanner(prober, nil, ScannerConfig{}).Scan(context.Background(), mustParse(t, cidr))
			require.NoError(t, err)
			assert.Zero(t, summary.Dispatched)
			assert.Zero(t, summary.Completed)
			assert.Empty(t, prober.visited)
		})
	}
}

func TestScan_AdaptiveContextCanceled(t *testing.T) {
	limiter := qos.NewAdaptiveLimiter(1, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	prober := newMockProber(0, func(host string) model.ProbeResult {
		cancel()
		time.Sleep(20 * time.Millisecond)
		return model.ProbeResult{Host: host, Status: model.ProbeStatusRejected}
	})
	s := NewScanner(prober, nil, ScannerConfig{Limiter: limiter})

	summary, err := s.Scan(ctx, mustParse(t, "10.4.0.0/24"))
	assert.ErrorIs(t, err, context.Canceled)
	// 已派发的探测全部完成后才返回
	assert.Equal(t, summary.Dispatched, summary.Completed)
	assert.Less(t, summary.Dispatched, int64(254))
}

func TestNewScanner_GeneratesScanID(t *testing.T) {
	a := NewScanner(newMockProber(0, nil), nil, ScannerConfig{})
	b := NewScanner(newMockProber(0, nil), nil, ScannerConfig{})
	assert.NotEmpty(t, a.ScanID())
	assert.NotEqual(t, a.ScanID(), b.ScanID())
}
