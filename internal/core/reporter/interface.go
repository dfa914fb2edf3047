/**
 * 结果输出接口定义
 * @date: 2026.02.10
 * @description: 命中结果的输出目标 (Console / 内存收集 / 文件导出)。
 */

package reporter

import (
	"context"
	"errors"
	"sync"

	"dracscan/internal/core/model"
)

// TabularData 可以被渲染为表格的数据
type TabularData interface {
	Headers() []string
	Rows() [][]string
}

// Sink 接收命中结果。调度器会串行调用 Report
type Sink interface {
	Report(ctx context.Context, outcome model.ProbeOutcome) error
}

// MultiReporter 同时向多个 Sink 输出，单个失败不影响其他
type MultiReporter struct {
	reporters []Sink
}

func NewMultiReporter(reporters ...Sink) *MultiReporter {
	return &MultiReporter{
		reporters: reporters,
	}
}

func (m *MultiReporter) Report(ctx context.Context, outcome model.ProbeOutcome) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Report(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Collector 在内存中收集命中结果，扫描结束后用于打印表格和导出文件
type Collector struct {
	mu       sync.Mutex
	outcomes model.ProbeOutcomes
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Report(ctx context.Context, outcome model.ProbeOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
	return nil
}

// Outcomes 返回已收集结果的副本
func (c *Collector) Outcomes() model.ProbeOutcomes {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(model.ProbeOutcomes, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}
