package qos

import (
	"context"
	"sync"
	"sync/atomic"
)

// AdaptiveLimiter AIMD 并发限制器
// 探测得到响应时线性增加并发，探测超时时乘性减少并发。
// 用于大网段扫描时给扇出加一个可自适应的上限。
type AdaptiveLimiter struct {
	sem  chan struct{} // 令牌桶，容量为 max
	debt atomic.Int32  // 缩容时被借出、归还时需要销毁的令牌数

	mu           sync.Mutex
	current      int
	min          int
	max          int
	successCount int
}

// NewAdaptiveLimiter 创建限制器，initial 会被修正到 [min, max] 内
func NewAdaptiveLimiter(initial, min, max int) *AdaptiveLimiter {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if initial < min {
		initial = min
	}
	if initial > max {
		initial = max
	}

	l := &AdaptiveLimiter{
		sem:     make(chan struct{}, max),
		current: initial,
		min:     min,
		max:     max,
	}
	for i := 0; i < initial; i++ {
		l.sem <- struct{}{}
	}
	return l
}

// Acquire 获取令牌，阻塞直到有令牌或 ctx 结束
func (l *AdaptiveLimiter) Acquire(ctx context.Context) error {
	select {
	case <-l.sem:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 归还令牌；有待偿还的缩容债务时销毁令牌
func (l *AdaptiveLimiter) Release() {
	if l.payDebt() {
		return
	}

	select {
	case l.sem <- struct{}{}:
	default:
	}
}

// OnSuccess 记录一次有响应的探测。连续成功 current 次后上限 +1
func (l *AdaptiveLimiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.successCount++
	if l.successCount >= l.current {
		l.successCount = 0
		l.grow(1)
	}
}

// OnFailure 记录一次超时。上限乘以 0.7，至少减 1
func (l *AdaptiveLimiter) OnFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	decrease := l.current - int(float64(l.current)*0.7)
	if decrease < 1 {
		decrease = 1
	}
	l.shrink(decrease)
	l.successCount = 0
}

func (l *AdaptiveLimiter) grow(n int) {
	target := min(l.current+n, l.max)
	diff := target - l.current
	if diff <= 0 {
		return
	}
	l.current = target

	for i := 0; i < diff; i++ {
		// 先抵消尚未偿还的债务，再注入新令牌
		if l.payDebt() {
			continue
		}
		select {
		case l.sem <- struct{}{}:
		default:
		}
	}
}

// payDebt 债务减一，没有债务时返回 false。CAS 失败时重试，不会在仍有债务时放行
func (l *AdaptiveLimiter) payDebt() bool {
	for {
		d := l.debt.Load()
		if d <= 0 {
			return false
		}
		if l.debt.CompareAndSwap(d, d-1) {
			return true
		}
	}
}

func (l *AdaptiveLimiter) shrink(n int) {
	target := max(l.current-n, l.min)
	diff := l.current - target
	if diff <= 0 {
		return
	}
	l.current = target

	// 空闲令牌直接收回，被借出的记为债务
	removed := 0
	for i := 0; i < diff; i++ {
		select {
		case <-l.sem:
			removed++
		default:
		}
	}
	if remaining := diff - removed; remaining > 0 {
		l.debt.Add(int32(remaining))
	}
}

// CurrentLimit 当前并发上限
func (l *AdaptiveLimiter) CurrentLimit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
