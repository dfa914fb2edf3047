package qos

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdaptiveLimiter_Clamp(t *testing.T) {
	assert.Equal(t, 10, NewAdaptiveLimiter(1, 10, 20).CurrentLimit())
	assert.Equal(t, 20, NewAdaptiveLimiter(99, 10, 20).CurrentLimit())
	assert.Equal(t, 8, NewAdaptiveLimiter(5, 8, 3).CurrentLimit(), "max below min is raised to min")
}

func TestAdaptiveLimiter_OnFailureShrinks(t *testing.T) {
	l := NewAdaptiveLimiter(50, 10, 200)

	l.OnFailure()
	assert.Equal(t, 35, l.CurrentLimit())

	for i := 0; i < 20; i++ {
		l.OnFailure()
	}
	assert.Equal(t, 10, l.CurrentLimit(), "never below min")
}

func TestAdaptiveLimiter_OnSuccessGrows(t *testing.T) {
	l := NewAdaptiveLimiter(4, 1, 5)

	for i := 0; i < 4; i++ {
		l.OnSuccess()
	}
	assert.Equal(t, 5, l.CurrentLimit())

	for i := 0; i < 100; i++ {
		l.OnSuccess()
	}
	assert.Equal(t, 5, l.CurrentLimit(), "never above max")
}

func TestAdaptiveLimiter_AcquireBlocksAtLimit(t *testing.T) {
	l := NewAdaptiveLimiter(2, 1, 4)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx2), context.DeadlineExceeded)

	l.Release()
	require.NoError(t, l.Acquire(ctx))
}

func TestAdaptiveLimiter_ShrinkWhileBorrowed(t *testing.T) {
	l := NewAdaptiveLimiter(3, 1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	l.OnFailure() // 3 -> 2，令牌全部借出，记一笔债务

	for i := 0; i < 3; i++ {
		l.Release()
	}

	// 只剩 2 个令牌可用
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Acquire(ctx2))
}

func TestAdaptiveLimiter_ConcurrencyNeverExceedsLimit(t *testing.T) {
	l := NewAdaptiveLimiter(4, 4, 4)
	ctx := context.Background()

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, l.Acquire(ctx)) {
				return
			}
			defer l.Release()

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestAdaptiveLimiter_GrowPaysDebtBeforeAddingTokens(t *testing.T) {
	l := NewAdaptiveLimiter(3, 1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	l.OnFailure() // 3 -> 2，债务 1
	require.Equal(t, int32(1), l.debt.Load())

	l.OnSuccess()
	l.OnSuccess() // 2 -> 3，先还债
	assert.Equal(t, 3, l.CurrentLimit())
	assert.Zero(t, l.debt.Load())
	assert.Zero(t, len(l.sem), "no spare token while all three are borrowed")

	for i := 0; i < 3; i++ {
		l.Release()
	}
	assert.Equal(t, 3, len(l.sem))
}

func TestAdaptiveLimiter_ResizeUnderLoad(t *testing.T) {
	l := NewAdaptiveLimiter(8, 2, 16)
	ctx := context.Background()

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 400; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if !assert.NoError(t, l.Acquire(ctx)) {
				return
			}
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if i%5 == 0 {
				l.OnFailure()
			} else {
				l.OnSuccess()
			}
			inFlight.Add(-1)
			l.Release()
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(16))
	// 静止后令牌数与当前上限一致，债务清零
	assert.Zero(t, l.debt.Load())
	assert.Equal(t, l.CurrentLimit(), len(l.sem))
}
