package processor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcLimiter(t *testing.T) {
	limiter := NewConcLimiter(2)
	var running, peak int32
	for i := 0; i < 6; i++ {
		if !limiter.Acquire(context.Background()) {
			t.Fatal("acquire failed without cancellation")
		}
		go func() {
			defer limiter.Release()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	limiter.Wait()
	if peak > 2 {
		t.Errorf("%d evaluations ran at once, limit is 2", peak)
	}
}

func TestConcLimiterCancel(t *testing.T) {
	limiter := NewConcLimiter(1)
	if !limiter.Acquire(context.Background()) {
		t.Fatal("first acquire failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if limiter.Acquire(ctx) {
		t.Error("acquire succeeded on a full limiter after cancellation")
	}
	limiter.Release()
	limiter.Wait()
}
