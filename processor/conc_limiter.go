package processor

import (
	"context"
	"sync"
)

// ConcLimiter bounds the number of year evaluations in flight.
type ConcLimiter struct {
	wg   sync.WaitGroup
	Pool chan struct{}
}

func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel < 1 {
		cLevel = 1
	}
	return &ConcLimiter{Pool: make(chan struct{}, cLevel)}
}

// Acquire blocks until a slot is free. It returns false, holding no
// slot, when ctx is done first.
func (c *ConcLimiter) Acquire(ctx context.Context) bool {
	select {
	case c.Pool <- struct{}{}:
		c.wg.Add(1)
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *ConcLimiter) Release() {
	select {
	case <-c.Pool:
		c.wg.Done()
	default:
	}
}

// Wait returns once every acquired slot has been released.
func (c *ConcLimiter) Wait() {
	c.wg.Wait()
}
