package usecases

import "context"

// RateLimiter bounds the number of store operations in flight.
type RateLimiter struct {
	semaphore     chan struct{}
	maxConcurrent int
}

// NewRateLimiter allows maxConcurrent simultaneous holders.
func NewRateLimiter(maxConcurrent int) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 10
	}
	return &RateLimiter{
		semaphore:     make(chan struct{}, maxConcurrent),
		maxConcurrent: maxConcurrent,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case rl.semaphore <- struct{}{}:
		return nil
	}
}

// Release frees a slot. Releasing more than acquired is a no-op.
func (rl *RateLimiter) Release() {
	select {
	case <-rl.semaphore:
	default:
	}
}

// InFlight returns the number of held slots.
func (rl *RateLimiter) InFlight() int {
	return len(rl.semaphore)
}
