// Package ratelimit provides the global in-flight permit pool that caps
// concurrent outbound webhook calls across both worker loops.
package ratelimit

import (
	"context"
	"sync/atomic"
)

// Pool is a counting semaphore. One permit is held for the duration of
// each outbound HTTP call; when the pool is exhausted, dispatchers wait.
type Pool struct {
	permits chan struct{}
	inUse   atomic.Int64
}

// NewPool creates a pool with the given capacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool{permits: make(chan struct{}, capacity)}
}

// TryAcquire takes a permit without blocking. Returns false when the pool
// is saturated.
func (p *Pool) TryAcquire() bool {
	select {
	case p.permits <- struct{}{}:
		p.inUse.Add(1)
		return true
	default:
		return false
	}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.permits <- struct{}{}:
		p.inUse.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit. Callers must pair every successful acquire
// with exactly one release, normally via defer, so failures cannot leak
// permits.
func (p *Pool) Release() {
	p.inUse.Add(-1)
	<-p.permits
}

// InUse returns the number of permits currently held.
func (p *Pool) InUse() int64 {
	return p.inUse.Load()
}

// Capacity returns the pool size.
func (p *Pool) Capacity() int {
	return cap(p.permits)
}
