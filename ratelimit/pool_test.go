package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/trigger/ratelimit"
)

func TestPoolTryAcquire(t *testing.T) {
	p := ratelimit.NewPool(2)

	if !p.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if !p.TryAcquire() {
		t.Fatal("second acquire should succeed")
	}
	if p.TryAcquire() {
		t.Fatal("third acquire should fail, pool is saturated")
	}
	if p.InUse() != 2 {
		t.Fatalf("InUse = %d, want 2", p.InUse())
	}

	p.Release()
	if !p.TryAcquire() {
		t.Fatal("acquire after release should succeed")
	}
}

func TestPoolAcquireBlocksUntilRelease(t *testing.T) {
	p := ratelimit.NewPool(1)
	if !p.TryAcquire() {
		t.Fatal("setup acquire failed")
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Acquire(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("Acquire returned while pool was saturated")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not wake after release")
	}
}

func TestPoolAcquireRespectsContext(t *testing.T) {
	p := ratelimit.NewPool(1)
	if !p.TryAcquire() {
		t.Fatal("setup acquire failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Acquire(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Acquire error = %v, want context.DeadlineExceeded", err)
	}
	if p.InUse() != 1 {
		t.Fatalf("failed acquire must not count, InUse = %d", p.InUse())
	}
}

func TestPoolMinimumCapacity(t *testing.T) {
	p := ratelimit.NewPool(0)
	if p.Capacity() != 1 {
		t.Fatalf("Capacity = %d, want 1", p.Capacity())
	}
}
