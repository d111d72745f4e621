package api

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWorkerPoolBasic(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxActions: 2, MaxAdvice: 1})

	ctx := context.Background()
	if err := pool.AcquireAction(ctx); err != nil {
		t.Fatalf("Failed to acquire action slot: %v", err)
	}

	stats := pool.Stats()
	if stats.ActiveActions != 1 {
		t.Errorf("Expected 1 active action, got %d", stats.ActiveActions)
	}

	pool.ReleaseAction()
	stats = pool.Stats()
	if stats.ActiveActions != 0 {
		t.Errorf("Expected 0 active actions after release, got %d", stats.ActiveActions)
	}
	if stats.TotalActions != 1 {
		t.Errorf("Expected 1 total action, got %d", stats.TotalActions)
	}
}

func TestWorkerPoolAdviceLane(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxActions: 10, MaxAdvice: 2})
	ctx := context.Background()

	if err := pool.AcquireAdvice(ctx); err != nil {
		t.Fatalf("Failed to acquire advice slot 1: %v", err)
	}
	if err := pool.AcquireAdvice(ctx); err != nil {
		t.Fatalf("Failed to acquire advice slot 2: %v", err)
	}
	if pool.TryAcquireAdvice() {
		t.Error("Should not be able to acquire a third advice slot")
	}

	// Actions are unaffected by a full advice lane
	if err := pool.AcquireAction(ctx); err != nil {
		t.Fatalf("Failed to acquire action slot: %v", err)
	}
	pool.ReleaseAction()

	pool.ReleaseAdvice()
	pool.ReleaseAdvice()
	if stats := pool.Stats(); stats.TotalAdvice != 2 {
		t.Errorf("Expected 2 total advice requests, got %d", stats.TotalAdvice)
	}
}

func TestWorkerPoolContextCancellation(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxActions: 1, MaxAdvice: 1})

	if err := pool.AcquireAction(context.Background()); err != nil {
		t.Fatalf("Failed to acquire action slot: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.AcquireAction(cancelCtx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pool.AcquireAction(timeoutCtx); err != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}

	pool.ReleaseAction()
}

func TestWorkerPoolConcurrency(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxActions: 5, MaxAdvice: 2})

	var wg sync.WaitGroup
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.AcquireAction(ctx); err != nil {
				t.Errorf("Failed to acquire action slot: %v", err)
				return
			}
			time.Sleep(5 * time.Millisecond)
			pool.ReleaseAction()
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	if stats.TotalActions != 10 {
		t.Errorf("Expected 10 total actions, got %d", stats.TotalActions)
	}
	if stats.QueuedActions != 0 || stats.ActiveActions != 0 {
		t.Errorf("Expected an idle pool, got %+v", stats)
	}
}

func TestWorkerPoolDefaults(t *testing.T) {
	stats := NewWorkerPool(PoolConfig{}).Stats()
	if stats.MaxActions != 100 {
		t.Errorf("Expected MaxActions=100, got %d", stats.MaxActions)
	}
	if stats.MaxAdvice != 4 {
		t.Errorf("Expected MaxAdvice=4, got %d", stats.MaxAdvice)
	}
}
