package api

import (
	"context"
	"sync/atomic"
)

// WorkerPool bounds concurrent request processing. Table actions are cheap
// and share a wide lane; advice requests may wait on a remote oracle and get
// a narrow one so they cannot starve play.
type WorkerPool struct {
	actionSem    chan struct{}
	adviceSem    chan struct{}
	queuedAction atomic.Int64
	queuedAdvice atomic.Int64
	activeAction atomic.Int64
	activeAdvice atomic.Int64
	totalAction  atomic.Int64
	totalAdvice  atomic.Int64
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	MaxActions int // Max concurrent table actions (default: 100)
	MaxAdvice  int // Max concurrent oracle calls (default: 4)
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxActions: 100,
		MaxAdvice:  4,
	}
}

// NewWorkerPool creates a new worker pool with the given configuration.
func NewWorkerPool(config PoolConfig) *WorkerPool {
	def := DefaultPoolConfig()
	if config.MaxActions <= 0 {
		config.MaxActions = def.MaxActions
	}
	if config.MaxAdvice <= 0 {
		config.MaxAdvice = def.MaxAdvice
	}
	return &WorkerPool{
		actionSem: make(chan struct{}, config.MaxActions),
		adviceSem: make(chan struct{}, config.MaxAdvice),
	}
}

// AcquireAction waits for a table action slot.
func (p *WorkerPool) AcquireAction(ctx context.Context) error {
	return acquire(ctx, p.actionSem, &p.queuedAction, &p.activeAction)
}

// ReleaseAction returns a table action slot.
func (p *WorkerPool) ReleaseAction() {
	release(p.actionSem, &p.activeAction, &p.totalAction)
}

// AcquireAdvice waits for an oracle slot.
func (p *WorkerPool) AcquireAdvice(ctx context.Context) error {
	return acquire(ctx, p.adviceSem, &p.queuedAdvice, &p.activeAdvice)
}

// ReleaseAdvice returns an oracle slot.
func (p *WorkerPool) ReleaseAdvice() {
	release(p.adviceSem, &p.activeAdvice, &p.totalAdvice)
}

// TryAcquireAdvice takes an oracle slot without waiting.
func (p *WorkerPool) TryAcquireAdvice() bool {
	select {
	case p.adviceSem <- struct{}{}:
		p.activeAdvice.Add(1)
		return true
	default:
		return false
	}
}

func acquire(ctx context.Context, sem chan struct{}, queued, active *atomic.Int64) error {
	queued.Add(1)
	defer queued.Add(-1)

	select {
	case sem <- struct{}{}:
		active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(sem chan struct{}, active, total *atomic.Int64) {
	active.Add(-1)
	total.Add(1)
	<-sem
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	ActiveActions int64 `json:"active_actions"`
	ActiveAdvice  int64 `json:"active_advice"`
	QueuedActions int64 `json:"queued_actions"`
	QueuedAdvice  int64 `json:"queued_advice"`
	TotalActions  int64 `json:"total_actions"`
	TotalAdvice   int64 `json:"total_advice"`
	MaxActions    int   `json:"max_actions"`
	MaxAdvice     int   `json:"max_advice"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		ActiveActions: p.activeAction.Load(),
		ActiveAdvice:  p.activeAdvice.Load(),
		QueuedActions: p.queuedAction.Load(),
		QueuedAdvice:  p.queuedAdvice.Load(),
		TotalActions:  p.totalAction.Load(),
		TotalAdvice:   p.totalAdvice.Load(),
		MaxActions:    cap(p.actionSem),
		MaxAdvice:     cap(p.adviceSem),
	}
}
