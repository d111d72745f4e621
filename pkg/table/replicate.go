package table

import (
	"context"
	"fmt"

	"github.com/yourusername/bgtable/pkg/engine"
)

// Replicate subscribes the table to states other processes publish for it.
// It does nothing for a table without a channel.
func (t *Table) Replicate(ctx context.Context) error {
	ch := t.opts.Channel
	if ch == nil {
		return nil
	}
	cancel, err := ch.Subscribe(ctx, t.id, func(gs engine.GameState) {
		t.ApplyRemote(gs)
	})
	if err != nil {
		return fmt.Errorf("replicate %s: %w", t.id, err)
	}

	t.mu.Lock()
	if t.stopRemote != nil {
		t.stopRemote()
	}
	t.stopRemote = cancel
	t.mu.Unlock()
	return nil
}

// Close stops replication.
func (t *Table) Close() {
	t.mu.Lock()
	stop := t.stopRemote
	t.stopRemote = nil
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// ApplyRemote replaces the local state with gs if gs is newer. A state with
// the same version is an echo of a local write and is ignored. It reports
// whether the state was taken.
func (t *Table) ApplyRemote(gs engine.GameState) bool {
	if err := gs.Validate(); err != nil {
		t.log.Warn().Err(err).Uint64("version", gs.Version).Msg("rejecting-remote-state")
		return false
	}

	t.mu.Lock()
	if gs.Version <= t.state.Version {
		t.mu.Unlock()
		return false
	}
	t.state = gs
	if cur := t.record.Current(); cur == nil || cur.Number < gs.GameNumber {
		t.record.StartGame(gs)
	}
	t.mu.Unlock()

	t.log.Debug().Uint64("version", gs.Version).Msg("remote-state-applied")
	t.notify(gs)
	return true
}
