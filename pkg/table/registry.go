package table

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/replication"
)

// ErrNotFound is returned for an unknown table ID.
var ErrNotFound = errors.New("table not found")

// Registry owns the live tables of a process.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// Create starts a new table with a random ID.
func (r *Registry) Create(opts Options) *Table {
	t := New(uuid.NewString(), opts)
	r.Add(t)
	return t
}

// Add registers t, replacing any table with the same ID.
func (r *Registry) Add(t *Table) {
	r.mu.Lock()
	old := r.tables[t.ID()]
	r.tables[t.ID()] = t
	r.mu.Unlock()
	if old != nil && old != t {
		old.Close()
	}
}

// Get returns the table with the given ID.
func (r *Registry) Get(id string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// Remove closes and forgets the table.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	t, ok := r.tables[id]
	delete(r.tables, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Close()
	return nil
}

// IDs returns the registered table IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// Snapshots lists and loads saved game states.
type Snapshots interface {
	replication.Loader
	Games(ctx context.Context) ([]string, error)
}

// Restore brings back every saved game as a table. A snapshot that cannot be
// read starts over from the initial layout with the match rules in opts. It
// returns the number of tables restored.
func (r *Registry) Restore(ctx context.Context, store Snapshots, opts Options) (int, error) {
	ids, err := store.Games(ctx)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}

	n := 0
	for _, id := range ids {
		gs, err := store.Load(ctx, id)
		var corrupt *engine.CorruptStateError
		switch {
		case errors.As(err, &corrupt):
			log.Warn().Err(err).Str("table", id).Msg("snapshot-corrupt-resetting")
			t := New(id, opts)
			t.mu.Lock()
			t.logf("The saved game could not be read and was reset to the starting position.")
			t.mu.Unlock()
			r.Add(t)
		case err != nil:
			return n, fmt.Errorf("load snapshot %s: %w", id, err)
		default:
			t, err := NewFromState(id, gs, opts)
			if err != nil {
				return n, err
			}
			r.Add(t)
		}
		n++
	}
	return n, nil
}
