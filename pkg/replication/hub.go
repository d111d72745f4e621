package replication

import (
	"context"
	"sync"

	"github.com/yourusername/bgtable/pkg/engine"
)

// Hub is an in-process channel. It keeps the latest state of every game and
// calls subscribers synchronously from Save, outside its lock.
type Hub struct {
	mu     sync.Mutex
	latest map[string]engine.GameState
	subs   map[string]map[int]Listener
	nextID int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		latest: make(map[string]engine.GameState),
		subs:   make(map[string]map[int]Listener),
	}
}

// Save stores gs and delivers it to the game's subscribers. A state older
// than the stored one is ignored.
func (h *Hub) Save(ctx context.Context, gameID string, gs engine.GameState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if cur, ok := h.latest[gameID]; ok && gs.Version < cur.Version {
		h.mu.Unlock()
		return nil
	}
	h.latest[gameID] = gs
	listeners := make([]Listener, 0, len(h.subs[gameID]))
	for _, fn := range h.subs[gameID] {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(gs)
	}
	return nil
}

// Subscribe registers fn for the game.
func (h *Hub) Subscribe(ctx context.Context, gameID string, fn Listener) (func(), error) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[int]Listener)
	}
	h.subs[gameID][id] = fn
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[gameID], id)
			if len(h.subs[gameID]) == 0 {
				delete(h.subs, gameID)
			}
			h.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, cancel)
	return cancel, nil
}

// Load returns the last state saved for the game.
func (h *Hub) Load(_ context.Context, gameID string) (engine.GameState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	gs, ok := h.latest[gameID]
	if !ok {
		return engine.GameState{}, ErrNoSnapshot
	}
	return gs, nil
}

// Subscribers returns the number of listeners registered for the game.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}
