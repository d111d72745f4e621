package replication

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
)

// NATSChannel publishes states on one subject per game. Nothing is stored;
// late subscribers see only states published after they subscribe.
type NATSChannel struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSChannel uses subjects of the form <prefix>.<game>.state. An empty
// prefix defaults to "bgtable.game".
func NewNATSChannel(nc *nats.Conn, prefix string) *NATSChannel {
	if prefix == "" {
		prefix = "bgtable.game"
	}
	return &NATSChannel{nc: nc, prefix: prefix}
}

// Subject returns the subject states of the game travel on.
func (c *NATSChannel) Subject(gameID string) string {
	return fmt.Sprintf("%s.%s.state", c.prefix, gameID)
}

// Save publishes gs and waits for the server to acknowledge the flush.
func (c *NATSChannel) Save(ctx context.Context, gameID string, gs engine.GameState) error {
	data, err := external.MarshalState(gs)
	if err != nil {
		return err
	}
	if err := c.nc.Publish(c.Subject(gameID), data); err != nil {
		return fmt.Errorf("publish %s: %w", gameID, err)
	}
	return c.nc.FlushWithContext(ctx)
}

// Subscribe delivers decoded states. Messages that fail to decode are logged
// and dropped.
func (c *NATSChannel) Subscribe(ctx context.Context, gameID string, fn Listener) (func(), error) {
	sub, err := c.nc.Subscribe(c.Subject(gameID), func(m *nats.Msg) {
		gs, err := external.UnmarshalState(m.Data)
		if err != nil {
			log.Warn().Err(err).Str("game", gameID).Msg("dropping-undecodable-state")
			return
		}
		fn(gs)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", gameID, err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				log.Debug().Err(err).Str("game", gameID).Msg("unsubscribe")
			}
		})
	}
	context.AfterFunc(ctx, cancel)
	return cancel, nil
}
