// Package replication moves authoritative game states between processes and
// keeps snapshots of them. Every channel carries whole GameState values;
// receivers decide whether a state is newer than what they hold by its
// Version.
package replication

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/engine"
)

// ErrNoSnapshot is returned by Load when nothing was saved for a game.
var ErrNoSnapshot = errors.New("no snapshot for game")

// Listener receives states published for a game.
type Listener func(engine.GameState)

// Channel publishes game states and delivers them to subscribers.
type Channel interface {
	// Save publishes gs as the latest state of the game.
	Save(ctx context.Context, gameID string, gs engine.GameState) error
	// Subscribe calls fn for every state published for the game until the
	// returned cancel function is called or ctx is done.
	Subscribe(ctx context.Context, gameID string, fn Listener) (cancel func(), err error)
}

// Loader is implemented by channels that keep the latest state.
type Loader interface {
	Load(ctx context.Context, gameID string) (engine.GameState, error)
}

// Retrying wraps a channel so that Save is retried with exponential backoff.
type Retrying struct {
	Channel
	Attempts uint
	Delay    time.Duration
}

// WithRetry returns ch with Save retried up to attempts times.
func WithRetry(ch Channel, attempts uint) *Retrying {
	return &Retrying{Channel: ch, Attempts: attempts, Delay: 50 * time.Millisecond}
}

// Save retries the wrapped Save until it succeeds, the attempts run out or
// ctx is done. The last error is returned.
func (r *Retrying) Save(ctx context.Context, gameID string, gs engine.GameState) error {
	return retry.Do(
		func() error {
			return r.Channel.Save(ctx, gameID, gs)
		},
		retry.Context(ctx),
		retry.Attempts(r.Attempts),
		retry.Delay(r.Delay),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			log.Warn().Err(err).Str("game", gameID).Uint("n", n).Msg("save-failed-try-again")
			return retry.BackOffDelay(n, err, config)
		}),
	)
}

// Tee fans saves and subscriptions out to several channels. A save reaches
// every channel even when one fails; the failures are joined.
type Tee []Channel

// Save publishes gs on every channel.
func (t Tee) Save(ctx context.Context, gameID string, gs engine.GameState) error {
	var errs []error
	for _, ch := range t {
		if err := ch.Save(ctx, gameID, gs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe listens on every channel. The same state may arrive once per
// channel.
func (t Tee) Subscribe(ctx context.Context, gameID string, fn Listener) (func(), error) {
	cancels := make([]func(), 0, len(t))
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, ch := range t {
		c, err := ch.Subscribe(ctx, gameID, fn)
		if err != nil {
			cancelAll()
			return nil, err
		}
		cancels = append(cancels, c)
	}
	return cancelAll, nil
}
