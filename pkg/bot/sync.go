package bot

import (
	"context"
	"errors"

	"github.com/avast/retry-go/v4"

	"github.com/yourusername/bgtable/pkg/engine"
)

var errStale = errors.New("roll not visible yet")

// roll rolls the dice and waits until the authoritative state shows them.
// The next cycle plays them.
func (b *Bot) roll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rolled, out, err := b.table.RollDice(ctx, b.cfg.Color)
	if errors.Is(err, engine.ErrAlreadyRolled) {
		// Rolled elsewhere; the state change triggers the next cycle
		return nil
	}
	if err != nil {
		return err
	}
	b.log.Debug().Str("dice", rolled.Dice.Key()).Bool("deadlock", out.Deadlock).Msg("rolled")
	if out.Deadlock {
		return nil
	}

	err = b.awaitRoll(ctx, rolled)
	if errors.Is(err, errStale) {
		b.log.Warn().Str("dice", rolled.Dice.Key()).Uint64("version", rolled.Version).Msg("roll-not-synced")
		return nil
	}
	return err
}

// awaitRoll polls the table until its state reflects rolled: the same dice
// for the same side, or a state that has already moved past it.
func (b *Bot) awaitRoll(ctx context.Context, rolled engine.GameState) error {
	return retry.Do(
		func() error {
			cur := b.table.State()
			switch {
			case cur.Turn != b.cfg.Color, cur.Version > rolled.Version:
				return nil
			case cur.Dice.SameAs(rolled.Dice):
				return nil
			}
			return errStale
		},
		retry.Context(ctx),
		retry.Attempts(b.cfg.SyncAttempts),
		retry.Delay(b.cfg.SyncDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
