// Package bot plays one side of a table on its own. It reacts to state
// changes, runs at most one decision cycle per position, and never leaves
// the game stuck: every failure ends in a fallback move, a forfeit of the
// remaining dice, or a timeout that frees it for the next trigger.
package bot

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/engine"
)

// Table is the part of a live table the bot plays through. It is the same
// surface a human player uses.
type Table interface {
	State() engine.GameState
	Subscribe(fn func(engine.GameState)) func()
	RollDice(ctx context.Context, c engine.Color) (engine.GameState, engine.Outcome, error)
	Move(ctx context.Context, c engine.Color, from, to int) (engine.GameState, engine.Outcome, error)
	OfferDouble(ctx context.Context, c engine.Color) (engine.GameState, error)
	AcceptDouble(ctx context.Context, c engine.Color) (engine.GameState, error)
	RejectDouble(ctx context.Context, c engine.Color) (engine.GameState, engine.GameResult, error)
	ForfeitDice(ctx context.Context, c engine.Color) (engine.GameState, error)
}

// Config controls a bot.
type Config struct {
	Color engine.Color

	// Timeout bounds one decision cycle. When it fires the in-flight marker
	// is cleared even if the cycle is still blocked.
	Timeout time.Duration
	// Pace is the delay between two checker moves.
	Pace time.Duration
	// SyncAttempts and SyncDelay bound the wait for a roll to show up in
	// the authoritative state.
	SyncAttempts uint
	SyncDelay    time.Duration
	// OfferDoubles lets the bot double when the oracle says so.
	OfferDoubles bool
}

// DefaultConfig returns the configuration for a bot playing c.
func DefaultConfig(c engine.Color) Config {
	return Config{
		Color:        c,
		Timeout:      45 * time.Second,
		SyncAttempts: 10,
		SyncDelay:    50 * time.Millisecond,
		OfferDoubles: true,
	}
}

// Key identifies a position worth one decision cycle.
type Key struct {
	Turn    engine.Color
	Dice    string // Sorted remaining dice, see engine.Dice.Key
	Pending bool
}

// KeyOf returns the analysis key of gs.
func KeyOf(gs engine.GameState) Key {
	return Key{Turn: gs.Turn, Dice: gs.Dice.Key(), Pending: gs.Pending.IsSome()}
}

// Bot plays one side of a table.
type Bot struct {
	cfg       Config
	table     Table
	oracle    advisor.Oracle
	heuristic advisor.Heuristic
	log       zerolog.Logger

	mu       sync.Mutex
	inflight *Key
	gen      uint64
	rerun    bool

	wg     sync.WaitGroup
	cycles atomic.Int64
}

// New returns a bot for cfg.Color on t. A nil oracle uses the heuristic
// alone.
func New(t Table, oracle advisor.Oracle, cfg Config) *Bot {
	def := DefaultConfig(cfg.Color)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SyncAttempts == 0 {
		cfg.SyncAttempts = def.SyncAttempts
	}
	if cfg.SyncDelay <= 0 {
		cfg.SyncDelay = def.SyncDelay
	}
	h := advisor.NewHeuristic()
	if oracle == nil {
		oracle = h
	}
	return &Bot{
		cfg:       cfg,
		table:     t,
		oracle:    oracle,
		heuristic: h,
		log:       log.With().Str("bot", cfg.Color.String()).Logger(),
	}
}

// Run reacts to every state change of the table until ctx is done, then
// waits for the running cycle to finish.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info().Dur("timeout", b.cfg.Timeout).Msg("bot-started")
	unsubscribe := b.table.Subscribe(func(engine.GameState) {
		b.Trigger(ctx)
	})
	b.Trigger(ctx)

	<-ctx.Done()
	unsubscribe()
	b.wg.Wait()
	b.log.Info().Int64("cycles", b.cycles.Load()).Msg("bot-stopped")
	return ctx.Err()
}

// Trigger starts a decision cycle for the current state unless one is
// already running. A trigger for the same position as the running cycle is
// dropped; a trigger for a different position is remembered and evaluated
// again, from a fresh read of the state, when the running cycle ends.
func (b *Bot) Trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	gs := b.table.State()
	if !b.wants(gs) {
		return
	}
	key := KeyOf(gs)

	b.mu.Lock()
	if b.inflight != nil {
		if *b.inflight != key {
			b.rerun = true
		}
		b.mu.Unlock()
		return
	}
	b.inflight = &key
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	b.wg.Add(1)
	go b.cycle(ctx, key, gen)
}

// InFlight returns the key of the running cycle.
func (b *Bot) InFlight() (Key, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inflight == nil {
		return Key{}, false
	}
	return *b.inflight, true
}

// Cycles returns the number of decision cycles started.
func (b *Bot) Cycles() int64 {
	return b.cycles.Load()
}

func (b *Bot) cycle(ctx context.Context, key Key, gen uint64) {
	defer b.wg.Done()
	b.cycles.Add(1)

	cctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	watchdog := time.AfterFunc(b.cfg.Timeout, func() {
		b.log.Warn().Str("dice", key.Dice).Msg("cycle-timed-out")
		b.release(ctx, gen)
	})
	defer watchdog.Stop()

	start := time.Now()
	if err := b.decide(cctx); err != nil {
		b.log.Warn().Err(err).Str("dice", key.Dice).Msg("cycle-failed")
	}
	b.log.Debug().Str("dice", key.Dice).Bool("pending", key.Pending).Dur("took", time.Since(start)).Msg("cycle-done")
	b.release(ctx, gen)
}

// release clears the in-flight marker of generation gen and reruns a
// coalesced trigger. A late release from a timed-out cycle is ignored.
func (b *Bot) release(ctx context.Context, gen uint64) {
	b.mu.Lock()
	if b.gen != gen || b.inflight == nil {
		b.mu.Unlock()
		return
	}
	b.inflight = nil
	rerun := b.rerun
	b.rerun = false
	b.mu.Unlock()

	if rerun {
		b.Trigger(ctx)
	}
}

// wants reports whether gs asks this bot for a decision.
func (b *Bot) wants(gs engine.GameState) bool {
	switch gs.Phase() {
	case engine.PhaseGameOver, engine.PhaseMatchOver:
		return false
	case engine.PhaseDoublePending:
		pd, _ := gs.Pending.Get()
		return pd.OfferedBy != b.cfg.Color
	}
	return gs.Turn == b.cfg.Color
}

func (b *Bot) decide(ctx context.Context) error {
	gs := b.table.State()
	if !b.wants(gs) {
		return nil
	}
	if gs.Pending.IsSome() {
		return b.answerDouble(ctx, gs)
	}
	if gs.Dice.Empty() {
		if b.cfg.OfferDoubles && engine.CanOfferDouble(gs.Cube, b.cfg.Color, gs.Rolled, gs.Match) {
			if b.cubeDecision(ctx, gs).Double {
				_, err := b.table.OfferDouble(ctx, b.cfg.Color)
				if err == nil {
					b.log.Info().Int("cube", gs.Cube.Value*2).Msg("doubled")
					return nil
				}
				b.log.Debug().Err(err).Msg("double-refused-by-table")
			}
		}
		return b.roll(ctx)
	}
	return b.play(ctx, gs)
}

func (b *Bot) answerDouble(ctx context.Context, gs engine.GameState) error {
	d := b.cubeDecision(ctx, gs)
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.Take {
		_, err := b.table.AcceptDouble(ctx, b.cfg.Color)
		b.log.Info().Err(err).Float64("win", d.WinProbability).Msg("took-double")
		return err
	}
	_, _, err := b.table.RejectDouble(ctx, b.cfg.Color)
	b.log.Info().Err(err).Float64("win", d.WinProbability).Msg("dropped-double")
	return err
}

// cubeDecision asks the oracle and falls back to the heuristic. With both
// unavailable the bot takes and does not double.
func (b *Bot) cubeDecision(ctx context.Context, gs engine.GameState) advisor.CubeDecision {
	req := advisor.NewRequest(gs, b.cfg.Color)
	d, err := b.oracle.CubeAdvice(ctx, req)
	if err == nil && d != nil {
		return *d
	}
	b.log.Debug().Err(err).Msg("cube-advice-fallback")
	if d, err := b.heuristic.CubeAdvice(ctx, req); err == nil {
		return *d
	}
	return advisor.CubeDecision{Take: true}
}

func (b *Bot) play(ctx context.Context, gs engine.GameState) error {
	me := b.cfg.Color
	for _, mv := range b.plan(ctx, gs) {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := b.table.State()
		if !b.onTurnWithDice(cur) || !slices.Contains(cur.Dice, mv.Die) || !engine.IsLegal(cur.Board, me, mv) {
			break
		}
		before := len(cur.Dice)
		_, out, err := b.table.Move(ctx, me, mv.From, mv.To)
		if err != nil {
			b.log.Debug().Err(err).Stringer("move", mv).Msg("planned-move-rejected")
			break
		}
		if out.Result.IsSome() || out.Handoff {
			return nil
		}
		if after := b.table.State(); after.Turn == me && len(after.Dice) >= before {
			b.log.Warn().Stringer("move", mv).Msg("move-not-reflected")
			return nil
		}
		if err := b.pace(ctx); err != nil {
			return err
		}
	}
	return b.finishTurn(ctx)
}

// plan returns the moves to try: the oracle's, else the heuristic's.
func (b *Bot) plan(ctx context.Context, gs engine.GameState) []engine.Move {
	req := advisor.NewRequest(gs, b.cfg.Color)
	adv, err := b.oracle.Advise(ctx, req)
	if err == nil && adv != nil && len(adv.Moves) > 0 {
		return adv.Moves
	}
	b.log.Debug().Err(err).Msg("advice-fallback")
	seq, _ := advisor.BestSequence(gs.Board, b.cfg.Color, gs.Dice)
	return seq
}

// finishTurn plays any dice left with the first legal move, and forfeits
// whatever still cannot be used.
func (b *Bot) finishTurn(ctx context.Context) error {
	me := b.cfg.Color
	for range 4 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := b.table.State()
		if !b.onTurnWithDice(cur) {
			return nil
		}
		mv, ok := engine.FirstLegalMove(cur.Board, me, cur.Dice)
		if !ok {
			break
		}
		if _, out, err := b.table.Move(ctx, me, mv.From, mv.To); err != nil {
			b.log.Warn().Err(err).Stringer("move", mv).Msg("fallback-move-rejected")
			break
		} else if out.Result.IsSome() || out.Handoff {
			return nil
		}
		if err := b.pace(ctx); err != nil {
			return err
		}
	}

	if cur := b.table.State(); b.onTurnWithDice(cur) {
		b.log.Warn().Str("dice", cur.Dice.Key()).Msg("forfeiting-dice")
		_, err := b.table.ForfeitDice(ctx, me)
		return err
	}
	return nil
}

func (b *Bot) onTurnWithDice(gs engine.GameState) bool {
	return gs.Phase() == engine.PhaseDiceAvailable && gs.Turn == b.cfg.Color
}

func (b *Bot) pace(ctx context.Context) error {
	if b.cfg.Pace <= 0 {
		return nil
	}
	t := time.NewTimer(b.cfg.Pace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
