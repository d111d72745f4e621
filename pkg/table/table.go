// Package table runs live games. A Table owns the authoritative GameState of
// one match, applies player actions through the rules engine, keeps the match
// record and system message log, and replicates every new state.
package table

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/match"
	"github.com/yourusername/bgtable/pkg/replication"
)

// DefaultMaxSaveFailures is how many saves in a row may fail before a table
// stops replicating.
const DefaultMaxSaveFailures = 3

// Message is an entry in the system message log.
type Message struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Options configures a new table.
type Options struct {
	White string
	Black string
	Match engine.MatchState

	// Roller rolls the dice; RandomRoller when nil.
	Roller engine.Roller
	// Channel replicates states; nil plays locally.
	Channel replication.Channel
	// MaxSaveFailures defaults to DefaultMaxSaveFailures.
	MaxSaveFailures int

	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Roller == nil {
		o.Roller = engine.RandomRoller{}
	}
	if o.MaxSaveFailures <= 0 {
		o.MaxSaveFailures = DefaultMaxSaveFailures
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.White == "" {
		o.White = "white"
	}
	if o.Black == "" {
		o.Black = "black"
	}
}

// Table is a live game. All methods are safe for concurrent use. Every
// mutation replaces the state wholesale under the table lock; listeners are
// called after the lock is released.
type Table struct {
	id   string
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	state     engine.GameState
	record    *match.Match
	messages  []Message
	listeners map[int]func(engine.GameState)
	nextID    int

	saveFailures int
	localOnly    bool
	stopRemote   func()

	// pubMu orders publishes so the channel never sees an older state after
	// a newer one. published and notified are the last versions handed to
	// the channel and to listeners.
	pubMu     sync.Mutex
	published uint64
	notifyMu  sync.Mutex
	notified  uint64
}

// New starts a table at the beginning of a match. The opening roll decides
// who moves first.
func New(id string, opts Options) *Table {
	opts.defaults()
	opener, dice := engine.OpeningRoll(opts.Roller)
	t := newTable(id, opts, engine.NewGame(opts.Match, opener))
	t.logf("Game 1 begins. %s opens with %d-%d.", t.name(opener), dice[0], dice[1])
	t.log.Info().Stringer("opener", opener).Msg("table-created")
	return t
}

// NewFromState resumes a table from a saved state.
func NewFromState(id string, gs engine.GameState, opts Options) (*Table, error) {
	if err := gs.Validate(); err != nil {
		return nil, err
	}
	opts.defaults()
	t := newTable(id, opts, gs)
	t.logf("Game %d resumed with %s on turn.", gs.GameNumber, t.name(gs.Turn))
	return t, nil
}

func newTable(id string, opts Options, gs engine.GameState) *Table {
	t := &Table{
		id:        id,
		opts:      opts,
		log:       log.With().Str("table", id).Logger(),
		state:     gs,
		record:    match.NewMatch(opts.White, opts.Black, gs.Match.Length),
		listeners: make(map[int]func(engine.GameState)),
		published: gs.Version,
		notified:  gs.Version,
	}
	t.record.Date = opts.Now().Format(time.DateOnly)
	t.record.StartGame(gs)
	return t
}

// ID returns the table ID.
func (t *Table) ID() string {
	return t.id
}

// Players returns the names of White and Black.
func (t *Table) Players() (white, black string) {
	return t.opts.White, t.opts.Black
}

// State returns the current authoritative state.
func (t *Table) State() engine.GameState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LegalDestinations returns the legal destinations of c by origin point.
// It is empty unless c is on turn with dice to play.
func (t *Table) LegalDestinations(c engine.Color) map[int][]int {
	gs := t.State()
	if gs.Phase() != engine.PhaseDiceAvailable || gs.Turn != c {
		return map[int][]int{}
	}
	return engine.LegalDestinations(gs.Board, c, gs.Dice)
}

// Messages returns a copy of the system message log.
func (t *Table) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.messages)
}

// Record returns a copy of the match record.
func (t *Table) Record() *match.Match {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.Clone()
}

// LocalOnly reports whether replication was given up after repeated
// failures.
func (t *Table) LocalOnly() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localOnly
}

// Subscribe registers fn to be called with every new state, in version
// order. fn runs on the publishing goroutine and must not block or act on the
// table. The returned function removes it.
func (t *Table) Subscribe(fn func(engine.GameState)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// RollDice rolls for c.
func (t *Table) RollDice(ctx context.Context, c engine.Color) (engine.GameState, engine.Outcome, error) {
	t.mu.Lock()
	if err := engine.CheckRoll(t.state, c); err != nil {
		t.mu.Unlock()
		return t.State(), engine.Outcome{}, err
	}
	d1, d2 := t.opts.Roller.Roll()
	next, out, err := engine.RollDice(t.state, c, d1, d2)
	if err != nil {
		t.mu.Unlock()
		return t.State(), out, err
	}
	t.record.Current().AddRoll(c, d1, d2)
	if out.Deadlock {
		t.logf("%s rolls %d-%d and cannot move.", t.name(c), d1, d2)
	}
	t.commit(next)
	t.mu.Unlock()

	t.log.Debug().Stringer("color", c).Int("d1", d1).Int("d2", d2).Bool("deadlock", out.Deadlock).Msg("dice-rolled")
	t.publish(ctx, next)
	return next, out, nil
}

// Move moves one checker of c. A move that wins the game scores it and,
// unless the match is over, starts the next game; the returned state is then
// the new game and the outcome carries the result.
func (t *Table) Move(ctx context.Context, c engine.Color, from, to int) (engine.GameState, engine.Outcome, error) {
	t.mu.Lock()
	next, out, err := engine.PlayMove(t.state, c, from, to)
	if err != nil {
		t.mu.Unlock()
		return t.State(), out, err
	}
	t.record.Current().AddMove(c, out.Move)
	if out.Deadlock {
		t.logf("%s has no legal move for the remaining dice.", t.name(c))
	}
	if res, ok := out.Result.Get(); ok {
		next = t.finishLocked(next, res)
	}
	t.commit(next)
	t.mu.Unlock()

	t.publish(ctx, next)
	return next, out, nil
}

// OfferDouble offers a double on behalf of c.
func (t *Table) OfferDouble(ctx context.Context, c engine.Color) (engine.GameState, error) {
	t.mu.Lock()
	next, err := engine.OfferDouble(t.state, c, t.opts.Now())
	if err != nil {
		t.mu.Unlock()
		return t.State(), err
	}
	value := next.Cube.Value * 2
	t.record.Current().AddDouble(c, value)
	t.logf("%s doubles to %d.", t.name(c), value)
	t.commit(next)
	t.mu.Unlock()

	t.publish(ctx, next)
	return next, nil
}

// AcceptDouble takes the pending double on behalf of c.
func (t *Table) AcceptDouble(ctx context.Context, c engine.Color) (engine.GameState, error) {
	t.mu.Lock()
	next, err := engine.AcceptDouble(t.state, c)
	if err != nil {
		t.mu.Unlock()
		return t.State(), err
	}
	t.record.Current().AddTake(c)
	t.logf("%s takes. The cube is at %d.", t.name(c), next.Cube.Value)
	t.commit(next)
	t.mu.Unlock()

	t.publish(ctx, next)
	return next, nil
}

// RejectDouble drops the pending double on behalf of c. The game is scored
// and the next one starts unless the match is over.
func (t *Table) RejectDouble(ctx context.Context, c engine.Color) (engine.GameState, engine.GameResult, error) {
	t.mu.Lock()
	next, res, err := engine.RejectDouble(t.state, c)
	if err != nil {
		t.mu.Unlock()
		return t.State(), res, err
	}
	t.record.Current().AddPass(c)
	t.logf("%s drops.", t.name(c))
	next = t.finishLocked(next, res)
	t.commit(next)
	t.mu.Unlock()

	t.publish(ctx, next)
	return next, res, nil
}

// ForfeitDice gives up the remaining dice of c.
func (t *Table) ForfeitDice(ctx context.Context, c engine.Color) (engine.GameState, error) {
	t.mu.Lock()
	next, err := engine.ForfeitDice(t.state, c)
	if err != nil {
		t.mu.Unlock()
		return t.State(), err
	}
	t.logf("%s forfeits the remaining dice.", t.name(c))
	t.commit(next)
	t.mu.Unlock()

	t.publish(ctx, next)
	return next, nil
}

// finishLocked records a decided game and moves on to the next one unless the
// match is complete.
func (t *Table) finishLocked(gs engine.GameState, res engine.GameResult) engine.GameState {
	t.record.Current().Finish(res)
	unit := "points"
	if res.Points == 1 {
		unit = "point"
	}
	t.logf("%s wins game %d (%s) for %d %s. Score %d-%d.", t.name(res.Winner), res.Game, res.Kind,
		res.Points, unit, gs.Match.Score.Of(engine.White), gs.Match.Score.Of(engine.Black))
	t.log.Info().Int("game", res.Game).Stringer("winner", res.Winner).Stringer("kind", res.Kind).Int("points", res.Points).Msg("game-over")

	if gs.MatchOver() {
		winner, _ := engine.MatchWinner(gs.Match)
		t.logf("%s wins the match.", t.name(winner))
		t.log.Info().Stringer("winner", winner).Msg("match-over")
		return gs
	}

	opener, dice := engine.OpeningRoll(t.opts.Roller)
	next, err := engine.NextGame(gs, opener)
	if err != nil {
		// Unreachable: gs has a result and the match is not over
		t.log.Error().Err(err).Msg("next-game")
		return gs
	}
	t.record.StartGame(next)
	crawford := ""
	if next.Match.Crawford {
		crawford = " This is the Crawford game."
	}
	t.logf("Game %d begins. %s opens with %d-%d.%s", next.GameNumber, t.name(opener), dice[0], dice[1], crawford)
	return next
}

// commit replaces the state. Callers hold t.mu.
func (t *Table) commit(gs engine.GameState) {
	t.state = gs
}

// publish notifies listeners and replicates gs. Callers must not hold t.mu.
// A state older than one already published is dropped.
func (t *Table) publish(ctx context.Context, gs engine.GameState) {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()
	if gs.Version <= t.published {
		t.log.Debug().Uint64("version", gs.Version).Uint64("published", t.published).Msg("skipping-stale-publish")
		return
	}
	t.published = gs.Version
	t.notify(gs)

	t.mu.Lock()
	ch, skip := t.opts.Channel, t.localOnly
	t.mu.Unlock()
	if ch == nil || skip {
		return
	}

	err := ch.Save(ctx, t.id, gs)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		t.saveFailures = 0
		return
	}
	t.saveFailures++
	t.log.Warn().Err(err).Int("failures", t.saveFailures).Uint64("version", gs.Version).Msg("save-failed")
	if t.saveFailures >= t.opts.MaxSaveFailures && !t.localOnly {
		t.localOnly = true
		t.logf("Connection to the game server was lost. Play continues on this table only.")
		t.log.Warn().Msg("replication-disabled")
	}
}

// notify hands gs to the listeners unless they have already seen a state at
// least as new.
func (t *Table) notify(gs engine.GameState) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if gs.Version <= t.notified {
		return
	}
	t.notified = gs.Version

	t.mu.Lock()
	ids := slices.Sorted(maps.Keys(t.listeners))
	fns := make([]func(engine.GameState), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.listeners[id])
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(gs)
	}
}

// logf appends to the message log. Callers hold t.mu, except during
// construction.
func (t *Table) logf(format string, args ...any) {
	t.messages = append(t.messages, Message{At: t.opts.Now(), Text: fmt.Sprintf(format, args...)})
}

func (t *Table) name(c engine.Color) string {
	switch c {
	case engine.White:
		return t.opts.White
	case engine.Black:
		return t.opts.Black
	}
	return c.String()
}
