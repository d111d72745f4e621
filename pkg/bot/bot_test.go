package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/table"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// rolledFor returns a fresh game with c on roll holding d1-d2.
func rolledFor(t *testing.T, c engine.Color, d1, d2 int) engine.GameState {
	t.Helper()
	gs := engine.NewGame(engine.NewMatch(0, false, false), c)
	gs, _, err := engine.RollDice(gs, c, d1, d2)
	if err != nil {
		t.Fatal(err)
	}
	return gs
}

// race has White with 15 checkers on its ace point and Black far behind.
func race(turn engine.Color) engine.GameState {
	var b engine.Board
	b.Points[23] = engine.Point{Owner: engine.White, Count: 15}
	b.Points[12] = engine.Point{Owner: engine.Black, Count: 15}
	gs := engine.NewGame(engine.NewMatch(0, false, false), turn)
	gs.Board = b
	return gs
}

func fromState(t *testing.T, gs engine.GameState, rolls ...[2]int) *table.Table {
	t.Helper()
	tb, err := table.NewFromState("t1", gs, table.Options{Roller: engine.NewSequenceRoller(rolls...)})
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

// gatedOracle blocks Advise until release is closed.
type gatedOracle struct {
	calls   atomic.Int32
	release chan struct{}
}

func (o *gatedOracle) Advise(ctx context.Context, req advisor.Request) (*advisor.Advice, error) {
	o.calls.Add(1)
	<-o.release
	return advisor.NewHeuristic().Advise(context.Background(), req)
}

func (o *gatedOracle) CubeAdvice(ctx context.Context, req advisor.Request) (*advisor.CubeDecision, error) {
	return advisor.NewHeuristic().CubeAdvice(ctx, req)
}

type brokenOracle struct{}

func (brokenOracle) Advise(context.Context, advisor.Request) (*advisor.Advice, error) {
	return nil, advisor.ErrAdvisoryUnavailable
}

func (brokenOracle) CubeAdvice(context.Context, advisor.Request) (*advisor.CubeDecision, error) {
	return nil, advisor.ErrAdvisoryUnavailable
}

// wrongOracle suggests a move that is never legal.
type wrongOracle struct{ brokenOracle }

func (wrongOracle) Advise(context.Context, advisor.Request) (*advisor.Advice, error) {
	return &advisor.Advice{Moves: []engine.Move{{From: 3, To: 9, Die: 6}}}, nil
}

func TestKeyOf(t *testing.T) {
	is := is.New(t)
	a := rolledFor(t, engine.White, 5, 2)
	b := rolledFor(t, engine.White, 2, 5)
	is.Equal(KeyOf(a), KeyOf(b))
	is.Equal(KeyOf(a), Key{Turn: engine.White, Dice: "2-5"})

	c := engine.NewGame(engine.NewMatch(0, false, false), engine.White)
	d, err := engine.OfferDouble(c, engine.White, time.Time{})
	is.NoErr(err)
	is.True(KeyOf(c) != KeyOf(d)) // pending flag
}

func TestBotPlaysItsTurn(t *testing.T) {
	is := is.New(t)
	tb := table.New("t1", table.Options{
		Match:  engine.NewMatch(0, false, false),
		Roller: engine.NewSequenceRoller([2]int{3, 5}, [2]int{6, 4}),
	})
	is.Equal(tb.State().Turn, engine.Black)

	cfg := DefaultConfig(engine.Black)
	cfg.OfferDoubles = false
	bot := New(tb, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	waitFor(t, "black to finish its turn", func() bool {
		return tb.State().Turn == engine.White
	})
	gs := tb.State()
	is.True(gs.Dice.Empty())
	is.Equal(gs.Board.Pips(engine.Black), 167-10)

	cancel()
	is.True(errors.Is(<-done, context.Canceled))
	is.True(bot.Cycles() >= 2) // roll, then play
}

func TestTriggerIsSingleFlight(t *testing.T) {
	is := is.New(t)
	tb := fromState(t, rolledFor(t, engine.White, 3, 1))
	oracle := &gatedOracle{release: make(chan struct{})}
	bot := New(tb, oracle, DefaultConfig(engine.White))
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot.Trigger(ctx)
		}()
	}
	wg.Wait()

	waitFor(t, "the oracle call", func() bool { return oracle.calls.Load() == 1 })
	key, ok := bot.InFlight()
	is.True(ok)
	is.Equal(key, Key{Turn: engine.White, Dice: "1-3"})

	close(oracle.release)
	waitFor(t, "the handoff", func() bool { return tb.State().Turn == engine.Black })
	waitFor(t, "the marker to clear", func() bool { _, ok := bot.InFlight(); return !ok })
	is.Equal(oracle.calls.Load(), int32(1))
	is.Equal(bot.Cycles(), int64(1))
}

func TestTimeoutFreesMarker(t *testing.T) {
	is := is.New(t)
	tb := fromState(t, rolledFor(t, engine.White, 3, 1))
	oracle := &gatedOracle{release: make(chan struct{})}
	cfg := DefaultConfig(engine.White)
	cfg.Timeout = 30 * time.Millisecond
	bot := New(tb, oracle, cfg)

	bot.Trigger(context.Background())
	waitFor(t, "the oracle call", func() bool { return oracle.calls.Load() == 1 })
	waitFor(t, "the watchdog", func() bool { _, ok := bot.InFlight(); return !ok })

	// The stuck cycle wakes after its deadline and must not act
	before := tb.State()
	close(oracle.release)
	bot.wg.Wait()
	is.Equal(tb.State(), before)

	// A new trigger starts a fresh cycle
	bot.Trigger(context.Background())
	waitFor(t, "the handoff", func() bool { return tb.State().Turn == engine.Black })
	is.Equal(oracle.calls.Load(), int32(2))
}

func TestBrokenOracleFallsBack(t *testing.T) {
	is := is.New(t)
	tb := fromState(t, rolledFor(t, engine.White, 6, 5))
	bot := New(tb, brokenOracle{}, DefaultConfig(engine.White))

	bot.Trigger(context.Background())
	waitFor(t, "the handoff", func() bool { return tb.State().Turn == engine.Black })
	is.Equal(tb.State().Board.Pips(engine.White), 167-11)
}

func TestIllegalAdviceFallsBack(t *testing.T) {
	is := is.New(t)
	tb := fromState(t, rolledFor(t, engine.White, 4, 2))
	bot := New(tb, wrongOracle{}, DefaultConfig(engine.White))

	bot.Trigger(context.Background())
	waitFor(t, "the handoff", func() bool { return tb.State().Turn == engine.Black })
	is.Equal(tb.State().Board.Pips(engine.White), 167-6)
}

func TestBotTakesEvenDouble(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	tb := fromState(t, engine.NewGame(engine.NewMatch(0, false, false), engine.White))
	_, err := tb.OfferDouble(ctx, engine.White)
	is.NoErr(err)

	bot := New(tb, nil, DefaultConfig(engine.Black))
	bot.Trigger(ctx)
	waitFor(t, "the take", func() bool { return tb.State().Pending.IsSome() == false })
	is.Equal(tb.State().Cube, engine.Cube{Value: 2, Owner: engine.Black})
}

func TestBotDropsHopelessDouble(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	tb := fromState(t, race(engine.White), [2]int{6, 1})
	_, err := tb.OfferDouble(ctx, engine.White)
	is.NoErr(err)

	bot := New(tb, brokenOracle{}, DefaultConfig(engine.Black))
	bot.Trigger(ctx)
	waitFor(t, "the next game", func() bool { return tb.State().GameNumber == 2 })

	res, ok := tb.State().LastResult.Get()
	is.True(ok)
	is.Equal(res.Winner, engine.White)
	is.Equal(res.Kind, engine.WinDropped)
}

func TestBotDoublesWhenWinning(t *testing.T) {
	is := is.New(t)
	tb := fromState(t, race(engine.White))
	bot := New(tb, nil, DefaultConfig(engine.White))

	bot.Trigger(context.Background())
	waitFor(t, "the double", func() bool { return tb.State().Pending.IsSome() })
	pd, _ := tb.State().Pending.Get()
	is.Equal(pd.OfferedBy, engine.White)
	is.True(tb.State().Dice.Empty())
}

func TestBotIgnoresOpponentTurn(t *testing.T) {
	is := is.New(t)
	tb := fromState(t, rolledFor(t, engine.White, 3, 1))
	bot := New(tb, nil, DefaultConfig(engine.Black))

	bot.Trigger(context.Background())
	_, ok := bot.InFlight()
	is.True(!ok)
	is.Equal(bot.Cycles(), int64(0))
}

func TestStoppedContextIgnoresTriggers(t *testing.T) {
	is := is.New(t)
	tb := fromState(t, rolledFor(t, engine.White, 3, 1))
	bot := New(tb, nil, DefaultConfig(engine.White))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bot.Trigger(ctx)
	is.Equal(bot.Cycles(), int64(0))
}
