package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/yourusername/bgtable/internal/met"
	"github.com/yourusername/bgtable/pkg/engine"
)

func rolled(t *testing.T, d1, d2 int) engine.GameState {
	t.Helper()
	gs, _, err := engine.RollDice(engine.NewGame(engine.NewMatch(0, false, false), engine.White), engine.White, d1, d2)
	if err != nil {
		t.Fatal(err)
	}
	return gs
}

func TestHeuristicPlaysFullRoll(t *testing.T) {
	is := is.New(t)
	gs := rolled(t, 3, 1)

	a, err := NewHeuristic().Advise(context.Background(), NewRequest(gs, engine.White))
	is.NoErr(err)
	is.Equal(len(a.Moves), 2)
	is.Equal(len(playable(NewRequest(gs, engine.White), a.Moves)), 2) // every move applies in order
	is.True(a.WinProbability > 0 && a.WinProbability < 1)
	is.True(a.StrategicAdvice != "")
}

func TestHeuristicPrefersHit(t *testing.T) {
	is := is.New(t)
	b := engine.InitialBoard()
	b.Points[5].Count--
	b.Points[3] = engine.Point{Owner: engine.Black, Count: 1}

	seq, after := BestSequence(b, engine.White, engine.Dice{3})
	is.Equal(seq, []engine.Move{{From: 0, To: 3, Die: 3}})
	is.Equal(after.Bar.Of(engine.Black), 1)
}

func TestHeuristicBearsOff(t *testing.T) {
	is := is.New(t)
	var b engine.Board
	b.Points[20] = engine.Point{Owner: engine.White, Count: 2}
	b.Points[22] = engine.Point{Owner: engine.White, Count: 3}
	b.Off = b.Off.With(engine.White, 10)
	b.Points[5] = engine.Point{Owner: engine.Black, Count: 15}

	seq, after := BestSequence(b, engine.White, engine.Dice{4, 2})
	is.Equal(len(seq), 2)
	is.Equal(after.Off.Of(engine.White), 12)
}

func TestRaceWinProbability(t *testing.T) {
	is := is.New(t)
	b := engine.InitialBoard()
	is.True(RaceWinProbability(b, engine.White, true) > 0.5)
	is.True(RaceWinProbability(b, engine.White, false) < 0.5)

	var won engine.Board
	won.Off = won.Off.With(engine.White, engine.NumCheckers)
	won.Points[5] = engine.Point{Owner: engine.Black, Count: 15}
	is.Equal(RaceWinProbability(won, engine.White, false), 1.0)
	is.Equal(RaceWinProbability(won, engine.Black, true), 0.0)
}

func TestRaceWinProbabilityLastCheckers(t *testing.T) {
	is := is.New(t)
	var b engine.Board
	b.Points[23] = engine.Point{Owner: engine.White, Count: 1}
	b.Points[0] = engine.Point{Owner: engine.Black, Count: 1}
	b.Off = engine.Tally{}.With(engine.White, 14).With(engine.Black, 14)

	is.Equal(RaceWinProbability(b, engine.White, true), 1.0)
	is.Equal(RaceWinProbability(b, engine.White, false), 0.0)
	is.Equal(RaceWinProbability(b, engine.Black, true), 1.0)

	gs, err := engine.NewGameState(b, engine.White, nil, engine.CenteredCube(), engine.None[engine.PendingDouble](), engine.NewMatch(0, false, false))
	is.NoErr(err)
	h := NewHeuristic()
	d, err := h.CubeAdvice(context.Background(), NewRequest(gs, engine.White))
	is.NoErr(err)
	is.True(d.Double)
	_, err = json.Marshal(d)
	is.NoErr(err)

	d, err = h.CubeAdvice(context.Background(), NewRequest(gs, engine.Black))
	is.NoErr(err)
	is.True(!d.Take)
	is.Equal(d.WinProbability, 0.0)
	_, err = json.Marshal(d)
	is.NoErr(err)
}

func TestHeuristicCube(t *testing.T) {
	is := is.New(t)
	var b engine.Board
	b.Points[23] = engine.Point{Owner: engine.White, Count: 2}
	b.Off = b.Off.With(engine.White, 13)
	b.Points[20] = engine.Point{Owner: engine.Black, Count: 15}
	gs, err := engine.NewGameState(b, engine.White, nil, engine.CenteredCube(), engine.None[engine.PendingDouble](), engine.NewMatch(0, false, false))
	is.NoErr(err)

	h := NewHeuristic()
	d, err := h.CubeAdvice(context.Background(), NewRequest(gs, engine.White))
	is.NoErr(err)
	is.True(d.Double)

	d, err = h.CubeAdvice(context.Background(), NewRequest(gs, engine.Black))
	is.NoErr(err)
	is.True(!d.Take)
}

func TestHeuristicMatchTakePoint(t *testing.T) {
	is := is.New(t)
	var b engine.Board
	b.Points[23] = engine.Point{Owner: engine.White, Count: 2}
	b.Off = b.Off.With(engine.White, 13)
	b.Points[20] = engine.Point{Owner: engine.Black, Count: 15}

	// Black leads 4-0 after the Crawford game; a double from four away
	// costs nothing to take
	m := engine.ApplyScore(engine.NewMatch(5, true, false), engine.Black, 4)
	m.PostCrawford = true
	gs, err := engine.NewGameState(b, engine.White, nil, engine.CenteredCube(), engine.None[engine.PendingDouble](), m)
	is.NoErr(err)

	h := NewHeuristic()
	d, err := h.CubeAdvice(context.Background(), NewRequest(gs, engine.Black))
	is.NoErr(err)
	is.True(!d.Take) // money threshold

	h.Equity = met.Default()
	d, err = h.CubeAdvice(context.Background(), NewRequest(gs, engine.Black))
	is.NoErr(err)
	is.True(d.Take)
}

// countingOracle blocks every call until release is closed.
type countingOracle struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	advice  *Advice
	err     error
}

func (o *countingOracle) Advise(ctx context.Context, req Request) (*Advice, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.release != nil {
		select {
		case <-o.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.advice, o.err
}

func (o *countingOracle) CubeAdvice(ctx context.Context, req Request) (*CubeDecision, error) {
	return &CubeDecision{}, o.err
}

func TestSharedSingleFlight(t *testing.T) {
	is := is.New(t)
	gs := rolled(t, 3, 1)
	req := NewRequest(gs, engine.White)
	local, _ := NewHeuristic().Advise(context.Background(), req)

	upstream := &countingOracle{release: make(chan struct{}), advice: local}
	s := NewShared(upstream, time.Second)

	var wg sync.WaitGroup
	results := make([]*Advice, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.Advise(context.Background(), req)
			if err == nil {
				results[i] = a
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	is.Equal(upstream.calls, 1)
	is.Equal(s.Calls(), int64(1))
	is.True(results[0] != nil && results[1] != nil)
	is.Equal(results[0].Moves, local.Moves)
}

func TestSharedNormalizesFailures(t *testing.T) {
	is := is.New(t)
	req := NewRequest(rolled(t, 3, 1), engine.White)

	_, err := NewShared(&countingOracle{err: errors.New("connection refused")}, time.Second).Advise(context.Background(), req)
	is.True(errors.Is(err, ErrAdvisoryUnavailable))

	slow := &countingOracle{release: make(chan struct{})}
	_, err = NewShared(slow, 10*time.Millisecond).Advise(context.Background(), req)
	is.True(errors.Is(err, ErrAdvisoryUnavailable)) // timed out

	bogus := &countingOracle{advice: &Advice{Moves: []engine.Move{{From: 11, To: 12, Die: 1}}}}
	_, err = NewShared(bogus, time.Second).Advise(context.Background(), req)
	is.True(errors.Is(err, ErrAdvisoryUnavailable)) // blocked move is not usable

	_, err = NewShared(&countingOracle{}, time.Second).Advise(context.Background(), req)
	is.True(errors.Is(err, ErrAdvisoryUnavailable)) // nil advice
}

func TestSharedTrimsIllegalTail(t *testing.T) {
	is := is.New(t)
	req := NewRequest(rolled(t, 3, 1), engine.White)
	upstream := &countingOracle{advice: &Advice{Moves: []engine.Move{
		{From: 16, To: 19, Die: 3},
		{From: 16, To: 19, Die: 3}, // die already used
	}}}
	a, err := NewShared(upstream, time.Second).Advise(context.Background(), req)
	is.NoErr(err)
	is.Equal(a.Moves, []engine.Move{{From: 16, To: 19, Die: 3}})
}

func TestHTTPOracleRoundTrip(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(Handler(NewHeuristic()))
	defer srv.Close()

	req := NewRequest(rolled(t, 6, 5), engine.White)
	local, err := NewHeuristic().Advise(context.Background(), req)
	is.NoErr(err)

	remote, err := NewHTTPOracle(srv.URL).Advise(context.Background(), req)
	is.NoErr(err)
	is.Equal(remote.Moves, local.Moves)

	d, err := NewHTTPOracle(srv.URL).CubeAdvice(context.Background(), req)
	is.NoErr(err)
	is.True(d.WinProbability > 0)
}

func TestAnswerRejectsBadRequests(t *testing.T) {
	is := is.New(t)
	h := NewHeuristic()
	is.True(answer(context.Background(), h, []byte("{")).Error != "")
	is.True(answer(context.Background(), h, []byte(`{"kind":"advise","positionId":"nope","player":1,"turn":1}`)).Error != "")
	is.True(answer(context.Background(), h, []byte(`{"kind":"resign","positionId":"4HPwATDgc/ABMA","player":1,"turn":1}`)).Error != "")
}
