package advisor

import (
	"context"
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/yourusername/bgtable/internal/met"
	"github.com/yourusername/bgtable/pkg/engine"
)

// Heuristic is a local evaluator. Moves are picked greedily one die at a time
// by a structural score; win chances come from a normal approximation of the
// pip race.
type Heuristic struct {
	DoubleThreshold float64 // Offer at or above this win probability
	TakeThreshold   float64 // Take at or above this win probability

	// Equity replaces TakeThreshold in match play with the take point
	// derived from the score. Nil keeps the money threshold.
	Equity *met.Table
}

// NewHeuristic returns a heuristic with the usual money-play thresholds.
func NewHeuristic() Heuristic {
	return Heuristic{DoubleThreshold: 0.70, TakeThreshold: 0.25}
}

// NewMatchHeuristic returns a heuristic that takes doubles by the score. The
// match equity table is read from metFile, or built in when it is empty.
func NewMatchHeuristic(metFile string) (Heuristic, error) {
	h := NewHeuristic()
	h.Equity = met.Default()
	if metFile != "" {
		t, err := met.LoadXML(metFile)
		if err != nil {
			return h, err
		}
		h.Equity = t
	}
	return h, nil
}

// Advise picks a full sequence for the remaining dice.
func (h Heuristic) Advise(ctx context.Context, req Request) (*Advice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq, after := BestSequence(req.Board, req.Player, req.Dice)
	p := RaceWinProbability(after, req.Player, false)
	return &Advice{
		Moves:           seq,
		WinProbability:  p,
		Equity:          (2*p - 1) * float64(req.Cube.Value),
		StrategicAdvice: describe(after, req.Player),
	}, nil
}

// CubeAdvice answers both cube questions for req.Player: whether to double
// now and whether to take if doubled.
func (h Heuristic) CubeAdvice(ctx context.Context, req Request) (*CubeDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dbl, take := h.DoubleThreshold, h.TakeThreshold
	if dbl == 0 {
		dbl = 0.70
	}
	if take == 0 {
		take = 0.25
	}
	if h.Equity != nil && !req.Match.IsMoney() {
		take = h.Equity.TakePoint(req.Match, req.Cube, req.Player)
	}
	p := RaceWinProbability(req.Board, req.Player, req.Player == req.Turn)
	d := &CubeDecision{
		Double:         p >= dbl,
		Take:           p >= take,
		WinProbability: p,
	}
	switch {
	case d.Double:
		d.Reason = fmt.Sprintf("%.0f%% to win, strong enough to double", 100*p)
	case !d.Take:
		d.Reason = fmt.Sprintf("%.0f%% to win, too weak to take", 100*p)
	default:
		d.Reason = fmt.Sprintf("%.0f%% to win", 100*p)
	}
	return d, nil
}

// BestSequence plays the dice greedily: at each step the legal move with the
// highest resulting Score is chosen. It returns the moves and the final board.
func BestSequence(b engine.Board, c engine.Color, dice engine.Dice) ([]engine.Move, engine.Board) {
	type scored struct {
		move  engine.Move
		board engine.Board
		score float64
	}

	var seq []engine.Move
	for !dice.Empty() {
		moves := engine.LegalMoves(b, c, dice)
		if len(moves) == 0 {
			break
		}
		options := lo.Map(moves, func(m engine.Move, _ int) scored {
			next, _ := engine.ApplyMove(b, c, m.From, m.To, m.Die)
			return scored{move: m, board: next, score: Score(next, c)}
		})
		best := lo.MaxBy(options, func(x, y scored) bool { return x.score > y.score })
		seq = append(seq, best.move)
		b = best.board
		dice, _ = dice.Consume(best.move.Die)
	}
	return seq, b
}

// Score rates a board for c. Higher is better.
func Score(b engine.Board, c engine.Color) float64 {
	opp := c.Opponent()
	s := 0.1 * float64(b.Pips(opp)-b.Pips(c))
	s += 3 * float64(b.Bar.Of(opp))
	s += 2 * float64(b.Off.Of(c))

	for p, pt := range b.Points {
		if pt.Owner != c {
			continue
		}
		switch {
		case pt.Count >= 2:
			s += 1.5
			if c.InHome(p) {
				s += 1
			}
		case pt.Count == 1:
			s -= blotRisk(b, c, p)
		}
	}
	return s
}

// blotRisk is the penalty for a lone checker of c on p: high when an
// opposing checker sits within direct range behind it.
func blotRisk(b engine.Board, c engine.Color, p int) float64 {
	opp := c.Opponent()
	if !hasContact(b, c) {
		return 0
	}
	shooters := 0
	for q, pt := range b.Points {
		if pt.Owner != opp {
			continue
		}
		if d := (p - q) * opp.Direction(); d >= 1 && d <= 6 {
			shooters++
		}
	}
	if b.Bar.Of(opp) > 0 {
		origin := -1
		if opp == engine.Black {
			origin = engine.NumPoints
		}
		if d := (p - origin) * opp.Direction(); d >= 1 && d <= 6 {
			shooters++
		}
	}
	if shooters > 0 {
		return 1.5 + 0.25*float64(shooters)
	}
	return 0.5
}

// hasContact reports whether any checkers of c and its opponent can still
// meet.
func hasContact(b engine.Board, c engine.Color) bool {
	if b.Bar.Of(c) > 0 || b.Bar.Of(c.Opponent()) > 0 {
		return true
	}
	mine, ok1 := b.Farthest(c)
	theirs, ok2 := b.Farthest(c.Opponent())
	if !ok1 || !ok2 {
		return false
	}
	// Both farthest checkers are still behind each other
	return (theirs-mine)*c.Direction() > 0
}

// RaceWinProbability estimates c's chance to win from the pip counts. The
// side on roll is credited with half an average roll.
func RaceWinProbability(b engine.Board, c engine.Color, onRoll bool) float64 {
	switch {
	case engine.HasWon(b, c):
		return 1
	case engine.HasWon(b, c.Opponent()):
		return 0
	}
	mine := float64(b.Pips(c))
	theirs := float64(b.Pips(c.Opponent()))
	if onRoll {
		mine -= 4
	} else {
		theirs -= 4
	}
	// Half a roll is enough to finish the race
	switch {
	case mine <= 0:
		return 1
	case theirs <= 0:
		return 0
	}
	dist := distuv.Normal{
		Mu:    0,
		Sigma: 0.55*math.Sqrt(mine+theirs) + 1,
	}
	return dist.CDF(theirs - mine)
}

func describe(b engine.Board, c engine.Color) string {
	lead := b.Pips(c.Opponent()) - b.Pips(c)
	phase := "racing"
	if hasContact(b, c) {
		phase = "contact"
	}
	blots := 0
	for _, pt := range b.Points {
		if pt.Owner == c && pt.Count == 1 {
			blots++
		}
	}
	switch {
	case lead >= 0:
		return fmt.Sprintf("%s, %d pips ahead, %d blots", phase, lead, blots)
	default:
		return fmt.Sprintf("%s, %d pips behind, %d blots", phase, -lead, blots)
	}
}
