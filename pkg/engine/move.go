package engine

import (
	"fmt"
	"slices"
)

// Move is a single checker movement consuming one die.
// From is a point index or Bar, To is a point index or Off.
type Move struct {
	From int `json:"from"`
	To   int `json:"to"`
	Die  int `json:"die"`
}

// String returns the move in internal 0-based indices, e.g. "23/20(3)".
func (m Move) String() string {
	return fmt.Sprintf("%s/%s(%d)", pointLabel(m.From, 0), pointLabel(m.To, 0), m.Die)
}

// Notation returns the move in the mover's 1-based point numbering, the way
// players write it: "bar/22", "8/5", "6/off".
func (m Move) Notation(c Color) string {
	from, to := "bar", "off"
	if m.From != Bar {
		from = fmt.Sprint(c.BearOffDistance(m.From))
	}
	if m.To != Off {
		to = fmt.Sprint(c.BearOffDistance(m.To))
	}
	return from + "/" + to
}

func pointLabel(p, base int) string {
	switch p {
	case Bar:
		return "bar"
	case Off:
		return "off"
	}
	return fmt.Sprint(p + base)
}

func onBoard(p int) bool {
	return p >= 0 && p < NumPoints
}

// open reports whether c may land on point p: it is not held by two or more
// opposing checkers.
func (b Board) open(c Color, p int) bool {
	pt := b.Points[p]
	return pt.Owner != c.Opponent() || pt.Count < 2
}

// LegalMoves returns every single-die move available to c for the remaining
// dice. Each distinct die value is considered once; doubles are handled by the
// caller consuming one die at a time.
//
// While c has checkers on the bar only entering moves are returned.
func LegalMoves(b Board, c Color, dice Dice) []Move {
	if !c.Valid() {
		return nil
	}
	var moves []Move
	for _, die := range dice.Unique() {
		moves = append(moves, movesForDie(b, c, die)...)
	}
	return moves
}

// movesForDie generates the moves for one die value, back checkers first.
func movesForDie(b Board, c Color, die int) []Move {
	if die < 1 || die > 6 {
		return nil
	}

	// Must enter from the bar first
	if b.Bar.Of(c) > 0 {
		dest := c.entryOrigin() + die*c.Direction()
		if b.open(c, dest) {
			return []Move{{From: Bar, To: dest, Die: die}}
		}
		return nil
	}

	canBearOff := b.AllHome(c)
	var moves []Move
	for _, p := range c.backToFront() {
		pt := b.Points[p]
		if pt.Owner != c || pt.Count == 0 {
			continue
		}
		dest := p + die*c.Direction()
		if onBoard(dest) {
			if b.open(c, dest) {
				moves = append(moves, Move{From: p, To: dest, Die: die})
			}
			continue
		}
		if canBearOff && bearOffAllowed(b, c, p, die) {
			moves = append(moves, Move{From: p, To: Off, Die: die})
		}
	}
	return moves
}

// bearOffAllowed assumes every checker is home and the die carries the checker
// past the edge. An exact roll always bears off; a larger roll may only be
// used on the farthest checker.
func bearOffAllowed(b Board, c Color, p, die int) bool {
	need := c.BearOffDistance(p)
	if die == need {
		return true
	}
	if die < need {
		return false
	}
	far, ok := b.Farthest(c)
	return ok && far == p
}

// LegalDestinations groups LegalMoves by origin. Destinations are sorted and
// unique; Off sorts first.
func LegalDestinations(b Board, c Color, dice Dice) map[int][]int {
	dests := make(map[int][]int)
	for _, m := range LegalMoves(b, c, dice) {
		if !slices.Contains(dests[m.From], m.To) {
			dests[m.From] = append(dests[m.From], m.To)
		}
	}
	for from := range dests {
		slices.Sort(dests[from])
	}
	return dests
}

// HasLegalMove reports whether any remaining die can be played.
func HasLegalMove(b Board, c Color, dice Dice) bool {
	for _, die := range dice.Unique() {
		if len(movesForDie(b, c, die)) > 0 {
			return true
		}
	}
	return false
}

// FirstLegalMove returns the first structurally legal move for any remaining
// die, trying the dice in ascending order.
func FirstLegalMove(b Board, c Color, dice Dice) (Move, bool) {
	for _, die := range dice.Unique() {
		if moves := movesForDie(b, c, die); len(moves) > 0 {
			return moves[0], true
		}
	}
	return Move{}, false
}

// IsLegal reports whether m is among the legal moves for its own die.
func IsLegal(b Board, c Color, m Move) bool {
	return slices.Contains(movesForDie(b, c, m.Die), m)
}

// ApplyMove moves one checker of c from one point to another using die and
// returns the resulting board. The input board is not modified.
func ApplyMove(b Board, c Color, from, to, die int) (Board, error) {
	m := Move{From: from, To: to, Die: die}
	if !c.Valid() {
		return b, &IllegalMoveError{Color: c, Move: m, Reason: "no such side"}
	}
	if !IsLegal(b, c, m) {
		return b, &IllegalMoveError{Color: c, Move: m, Reason: explainIllegal(b, c, m)}
	}
	next, _ := b.apply(c, m)
	return next, nil
}

// IsHit reports whether m would send a lone opposing checker to the bar.
func IsHit(b Board, c Color, m Move) bool {
	if !onBoard(m.To) {
		return false
	}
	dst := b.Points[m.To]
	return dst.Owner == c.Opponent() && dst.Count == 1
}

// apply performs a move already known to be legal.
func (b Board) apply(c Color, m Move) (Board, bool) {
	if m.From == Bar {
		b.Bar[c.idx()]--
	} else {
		b.lift(m.From)
	}
	if m.To == Off {
		b.Off[c.idx()]++
		return b, false
	}
	hit := b.place(c, m.To)
	return b, hit
}

// explainIllegal produces the reason a move was rejected.
func explainIllegal(b Board, c Color, m Move) string {
	switch {
	case m.Die < 1 || m.Die > 6:
		return fmt.Sprintf("die %d out of range", m.Die)
	case b.Bar.Of(c) > 0 && m.From != Bar:
		return "checkers on the bar must enter first"
	case m.From == Bar && b.Bar.Of(c) == 0:
		return "no checker on the bar"
	case m.From != Bar && (!onBoard(m.From) || b.Points[m.From].Owner != c):
		return fmt.Sprintf("no %s checker on point %s", c, pointLabel(m.From, 0))
	case m.To == Off && !b.AllHome(c):
		return "cannot bear off before all checkers are home"
	case m.To == Off:
		return fmt.Sprintf("die %d cannot bear off from %d", m.Die, m.From)
	case !onBoard(m.To):
		return fmt.Sprintf("destination %d is off the board", m.To)
	}
	origin := m.From
	if origin == Bar {
		origin = c.entryOrigin()
	}
	if (m.To-origin)*c.Direction() != m.Die {
		return fmt.Sprintf("distance from %s to %d does not match die %d", pointLabel(m.From, 0), m.To, m.Die)
	}
	if !b.open(c, m.To) {
		return fmt.Sprintf("point %d is blocked", m.To)
	}
	return "not a legal move"
}
