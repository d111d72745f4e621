// Package engine implements the backgammon rules: the board model, single-die
// move generation, win classification, the doubling cube, match scoring and
// the turn orchestrator.
//
// Every function in this package is pure. Board and GameState are values; an
// operation returns a new value and never modifies its inputs.
package engine

import "fmt"

const (
	NumPoints   = 24 // Board points, indexed 0-23
	NumCheckers = 15 // Checkers per side

	// Bar is the Move.From sentinel for a checker entering from the bar.
	Bar = -1
	// Off is the Move.To sentinel for a checker being borne off.
	Off = -2
)

// Color identifies one side of the board.
// White moves toward increasing point index and is home on 18-23.
// Black moves toward decreasing point index and is home on 0-5.
type Color int8

const (
	NoColor Color = iota // Empty point or centered cube
	White
	Black
)

// Valid reports whether c is one of the two playing sides.
func (c Color) Valid() bool {
	return c == White || c == Black
}

// Opponent returns the other side. NoColor has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	}
	return NoColor
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return "none"
}

// Direction returns +1 for White and -1 for Black.
func (c Color) Direction() int {
	if c == Black {
		return -1
	}
	return 1
}

// HomeRange returns the inclusive point range of the color's home quadrant.
func (c Color) HomeRange() (lo, hi int) {
	if c == Black {
		return 0, 5
	}
	return 18, 23
}

// InHome reports whether point p lies in the color's home quadrant.
func (c Color) InHome(p int) bool {
	lo, hi := c.HomeRange()
	return p >= lo && p <= hi
}

// BearOffDistance returns the number of pips a checker on point p needs to
// leave the board exactly.
func (c Color) BearOffDistance(p int) int {
	if c == Black {
		return p + 1
	}
	return NumPoints - p
}

// entryOrigin is the virtual point a bar checker moves from.
func (c Color) entryOrigin() int {
	if c == Black {
		return NumPoints
	}
	return -1
}

func (c Color) idx() int {
	return int(c) - 1
}

// backToFront lists the points in the order the color travels them, starting
// with the point farthest from home.
func (c Color) backToFront() [NumPoints]int {
	var order [NumPoints]int
	for i := range order {
		if c == Black {
			order[i] = NumPoints - 1 - i
		} else {
			order[i] = i
		}
	}
	return order
}

// Point is one of the 24 board positions.
type Point struct {
	Owner Color // NoColor when empty
	Count int
}

// Tally holds one count per color.
type Tally [2]int

// Of returns the count for c.
func (t Tally) Of(c Color) int {
	if !c.Valid() {
		return 0
	}
	return t[c.idx()]
}

// With returns a copy of t with the count for c set to n.
func (t Tally) With(c Color, n int) Tally {
	if c.Valid() {
		t[c.idx()] = n
	}
	return t
}

// Board holds the checker layout for both sides.
type Board struct {
	Points [NumPoints]Point
	Bar    Tally
	Off    Tally
}

// InitialBoard returns the standard starting layout: two checkers on each
// side's 24-point, five on the 13-point, three on the 8-point and five on the
// 6-point.
func InitialBoard() Board {
	var b Board

	// Black counts down toward point 0
	b.Points[23] = Point{Black, 2}
	b.Points[12] = Point{Black, 5}
	b.Points[7] = Point{Black, 3}
	b.Points[5] = Point{Black, 5}

	// White mirrors it
	b.Points[0] = Point{White, 2}
	b.Points[11] = Point{White, 5}
	b.Points[16] = Point{White, 3}
	b.Points[18] = Point{White, 5}

	return b
}

// OnPoints returns the number of c's checkers sitting on board points.
func (b Board) OnPoints(c Color) int {
	n := 0
	for _, pt := range b.Points {
		if pt.Owner == c {
			n += pt.Count
		}
	}
	return n
}

// Count returns every checker of c: points, bar and borne off.
func (b Board) Count(c Color) int {
	return b.OnPoints(c) + b.Bar.Of(c) + b.Off.Of(c)
}

// AllHome reports whether every checker of c still in play is inside its
// home quadrant, which is the precondition for bearing off.
func (b Board) AllHome(c Color) bool {
	if b.Bar.Of(c) > 0 {
		return false
	}
	for p, pt := range b.Points {
		if pt.Owner == c && pt.Count > 0 && !c.InHome(p) {
			return false
		}
	}
	return true
}

// Farthest returns the occupied point of c that is farthest from bearing off.
func (b Board) Farthest(c Color) (int, bool) {
	for _, p := range c.backToFront() {
		if b.Points[p].Owner == c && b.Points[p].Count > 0 {
			return p, true
		}
	}
	return 0, false
}

// Pips returns the pip count of c: the total distance its checkers must
// travel to bear off. Bar checkers count 25.
func (b Board) Pips(c Color) int {
	pips := b.Bar.Of(c) * (NumPoints + 1)
	for p, pt := range b.Points {
		if pt.Owner == c {
			pips += pt.Count * c.BearOffDistance(p)
		}
	}
	return pips
}

// Validate checks checker conservation and point ownership.
func (b Board) Validate() error {
	for p, pt := range b.Points {
		switch {
		case pt.Count < 0:
			return &CorruptStateError{Reason: fmt.Sprintf("point %d has negative count %d", p, pt.Count)}
		case pt.Count == 0 && pt.Owner != NoColor:
			return &CorruptStateError{Reason: fmt.Sprintf("point %d is empty but owned by %s", p, pt.Owner)}
		case pt.Count > 0 && !pt.Owner.Valid():
			return &CorruptStateError{Reason: fmt.Sprintf("point %d holds %d checkers without an owner", p, pt.Count)}
		}
	}
	for _, c := range []Color{White, Black} {
		if b.Bar.Of(c) < 0 || b.Off.Of(c) < 0 {
			return &CorruptStateError{Reason: fmt.Sprintf("negative bar or off count for %s", c)}
		}
		if n := b.Count(c); n != NumCheckers {
			return &CorruptStateError{Reason: fmt.Sprintf("%s has %d checkers, want %d", c, n, NumCheckers)}
		}
	}
	return nil
}

// place adds one checker of c to point p, hitting a lone opposing checker.
// It reports whether a hit happened.
func (b *Board) place(c Color, p int) bool {
	dst := &b.Points[p]
	hit := false
	if dst.Owner == c.Opponent() && dst.Count == 1 {
		b.Bar[c.Opponent().idx()]++
		dst.Count = 0
		hit = true
	}
	dst.Owner = c
	dst.Count++
	return hit
}

// lift removes one checker of c from point p.
func (b *Board) lift(p int) {
	src := &b.Points[p]
	src.Count--
	if src.Count == 0 {
		src.Owner = NoColor
	}
}
