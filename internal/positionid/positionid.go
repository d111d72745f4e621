// Package positionid encodes boards as GNU Backgammon position IDs.
//
// A position ID is 80 bits written as 14 base64 characters. For each side,
// the side on roll first, every point from that side's ace point up to the
// bar contributes one 1-bit per checker followed by a 0-bit separator.
// Borne-off checkers are implied.
package positionid

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/yourusername/bgtable/pkg/engine"
)

// Length is the length of a position ID string.
const Length = 14

// ErrInvalid is returned for strings that do not decode to a legal board.
var ErrInvalid = errors.New("invalid position ID")

// slots per side: 24 points and the bar
const slots = 25

// key is the packed 80-bit form.
type key [10]byte

// counts is one side's checkers in gnubg order: index 0 is the side's ace
// point, 23 its 24-point, 24 the bar.
type counts [slots]int

func sideCounts(b engine.Board, c engine.Color) counts {
	var out counts
	for p, pt := range b.Points {
		if pt.Owner == c {
			out[c.BearOffDistance(p)-1] = pt.Count
		}
	}
	out[slots-1] = b.Bar.Of(c)
	return out
}

// Encode returns the position ID of b as seen by the side on roll.
func Encode(b engine.Board, onRoll engine.Color) string {
	var k key
	bit := 0
	for _, side := range [2]counts{sideCounts(b, onRoll), sideCounts(b, onRoll.Opponent())} {
		for _, n := range side {
			for range n {
				k[bit/8] |= 1 << (bit % 8)
				bit++
			}
			bit++
		}
	}
	return base64.RawStdEncoding.EncodeToString(k[:])
}

// Decode rebuilds the board from a position ID, given which side is on roll.
func Decode(id string, onRoll engine.Color) (engine.Board, error) {
	if len(id) != Length || !onRoll.Valid() {
		return engine.Board{}, ErrInvalid
	}
	raw, err := base64.RawStdEncoding.DecodeString(id)
	if err != nil || len(raw) != len(key{}) {
		return engine.Board{}, ErrInvalid
	}

	var sides [2]counts
	side, slot := 0, 0
	for bit := 0; bit < 8*len(raw) && side < 2; bit++ {
		if raw[bit/8]&(1<<(bit%8)) != 0 {
			sides[side][slot]++
			continue
		}
		slot++
		if slot == slots {
			side, slot = side+1, 0
		}
	}

	var b engine.Board
	for i, c := range [2]engine.Color{onRoll, onRoll.Opponent()} {
		total := 0
		for j, n := range sides[i] {
			total += n
			if n == 0 || j == slots-1 {
				continue
			}
			p := pointOf(c, j)
			if b.Points[p].Count > 0 {
				return engine.Board{}, fmt.Errorf("%w: both sides on point %d", ErrInvalid, p)
			}
			b.Points[p] = engine.Point{Owner: c, Count: n}
		}
		if total > engine.NumCheckers {
			return engine.Board{}, fmt.Errorf("%w: %s has %d checkers", ErrInvalid, c, total)
		}
		b.Bar = b.Bar.With(c, sides[i][slots-1])
		b.Off = b.Off.With(c, engine.NumCheckers-total)
	}
	if err := b.Validate(); err != nil {
		return engine.Board{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return b, nil
}

// pointOf maps a gnubg slot back to a board index for c.
func pointOf(c engine.Color, slot int) int {
	if c == engine.Black {
		return slot
	}
	return engine.NumPoints - 1 - slot
}
