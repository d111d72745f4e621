package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"lukechampine.com/frand"
)

// Dice is the multiset of die values still unused this turn. A double is
// stored as four copies of its value. Dice values are never modified in
// place; Consume returns a new slice.
type Dice []int

// NewRoll expands a two-die roll into the dice available for the turn.
func NewRoll(d1, d2 int) (Dice, error) {
	if d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return nil, fmt.Errorf("invalid roll %d-%d", d1, d2)
	}
	if d1 == d2 {
		return Dice{d1, d1, d1, d1}, nil
	}
	return Dice{d1, d2}, nil
}

// Empty reports whether all dice have been used.
func (d Dice) Empty() bool {
	return len(d) == 0
}

// Unique returns the distinct die values in ascending order.
func (d Dice) Unique() []int {
	u := lo.Uniq(d)
	slices.Sort(u)
	return u
}

// Consume removes one instance of value and returns the remaining dice.
// Matching is by value, not position.
func (d Dice) Consume(value int) (Dice, bool) {
	i := slices.Index(d, value)
	if i < 0 {
		return d, false
	}
	rest := make(Dice, 0, len(d)-1)
	rest = append(rest, d[:i]...)
	rest = append(rest, d[i+1:]...)
	return rest, true
}

// Sorted returns a sorted copy.
func (d Dice) Sorted() Dice {
	s := slices.Clone(d)
	slices.Sort(s)
	return s
}

// SameAs reports multiset equality.
func (d Dice) SameAs(o Dice) bool {
	return slices.Equal(d.Sorted(), o.Sorted())
}

// Key returns a canonical text form of the multiset, e.g. "1-3" or "4-4-4".
func (d Dice) Key() string {
	return strings.Join(lo.Map(d.Sorted(), func(v int, _ int) string {
		return strconv.Itoa(v)
	}), "-")
}

// Roller produces dice rolls.
type Roller interface {
	Roll() (int, int)
}

// RandomRoller rolls with a cryptographically seeded generator.
type RandomRoller struct{}

// Roll returns two independent values in 1-6.
func (RandomRoller) Roll() (int, int) {
	return frand.Intn(6) + 1, frand.Intn(6) + 1
}

// SequenceRoller replays a fixed list of rolls, then falls back to Fallback
// (or 1-2 when Fallback is nil). It is used to replay recorded games and in
// tests.
type SequenceRoller struct {
	mu       sync.Mutex
	rolls    [][2]int
	next     int
	Fallback Roller
}

// NewSequenceRoller returns a roller that plays back rolls in order.
func NewSequenceRoller(rolls ...[2]int) *SequenceRoller {
	return &SequenceRoller{rolls: rolls}
}

// Roll returns the next recorded roll.
func (s *SequenceRoller) Roll() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next < len(s.rolls) {
		r := s.rolls[s.next]
		s.next++
		return r[0], r[1]
	}
	if s.Fallback != nil {
		return s.Fallback.Roll()
	}
	return 1, 2
}

// OpeningRoll decides who starts a game: each side rolls one die and the
// higher die moves first. Ties are rerolled. The dice are returned for the
// game log.
func OpeningRoll(r Roller) (Color, [2]int) {
	for {
		w, b := r.Roll()
		switch {
		case w > b:
			return White, [2]int{w, b}
		case b > w:
			return Black, [2]int{w, b}
		}
	}
}

func (d Dice) contains(v int) bool {
	return slices.Contains(d, v)
}
