package main

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
)

// renderBoard draws b numbered from me's side. My checkers are O, the
// opponent's X.
func renderBoard(b engine.Board, me engine.Color) string {
	var sb strings.Builder
	row := func(from, to, step int) {
		for n := from; n != to+step; n += step {
			if n == 19 || n == 6 {
				sb.WriteString(" |")
			}
			fmt.Fprintf(&sb, "%4s", cell(b.Points[external.PointIndex(n, me)], me))
		}
		sb.WriteByte('\n')
	}
	numbers := func(from, to, step int) {
		for n := from; n != to+step; n += step {
			if n == 19 || n == 6 {
				sb.WriteString(" |")
			}
			fmt.Fprintf(&sb, "%4d", n)
		}
		sb.WriteByte('\n')
	}

	numbers(13, 24, 1)
	row(13, 24, 1)
	row(12, 1, -1)
	numbers(12, 1, -1)

	opp := me.Opponent()
	fmt.Fprintf(&sb, "bar O:%d X:%d  off O:%d X:%d  pips O:%d X:%d",
		b.Bar.Of(me), b.Bar.Of(opp), b.Off.Of(me), b.Off.Of(opp), b.Pips(me), b.Pips(opp))
	return sb.String()
}

func cell(p engine.Point, me engine.Color) string {
	switch {
	case p.Count == 0:
		return "."
	case p.Owner == me:
		return fmt.Sprintf("%dO", p.Count)
	default:
		return fmt.Sprintf("%dX", p.Count)
	}
}

// sortedOrigins orders the origins of dests from the bar down to c's
// 1-point.
func sortedOrigins(dests map[int][]int, c engine.Color) []int {
	origins := lo.Keys(dests)
	number := func(p int) int {
		if p == engine.Bar {
			return 25
		}
		return c.BearOffDistance(p)
	}
	slices.SortFunc(origins, func(a, b int) int {
		return cmp.Compare(number(b), number(a))
	})
	return origins
}
