package external

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/yourusername/bgtable/pkg/engine"
)

// NormalizeBoard converts any board shape accepted at the boundary into an
// engine.Board:
//
//   - a flat array of 24 points
//   - an object with a "points" array and optional "bar" and "off" tallies
//
// Each point is either a signed count (positive White, negative Black) or an
// object {"owner": ..., "count": n}. Owners may be given as 1/2 or by name.
// When no "off" tally is present it is inferred from conservation.
//
// The result is validated; anything that cannot be turned into a legal board
// yields a *engine.CorruptStateError.
func NormalizeBoard(data []byte) (engine.Board, error) {
	if !gjson.ValidBytes(data) {
		return engine.Board{}, corrupt("board is not valid JSON")
	}
	root := gjson.ParseBytes(data)

	var points, bar, off gjson.Result
	switch {
	case root.IsArray():
		points = root
	case root.IsObject():
		points = root.Get("points")
		bar = root.Get("bar")
		off = root.Get("off")
		if !points.IsArray() {
			return engine.Board{}, corrupt("board object has no points array")
		}
	default:
		return engine.Board{}, corrupt("board must be an array or an object")
	}

	items := points.Array()
	if len(items) != engine.NumPoints {
		return engine.Board{}, corrupt(fmt.Sprintf("board has %d points, want %d", len(items), engine.NumPoints))
	}

	var b engine.Board
	for i, item := range items {
		pt, err := normalizePoint(item)
		if err != nil {
			return engine.Board{}, corrupt(fmt.Sprintf("point %d: %v", i, err))
		}
		b.Points[i] = pt
	}

	for _, c := range []engine.Color{engine.White, engine.Black} {
		if bar.Exists() {
			b.Bar = b.Bar.With(c, int(sideValue(bar, c)))
		}
		if off.Exists() {
			b.Off = b.Off.With(c, int(sideValue(off, c)))
		} else {
			b.Off = b.Off.With(c, engine.NumCheckers-b.OnPoints(c)-b.Bar.Of(c))
		}
	}

	if err := b.Validate(); err != nil {
		return engine.Board{}, err
	}
	return b, nil
}

// NormalizeBoardOrInitial is NormalizeBoard with the boundary reset policy:
// an unusable board is replaced by the initial layout. The error, if any,
// reports what was discarded.
func NormalizeBoardOrInitial(data []byte) (engine.Board, error) {
	b, err := NormalizeBoard(data)
	if err != nil {
		return engine.InitialBoard(), err
	}
	return b, nil
}

func normalizePoint(r gjson.Result) (engine.Point, error) {
	switch {
	case r.Type == gjson.Null:
		return engine.Point{}, nil
	case r.Type == gjson.Number:
		n := int(r.Int())
		switch {
		case n > 0:
			return engine.Point{Owner: engine.White, Count: n}, nil
		case n < 0:
			return engine.Point{Owner: engine.Black, Count: -n}, nil
		}
		return engine.Point{}, nil
	case r.IsObject():
		count := firstOf(r, "count", "checkers")
		if !count.Exists() {
			return engine.Point{}, nil
		}
		if count.Type != gjson.Number {
			return engine.Point{}, fmt.Errorf("count %s is not a number", count.Raw)
		}
		n := int(count.Int())
		if n == 0 {
			return engine.Point{}, nil
		}
		owner, err := ParseColor(firstOf(r, "owner", "color", "player"))
		if err != nil {
			return engine.Point{}, err
		}
		return engine.Point{Owner: owner, Count: n}, nil
	}
	return engine.Point{}, fmt.Errorf("unsupported point %s", r.Raw)
}

// ParseColor accepts a side as 1/2 or as a name ("white", "w", "black", "b").
func ParseColor(r gjson.Result) (engine.Color, error) {
	switch r.Type {
	case gjson.Number:
		switch c := engine.Color(r.Int()); c {
		case engine.White, engine.Black:
			return c, nil
		}
	case gjson.String:
		if c, ok := ColorFromName(r.String()); ok {
			return c, nil
		}
	}
	return engine.NoColor, fmt.Errorf("unknown side %s", r.Raw)
}

// ColorFromName maps a side name to its color.
func ColorFromName(s string) (engine.Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w", "1":
		return engine.White, true
	case "black", "b", "2":
		return engine.Black, true
	}
	return engine.NoColor, false
}

// sideValue reads a per-side tally given as {"white":n,"black":n} or [w, b].
func sideValue(r gjson.Result, c engine.Color) int64 {
	if r.IsArray() {
		items := r.Array()
		i := int(c) - 1
		if i < len(items) {
			return items[i].Int()
		}
		return 0
	}
	return firstOf(r, c.String(), fmt.Sprint(int(c))).Int()
}

func firstOf(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func corrupt(reason string) error {
	return &engine.CorruptStateError{Reason: reason}
}
