package external

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/bgtable/pkg/engine"
)

// ParsePoint converts a point in the external vocabulary into an engine
// index for the moving side. Callers number points 1-24 from the mover's own
// perspective (1 is the ace point, 24 the farthest) and use "bar" and "off"
// for the sentinels.
func ParsePoint(s string, c engine.Color) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar", "b":
		return engine.Bar, nil
	case "off", "o":
		return engine.Off, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > engine.NumPoints {
		return 0, fmt.Errorf("invalid point %q", s)
	}
	return PointIndex(n, c), nil
}

// PointIndex converts a 1-based mover-relative point number to an index.
func PointIndex(n int, c engine.Color) int {
	if c == engine.Black {
		return n - 1
	}
	return engine.NumPoints - n
}

// FormatPoint is the inverse of ParsePoint.
func FormatPoint(p int, c engine.Color) string {
	switch p {
	case engine.Bar:
		return "bar"
	case engine.Off:
		return "off"
	}
	return strconv.Itoa(c.BearOffDistance(p))
}

// ParseMove reads "from/to" in the external vocabulary, e.g. "bar/22" or
// "6/off".
func ParseMove(s string, c engine.Color) (from, to int, err error) {
	a, b, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("move %q is not from/to", s)
	}
	if from, err = ParsePoint(a, c); err != nil {
		return 0, 0, err
	}
	if to, err = ParsePoint(b, c); err != nil {
		return 0, 0, err
	}
	if from == engine.Off || to == engine.Bar {
		return 0, 0, fmt.Errorf("move %q runs backwards", s)
	}
	return from, to, nil
}

// FormatMoves joins moves in the external vocabulary, space separated.
func FormatMoves(moves []engine.Move, c engine.Color) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.Notation(c)
	}
	return strings.Join(parts, " ")
}
