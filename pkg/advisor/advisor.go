// Package advisor provides move and cube advice for the side on roll.
//
// An Oracle may be local (Heuristic) or remote (NATSOracle, HTTPOracle).
// Remote oracles are unreliable by nature; wrap them in Shared, which
// deduplicates concurrent identical requests, bounds each call with a
// timeout and reports every failure as ErrAdvisoryUnavailable so callers can
// fall back to the heuristic.
package advisor

import (
	"context"
	"errors"

	"github.com/yourusername/bgtable/internal/positionid"
	"github.com/yourusername/bgtable/pkg/engine"
)

// ErrAdvisoryUnavailable is returned when an oracle cannot be reached or its
// answer cannot be used.
var ErrAdvisoryUnavailable = errors.New("advisory oracle unavailable")

// Request describes the position to advise on.
type Request struct {
	Board      engine.Board
	Dice       engine.Dice
	Player     engine.Color // Side asking for advice
	Turn       engine.Color // Side on roll
	Cube       engine.Cube
	Match      engine.MatchState
	PositionID string
}

// NewRequest builds a request for player from the current state.
func NewRequest(gs engine.GameState, player engine.Color) Request {
	return Request{
		Board:      gs.Board,
		Dice:       gs.Dice,
		Player:     player,
		Turn:       gs.Turn,
		Cube:       gs.Cube,
		Match:      gs.Match,
		PositionID: positionid.Encode(gs.Board, gs.Turn),
	}
}

// Advice is the answer to a move request. Moves are in play order; each one
// consumes one die.
type Advice struct {
	Moves           []engine.Move `json:"moves"`
	WinProbability  float64       `json:"winProbability"`
	Equity          float64       `json:"equity"`
	StrategicAdvice string        `json:"strategicAdvice,omitempty"`
}

// CubeDecision is the answer to a cube request, from the requesting side's
// point of view.
type CubeDecision struct {
	Double         bool    `json:"double"`
	Take           bool    `json:"take"`
	WinProbability float64 `json:"winProbability"`
	Reason         string  `json:"reason,omitempty"`
}

// Oracle gives advice on positions.
type Oracle interface {
	Advise(ctx context.Context, req Request) (*Advice, error)
	CubeAdvice(ctx context.Context, req Request) (*CubeDecision, error)
}
