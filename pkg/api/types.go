// Package api provides the HTTP/JSON and WebSocket front door to live
// tables.
package api

import (
	"encoding/json"

	"github.com/yourusername/bgtable/pkg/external"
	"github.com/yourusername/bgtable/pkg/table"
)

// ============================================================================
// Request Types
// ============================================================================

// CreateGameRequest is the request body for starting a table.
type CreateGameRequest struct {
	White       string `json:"white,omitempty"`        // Display name of White
	Black       string `json:"black,omitempty"`        // Display name of Black
	MatchLength int    `json:"match_length,omitempty"` // 0 = money game
	Crawford    bool   `json:"crawford,omitempty"`     // Apply the Crawford rule
	Jacoby      bool   `json:"jacoby,omitempty"`       // Money play only
	Bot         string `json:"bot,omitempty"`          // Side played by the server: "white", "black" or ""
}

// ActionRequest is the request body for every table action. Points use the
// mover's own numbering (1-24, "bar", "off").
type ActionRequest struct {
	Player string `json:"player"`         // "white" or "black"
	From   string `json:"from,omitempty"` // Move origin
	To     string `json:"to,omitempty"`   // Move destination
	Move   string `json:"move,omitempty"` // Alternative to From/To, e.g. "13/8"
}

// ============================================================================
// Response Types
// ============================================================================

// GameResponse describes a table.
type GameResponse struct {
	ID        string            `json:"id"`
	White     string            `json:"white"`
	Black     string            `json:"black"`
	Bot       string            `json:"bot,omitempty"`
	LocalOnly bool              `json:"local_only,omitempty"` // Replication given up
	State     external.StateDoc `json:"state"`
}

// ActionResponse is returned by every successful action.
type ActionResponse struct {
	GameResponse
	Move     string `json:"move,omitempty"`     // Move played, in notation
	Hit      bool   `json:"hit,omitempty"`      // The move sent a checker to the bar
	Deadlock bool   `json:"deadlock,omitempty"` // The roll could not be played
	Handoff  bool   `json:"handoff,omitempty"`  // The turn passed to the opponent
}

// GamesResponse lists the live tables.
type GamesResponse struct {
	Games []string `json:"games"`
}

// LegalResponse lists where each checker of a side may go.
type LegalResponse struct {
	Player       string              `json:"player"`
	Dice         []int               `json:"dice"`
	Destinations map[string][]string `json:"destinations"` // Origin point -> destinations
}

// LogResponse is the system message log of a table.
type LogResponse struct {
	Messages []table.Message `json:"messages"`
}

// HintResponse is the oracle's view of the position for the side on turn.
type HintResponse struct {
	Player          string  `json:"player"`
	Moves           string  `json:"moves,omitempty"` // Suggested play when dice are up
	Double          bool    `json:"double,omitempty"`
	Take            bool    `json:"take,omitempty"`
	WinProbability  float64 `json:"win_probability"`
	Equity          float64 `json:"equity,omitempty"`
	StrategicAdvice string  `json:"strategic_advice,omitempty"`
}

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`          // Error message
	Code  string `json:"code,omitempty"` // Error code
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string     `json:"status"`         // "ok"
	Version string     `json:"version"`        // Server version
	Tables  int        `json:"tables"`         // Live tables
	Pool    *PoolStats `json:"pool,omitempty"` // Worker pool statistics
}

// ============================================================================
// WebSocket Messages
// ============================================================================

// WSMessage is a message from a WebSocket client. Action types are "roll",
// "move", "double", "take", "pass" and "forfeit"; "ping" is answered with
// "pong".
type WSMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`      // Echoed in the reply
	Payload json.RawMessage `json:"payload,omitempty"` // ActionRequest for actions
}

// WSResponse is a message to a WebSocket client. Every state change of the
// table is pushed as a "state" message.
type WSResponse struct {
	Type    string `json:"type"` // "state", "result", "error" or "pong"
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}
