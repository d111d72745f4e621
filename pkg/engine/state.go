package engine

import (
	"errors"
	"fmt"
)

// Phase is the point a game has reached within a turn.
type Phase int

const (
	PhaseAwaitingRoll Phase = iota
	PhaseDiceAvailable
	PhaseDoublePending
	PhaseGameOver
	PhaseMatchOver
)

// String returns the display name of the phase.
func (p Phase) String() string {
	return [...]string{"awaiting-roll", "dice-available", "double-pending", "game-over", "match-over"}[p]
}

// GameResult describes how a finished game was scored.
type GameResult struct {
	Game      int
	Winner    Color
	Kind      WinKind
	CubeValue int
	Points    int
}

// GameState is the complete state of a game in progress. It is a value:
// transitions return a new GameState and leave the old one untouched, so a
// reader holding a GameState never observes a partial update.
type GameState struct {
	Board      Board
	Dice       Dice  // Remaining dice for the current turn
	Turn       Color // Side on roll
	Rolled     bool  // Dice already rolled this turn
	Cube       Cube
	Pending    Option[PendingDouble]
	Match      MatchState
	GameNumber int
	Version    uint64 // Incremented by every transition

	Result     Option[GameResult] // Set once the current game is decided
	LastResult Option[GameResult] // Result of the previous game in the match
}

// NewGame returns the state at the start of a match or session.
func NewGame(m MatchState, opener Color) GameState {
	return GameState{
		Board:      InitialBoard(),
		Turn:       opener,
		Cube:       CenteredCube(),
		Match:      m,
		GameNumber: 1,
	}
}

// NewGameState assembles a state from its parts and validates it.
func NewGameState(b Board, turn Color, dice Dice, cube Cube, pending Option[PendingDouble], m MatchState) (GameState, error) {
	gs := GameState{
		Board:      b,
		Dice:       dice,
		Turn:       turn,
		Rolled:     !dice.Empty(),
		Cube:       cube,
		Pending:    pending,
		Match:      m,
		GameNumber: 1,
	}
	if err := gs.Validate(); err != nil {
		return GameState{}, err
	}
	return gs, nil
}

// Validate checks every invariant of the state.
func (gs GameState) Validate() error {
	if err := gs.Board.Validate(); err != nil {
		return err
	}
	if !gs.Turn.Valid() {
		return &CorruptStateError{Reason: "no side on turn"}
	}
	if v := gs.Cube.Value; v < 1 || v > MaxCubeValue || v&(v-1) != 0 {
		return &CorruptStateError{Reason: fmt.Sprintf("cube value %d is not a power of two in [1,%d]", v, MaxCubeValue)}
	}
	if gs.Cube.Owner != NoColor && !gs.Cube.Owner.Valid() {
		return &CorruptStateError{Reason: "unknown cube owner"}
	}
	if len(gs.Dice) > 4 {
		return &CorruptStateError{Reason: fmt.Sprintf("%d dice remaining", len(gs.Dice))}
	}
	for _, d := range gs.Dice {
		if d < 1 || d > 6 {
			return &CorruptStateError{Reason: fmt.Sprintf("die value %d", d)}
		}
	}
	if pd, ok := gs.Pending.Get(); ok {
		if !gs.Dice.Empty() || gs.Rolled {
			return &CorruptStateError{Reason: "double pending after the roll"}
		}
		if pd.OfferedBy != gs.Turn {
			return &CorruptStateError{Reason: "double offered by the side not on turn"}
		}
	}
	if gs.Match.Length < 0 || gs.Match.Score.Of(White) < 0 || gs.Match.Score.Of(Black) < 0 {
		return &CorruptStateError{Reason: "negative match length or score"}
	}
	return nil
}

// MatchOver reports whether the match has been decided.
func (gs GameState) MatchOver() bool {
	return gs.Result.IsSome() && IsMatchComplete(gs.Match)
}

// Phase returns where the game stands.
func (gs GameState) Phase() Phase {
	switch {
	case gs.MatchOver():
		return PhaseMatchOver
	case gs.Result.IsSome():
		return PhaseGameOver
	case gs.Pending.IsSome():
		return PhaseDoublePending
	case !gs.Dice.Empty():
		return PhaseDiceAvailable
	}
	return PhaseAwaitingRoll
}

// checkOpen rejects actions on decided games.
func (gs GameState) checkOpen() error {
	if gs.MatchOver() {
		return ErrMatchOver
	}
	if gs.Result.IsSome() {
		return ErrGameOver
	}
	return nil
}

// checkAction rejects actions other than cube responses while a double is
// pending, and actions by the side not on turn.
func (gs GameState) checkAction(c Color, action string) error {
	if err := gs.checkOpen(); err != nil {
		return err
	}
	if gs.Pending.IsSome() {
		return &InvalidCubeActionError{Action: action, Color: c, Reason: "a double is pending"}
	}
	if c != gs.Turn {
		return &NotYourTurnError{Color: c, Turn: gs.Turn}
	}
	return nil
}

var (
	// ErrAlreadyRolled is returned when the side on turn rolls a second time.
	ErrAlreadyRolled = errors.New("dice already rolled this turn")
	// ErrGameInProgress is returned by NextGame before the game is decided.
	ErrGameInProgress = errors.New("game still in progress")
)
