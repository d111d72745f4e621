package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMatchOver is returned for any action after the match has been decided.
	ErrMatchOver = errors.New("match is over")
	// ErrGameOver is returned for actions on a finished game that has not
	// been replaced by the next one yet.
	ErrGameOver = errors.New("game is over")
)

// IllegalMoveError reports a move that does not match a remaining die, is
// blocked, or is otherwise not allowed.
type IllegalMoveError struct {
	Color  Color
	Move   Move
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s for %s: %s", e.Move, e.Color, e.Reason)
}

// NotYourTurnError reports an action by the side not on turn.
type NotYourTurnError struct {
	Color Color
	Turn  Color
}

func (e *NotYourTurnError) Error() string {
	return fmt.Sprintf("not %s's turn (%s is on roll)", e.Color, e.Turn)
}

// InvalidCubeActionError reports a cube action outside the allowed state, and
// any other action attempted while a double is pending.
type InvalidCubeActionError struct {
	Action string
	Color  Color
	Reason string
}

func (e *InvalidCubeActionError) Error() string {
	return fmt.Sprintf("%s by %s not allowed: %s", e.Action, e.Color, e.Reason)
}

// CorruptStateError reports a board or game state that breaks an invariant.
type CorruptStateError struct {
	Reason string
}

func (e *CorruptStateError) Error() string {
	return "corrupt state: " + e.Reason
}
