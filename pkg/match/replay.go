package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/bgtable/pkg/engine"
)

// ErrEmptyGame is returned when replaying a game with no actions.
var ErrEmptyGame = errors.New("game record has no actions")

// Replay plays a recorded game through the rules engine from the starting
// position and returns the final state. The side of the first action opens.
// Rules that are not part of the record, such as the match length and the
// Crawford and Jacoby flags, come from rules.
//
// A turn that ends with dice left over, such as a forfeit, shows up in the
// record as the opponent's next action; the leftover dice are forfeited.
func Replay(g *Game, rules engine.MatchState) (engine.GameState, error) {
	if len(g.Actions) == 0 {
		return engine.GameState{}, ErrEmptyGame
	}
	m := rules
	m.Score = g.Score
	m.Crawford = g.Crawford
	gs := engine.NewGame(m, g.Actions[0].Player)
	gs.GameNumber = g.Number

	var err error
	for i, a := range g.Actions {
		switch a.Type {
		case ActionRoll:
			if gs, err = settle(gs, a.Player); err == nil {
				gs, _, err = engine.RollDice(gs, a.Player, a.Dice[0], a.Dice[1])
			}
		case ActionMove:
			for _, mv := range a.Moves {
				if gs, _, err = engine.PlayMove(gs, a.Player, mv.From, mv.To); err != nil {
					break
				}
			}
		case ActionDouble:
			if gs, err = settle(gs, a.Player); err == nil {
				gs, err = engine.OfferDouble(gs, a.Player, time.Time{})
			}
		case ActionTake:
			gs, err = engine.AcceptDouble(gs, a.Player)
		case ActionPass:
			gs, _, err = engine.RejectDouble(gs, a.Player)
		}
		if err != nil {
			return gs, fmt.Errorf("game %d action %d: %w", g.Number, i+1, err)
		}
	}
	return gs, nil
}

// settle forfeits dice the previous side left unplayed before next acts.
func settle(gs engine.GameState, next engine.Color) (engine.GameState, error) {
	if gs.Turn != next && !gs.Dice.Empty() {
		return engine.ForfeitDice(gs, gs.Turn)
	}
	return gs, nil
}
