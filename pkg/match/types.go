// Package match keeps the record of a match as it is played: rolls, checker
// moves, cube actions and results. Records can be written and read in the
// Jellyfish MAT text format and replayed through the rules engine.
package match

import (
	"slices"

	"github.com/yourusername/bgtable/pkg/engine"
)

// Match is the record of a complete match or money session.
type Match struct {
	White  string // Player 1 in MAT files
	Black  string // Player 2 in MAT files
	Length int    // 0 = money session
	Date   string // YYYY-MM-DD
	Event  string
	Place  string
	Games  []*Game
}

// Game is the record of one game.
type Game struct {
	Number   int
	Score    engine.Tally // Score at the start of the game
	Crawford bool
	Actions  []Action
	Result   engine.Option[engine.GameResult]
}

// ActionType is the kind of a recorded action.
type ActionType int

const (
	ActionRoll   ActionType = iota // Dice roll
	ActionMove                     // Checker moves played with the last roll
	ActionDouble                   // Double offered
	ActionTake                     // Double accepted
	ActionPass                     // Double refused
)

// Action is one entry in a game record.
type Action struct {
	Type   ActionType
	Player engine.Color
	Dice   [2]int        // ActionRoll
	Moves  []engine.Move // ActionMove
	Value  int           // ActionDouble: the cube value offered
}

// NewMatch returns an empty record.
func NewMatch(white, black string, length int) *Match {
	return &Match{
		White:  white,
		Black:  black,
		Length: length,
		Games:  make([]*Game, 0),
	}
}

// StartGame opens the record of the game described by gs.
func (m *Match) StartGame(gs engine.GameState) *Game {
	g := &Game{
		Number:   gs.GameNumber,
		Score:    gs.Match.Score,
		Crawford: gs.Match.Crawford,
		Actions:  make([]Action, 0),
	}
	m.Games = append(m.Games, g)
	return g
}

// Current returns the game being played, or nil before the first game.
func (m *Match) Current() *Game {
	if len(m.Games) == 0 {
		return nil
	}
	return m.Games[len(m.Games)-1]
}

// Clone returns a deep copy.
func (m *Match) Clone() *Match {
	c := *m
	c.Games = make([]*Game, len(m.Games))
	for i, g := range m.Games {
		cg := *g
		cg.Actions = make([]Action, len(g.Actions))
		for j, a := range g.Actions {
			a.Moves = slices.Clone(a.Moves)
			cg.Actions[j] = a
		}
		c.Games[i] = &cg
	}
	return &c
}

// AddRoll records a dice roll.
func (g *Game) AddRoll(c engine.Color, d1, d2 int) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionRoll,
		Player: c,
		Dice:   [2]int{d1, d2},
	})
}

// AddMove records one checker move. Consecutive moves by the same side after
// a roll are kept together in one ActionMove.
func (g *Game) AddMove(c engine.Color, mv engine.Move) {
	if n := len(g.Actions); n > 0 {
		last := &g.Actions[n-1]
		if last.Type == ActionMove && last.Player == c {
			last.Moves = append(last.Moves, mv)
			return
		}
	}
	g.Actions = append(g.Actions, Action{
		Type:   ActionMove,
		Player: c,
		Moves:  []engine.Move{mv},
	})
}

// AddDouble records a double to value.
func (g *Game) AddDouble(c engine.Color, value int) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionDouble,
		Player: c,
		Value:  value,
	})
}

// AddTake records an accepted double.
func (g *Game) AddTake(c engine.Color) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionTake,
		Player: c,
	})
}

// AddPass records a refused double.
func (g *Game) AddPass(c engine.Color) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionPass,
		Player: c,
	})
}

// Finish records the result of the game.
func (g *Game) Finish(res engine.GameResult) {
	g.Result = engine.Some(res)
}

// Finished reports whether the game has a result.
func (g *Game) Finished() bool {
	return g.Result.IsSome()
}
