package engine

// Outcome describes the side effects of a roll or move.
type Outcome struct {
	Move     Move
	Hit      bool
	BoreOff  bool
	Deadlock bool // Remaining dice were cleared because none could be played
	Handoff  bool // Turn passed to the opponent
	Result   Option[GameResult]
}

// RollDice gives the side on turn a fresh roll. If none of the new dice can be
// played the turn passes immediately.
func RollDice(gs GameState, c Color, d1, d2 int) (GameState, Outcome, error) {
	if err := CheckRoll(gs, c); err != nil {
		return gs, Outcome{}, err
	}
	dice, err := NewRoll(d1, d2)
	if err != nil {
		return gs, Outcome{}, err
	}

	gs.Dice = dice
	gs.Rolled = true
	gs.Version++

	var out Outcome
	if !HasLegalMove(gs.Board, c, dice) {
		gs = handoff(gs)
		out.Deadlock = true
		out.Handoff = true
	}
	return gs, out, nil
}

// CheckRoll reports why c may not roll now, or nil if it may.
func CheckRoll(gs GameState, c Color) error {
	if err := gs.checkAction(c, "roll"); err != nil {
		return err
	}
	if gs.Rolled || !gs.Dice.Empty() {
		return ErrAlreadyRolled
	}
	return nil
}

// PlayMove moves one checker of c from one point to another. The die is chosen
// by value: the exact distance when available, otherwise the smallest die that
// legally bears the checker off. Exactly one die is consumed.
//
// The win check runs after every single move.
func PlayMove(gs GameState, c Color, from, to int) (GameState, Outcome, error) {
	if err := gs.checkAction(c, "move"); err != nil {
		return gs, Outcome{}, err
	}
	if gs.Dice.Empty() {
		return gs, Outcome{}, &IllegalMoveError{Color: c, Move: Move{From: from, To: to}, Reason: "no dice to move with"}
	}

	m, ok := pickDie(gs.Board, c, gs.Dice, from, to)
	if !ok {
		return gs, Outcome{}, &IllegalMoveError{Color: c, Move: m, Reason: explainIllegal(gs.Board, c, m)}
	}

	board, hit := gs.Board.apply(c, m)
	dice, _ := gs.Dice.Consume(m.Die)
	gs.Board = board
	gs.Dice = dice
	gs.Version++

	out := Outcome{Move: m, Hit: hit, BoreOff: m.To == Off}
	if HasWon(board, c) {
		gs = finishGame(gs, c, ClassifyWin(board, c))
		out.Result = gs.Result
		return gs, out, nil
	}

	switch {
	case dice.Empty():
		gs = handoff(gs)
		out.Handoff = true
	case !HasLegalMove(board, c, dice):
		// Nothing playable with what is left: never leave the turn stuck
		gs = handoff(gs)
		out.Handoff = true
		out.Deadlock = true
	}
	return gs, out, nil
}

// ForfeitDice clears the remaining dice of the side on turn and hands off.
func ForfeitDice(gs GameState, c Color) (GameState, error) {
	if err := gs.checkAction(c, "forfeit"); err != nil {
		return gs, err
	}
	if gs.Dice.Empty() {
		return gs, &IllegalMoveError{Color: c, Reason: "no dice to forfeit"}
	}
	gs = handoff(gs)
	gs.Version++
	return gs, nil
}

// NextGame starts the next game of the match after a decided game. Score and
// match bookkeeping carry over; board, cube and dice are reset.
func NextGame(gs GameState, opener Color) (GameState, error) {
	res, ok := gs.Result.Get()
	if !ok {
		return gs, ErrGameInProgress
	}
	if gs.MatchOver() {
		return gs, ErrMatchOver
	}
	return GameState{
		Board:      InitialBoard(),
		Turn:       opener,
		Cube:       CenteredCube(),
		Match:      gs.Match.Advance(),
		GameNumber: gs.GameNumber + 1,
		Version:    gs.Version + 1,
		LastResult: Some(res),
	}, nil
}

// pickDie finds the die that turns from/to into a legal move, trying the
// remaining values in ascending order. On failure it returns the move with the
// die that best explains the rejection.
func pickDie(b Board, c Color, dice Dice, from, to int) (Move, bool) {
	values := dice.Unique()
	for _, v := range values {
		m := Move{From: from, To: to, Die: v}
		if IsLegal(b, c, m) {
			return m, true
		}
	}
	guess := Move{From: from, To: to, Die: values[0]}
	if d := distance(c, from, to); dice.contains(d) {
		guess.Die = d
	}
	return guess, false
}

// distance is the number of pips between from and to in c's direction.
func distance(c Color, from, to int) int {
	origin := from
	if from == Bar {
		origin = c.entryOrigin()
	}
	dest := to
	if to == Off {
		dest = NumPoints
		if c == Black {
			dest = -1
		}
	}
	return (dest - origin) * c.Direction()
}

func handoff(gs GameState) GameState {
	gs.Dice = nil
	gs.Rolled = false
	gs.Turn = gs.Turn.Opponent()
	return gs
}

// finishGame scores the game for winner and marks the state terminal.
func finishGame(gs GameState, winner Color, kind WinKind) GameState {
	points := GamePoints(gs.Match, gs.Cube, kind)
	gs.Match = ApplyScore(gs.Match, winner, points)
	gs.Result = Some(GameResult{
		Game:      gs.GameNumber,
		Winner:    winner,
		Kind:      kind,
		CubeValue: gs.Cube.Value,
		Points:    points,
	})
	gs.Dice = nil
	gs.Rolled = false
	gs.Pending = None[PendingDouble]()
	return gs
}
