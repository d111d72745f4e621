package engine

import (
	"errors"
	"testing"
)

func TestOpeningScenario(t *testing.T) {
	gs := NewGame(NewMatch(0, false, false), Black)
	gs, out, err := RollDice(gs, Black, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out.Deadlock || gs.Phase() != PhaseDiceAvailable {
		t.Fatalf("after roll: %+v, phase %s", out, gs.Phase())
	}
	if len(LegalDestinations(gs.Board, Black, gs.Dice)) == 0 {
		t.Fatal("no legal destinations for 3-1")
	}

	before := gs
	gs, out, err = PlayMove(gs, Black, 23, 20)
	if err != nil {
		t.Fatal(err)
	}
	if out.Move.Die != 3 {
		t.Errorf("used die %d, want 3", out.Move.Die)
	}
	if gs.Board.Points[20] != (Point{Black, 1}) {
		t.Errorf("point 20 = %v, want one black checker", gs.Board.Points[20])
	}
	if gs.Board.Points[23].Count != 1 {
		t.Errorf("point 23 count = %d, want 1", gs.Board.Points[23].Count)
	}
	if len(gs.Dice) != 1 || gs.Dice[0] != 1 || gs.Turn != Black {
		t.Errorf("dice = %v turn = %s, want [1] black", gs.Dice, gs.Turn)
	}
	if gs.Version <= before.Version {
		t.Error("Version did not advance")
	}
	if before.Board.Points[23].Count != 2 {
		t.Error("PlayMove modified its input state")
	}
}

func TestRollDiceGuards(t *testing.T) {
	gs := NewGame(NewMatch(0, false, false), White)

	var nyt *NotYourTurnError
	if _, _, err := RollDice(gs, Black, 3, 1); !errors.As(err, &nyt) {
		t.Errorf("RollDice off turn = %v, want NotYourTurnError", err)
	}
	gs, _, _ = RollDice(gs, White, 6, 6)
	if len(gs.Dice) != 4 {
		t.Fatalf("double gave %d dice", len(gs.Dice))
	}
	if _, _, err := RollDice(gs, White, 2, 1); !errors.Is(err, ErrAlreadyRolled) {
		t.Errorf("second roll = %v, want ErrAlreadyRolled", err)
	}

	// Each move consumes exactly one die of a double
	gs, _, err := PlayMove(gs, White, 0, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(gs.Dice) != 3 {
		t.Errorf("dice after one move = %v, want three sixes", gs.Dice)
	}
}

func TestPlayMoveRejections(t *testing.T) {
	gs := NewGame(NewMatch(0, false, false), White)
	var ime *IllegalMoveError
	if _, _, err := PlayMove(gs, White, 0, 3); !errors.As(err, &ime) {
		t.Errorf("move before rolling = %v, want IllegalMoveError", err)
	}

	gs, _, _ = RollDice(gs, White, 3, 1)
	after, _, err := PlayMove(gs, White, 11, 12)
	if !errors.As(err, &ime) {
		t.Fatalf("blocked move = %v, want IllegalMoveError", err)
	}
	if after.Version != gs.Version {
		t.Error("rejected move changed the state")
	}
	if _, _, err := PlayMove(gs, White, 0, 5); !errors.As(err, &ime) {
		t.Errorf("distance without a die = %v, want IllegalMoveError", err)
	}
	var nyt *NotYourTurnError
	if _, _, err := PlayMove(gs, Black, 23, 20); !errors.As(err, &nyt) {
		t.Errorf("move off turn = %v, want NotYourTurnError", err)
	}
}

func TestDeadlockOnRoll(t *testing.T) {
	b := whiteOnBar()
	b.Points[5].Count -= 4
	b.Points[2] = Point{Black, 2}
	b.Points[4] = Point{Black, 2}
	gs, err := NewGameState(b, White, nil, CenteredCube(), None[PendingDouble](), NewMatch(0, false, false))
	if err != nil {
		t.Fatal(err)
	}

	gs, out, err := RollDice(gs, White, 3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Deadlock || !out.Handoff {
		t.Errorf("outcome = %+v, want deadlock handoff", out)
	}
	if gs.Turn != Black || !gs.Dice.Empty() || gs.Rolled {
		t.Errorf("turn %s dice %v rolled %v, want black to roll", gs.Turn, gs.Dice, gs.Rolled)
	}
}

func TestDeadlockAfterMove(t *testing.T) {
	b := InitialBoard()
	b.Points[0] = Point{}
	b.Bar = b.Bar.With(White, 2)
	b.Points[5].Count -= 2
	b.Points[4] = Point{Black, 2}
	gs, err := NewGameState(b, White, nil, CenteredCube(), None[PendingDouble](), NewMatch(0, false, false))
	if err != nil {
		t.Fatal(err)
	}

	gs, out, err := RollDice(gs, White, 3, 5)
	if err != nil || out.Deadlock {
		t.Fatalf("RollDice() = %+v, %v", out, err)
	}
	gs, out, err = PlayMove(gs, White, Bar, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Deadlock || gs.Turn != Black || !gs.Dice.Empty() {
		t.Errorf("outcome %+v turn %s dice %v, want deadlock handoff to black", out, gs.Turn, gs.Dice)
	}
}

func TestForfeitDice(t *testing.T) {
	gs := NewGame(NewMatch(0, false, false), White)
	var ime *IllegalMoveError
	if _, err := ForfeitDice(gs, White); !errors.As(err, &ime) {
		t.Errorf("ForfeitDice without dice = %v, want IllegalMoveError", err)
	}
	gs, _, _ = RollDice(gs, White, 4, 2)
	gs, err := ForfeitDice(gs, White)
	if err != nil {
		t.Fatal(err)
	}
	if gs.Turn != Black || !gs.Dice.Empty() {
		t.Errorf("turn %s dice %v after forfeit", gs.Turn, gs.Dice)
	}
}

func lastCheckerBoard() Board {
	var b Board
	b.Points[23] = Point{White, 1}
	b.Off = b.Off.With(White, 14)
	b.Points[5] = Point{Black, 15}
	return b
}

func TestMoneyGameContinues(t *testing.T) {
	gs, err := NewGameState(lastCheckerBoard(), White, nil, CenteredCube(), None[PendingDouble](), NewMatch(0, false, false))
	if err != nil {
		t.Fatal(err)
	}
	gs, _, _ = RollDice(gs, White, 2, 1)
	gs, out, err := PlayMove(gs, White, 23, Off)
	if err != nil {
		t.Fatal(err)
	}
	res, ok := out.Result.Get()
	if !ok {
		t.Fatal("bearing off the last checker did not end the game")
	}
	if res.Winner != White || res.Kind != WinGammon || res.Points != 2 {
		t.Errorf("result = %+v, want white gammon for 2", res)
	}
	if gs.MatchOver() {
		t.Fatal("money session reported match over")
	}

	next, err := NextGame(gs, Black)
	if err != nil {
		t.Fatal(err)
	}
	if next.GameNumber != 2 || next.Match.Score.Of(White) != 2 || next.Turn != Black {
		t.Errorf("next game = #%d score %v turn %s", next.GameNumber, next.Match.Score, next.Turn)
	}
	if next.Board != InitialBoard() || next.Cube != CenteredCube() {
		t.Error("next game did not reset board and cube")
	}
	if last, ok := next.LastResult.Get(); !ok || last != res {
		t.Errorf("LastResult = %+v, %v", last, ok)
	}
	if _, err := NextGame(next, White); !errors.Is(err, ErrGameInProgress) {
		t.Errorf("NextGame mid-game = %v, want ErrGameInProgress", err)
	}
}

func TestMatchEndsAtLength(t *testing.T) {
	gs := NewGame(NewMatch(5, false, false), White)
	gs.Match.Score = gs.Match.Score.With(White, 4)
	gs, _ = OfferDouble(gs, White, epoch)
	gs, _, err := RejectDouble(gs, Black)
	if err != nil {
		t.Fatal(err)
	}
	if !gs.MatchOver() || gs.Phase() != PhaseMatchOver {
		t.Fatalf("phase %s, want match-over", gs.Phase())
	}
	if w, ok := MatchWinner(gs.Match); !ok || w != White {
		t.Errorf("MatchWinner() = %s, %v", w, ok)
	}
	if _, err := NextGame(gs, Black); !errors.Is(err, ErrMatchOver) {
		t.Errorf("NextGame after the match = %v, want ErrMatchOver", err)
	}
	if _, _, err := RollDice(gs, Black, 1, 2); !errors.Is(err, ErrMatchOver) {
		t.Errorf("RollDice after the match = %v, want ErrMatchOver", err)
	}
}

func TestValidateGameState(t *testing.T) {
	good := NewGame(NewMatch(0, false, false), White)
	tests := []struct {
		name   string
		mutate func(*GameState)
	}{
		{"no turn", func(gs *GameState) { gs.Turn = NoColor }},
		{"odd cube", func(gs *GameState) { gs.Cube.Value = 3 }},
		{"cube too high", func(gs *GameState) { gs.Cube.Value = 128 }},
		{"die out of range", func(gs *GameState) { gs.Dice = Dice{7} }},
		{"pending after roll", func(gs *GameState) {
			gs.Dice = Dice{3, 1}
			gs.Pending = Some(PendingDouble{OfferedBy: White})
		}},
		{"corrupt board", func(gs *GameState) { gs.Board.Points[0].Count = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs := good
			tt.mutate(&gs)
			var cse *CorruptStateError
			if err := gs.Validate(); !errors.As(err, &cse) {
				t.Errorf("Validate() = %v, want CorruptStateError", err)
			}
		})
	}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate(new game) = %v", err)
	}
}
