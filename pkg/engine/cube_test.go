package engine

import (
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func moneyGame() GameState {
	return NewGame(NewMatch(0, false, false), White)
}

func TestCubeDoublesToMaximum(t *testing.T) {
	gs := moneyGame()
	want := 1
	for gs.Cube.Value < MaxCubeValue {
		offerer := gs.Turn
		var err error
		if gs, err = OfferDouble(gs, offerer, epoch); err != nil {
			t.Fatalf("OfferDouble at %d: %v", gs.Cube.Value, err)
		}
		if gs.Cube.Value != want {
			t.Fatalf("cube changed before the take: %d", gs.Cube.Value)
		}
		if gs, err = AcceptDouble(gs, offerer.Opponent()); err != nil {
			t.Fatalf("AcceptDouble: %v", err)
		}
		want *= 2
		if gs.Cube.Value != want || gs.Cube.Owner != offerer.Opponent() {
			t.Fatalf("cube = %+v, want %d owned by %s", gs.Cube, want, offerer.Opponent())
		}
		// Hand the turn to the new owner so they can redouble
		gs.Turn = gs.Cube.Owner
	}

	if CanOfferDouble(gs.Cube, gs.Turn, false, gs.Match) {
		t.Error("CanOfferDouble() = true at the maximum")
	}
	_, err := OfferDouble(gs, gs.Turn, epoch)
	var ice *InvalidCubeActionError
	if !errors.As(err, &ice) {
		t.Errorf("OfferDouble at 64 = %v, want InvalidCubeActionError", err)
	}
}

func TestCanOfferDouble(t *testing.T) {
	money := NewMatch(0, false, false)
	crawford := NewMatch(5, true, false)
	crawford.Crawford = true

	tests := []struct {
		name   string
		cube   Cube
		who    Color
		rolled bool
		m      MatchState
		want   bool
	}{
		{"centered", CenteredCube(), White, false, money, true},
		{"owner", Cube{2, White}, White, false, money, true},
		{"opponent owns", Cube{2, Black}, White, false, money, false},
		{"after rolling", CenteredCube(), White, true, money, false},
		{"at maximum", Cube{64, White}, White, false, money, false},
		{"crawford game", CenteredCube(), White, false, crawford, false},
		{"no side", CenteredCube(), NoColor, false, money, false},
	}
	for _, tt := range tests {
		if got := CanOfferDouble(tt.cube, tt.who, tt.rolled, tt.m); got != tt.want {
			t.Errorf("%s: CanOfferDouble() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPendingDoubleBlocksOtherActions(t *testing.T) {
	gs, err := OfferDouble(moneyGame(), White, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if gs.Phase() != PhaseDoublePending {
		t.Errorf("Phase() = %s, want double-pending", gs.Phase())
	}

	var ice *InvalidCubeActionError
	after, _, err := RollDice(gs, White, 3, 1)
	if !errors.As(err, &ice) {
		t.Errorf("RollDice while pending = %v, want InvalidCubeActionError", err)
	}
	if after.Version != gs.Version {
		t.Error("rejected roll changed the state")
	}
	if _, err := OfferDouble(gs, White, epoch); !errors.As(err, &ice) {
		t.Errorf("second OfferDouble = %v, want InvalidCubeActionError", err)
	}
	if _, err := AcceptDouble(gs, White); !errors.As(err, &ice) {
		t.Errorf("offerer accepting own double = %v, want InvalidCubeActionError", err)
	}
	if _, err := AcceptDouble(moneyGame(), Black); !errors.As(err, &ice) {
		t.Errorf("AcceptDouble without a pending double = %v, want InvalidCubeActionError", err)
	}
}

func TestOfferAfterRollRejected(t *testing.T) {
	gs, _, err := RollDice(moneyGame(), White, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	var ice *InvalidCubeActionError
	if _, err := OfferDouble(gs, White, epoch); !errors.As(err, &ice) {
		t.Errorf("OfferDouble after rolling = %v, want InvalidCubeActionError", err)
	}
	var nyt *NotYourTurnError
	if _, err := OfferDouble(moneyGame(), Black, epoch); !errors.As(err, &nyt) {
		t.Errorf("OfferDouble off turn = %v, want NotYourTurnError", err)
	}
}

// Offer, take, play to the other side, redouble, drop.
func TestDoubleTakeThenDrop(t *testing.T) {
	gs, err := OfferDouble(moneyGame(), White, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if gs, err = AcceptDouble(gs, Black); err != nil {
		t.Fatal(err)
	}
	if gs.Cube != (Cube{2, Black}) {
		t.Fatalf("cube = %+v, want 2 owned by black", gs.Cube)
	}

	gs, _, err = RollDice(gs, White, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if gs, _, err = PlayMove(gs, White, 16, 19); err != nil {
		t.Fatal(err)
	}
	if gs, _, err = PlayMove(gs, White, 18, 19); err != nil {
		t.Fatal(err)
	}
	if gs.Turn != Black {
		t.Fatalf("Turn = %s after both dice, want black", gs.Turn)
	}

	if gs, err = OfferDouble(gs, Black, epoch); err != nil {
		t.Fatal(err)
	}
	gs, res, err := RejectDouble(gs, White)
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != Black || res.Kind != WinDropped || res.Points != 2 {
		t.Errorf("result = %+v, want black dropped for 2", res)
	}
	if gs.Match.Score.Of(Black) != 2 {
		t.Errorf("black score = %d, want 2", gs.Match.Score.Of(Black))
	}
	if gs.Phase() != PhaseGameOver {
		t.Errorf("Phase() = %s, want game-over", gs.Phase())
	}
	if _, _, err := RollDice(gs, Black, 1, 2); !errors.Is(err, ErrGameOver) {
		t.Errorf("RollDice after the game = %v, want ErrGameOver", err)
	}
}

func TestCrawfordGame(t *testing.T) {
	gs := NewGame(NewMatch(3, true, false), White)
	gs.Match.Score = gs.Match.Score.With(White, 1)

	gs, _ = OfferDouble(gs, White, epoch)
	gs, _, err := RejectDouble(gs, Black)
	if err != nil {
		t.Fatal(err)
	}
	if gs.Match.Score.Of(White) != 2 {
		t.Fatalf("white score = %d, want 2", gs.Match.Score.Of(White))
	}

	gs, err = NextGame(gs, Black)
	if err != nil {
		t.Fatal(err)
	}
	if !gs.Match.Crawford {
		t.Fatal("game after reaching match point is not the Crawford game")
	}
	var ice *InvalidCubeActionError
	if _, err := OfferDouble(gs, Black, epoch); !errors.As(err, &ice) {
		t.Errorf("OfferDouble in the Crawford game = %v, want InvalidCubeActionError", err)
	}

	next := gs.Match.Advance()
	if next.Crawford || !next.PostCrawford {
		t.Errorf("after Crawford: %+v", next)
	}
}

func TestJacobyRule(t *testing.T) {
	m := NewMatch(0, false, true)
	if p := GamePoints(m, CenteredCube(), WinGammon); p != 1 {
		t.Errorf("centered gammon = %d, want 1", p)
	}
	if p := GamePoints(m, Cube{2, White}, WinGammon); p != 4 {
		t.Errorf("turned cube gammon = %d, want 4", p)
	}
	if NewMatch(5, false, true).Jacoby {
		t.Error("Jacoby enabled in match play")
	}
}
