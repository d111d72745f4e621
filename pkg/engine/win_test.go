package engine

import "testing"

func TestClassifyWin(t *testing.T) {
	won := func(setup func(*Board)) Board {
		var b Board
		b.Off = b.Off.With(White, NumCheckers)
		setup(&b)
		return b
	}
	tests := []struct {
		name  string
		board Board
		want  WinKind
	}{
		{"loser bore off", won(func(b *Board) {
			b.Off = b.Off.With(Black, 1)
			b.Points[5] = Point{Black, 14}
		}), WinSimple},
		{"gammon", won(func(b *Board) {
			b.Points[5] = Point{Black, 15}
		}), WinGammon},
		{"backgammon from the bar", won(func(b *Board) {
			b.Bar = b.Bar.With(Black, 1)
			b.Points[5] = Point{Black, 14}
		}), WinBackgammon},
		{"backgammon in winner's home", won(func(b *Board) {
			b.Points[20] = Point{Black, 1}
			b.Points[5] = Point{Black, 14}
		}), WinBackgammon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.board.Validate(); err != nil {
				t.Fatal(err)
			}
			if !HasWon(tt.board, White) {
				t.Fatal("HasWon() = false")
			}
			if got := ClassifyWin(tt.board, White); got != tt.want {
				t.Errorf("ClassifyWin() = %s, want %s", got, tt.want)
			}
		})
	}

	if k := ClassifyWin(InitialBoard(), White); k != WinNone {
		t.Errorf("ClassifyWin(initial) = %s, want none", k)
	}
}

func TestHasWonScenario(t *testing.T) {
	var b Board
	b.Off = b.Off.With(White, NumCheckers)
	if !HasWon(b, White) {
		t.Error("HasWon() = false with fifteen checkers off")
	}
	if HasWon(b, Black) {
		t.Error("HasWon(Black) = true")
	}
}

func TestPointsForWin(t *testing.T) {
	tests := []struct {
		kind WinKind
		cube int
		want int
	}{
		{WinSimple, 1, 1},
		{WinGammon, 4, 8},
		{WinBackgammon, 2, 6},
		{WinDropped, 8, 8},
	}
	for _, tt := range tests {
		if got := PointsForWin(tt.kind, tt.cube); got != tt.want {
			t.Errorf("PointsForWin(%s, %d) = %d, want %d", tt.kind, tt.cube, got, tt.want)
		}
	}
}
