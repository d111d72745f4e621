package engine

import (
	"errors"
	"testing"
)

func TestInitialBoard(t *testing.T) {
	b := InitialBoard()
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	for _, c := range []Color{White, Black} {
		if n := b.Count(c); n != NumCheckers {
			t.Errorf("Count(%s) = %d, want %d", c, n, NumCheckers)
		}
		if p := b.Pips(c); p != 167 {
			t.Errorf("Pips(%s) = %d, want 167", c, p)
		}
		if b.AllHome(c) {
			t.Errorf("AllHome(%s) = true at the start", c)
		}
	}
	if b.Points[23] != (Point{Black, 2}) || b.Points[0] != (Point{White, 2}) {
		t.Errorf("back checkers misplaced: 23=%v 0=%v", b.Points[23], b.Points[0])
	}
}

func TestValidateRejectsCorruptBoards(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Board)
	}{
		{"missing checker", func(b *Board) { b.Points[0].Count = 1 }},
		{"extra bar checker", func(b *Board) { b.Bar = b.Bar.With(White, 1) }},
		{"owned empty point", func(b *Board) { b.Points[3] = Point{Black, 0} }},
		{"ownerless checkers", func(b *Board) { b.Points[3] = Point{NoColor, 2} }},
		{"negative count", func(b *Board) { b.Points[3] = Point{White, -1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := InitialBoard()
			tt.mutate(&b)
			var cse *CorruptStateError
			if err := b.Validate(); !errors.As(err, &cse) {
				t.Errorf("Validate() = %v, want CorruptStateError", err)
			}
		})
	}
}

func TestColorGeometry(t *testing.T) {
	if White.Direction() != 1 || Black.Direction() != -1 {
		t.Errorf("directions = %d, %d", White.Direction(), Black.Direction())
	}
	if White.Opponent() != Black || Black.Opponent() != White || NoColor.Opponent() != NoColor {
		t.Error("Opponent mismatch")
	}
	if d := White.BearOffDistance(18); d != 6 {
		t.Errorf("White.BearOffDistance(18) = %d, want 6", d)
	}
	if d := Black.BearOffDistance(0); d != 1 {
		t.Errorf("Black.BearOffDistance(0) = %d, want 1", d)
	}
	if !Black.InHome(5) || Black.InHome(6) || !White.InHome(18) || White.InHome(17) {
		t.Error("InHome boundaries wrong")
	}
}

func TestFarthest(t *testing.T) {
	b := InitialBoard()
	if p, ok := b.Farthest(White); !ok || p != 0 {
		t.Errorf("Farthest(White) = %d, %v, want 0", p, ok)
	}
	if p, ok := b.Farthest(Black); !ok || p != 23 {
		t.Errorf("Farthest(Black) = %d, %v, want 23", p, ok)
	}
}
