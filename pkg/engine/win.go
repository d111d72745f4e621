package engine

// WinKind classifies how a game ended.
type WinKind int

const (
	WinNone WinKind = iota
	WinSimple
	WinGammon
	WinBackgammon
	WinDropped // Double refused
)

// String returns the display name of the win kind.
func (k WinKind) String() string {
	return [...]string{"none", "simple", "gammon", "backgammon", "dropped"}[k]
}

// Multiplier returns the cube multiplier for the win kind.
func (k WinKind) Multiplier() int {
	switch k {
	case WinSimple, WinDropped:
		return 1
	case WinGammon:
		return 2
	case WinBackgammon:
		return 3
	}
	return 0
}

// HasWon reports whether c has borne off all fifteen checkers.
func HasWon(b Board, c Color) bool {
	return b.Off.Of(c) == NumCheckers
}

// ClassifyWin grades the win of winner on board b. The loser is gammoned when
// no checker is off, and backgammoned when additionally a checker remains on
// the bar or inside the winner's home quadrant.
func ClassifyWin(b Board, winner Color) WinKind {
	if !HasWon(b, winner) {
		return WinNone
	}
	loser := winner.Opponent()
	if b.Off.Of(loser) > 0 {
		return WinSimple
	}
	if b.Bar.Of(loser) > 0 {
		return WinBackgammon
	}
	lo, hi := winner.HomeRange()
	for p := lo; p <= hi; p++ {
		if b.Points[p].Owner == loser {
			return WinBackgammon
		}
	}
	return WinGammon
}
