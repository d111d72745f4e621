package external

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/bgtable/pkg/engine"
)

// FIBSBoard represents a parsed FIBS board string.
// See: http://www.fibs.com/fibs_interface.html#board_state
type FIBSBoard struct {
	Player1      string  // Your name
	Player2      string  // Opponent's name
	MatchLength  int     // Match length (0 = unlimited)
	Score1       int     // Your score
	Score2       int     // Opponent's score
	Board        [26]int // Signed counts; the sign is the owner's colour
	Turn         int     // Colour on turn, 0 when the game is over
	Dice         [2]int  // Your dice (0,0 if not rolled)
	OppDice      [2]int  // Opponent's dice
	Cube         int     // Cube value
	CanDouble    bool    // Can you double?
	OppCanDouble bool    // Can opponent double?
	Doubled      bool    // Has opponent doubled?
	Color        int     // Your colour (1 or -1)
	Direction    int     // 1 if you move from 1 to 24, -1 otherwise
	OnHome       [2]int  // Checkers borne off, you then opponent
	OnBar        [2]int  // Checkers on the bar, you then opponent
	Crawford     bool    // Is this Crawford game?

	fields int
}

// ParseFIBSBoard parses a FIBS board string.
// Format: board:player1:player2:matchlen:score1:score2:board[26]:turn:dice[4]:cube:...
func ParseFIBSBoard(s string) (*FIBSBoard, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "board:")

	parts := strings.Split(s, ":")
	if len(parts) < 32 {
		return nil, fmt.Errorf("invalid FIBS board: expected at least 32 fields, got %d", len(parts))
	}

	fb := &FIBSBoard{fields: len(parts)}
	ints := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		n, _ := strconv.Atoi(strings.TrimSpace(parts[i]))
		return n
	}

	fb.Player1 = parts[0]
	fb.Player2 = parts[1]
	fb.MatchLength = ints(2)
	fb.Score1 = ints(3)
	fb.Score2 = ints(4)
	for i := range fb.Board {
		n, err := strconv.Atoi(strings.TrimSpace(parts[5+i]))
		if err != nil {
			return nil, fmt.Errorf("invalid FIBS board: position %d: %w", i, err)
		}
		fb.Board[i] = n
	}
	fb.Turn = ints(31)
	fb.Dice = [2]int{ints(32), ints(33)}
	fb.OppDice = [2]int{ints(34), ints(35)}
	fb.Cube = ints(36)
	fb.CanDouble = ints(37) == 1
	fb.OppCanDouble = ints(38) == 1
	fb.Doubled = ints(39) == 1
	fb.Color = ints(40)
	fb.Direction = ints(41)
	fb.OnHome = [2]int{ints(44), ints(45)}
	fb.OnBar = [2]int{ints(46), ints(47)}
	fb.Crawford = ints(50) == 1

	if fb.Color == 0 {
		fb.Color = 1
	}
	if fb.Direction == 0 {
		fb.Direction = 1
	}
	return fb, nil
}

// Side returns the engine color of the player the board was sent to.
// Whoever moves from 1 to 24 plays White.
func (fb *FIBSBoard) Side() engine.Color {
	if fb.Direction < 0 {
		return engine.Black
	}
	return engine.White
}

// EngineBoard converts the checker layout. FIBS position i (1-24) is engine
// index i-1. Bar and borne-off counts come from the trailing fields when the
// string carries them and are otherwise inferred.
func (fb *FIBSBoard) EngineBoard() (engine.Board, error) {
	you := fb.Side()
	opp := you.Opponent()
	owner := func(n int) engine.Color {
		if (n > 0) == (fb.Color > 0) {
			return you
		}
		return opp
	}

	var b engine.Board
	for i := 1; i <= engine.NumPoints; i++ {
		n := fb.Board[i]
		if n == 0 {
			continue
		}
		b.Points[i-1] = engine.Point{Owner: owner(n), Count: abs(n)}
	}

	if fb.fields > 47 {
		b.Bar = b.Bar.With(you, fb.OnBar[0]).With(opp, fb.OnBar[1])
	} else {
		// The two end positions hold the bars
		for _, i := range []int{0, 25} {
			if n := fb.Board[i]; n != 0 {
				c := owner(n)
				b.Bar = b.Bar.With(c, b.Bar.Of(c)+abs(n))
			}
		}
	}
	if fb.fields > 45 {
		b.Off = b.Off.With(you, fb.OnHome[0]).With(opp, fb.OnHome[1])
	} else {
		for _, c := range []engine.Color{you, opp} {
			b.Off = b.Off.With(c, engine.NumCheckers-b.OnPoints(c)-b.Bar.Of(c))
		}
	}

	if err := b.Validate(); err != nil {
		return engine.Board{}, err
	}
	return b, nil
}

// GameState converts the whole board message.
func (fb *FIBSBoard) GameState() (engine.GameState, error) {
	b, err := fb.EngineBoard()
	if err != nil {
		return engine.GameState{}, err
	}
	you := fb.Side()
	opp := you.Opponent()

	turn := opp
	if fb.Turn == fb.Color {
		turn = you
	}

	var dice engine.Dice
	roll := fb.OppDice
	if turn == you {
		roll = fb.Dice
	}
	if roll[0] > 0 && roll[1] > 0 {
		if dice, err = engine.NewRoll(roll[0], roll[1]); err != nil {
			return engine.GameState{}, &engine.CorruptStateError{Reason: err.Error()}
		}
	}

	cube := engine.Cube{Value: max(fb.Cube, 1)}
	switch {
	case fb.CanDouble && !fb.OppCanDouble:
		cube.Owner = you
	case fb.OppCanDouble && !fb.CanDouble:
		cube.Owner = opp
	}

	pending := engine.None[engine.PendingDouble]()
	if fb.Doubled {
		pending = engine.Some(engine.PendingDouble{OfferedBy: opp})
		turn = opp
		dice = nil
	}

	m := engine.NewMatch(fb.MatchLength, fb.MatchLength > 0, false)
	m.Score = m.Score.With(you, fb.Score1).With(opp, fb.Score2)
	m.Crawford = fb.Crawford

	return engine.NewGameState(b, turn, dice, cube, pending, m)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
