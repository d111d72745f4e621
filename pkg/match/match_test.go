package match

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/yourusername/bgtable/pkg/engine"
)

// openingGame is 31: 8/5 6/5 for White, 52: 24/22 13/8 for Black, then a
// double by White that Black drops.
func openingGame() *Match {
	m := NewMatch("alice", "bob", 7)
	g := m.StartGame(engine.NewGame(engine.NewMatch(7, true, false), engine.White))
	g.AddRoll(engine.White, 3, 1)
	g.AddMove(engine.White, engine.Move{From: 16, To: 19, Die: 3})
	g.AddMove(engine.White, engine.Move{From: 18, To: 19, Die: 1})
	g.AddRoll(engine.Black, 5, 2)
	g.AddMove(engine.Black, engine.Move{From: 23, To: 21, Die: 2})
	g.AddMove(engine.Black, engine.Move{From: 12, To: 7, Die: 5})
	g.AddDouble(engine.White, 2)
	g.AddPass(engine.Black)
	g.Finish(engine.GameResult{Game: 1, Winner: engine.White, Kind: engine.WinDropped, CubeValue: 1, Points: 1})
	return m
}

func TestNewMatch(t *testing.T) {
	m := NewMatch("alice", "bob", 7)
	if m.White != "alice" || m.Black != "bob" {
		t.Errorf("players = %q/%q, want alice/bob", m.White, m.Black)
	}
	if m.Length != 7 {
		t.Errorf("Length = %d, want 7", m.Length)
	}
	if m.Current() != nil {
		t.Error("Current() before the first game should be nil")
	}
}

func TestStartGame(t *testing.T) {
	gs := engine.NewGame(engine.NewMatch(5, true, false), engine.Black)
	gs.GameNumber = 3
	gs.Match.Score = engine.Tally{4, 2}
	gs.Match.Crawford = true

	m := NewMatch("a", "b", 5)
	g := m.StartGame(gs)
	if m.Current() != g {
		t.Fatal("Current() is not the started game")
	}
	if g.Number != 3 || g.Score != (engine.Tally{4, 2}) || !g.Crawford {
		t.Errorf("game = %+v", g)
	}
	if g.Finished() {
		t.Error("new game should not be finished")
	}
}

func TestAddMoveGroupsByTurn(t *testing.T) {
	g := openingGame().Current()
	if len(g.Actions) != 6 {
		t.Fatalf("len(Actions) = %d, want 6", len(g.Actions))
	}
	want := []ActionType{ActionRoll, ActionMove, ActionRoll, ActionMove, ActionDouble, ActionPass}
	for i, a := range g.Actions {
		if a.Type != want[i] {
			t.Errorf("Actions[%d].Type = %d, want %d", i, a.Type, want[i])
		}
	}
	if n := len(g.Actions[1].Moves); n != 2 {
		t.Errorf("white moves = %d, want 2", n)
	}
}

func TestClone(t *testing.T) {
	m := openingGame()
	c := m.Clone()
	c.Current().Actions[1].Moves[0].To = 20
	c.Current().AddTake(engine.Black)
	if m.Current().Actions[1].Moves[0].To != 19 {
		t.Error("clone shares move slices with the original")
	}
	if len(m.Current().Actions) != 6 {
		t.Error("clone shares action slices with the original")
	}
}

func TestExportMAT(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportMAT(&buf, openingGame()); err != nil {
		t.Fatalf("ExportMAT error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		` ; [Player 1 "alice"]`,
		` ; [Player 2 "bob"]`,
		" 7 point match",
		" Game 1",
		"  1) 31: 8/5 6/5",
		"52: 24/22 13/8",
		"  2)  Doubles => 2",
		" Drops",
		"Wins 1 point\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "  3)") {
		t.Errorf("export has a third move line:\n%s", out)
	}
}

func TestExportMATMoney(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportMAT(&buf, NewMatch("a", "b", 0)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Unlimited match") {
		t.Errorf("money session header missing:\n%s", buf.String())
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	orig := openingGame()
	var buf bytes.Buffer
	if err := ExportMAT(&buf, orig); err != nil {
		t.Fatal(err)
	}

	got, err := ImportMAT(&buf)
	if err != nil {
		t.Fatalf("ImportMAT error: %v", err)
	}
	if got.White != "alice" || got.Black != "bob" || got.Length != 7 {
		t.Errorf("header = %q/%q/%d", got.White, got.Black, got.Length)
	}
	if len(got.Games) != 1 {
		t.Fatalf("len(Games) = %d, want 1", len(got.Games))
	}

	g, want := got.Games[0], orig.Games[0]
	if len(g.Actions) != len(want.Actions) {
		t.Fatalf("len(Actions) = %d, want %d", len(g.Actions), len(want.Actions))
	}
	for i := range want.Actions {
		a, w := g.Actions[i], want.Actions[i]
		if a.Type != w.Type || a.Player != w.Player || a.Dice != w.Dice || a.Value != w.Value {
			t.Errorf("Actions[%d] = %+v, want %+v", i, a, w)
		}
		for j := range w.Moves {
			if a.Moves[j] != w.Moves[j] {
				t.Errorf("Actions[%d].Moves[%d] = %v, want %v", i, j, a.Moves[j], w.Moves[j])
			}
		}
	}

	res, ok := g.Result.Get()
	if !ok {
		t.Fatal("imported game has no result")
	}
	if res.Winner != engine.White || res.Kind != engine.WinDropped || res.Points != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestImportMATBlackOpens(t *testing.T) {
	text := " ; [Player 1 \"alice\"]\n ; [Player 2 \"bob\"]\n 3 point match\n\n" +
		" Game 1\n alice : 0                          bob : 0\n" +
		"  1)                                 52: 24/22 13/8\n" +
		"  2) 31: 8/5 6/5\n"

	m, err := ImportMAT(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ImportMAT error: %v", err)
	}
	g := m.Games[0]
	if len(g.Actions) != 4 {
		t.Fatalf("len(Actions) = %d, want 4", len(g.Actions))
	}
	if g.Actions[0].Player != engine.Black || g.Actions[2].Player != engine.White {
		t.Errorf("players = %s, %s; want black, white", g.Actions[0].Player, g.Actions[2].Player)
	}

	gs, err := Replay(g, engine.NewMatch(3, true, false))
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if gs.Turn != engine.Black {
		t.Errorf("Turn = %s, want black", gs.Turn)
	}
	if gs.Board.Points[19] != (engine.Point{Owner: engine.White, Count: 2}) {
		t.Errorf("white 5-point = %+v", gs.Board.Points[19])
	}
}

func TestImportMATErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"bad roll", "  1) 71: 8/1"},
		{"bad point", "  1) 31: 8/5 26/25"},
		{"backwards", "  1) 31: off/5"},
		{"garbage", "  1) hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportMAT(strings.NewReader(" Game 1\n" + tt.line + "\n"))
			if err == nil {
				t.Errorf("ImportMAT(%q) succeeded", tt.line)
			}
		})
	}
}

func TestParseMovesNotation(t *testing.T) {
	moves, err := parseMoves("24/18(2) 13/7*/1 bar/22 6/off", engine.Black)
	if err != nil {
		t.Fatal(err)
	}
	want := []engine.Move{
		{From: 23, To: 17, Die: 6},
		{From: 23, To: 17, Die: 6},
		{From: 12, To: 6, Die: 6},
		{From: 6, To: 0, Die: 6},
		{From: engine.Bar, To: 21, Die: 3},
		{From: 5, To: engine.Off, Die: 6},
	}
	if len(moves) != len(want) {
		t.Fatalf("got %d moves, want %d: %v", len(moves), len(want), moves)
	}
	for i := range want {
		if moves[i] != want[i] {
			t.Errorf("moves[%d] = %v, want %v", i, moves[i], want[i])
		}
	}
}

func TestReplay(t *testing.T) {
	gs, err := Replay(openingGame().Current(), engine.NewMatch(7, true, false))
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	res, ok := gs.Result.Get()
	if !ok {
		t.Fatal("replayed game has no result")
	}
	if res.Winner != engine.White || res.Kind != engine.WinDropped || res.Points != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := gs.Match.Score.Of(engine.White); got != 1 {
		t.Errorf("white score = %d, want 1", got)
	}
}

func TestReplayForfeitedDice(t *testing.T) {
	m := NewMatch("a", "b", 0)
	g := m.StartGame(engine.NewGame(engine.NewMatch(0, false, false), engine.White))
	g.AddRoll(engine.White, 3, 1)
	g.AddMove(engine.White, engine.Move{From: 16, To: 19, Die: 3})
	g.AddRoll(engine.Black, 6, 5)

	gs, err := Replay(g, engine.NewMatch(0, false, false))
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if gs.Turn != engine.Black || len(gs.Dice) != 2 {
		t.Errorf("turn = %s dice = %v, want black with two dice", gs.Turn, gs.Dice)
	}
}

func TestReplayIllegalMove(t *testing.T) {
	m := NewMatch("a", "b", 0)
	g := m.StartGame(engine.NewGame(engine.NewMatch(0, false, false), engine.White))
	g.AddRoll(engine.White, 3, 1)
	g.AddMove(engine.White, engine.Move{From: 16, To: 22, Die: 6})

	_, err := Replay(g, engine.NewMatch(0, false, false))
	var ime *engine.IllegalMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("Replay error = %v, want IllegalMoveError", err)
	}
}

func TestReplayEmpty(t *testing.T) {
	if _, err := Replay(&Game{Number: 1}, engine.MatchState{}); !errors.Is(err, ErrEmptyGame) {
		t.Errorf("Replay(empty) = %v, want ErrEmptyGame", err)
	}
}
