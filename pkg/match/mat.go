package match

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
)

// MAT is the Jellyfish/gnubg match format. White is written as player 1 in
// the left column, Black as player 2 in the right column.
//
//	 ; [Player 1 "alice"]
//	 ; [Player 2 "bob"]
//	 7 point match
//
//	 Game 1
//	 alice : 0                          bob : 0
//	  1) 31: 8/5 6/5                    52: 24/22 13/8
//	  2) 43: 24/20 13/10                 Doubles => 2
//	  3)  Drops
//	      Wins 1 point

// matColumn is the width of the left column in move lines.
const matColumn = 32

var (
	matchLengthRE = regexp.MustCompile(`(\d+)\s+point\s+match`)
	gameHeaderRE  = regexp.MustCompile(`^Game\s+(\d+)`)
	scoreLineRE   = regexp.MustCompile(`^(.+?)\s*:\s*(\d+)\s+(.+?)\s*:\s*(\d+)$`)
	moveLineRE    = regexp.MustCompile(`^\s*(\d+)\)`)
	winsRE        = regexp.MustCompile(`Wins\s+(\d+)\s+point`)
	doubleRE      = regexp.MustCompile(`=>\s*(\d+)`)
	columnRE      = regexp.MustCompile(`\s{3,}`)
	tagRE         = regexp.MustCompile(`\[([\w ]+?)\s+"([^"]*)"\]`)
)

// ImportMAT reads a match in MAT format. Move dice are recorded as the pip
// distance of each move; Replay resolves the dice actually used.
func ImportMAT(r io.Reader) (*Match, error) {
	scanner := bufio.NewScanner(r)
	match := NewMatch("", "", 0)

	var game *Game
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ";") {
			if m := tagRE.FindStringSubmatch(line); m != nil {
				switch strings.ToLower(m[1]) {
				case "player 1", "player1":
					match.White = m[2]
				case "player 2", "player2":
					match.Black = m[2]
				case "site", "place":
					match.Place = m[2]
				case "event":
					match.Event = m[2]
				case "date":
					match.Date = m[2]
				}
			}
			continue
		}

		if game == nil {
			if m := matchLengthRE.FindStringSubmatch(line); m != nil {
				match.Length, _ = strconv.Atoi(m[1])
				continue
			}
		}

		if m := gameHeaderRE.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			game = &Game{Number: n, Actions: make([]Action, 0)}
			match.Games = append(match.Games, game)
			continue
		}
		if game == nil {
			continue
		}

		if m := winsRE.FindStringSubmatch(line); m != nil {
			finishImported(game, raw, m[1])
			continue
		}

		if moveLineRE.MatchString(line) {
			if err := parseMoveLine(raw, game); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		if m := scoreLineRE.FindStringSubmatch(line); m != nil {
			if match.White == "" {
				match.White = m[1]
			}
			if match.Black == "" {
				match.Black = m[3]
			}
			w, _ := strconv.Atoi(m[2])
			b, _ := strconv.Atoi(m[4])
			game.Score = engine.Tally{}.With(engine.White, w).With(engine.Black, b)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading MAT file: %w", err)
	}
	return match, nil
}

// parseMoveLine splits "  n) left   right" into the two players' cells. An
// empty left column shows up as a long run of spaces after the move number.
func parseMoveLine(raw string, game *Game) error {
	_, rest, _ := strings.Cut(raw, ")")
	if strings.HasPrefix(rest, "    ") {
		return parseCell(strings.TrimSpace(rest), engine.Black, game)
	}
	halves := columnRE.Split(strings.TrimSpace(rest), 2)
	for i, half := range halves {
		c := engine.White
		if i == 1 {
			c = engine.Black
		}
		if err := parseCell(strings.TrimSpace(half), c, game); err != nil {
			return err
		}
	}
	return nil
}

// parseCell reads one player's entry: "31: 8/5 6/5", "Doubles => 2",
// "Takes" or "Drops".
func parseCell(text string, c engine.Color, game *Game) error {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "doubles"):
		value := 2 * lastDouble(game)
		if m := doubleRE.FindStringSubmatch(text); m != nil {
			value, _ = strconv.Atoi(m[1])
		}
		game.AddDouble(c, value)
		return nil
	case lower == "takes" || lower == "accepts":
		game.AddTake(c)
		return nil
	case lower == "drops" || lower == "passes" || lower == "rejects":
		game.AddPass(c)
		return nil
	}

	diceText, moveText, ok := strings.Cut(text, ":")
	diceText = strings.TrimSpace(diceText)
	if !ok || len(diceText) != 2 {
		return fmt.Errorf("unrecognized entry %q", text)
	}
	d1, d2 := int(diceText[0]-'0'), int(diceText[1]-'0')
	if d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return fmt.Errorf("bad roll %q", diceText)
	}
	game.AddRoll(c, d1, d2)

	moveText = strings.TrimSpace(moveText)
	if moveText == "" || strings.Contains(strings.ToLower(moveText), "cannot") {
		return nil
	}
	moves, err := parseMoves(moveText, c)
	if err != nil {
		return err
	}
	for _, mv := range moves {
		game.AddMove(c, mv)
	}
	return nil
}

// parseMoves reads move notation such as "8/5 6/5", "24/18(2)", "13/7*/1".
func parseMoves(text string, c engine.Color) ([]engine.Move, error) {
	var moves []engine.Move
	for _, tok := range strings.Fields(text) {
		tok = strings.ReplaceAll(tok, "*", "")
		count := 1
		if i := strings.IndexByte(tok, '('); i >= 0 && strings.HasSuffix(tok, ")") {
			n, err := strconv.Atoi(tok[i+1 : len(tok)-1])
			if err != nil || n < 1 || n > 4 {
				return nil, fmt.Errorf("bad repeat count in %q", tok)
			}
			count, tok = n, tok[:i]
		}
		hops := strings.Split(tok, "/")
		if len(hops) < 2 {
			return nil, fmt.Errorf("move %q is not from/to", tok)
		}
		for range count {
			for i := 1; i < len(hops); i++ {
				from, to, err := external.ParseMove(hops[i-1]+"/"+hops[i], c)
				if err != nil {
					return nil, err
				}
				moves = append(moves, engine.Move{From: from, To: to, Die: pips(c, from, to)})
			}
		}
	}
	return moves, nil
}

func pips(c engine.Color, from, to int) int {
	a, b := engine.NumPoints+1, 0
	if from != engine.Bar {
		a = c.BearOffDistance(from)
	}
	if to != engine.Off {
		b = c.BearOffDistance(to)
	}
	return a - b
}

func lastDouble(game *Game) int {
	for i := len(game.Actions) - 1; i >= 0; i-- {
		if game.Actions[i].Type == ActionDouble {
			return game.Actions[i].Value
		}
	}
	return 1
}

// finishImported records a "Wins n points" line. The winner is told apart by
// the column the line is indented to.
func finishImported(game *Game, raw, points string) {
	n, _ := strconv.Atoi(points)
	winner := engine.White
	if len(raw)-len(strings.TrimLeft(raw, " ")) > matColumn/2 {
		winner = engine.Black
	}
	kind := engine.WinSimple
	if k := len(game.Actions); k > 0 && game.Actions[k-1].Type == ActionPass {
		kind = engine.WinDropped
	}
	game.Finish(engine.GameResult{Game: game.Number, Winner: winner, Kind: kind, Points: n})
}

// ExportMAT writes a match in MAT format.
func ExportMAT(w io.Writer, match *Match) error {
	bw := bufio.NewWriter(w)

	if match.Place != "" {
		fmt.Fprintf(bw, " ; [Site \"%s\"]\n", match.Place)
	}
	if match.Event != "" {
		fmt.Fprintf(bw, " ; [Event \"%s\"]\n", match.Event)
	}
	if match.Date != "" {
		fmt.Fprintf(bw, " ; [Date \"%s\"]\n", match.Date)
	}
	fmt.Fprintf(bw, " ; [Player 1 \"%s\"]\n", match.White)
	fmt.Fprintf(bw, " ; [Player 2 \"%s\"]\n", match.Black)

	if match.Length > 0 {
		fmt.Fprintf(bw, " %d point match\n\n", match.Length)
	} else {
		fmt.Fprintf(bw, " Unlimited match\n\n")
	}

	for _, game := range match.Games {
		exportGameMAT(bw, match, game)
	}
	return bw.Flush()
}

func exportGameMAT(w io.Writer, match *Match, game *Game) {
	fmt.Fprintf(w, " Game %d\n", game.Number)
	left := fmt.Sprintf("%s : %d", match.White, game.Score.Of(engine.White))
	fmt.Fprintf(w, " %-*s %s : %d\n", matColumn+4, left, match.Black, game.Score.Of(engine.Black))

	lw := &lineWriter{w: w}
	for _, a := range game.Actions {
		switch a.Type {
		case ActionRoll:
			lw.cell(a.Player, fmt.Sprintf("%d%d:", a.Dice[0], a.Dice[1]))
		case ActionMove:
			lw.extend(a.Player, " "+external.FormatMoves(a.Moves, a.Player))
		case ActionDouble:
			lw.cell(a.Player, fmt.Sprintf(" Doubles => %d", a.Value))
		case ActionTake:
			lw.cell(a.Player, " Takes")
		case ActionPass:
			lw.cell(a.Player, " Drops")
		}
	}
	lw.flush()

	if res, ok := game.Result.Get(); ok {
		indent := 6
		if res.Winner == engine.Black {
			indent = matColumn + 6
		}
		unit := "points"
		if res.Points == 1 {
			unit = "point"
		}
		fmt.Fprintf(w, "%*sWins %d %s\n", indent, "", res.Points, unit)
	}
	fmt.Fprintln(w)
}

// lineWriter lays out numbered move lines, White in the left column and Black
// in the right. A line is written once a cell would overwrite an earlier one.
type lineWriter struct {
	w     io.Writer
	n     int
	cells [2]string
	open  [2]bool
}

func column(c engine.Color) int {
	if c == engine.Black {
		return 1
	}
	return 0
}

func (l *lineWriter) cell(c engine.Color, text string) {
	i := column(c)
	if l.open[i] || l.open[1] {
		l.flush()
	}
	l.cells[i] = text
	l.open[i] = true
}

func (l *lineWriter) extend(c engine.Color, text string) {
	i := column(c)
	if !l.open[i] {
		l.cell(c, strings.TrimSpace(text))
		return
	}
	l.cells[i] += text
}

func (l *lineWriter) flush() {
	if !l.open[0] && !l.open[1] {
		return
	}
	l.n++
	left := l.cells[0]
	pad := max(matColumn-len(left), 3)
	line := fmt.Sprintf("%3d) %s%s%s", l.n, left, strings.Repeat(" ", pad), l.cells[1])
	fmt.Fprintln(l.w, strings.TrimRight(line, " "))
	l.cells = [2]string{}
	l.open = [2]bool{}
}
