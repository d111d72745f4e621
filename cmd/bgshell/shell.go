package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/bot"
	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
	"github.com/yourusername/bgtable/pkg/match"
	"github.com/yourusername/bgtable/pkg/table"
)

var errQuit = errors.New("quit")

// ShellController plays matches against a bot in the terminal.
type ShellController struct {
	l   *readline.Instance
	out io.Writer

	oracle advisor.Oracle
	roller engine.Roller
	botCfg bot.Config
	wait   time.Duration // Longest wait for the bot after a command

	human   engine.Color
	tbl     *table.Table
	stopBot context.CancelFunc
	botDone chan struct{}
	seen    int // Messages already printed
}

// NewShellController returns a shell writing to out. l may be nil when the
// commands come from elsewhere.
func NewShellController(l *readline.Instance, out io.Writer, oracle advisor.Oracle, roller engine.Roller, botCfg bot.Config) *ShellController {
	return &ShellController{
		l:      l,
		out:    out,
		oracle: oracle,
		roller: roller,
		botCfg: botCfg,
		wait:   botCfg.Timeout,
		human:  engine.White,
	}
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (sc *ShellController) showMessage(format string, args ...any) {
	fmt.Fprintf(sc.out, format+"\n", args...)
}

// Loop reads commands until the user quits.
func (sc *ShellController) Loop() {
	defer sc.l.Close()
	defer sc.stop()

	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		if err := sc.Execute(line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			sc.showMessage("error: %v", err)
		}
	}
	log.Debug().Msg("exiting-readline-loop")
}

// Execute runs one command line.
func (sc *ShellController) Execute(line string) error {
	fields, err := shellquote.Split(strings.TrimSpace(line))
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "exit", "quit":
		return errQuit
	case "help":
		sc.showMessage(helpText)
		return nil
	case "new":
		return sc.newMatch(args)
	case "load":
		if len(args) != 1 {
			return errors.New("usage: load <file.mat>")
		}
		return sc.load(args[0])
	}

	if sc.tbl == nil {
		return errors.New("no game; start one with new")
	}
	ctx := context.Background()
	switch cmd {
	case "roll", "r":
		_, _, err = sc.tbl.RollDice(ctx, sc.human)
	case "move", "m":
		err = sc.move(ctx, args)
	case "double", "d":
		_, err = sc.tbl.OfferDouble(ctx, sc.human)
	case "take", "t":
		_, err = sc.tbl.AcceptDouble(ctx, sc.human)
	case "pass", "p", "drop":
		_, _, err = sc.tbl.RejectDouble(ctx, sc.human)
	case "forfeit":
		_, err = sc.tbl.ForfeitDice(ctx, sc.human)
	case "board", "b":
		sc.showMessage("%s", renderBoard(sc.tbl.State().Board, sc.human))
		return nil
	case "legal", "l":
		sc.showLegal()
		return nil
	case "hint", "h":
		return sc.hint(ctx)
	case "state", "s":
		return sc.showState()
	case "save":
		if len(args) != 1 {
			return errors.New("usage: save <file.mat>")
		}
		return sc.save(args[0])
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	if err != nil {
		return err
	}
	sc.settle()
	return nil
}

func (sc *ShellController) move(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: move <from/to> [from/to ...]")
	}
	for _, a := range args {
		// 8/5(2) plays the same move twice
		n := 1
		if i := strings.Index(a, "("); i > 0 && strings.HasSuffix(a, ")") {
			k, err := strconv.Atoi(a[i+1 : len(a)-1])
			if err != nil {
				return fmt.Errorf("bad repeat in %q", a)
			}
			a, n = a[:i], k
		}
		from, to, err := external.ParseMove(a, sc.human)
		if err != nil {
			return err
		}
		for range n {
			if _, _, err := sc.tbl.Move(ctx, sc.human, from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sc *ShellController) newMatch(args []string) error {
	length := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("bad match length %q", args[0])
		}
		length = n
	}
	t := table.New("shell", table.Options{
		White:  "player",
		Black:  "bot",
		Match:  engine.NewMatch(length, true, false),
		Roller: sc.roller,
	})
	sc.start(t)
	return nil
}

// load resumes the last game of a MAT file.
func (sc *ShellController) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	m, err := match.ImportMAT(f)
	if err != nil {
		return err
	}
	if len(m.Games) == 0 {
		return errors.New("file holds no games")
	}

	g := m.Games[len(m.Games)-1]
	rules := engine.NewMatch(m.Length, true, false)
	gs, err := match.Replay(g, rules)
	switch {
	case errors.Is(err, match.ErrEmptyGame):
		opener, _ := engine.OpeningRoll(sc.roller)
		rules.Score, rules.Crawford = g.Score, g.Crawford
		gs = engine.NewGame(rules, opener)
		gs.GameNumber = g.Number
	case err != nil:
		return err
	}
	if gs.MatchOver() {
		return errors.New("the match in this file is over")
	}
	if gs.Result.IsSome() {
		opener, _ := engine.OpeningRoll(sc.roller)
		if gs, err = engine.NextGame(gs, opener); err != nil {
			return err
		}
	}

	t, err := table.NewFromState("shell", gs, table.Options{
		White:  m.White,
		Black:  m.Black,
		Match:  gs.Match,
		Roller: sc.roller,
	})
	if err != nil {
		return err
	}
	sc.showMessage("Loaded %s vs %s, game %d.", m.White, m.Black, gs.GameNumber)
	sc.start(t)
	return nil
}

func (sc *ShellController) save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := match.ExportMAT(f, sc.tbl.Record()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	sc.showMessage("Saved to %s.", path)
	return nil
}

// start replaces the current table and seats the bot opposite the human.
func (sc *ShellController) start(t *table.Table) {
	sc.stop()
	sc.tbl = t
	sc.seen = 0

	cfg := sc.botCfg
	cfg.Color = sc.human.Opponent()
	b := bot.New(t, sc.oracle, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sc.stopBot, sc.botDone = cancel, done
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	sc.settle()
}

func (sc *ShellController) stop() {
	if sc.stopBot != nil {
		sc.stopBot()
		<-sc.botDone
		sc.stopBot, sc.botDone = nil, nil
	}
}

// settle waits until it is the human's move, then prints what happened.
func (sc *ShellController) settle() {
	deadline := time.Now().Add(sc.wait)
	for !sc.humanToAct(sc.tbl.State()) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	msgs := sc.tbl.Messages()
	for _, m := range msgs[sc.seen:] {
		sc.showMessage("* %s", m.Text)
	}
	sc.seen = len(msgs)

	gs := sc.tbl.State()
	switch gs.Phase() {
	case engine.PhaseMatchOver:
		sc.showMessage("Match over. Start another with new.")
	case engine.PhaseDoublePending:
		sc.showMessage("Double offered: take or pass?")
	case engine.PhaseAwaitingRoll:
		if gs.Turn == sc.human {
			sc.showMessage("Your roll.")
		}
	case engine.PhaseDiceAvailable:
		if gs.Turn == sc.human {
			sc.showMessage("You have %s to play.", gs.Dice.Key())
		}
	}
}

func (sc *ShellController) humanToAct(gs engine.GameState) bool {
	switch gs.Phase() {
	case engine.PhaseMatchOver:
		return true
	case engine.PhaseDoublePending:
		pd, _ := gs.Pending.Get()
		return pd.OfferedBy != sc.human
	}
	return gs.Turn == sc.human
}

func (sc *ShellController) showLegal() {
	dests := sc.tbl.LegalDestinations(sc.human)
	if len(dests) == 0 {
		sc.showMessage("No moves to make.")
		return
	}
	for _, from := range sortedOrigins(dests, sc.human) {
		tos := make([]string, len(dests[from]))
		for i, to := range dests[from] {
			tos[i] = external.FormatPoint(to, sc.human)
		}
		sc.showMessage("%4s -> %s", external.FormatPoint(from, sc.human), strings.Join(tos, " "))
	}
}

func (sc *ShellController) hint(ctx context.Context) error {
	gs := sc.tbl.State()
	req := advisor.NewRequest(gs, sc.human)
	if gs.Phase() == engine.PhaseDiceAvailable && gs.Turn == sc.human {
		adv, err := sc.oracle.Advise(ctx, req)
		if err != nil {
			return err
		}
		sc.showMessage("Play %s (%.0f%% to win). %s", external.FormatMoves(adv.Moves, sc.human),
			100*adv.WinProbability, adv.StrategicAdvice)
		return nil
	}
	d, err := sc.oracle.CubeAdvice(ctx, req)
	if err != nil {
		return err
	}
	sc.showMessage("Double: %t, take: %t. %s", d.Double, d.Take, d.Reason)
	return nil
}

// stateView is the state as shown by the state command.
type stateView struct {
	Game       int    `yaml:"game"`
	Phase      string `yaml:"phase"`
	Turn       string `yaml:"turn"`
	Dice       []int  `yaml:"dice,flow"`
	Cube       int    `yaml:"cube"`
	CubeOwner  string `yaml:"cube_owner,omitempty"`
	Score      []int  `yaml:"score,flow"`
	Length     int    `yaml:"length"`
	Crawford   bool   `yaml:"crawford,omitempty"`
	Pips       []int  `yaml:"pips,flow"`
	PositionID string `yaml:"position_id"`
	Version    uint64 `yaml:"version"`
}

func (sc *ShellController) showState() error {
	gs := sc.tbl.State()
	doc := external.EncodeState(gs)
	v := stateView{
		Game:       gs.GameNumber,
		Phase:      gs.Phase().String(),
		Turn:       gs.Turn.String(),
		Dice:       append([]int{}, gs.Dice...),
		Cube:       gs.Cube.Value,
		CubeOwner:  doc.Cube.Owner,
		Score:      []int{gs.Match.Score.Of(engine.White), gs.Match.Score.Of(engine.Black)},
		Length:     gs.Match.Length,
		Crawford:   gs.Match.Crawford,
		Pips:       []int{gs.Board.Pips(engine.White), gs.Board.Pips(engine.Black)},
		PositionID: doc.PositionID,
		Version:    gs.Version,
	}
	enc := yaml.NewEncoder(sc.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

const helpText = `Commands:
  new [length]        start a match against the bot (0 or nothing plays for money)
  load <file.mat>     resume the last game of a match file
  save <file.mat>     write the match so far
  roll                roll the dice
  move 13/8 8/5(2)    move checkers, numbered from your side; bar and off work too
  double take pass    cube actions
  forfeit             give up dice that cannot be played
  board legal hint    look at the position
  state               dump the game state
  exit`
