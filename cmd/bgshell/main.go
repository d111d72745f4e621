// Command bgshell plays a backgammon match against the bot in the terminal.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/bot"
	"github.com/yourusername/bgtable/pkg/config"
	"github.com/yourusername/bgtable/pkg/engine"
)

func main() {
	def := config.Default()
	def.LogLevel = "warn"
	flags := config.Flags("bgshell", def)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.FromFlags(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	lvl, _ := cfg.Level()
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	local, err := advisor.NewMatchHeuristic(cfg.METFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var oracle advisor.Oracle = local
	if cfg.OracleURL != "" {
		oracle = advisor.NewHTTPOracle(cfg.OracleURL)
	}
	oracle = advisor.NewShared(oracle, cfg.OracleTimeout)

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mbgtable>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "bgshell.history"),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}

	botCfg := bot.DefaultConfig(engine.Black)
	botCfg.Timeout = cfg.BotTimeout
	botCfg.Pace = cfg.BotPace

	sc := NewShellController(l, l.Stdout(), oracle, engine.RandomRoller{}, botCfg)
	sc.showMessage("Type help for the commands.")
	if err := sc.Execute("new " + strconv.Itoa(cfg.MatchLength)); err != nil {
		sc.showMessage("error: %v", err)
	}
	sc.Loop()
}
