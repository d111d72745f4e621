// Command bgserver runs the bgtable API server: live tables, bots, the
// analysis endpoints and the replication channels that are configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/api"
	"github.com/yourusername/bgtable/pkg/bot"
	"github.com/yourusername/bgtable/pkg/config"
	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
	"github.com/yourusername/bgtable/pkg/replication"
	"github.com/yourusername/bgtable/pkg/table"
)

const version = "0.2.0"

func main() {
	flags := config.Flags("bgserver", config.Default())
	showVersion := flags.Bool("version", false, "show version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("bgserver v%s\n", version)
		return
	}

	cfg, err := config.FromFlags(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server-failed")
	}
	log.Info().Msg("server-stopped")
}

func setupLogging(cfg config.Config) {
	lvl, _ := cfg.Level()
	zerolog.SetGlobalLevel(lvl)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info().Str("version", version).Msg("server-starting")

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var err error
		nc, err = nats.Connect(cfg.NATSURL,
			nats.Name("bgserver"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn().Err(err).Msg("nats-disconnected")
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info().Str("url", c.ConnectedUrl()).Msg("nats-reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer nc.Drain()
	}

	local, err := advisor.NewMatchHeuristic(cfg.METFile)
	if err != nil {
		return err
	}
	oracle := buildOracle(cfg, nc, local)
	if cfg.ServeOracle {
		sub, err := advisor.Serve(nc, cfg.OracleSubject, local)
		if err != nil {
			return fmt.Errorf("serve oracle: %w", err)
		}
		defer sub.Unsubscribe()
	}

	var (
		channels replication.Tee
		store    *replication.SQLiteStore
	)
	if cfg.SQLitePath != "" {
		var err error
		store, err = replication.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		channels = append(channels, store)
	}
	if nc != nil {
		channels = append(channels, replication.NewNATSChannel(nc, cfg.NATSPrefix))
	}
	if cfg.RedisURL != "" {
		rc, err := replication.NewRedisChannel(ctx, cfg.RedisURL, cfg.RedisTTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		channels = append(channels, rc)
	}

	tableOpts := table.Options{
		Match:           engine.NewMatch(cfg.MatchLength, true, false),
		MaxSaveFailures: cfg.MaxSaveFailures,
	}
	if len(channels) > 0 {
		tableOpts.Channel = replication.WithRetry(channels, cfg.SaveAttempts)
	}
	botCfg := bot.DefaultConfig(engine.NoColor)
	botCfg.Timeout = cfg.BotTimeout
	botCfg.Pace = cfg.BotPace

	registry := table.NewRegistry()
	srv := api.NewServer(registry, oracle, api.ServerConfig{
		Addr:         cfg.Addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		Pool:         api.DefaultPoolConfig(),
	}, version, api.Options{Table: tableOpts, Bot: botCfg})

	if store != nil {
		n, err := registry.Restore(ctx, store, tableOpts)
		if err != nil {
			return fmt.Errorf("restore tables: %w", err)
		}
		for _, id := range registry.IDs() {
			if t, err := registry.Get(id); err == nil {
				srv.Handlers().Attach(t, engine.NoColor)
			}
		}
		log.Info().Int("tables", n).Msg("tables-restored")
	}

	if cfg.ExternalAddr != "" {
		xs := external.NewServer(oracle, external.ServerOptions{
			Addr:          cfg.ExternalAddr,
			Timeout:       cfg.OracleTimeout,
			PromptEnabled: true,
		})
		if err := xs.Start(); err != nil {
			return fmt.Errorf("external protocol server: %w", err)
		}
		defer xs.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		tick := time.NewTicker(time.Minute)
		defer tick.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-tick.C:
				st := srv.Pool().Stats()
				log.Info().
					Int("tables", registry.Len()).
					Int64("actions", st.TotalActions).
					Int64("advice", st.TotalAdvice).
					Msg("server-stats")
			}
		}
	})
	return g.Wait()
}

// buildOracle picks the analysis source: an HTTP service, a NATS worker, or
// the local heuristic. Every source is shared between callers and bounded by
// the oracle timeout.
func buildOracle(cfg config.Config, nc *nats.Conn, local advisor.Heuristic) advisor.Oracle {
	var base advisor.Oracle
	switch {
	case cfg.OracleURL != "":
		base = advisor.NewHTTPOracle(cfg.OracleURL)
		log.Info().Str("url", cfg.OracleURL).Msg("oracle-http")
	case nc != nil && !cfg.ServeOracle:
		base = advisor.NewNATSOracle(nc, cfg.OracleSubject)
		log.Info().Str("subject", cfg.OracleSubject).Msg("oracle-nats")
	default:
		base = local
		log.Info().Msg("oracle-heuristic")
	}
	return advisor.NewShared(base, cfg.OracleTimeout)
}
