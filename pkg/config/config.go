// Package config loads server settings from flags, BGTABLE_* environment
// variables, an optional .env file and an optional config file, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. BGTABLE_NATS_URL.
const EnvPrefix = "BGTABLE"

// Config holds the settings of a bgtable process.
type Config struct {
	Addr         string // HTTP API listen address
	ExternalAddr string // Line-protocol analysis server; empty disables it

	NATSURL    string // Replication and remote oracle transport; empty disables NATS
	NATSPrefix string // Subject prefix for replicated states
	RedisURL   string // Replication through Redis; empty disables it
	RedisTTL   time.Duration
	SQLitePath string // Durable snapshots; empty disables them

	OracleURL     string        // HTTP analysis service; empty uses NATS or the local heuristic
	OracleSubject string        // NATS subject of the analysis service
	ServeOracle   bool          // Answer oracle requests on OracleSubject
	OracleTimeout time.Duration // Per-call limit
	METFile       string        // gnubg match equity table for the heuristic; empty uses the built-in one

	BotTimeout      time.Duration
	BotPace         time.Duration
	MatchLength     int
	MaxSaveFailures int
	SaveAttempts    uint

	LogLevel string
	Pretty   bool // Human-readable console logs
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:            "localhost:8080",
		NATSPrefix:      "bgtable.game",
		RedisTTL:        24 * time.Hour,
		OracleSubject:   "bgtable.oracle",
		OracleTimeout:   10 * time.Second,
		BotTimeout:      45 * time.Second,
		BotPace:         300 * time.Millisecond,
		MaxSaveFailures: 3,
		SaveAttempts:    3,
		LogLevel:        "info",
		Pretty:          true,
	}
}

// Flags returns the flag set for c's fields with c's values as defaults.
func Flags(name string, c Config) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("env-file", ".env", "dotenv file to load when present")

	flags.String("addr", c.Addr, "HTTP API listen address")
	flags.String("external-addr", c.ExternalAddr, "line-protocol analysis listen address (empty disables)")
	flags.String("nats-url", c.NATSURL, "NATS server URL (empty disables)")
	flags.String("nats-prefix", c.NATSPrefix, "subject prefix for replicated game states")
	flags.String("redis-url", c.RedisURL, "Redis URL for replication (empty disables)")
	flags.Duration("redis-ttl", c.RedisTTL, "expiry of Redis snapshots")
	flags.String("sqlite-path", c.SQLitePath, "SQLite snapshot database (empty disables)")
	flags.String("oracle-url", c.OracleURL, "HTTP analysis service base URL")
	flags.String("oracle-subject", c.OracleSubject, "NATS subject of the analysis service")
	flags.Bool("serve-oracle", c.ServeOracle, "answer oracle requests on the NATS subject")
	flags.Duration("oracle-timeout", c.OracleTimeout, "limit for one oracle call")
	flags.String("met-file", c.METFile, "match equity table (gnubg XML) for match-play cube decisions")
	flags.Duration("bot-timeout", c.BotTimeout, "limit for one bot decision cycle")
	flags.Duration("bot-pace", c.BotPace, "pause between two bot checker moves")
	flags.Int("match-length", c.MatchLength, "default match length (0 plays for money)")
	flags.Int("max-save-failures", c.MaxSaveFailures, "failed saves in a row before a table plays locally")
	flags.Uint("save-attempts", c.SaveAttempts, "attempts per replication save")
	flags.String("log-level", c.LogLevel, "trace, debug, info, warn or error")
	flags.Bool("pretty", c.Pretty, "human-readable console logs")
	return flags
}

// Load parses args over the defaults.
func Load(name string, args []string) (Config, error) {
	flags := Flags(name, Default())
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	return FromFlags(flags)
}

// FromFlags resolves the configuration for a parsed flag set made by Flags.
func FromFlags(flags *pflag.FlagSet) (Config, error) {
	if path, _ := flags.GetString("env-file"); path != "" {
		// Variables already in the environment win over the file
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	c := Config{
		Addr:            v.GetString("addr"),
		ExternalAddr:    v.GetString("external-addr"),
		NATSURL:         v.GetString("nats-url"),
		NATSPrefix:      v.GetString("nats-prefix"),
		RedisURL:        v.GetString("redis-url"),
		RedisTTL:        v.GetDuration("redis-ttl"),
		SQLitePath:      v.GetString("sqlite-path"),
		OracleURL:       v.GetString("oracle-url"),
		OracleSubject:   v.GetString("oracle-subject"),
		ServeOracle:     v.GetBool("serve-oracle"),
		OracleTimeout:   v.GetDuration("oracle-timeout"),
		METFile:         v.GetString("met-file"),
		BotTimeout:      v.GetDuration("bot-timeout"),
		BotPace:         v.GetDuration("bot-pace"),
		MatchLength:     v.GetInt("match-length"),
		MaxSaveFailures: v.GetInt("max-save-failures"),
		SaveAttempts:    v.GetUint("save-attempts"),
		LogLevel:        v.GetString("log-level"),
		Pretty:          v.GetBool("pretty"),
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch {
	case c.MatchLength < 0:
		return fmt.Errorf("match length %d is negative", c.MatchLength)
	case c.MaxSaveFailures < 1:
		return fmt.Errorf("max save failures must be at least 1, got %d", c.MaxSaveFailures)
	case c.SaveAttempts < 1:
		return fmt.Errorf("save attempts must be at least 1, got %d", c.SaveAttempts)
	case c.BotTimeout <= 0:
		return fmt.Errorf("bot timeout must be positive, got %s", c.BotTimeout)
	case c.OracleTimeout <= 0:
		return fmt.Errorf("oracle timeout must be positive, got %s", c.OracleTimeout)
	case c.ServeOracle && c.NATSURL == "":
		return errors.New("serving the oracle needs a NATS URL")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the zerolog level named by LogLevel.
func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}
