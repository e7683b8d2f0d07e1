// Package config loads process configuration from QUARDS_* environment
// variables, overridable by command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds viewer server configuration.
type Config struct {
	Addr            string        `env:"QUARDS_ADDR" envDefault:":8081"`
	BackendURL      string        `env:"QUARDS_BACKEND_URL" envDefault:"http://localhost:8080"`
	CatalogURL      string        `env:"QUARDS_CATALOG_URL"`
	DSN             string        `env:"QUARDS_DATABASE_DSN"`
	Timeout         time.Duration `env:"QUARDS_TIMEOUT" envDefault:"10s"`
	AutoplayPeriod  time.Duration `env:"QUARDS_AUTOPLAY_PERIOD" envDefault:"1s"`
	SessionIdleTTL  time.Duration `env:"QUARDS_SESSION_IDLE_TTL" envDefault:"30m"`
	CleanupInterval time.Duration `env:"QUARDS_CLEANUP_INTERVAL" envDefault:"1m"`
	Debug           bool          `env:"QUARDS_DEBUG"`
}

// Parse loads the environment, then applies flags from args on top.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "match server base URL")
	fs.StringVar(&cfg.CatalogURL, "catalog", cfg.CatalogURL, "card catalog URL (default: <backend>/allCards.json)")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "postgres DSN for view history (empty disables storage)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "match server request timeout")
	fs.DurationVar(&cfg.AutoplayPeriod, "autoplay", cfg.AutoplayPeriod, "auto-play step interval")
	fs.DurationVar(&cfg.SessionIdleTTL, "idle-ttl", cfg.SessionIdleTTL, "close viewer sessions unwatched for this long")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.CatalogURL == "" {
		cfg.CatalogURL = cfg.BackendURL + "/allCards.json"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would make the server unusable.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend URL %q", c.BackendURL)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.AutoplayPeriod <= 0 {
		return errors.New("autoplay period must be positive")
	}
	return nil
}
