// Package config loads the xtid CLI configuration from XTID_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	xclient "github.com/anatolykoptev/go-xclient"
)

// Prefix is the environment variable prefix, e.g. XTID_PROXY.
const Prefix = "XTID"

// Config contains all configuration parameters of the CLI.
// Profile indexes go-stealth's built-in browser profiles; negative keeps the default.
type Config struct {
	Proxy     string `envconfig:"PROXY"`
	UserAgent string `envconfig:"USER_AGENT"`
	Profile   int    `envconfig:"PROFILE" default:"-1"`
	AuthToken string `envconfig:"AUTH_TOKEN"`
	CT0       string `envconfig:"CT0"`
	Language  string `envconfig:"LANGUAGE" default:"en"`
	HomeURL   string `envconfig:"HOME_URL" default:"https://x.com"`

	Timeout         time.Duration `envconfig:"TIMEOUT" default:"30s"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"30m"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3"`

	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"50"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads envFile (best-effort, a missing file is fine) and then the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AuthToken != "" && c.CT0 == "" {
		return errors.New("XTID_CT0 is required when XTID_AUTH_TOKEN is set")
	}
	if c.Timeout <= 0 {
		return errors.New("XTID_TIMEOUT must be positive")
	}
	if c.MaxRetries <= 0 {
		return errors.New("XTID_MAX_RETRIES must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("XTID_RATE_LIMIT_REQUESTS and XTID_RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level. Unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ClientConfig converts the CLI configuration into an xclient.ClientConfig.
func (c *Config) ClientConfig() xclient.ClientConfig {
	cc := xclient.ClientConfig{
		Proxy:           c.Proxy,
		UserAgent:       c.UserAgent,
		AuthToken:       c.AuthToken,
		CT0:             c.CT0,
		Language:        c.Language,
		HomeURL:         c.HomeURL,
		RefreshInterval: c.RefreshInterval,
		MaxRetries:      c.MaxRetries,
		RateLimit: ratelimit.Config{
			RequestsPerWindow: c.RateLimitRequests,
			WindowDuration:    c.RateLimitWindow,
		},
	}
	if c.Profile >= 0 {
		cc.Profile = xclient.BuiltinProfile(c.Profile)
	}
	return cc
}
