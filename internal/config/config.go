package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the binary can be told from outside
type Config struct {
	Port              int           `env:"PORT" envDefault:"8080"`
	BaseURL           string        `env:"POKER_BASE_URL"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"text"`
	AdminPassword     string        `env:"POKER_ADMIN_PASSWORD"`
	SweepInterval     time.Duration `env:"POKER_SWEEP_INTERVAL" envDefault:"30s"`
	DisconnectGrace   time.Duration `env:"POKER_DISCONNECT_GRACE" envDefault:"2m"`
	InactivityTimeout time.Duration `env:"POKER_INACTIVITY_TIMEOUT" envDefault:"10m"`
	KeepAlive         time.Duration `env:"POKER_SSE_KEEPALIVE" envDefault:"30s"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName       string        `env:"OTEL_SERVICE_NAME" envDefault:"planningpoker"`
	NoKeyboard        bool          `env:"POKER_NO_KEYBOARD"`
	NoBanner          bool          `env:"POKER_NO_BANNER"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load builds the configuration from, in increasing precedence, defaults,
// an optional .env file, the environment and command-line flags.
func Load(args []string) (Config, error) {
	fset := flag.NewFlagSet("planningpoker", flag.ContinueOnError)

	envFile := fset.String("env-file", ".env", "Path to an optional .env file")
	port := fset.Int("port", 0, "Port to listen on")
	baseURL := fset.String("base-url", "", "Public URL used in join links and QR codes")
	logLevel := fset.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fset.String("log-format", "", "Log format (text, json)")
	adminPassword := fset.String("admin-password", "", "Admin diagnostics password (generated if empty)")
	sweepInterval := fset.Duration("sweep-interval", 0, "Time between cleanup cycles")
	disconnectGrace := fset.Duration("disconnect-grace", 0, "How long a disconnected user is kept")
	inactivity := fset.Duration("inactivity-timeout", 0, "How long an untouched session is kept")
	keepAlive := fset.Duration("keepalive", 0, "SSE keep-alive interval")
	otlpEndpoint := fset.String("otlp-endpoint", "", "OTLP/HTTP trace collector endpoint")
	noKeyboard := fset.Bool("no-keyboard", false, "Disable keyboard shortcuts")
	noBanner := fset.Bool("no-banner", false, "Skip the startup banner")

	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(*envFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	// Flags override env, but only when given
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "base-url":
			cfg.BaseURL = *baseURL
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "admin-password":
			cfg.AdminPassword = *adminPassword
		case "sweep-interval":
			cfg.SweepInterval = *sweepInterval
		case "disconnect-grace":
			cfg.DisconnectGrace = *disconnectGrace
		case "inactivity-timeout":
			cfg.InactivityTimeout = *inactivity
		case "keepalive":
			cfg.KeepAlive = *keepAlive
		case "otlp-endpoint":
			cfg.OTLPEndpoint = *otlpEndpoint
		case "no-keyboard":
			cfg.NoKeyboard = *noKeyboard
		case "no-banner":
			cfg.NoBanner = *noBanner
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the server cannot run with
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.LogFormat)
	}
	for name, d := range map[string]time.Duration{
		"sweep interval":     c.SweepInterval,
		"disconnect grace":   c.DisconnectGrace,
		"inactivity timeout": c.InactivityTimeout,
		"keep-alive":         c.KeepAlive,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// Addr returns the listen address
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// PublicURL returns the URL participants use to reach the server
func (c Config) PublicURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "http://localhost:" + strconv.Itoa(c.Port)
}
