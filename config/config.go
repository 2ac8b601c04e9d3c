// Package config loads drainkit daemon configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig indicates the configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the validated daemon configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string

	// Workers is the worker pool size.
	Workers int

	// QueueDepth is the pending-job queue capacity.
	QueueDepth int

	// GracefulTimeout bounds the orderly drain on shutdown.
	GracefulTimeout time.Duration

	// ForcefulTimeout bounds the wait after workers are interrupted.
	ForcefulTimeout time.Duration

	// ThrottleRPS caps accepted requests per second. Zero disables.
	ThrottleRPS int

	// ThrottleBurst is the token-bucket burst size.
	ThrottleBurst int
}

// tomlConfig is the TOML representation. Durations are strings in Go
// duration syntax ("30s", "1m30s").
type tomlConfig struct {
	Listen          string       `toml:"listen"`
	Workers         int          `toml:"workers"`
	QueueDepth      int          `toml:"queue_depth"`
	GracefulTimeout string       `toml:"graceful_timeout"`
	ForcefulTimeout string       `toml:"forceful_timeout"`
	Throttle        tomlThrottle `toml:"throttle"`
}

type tomlThrottle struct {
	RPS   int `toml:"rps"`
	Burst int `toml:"burst"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen:          ":8080",
		Workers:         4,
		QueueDepth:      64,
		GracefulTimeout: 30 * time.Second,
		ForcefulTimeout: 10 * time.Second,
	}
}

// Load reads the config file at path, layering it over the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var raw tomlConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if raw.Listen != "" {
		cfg.Listen = raw.Listen
	}
	if raw.Workers != 0 {
		cfg.Workers = raw.Workers
	}
	if raw.QueueDepth != 0 {
		cfg.QueueDepth = raw.QueueDepth
	}
	if raw.GracefulTimeout != "" {
		d, err := time.ParseDuration(raw.GracefulTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing graceful_timeout: %w", err)
		}
		cfg.GracefulTimeout = d
	}
	if raw.ForcefulTimeout != "" {
		d, err := time.ParseDuration(raw.ForcefulTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing forceful_timeout: %w", err)
		}
		cfg.ForcefulTimeout = d
	}
	cfg.ThrottleRPS = raw.Throttle.RPS
	cfg.ThrottleBurst = raw.Throttle.Burst

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address required", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("%w: queue_depth must be positive", ErrInvalidConfig)
	}
	if c.GracefulTimeout < 0 || c.ForcefulTimeout < 0 {
		return fmt.Errorf("%w: timeouts must be non-negative", ErrInvalidConfig)
	}
	if c.ThrottleRPS < 0 || c.ThrottleBurst < 0 {
		return fmt.Errorf("%w: throttle values must be non-negative", ErrInvalidConfig)
	}
	return nil
}
