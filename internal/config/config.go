package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the effective torrentctl configuration.
type Config struct {
	Server  ServerConfig
	Tracker TrackerConfig
	Decode  DecodeConfig
}

type ServerConfig struct {
	Addr         string
	CorsOrigins  []string
	AuthToken    string
	MaxBodyBytes int64
}

type TrackerConfig struct {
	Timeout          time.Duration
	MaxAttempts      int
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	UserAgent        string
	Port             int
	MaxResponseBytes int64
}

type DecodeConfig struct {
	DisallowUnknownFields bool
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":9400",
			CorsOrigins:  []string{"http://localhost:3000"},
			MaxBodyBytes: 8 << 20,
		},
		Tracker: TrackerConfig{
			Timeout:          15 * time.Second,
			MaxAttempts:      3,
			BackoffInitial:   250 * time.Millisecond,
			BackoffMax:       5 * time.Second,
			UserAgent:        "torrentctl/0.1",
			Port:             6881,
			MaxResponseBytes: 2 << 20,
		},
	}
}

func Validate(cfg Config) error {
	if err := ValidateServer(cfg.Server); err != nil {
		return fmt.Errorf("server config invalid: %w", err)
	}
	if err := ValidateTracker(cfg.Tracker); err != nil {
		return fmt.Errorf("tracker config invalid: %w", err)
	}
	return nil
}

func ValidateServer(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	for i, origin := range cfg.CorsOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("cors_origins[%d] is empty", i)
		}
	}
	return nil
}

func ValidateTracker(cfg TrackerConfig) error {
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if cfg.BackoffInitial < 0 {
		return fmt.Errorf("backoff_initial must not be negative")
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		return fmt.Errorf("backoff_max %s is below backoff_initial %s", cfg.BackoffMax, cfg.BackoffInitial)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.MaxResponseBytes <= 0 {
		return fmt.Errorf("max_response_bytes must be positive")
	}
	return nil
}
