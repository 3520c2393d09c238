package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the TOML layout. Durations are strings ("15s").
type fileConfig struct {
	Server  fileServer  `toml:"server"`
	Tracker fileTracker `toml:"tracker"`
	Decode  fileDecode  `toml:"decode"`
}

type fileServer struct {
	Addr         string   `toml:"addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	AuthToken    string   `toml:"auth_token"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
}

type fileTracker struct {
	Timeout          string `toml:"timeout"`
	MaxAttempts      int    `toml:"max_attempts"`
	BackoffInitial   string `toml:"backoff_initial"`
	BackoffMax       string `toml:"backoff_max"`
	UserAgent        string `toml:"user_agent"`
	Port             int    `toml:"port"`
	MaxResponseBytes int64  `toml:"max_response_bytes"`
}

type fileDecode struct {
	DisallowUnknownFields bool `toml:"disallow_unknown_fields"`
}

// Load reads path and overlays the keys it defines onto Default().
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := finish(raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode is Load for an in-memory document.
func Decode(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	return finish(raw, meta)
}

func finish(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown key %s", undecoded[0])
	}
	cfg, err := overlay(Default(), raw, meta)
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlay(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if meta.IsDefined("server", "addr") {
		cfg.Server.Addr = strings.TrimSpace(raw.Server.Addr)
	}
	if meta.IsDefined("server", "cors_origins") {
		cfg.Server.CorsOrigins = normalizeOrigins(raw.Server.CorsOrigins)
	}
	if meta.IsDefined("server", "auth_token") {
		cfg.Server.AuthToken = strings.TrimSpace(raw.Server.AuthToken)
	}
	if meta.IsDefined("server", "max_body_bytes") {
		cfg.Server.MaxBodyBytes = raw.Server.MaxBodyBytes
	}

	if meta.IsDefined("tracker", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Tracker.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse tracker.timeout: %w", err)
		}
		cfg.Tracker.Timeout = d
	}
	if meta.IsDefined("tracker", "max_attempts") {
		cfg.Tracker.MaxAttempts = raw.Tracker.MaxAttempts
	}
	if meta.IsDefined("tracker", "backoff_initial") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Tracker.BackoffInitial))
		if err != nil {
			return Config{}, fmt.Errorf("parse tracker.backoff_initial: %w", err)
		}
		cfg.Tracker.BackoffInitial = d
	}
	if meta.IsDefined("tracker", "backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Tracker.BackoffMax))
		if err != nil {
			return Config{}, fmt.Errorf("parse tracker.backoff_max: %w", err)
		}
		cfg.Tracker.BackoffMax = d
	}
	if meta.IsDefined("tracker", "user_agent") {
		cfg.Tracker.UserAgent = strings.TrimSpace(raw.Tracker.UserAgent)
	}
	if meta.IsDefined("tracker", "port") {
		cfg.Tracker.Port = raw.Tracker.Port
	}
	if meta.IsDefined("tracker", "max_response_bytes") {
		cfg.Tracker.MaxResponseBytes = raw.Tracker.MaxResponseBytes
	}

	if meta.IsDefined("decode", "disallow_unknown_fields") {
		cfg.Decode.DisallowUnknownFields = raw.Decode.DisallowUnknownFields
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
