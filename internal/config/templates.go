package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Render emits cfg in the same layout Load reads.
func Render(cfg Config) (string, error) {
	raw := fileConfig{
		Server: fileServer{
			Addr:         cfg.Server.Addr,
			CorsOrigins:  cfg.Server.CorsOrigins,
			AuthToken:    cfg.Server.AuthToken,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		},
		Tracker: fileTracker{
			Timeout:          cfg.Tracker.Timeout.String(),
			MaxAttempts:      cfg.Tracker.MaxAttempts,
			BackoffInitial:   cfg.Tracker.BackoffInitial.String(),
			BackoffMax:       cfg.Tracker.BackoffMax.String(),
			UserAgent:        cfg.Tracker.UserAgent,
			Port:             cfg.Tracker.Port,
			MaxResponseBytes: cfg.Tracker.MaxResponseBytes,
		},
		Decode: fileDecode{
			DisallowUnknownFields: cfg.Decode.DisallowUnknownFields,
		},
	}
	out, err := toml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("config render failed: %w", err)
	}
	return string(out), nil
}

func Template() (string, error) {
	return Render(Default())
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
