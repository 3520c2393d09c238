package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "TORRENTCTL_LOG_LEVEL"
	EnvLogTimestamp = "TORRENTCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "TORRENTCTL_LOG_NOCOLOR"
	EnvLogFormat    = "TORRENTCTL_LOG_FORMAT"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config describes the process-wide logger.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Format    Format
	Out       io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global zerolog logger for profile. Only the first
// call has any effect.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		applyEnvOverrides(&cfg)
		zerolog.SetGlobalLevel(cfg.Level)
		log.Logger = New(cfg)
	})
}

func DefaultConfig(profile Profile) Config {
	cfg := Config{
		Format:  FormatConsole,
		NoColor: !isTerminal(os.Stderr),
	}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

// New builds a logger from cfg. Console output goes through a colorable
// writer so ANSI colours also render on Windows terminals.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = colorable.NewColorableStderr()
	}
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if f, ok := parseFormat(os.Getenv(EnvLogFormat)); ok {
		cfg.Format = f
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseFormat(raw string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatConsole:
		return FormatConsole, true
	case FormatJSON:
		return FormatJSON, true
	default:
		return FormatConsole, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
