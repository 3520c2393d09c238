package tracker

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig shapes the delay between tracker retries.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// NextBackoffDelay returns the wait before retry attempt N (1-based): the
// initial delay grown geometrically, capped at MaxDelay, then scaled into
// [0.5, 1.5) when Jitter is set.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	attempt = max(attempt, 1)
	mult := max(cfg.Multiplier, 1.0)

	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		delay = min(delay, float64(cfg.MaxDelay))
	}
	if !cfg.Jitter {
		return time.Duration(delay)
	}
	scale := 1.0
	if rng != nil {
		scale = 0.5 + rng.Float64()
	}
	return time.Duration(delay * scale)
}
