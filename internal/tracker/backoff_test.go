package tracker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/torrentctl/internal/testutil/testlog"
)

func TestNextBackoffDelayNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	want := map[int]time.Duration{
		0: 250 * time.Millisecond,
		1: 250 * time.Millisecond,
		2: 500 * time.Millisecond,
		3: time.Second,
		6: 5 * time.Second,
	}
	for attempt, expected := range want {
		if got := NextBackoffDelay(cfg, attempt, nil); got != expected {
			t.Fatalf("attempt=%d got=%v want=%v", attempt, got, expected)
		}
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 32; i++ {
		got := NextBackoffDelay(cfg, 2, rng)
		if got < 250*time.Millisecond || got >= 750*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func TestNextBackoffDelayDisabled(t *testing.T) {
	testlog.Start(t)
	if got := NextBackoffDelay(BackoffConfig{Multiplier: 2}, 4, nil); got != 0 {
		t.Fatalf("expected zero delay, got %v", got)
	}
}
