package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/torrentctl/internal/bencode"
	"github.com/danmuck/torrentctl/internal/metainfo"
	"github.com/danmuck/torrentctl/internal/observability"
	"github.com/rs/zerolog"
)

type Config struct {
	Timeout          time.Duration
	MaxAttempts      int
	Backoff          BackoffConfig
	UserAgent        string
	MaxResponseBytes int64
}

func DefaultConfig() Config {
	return Config{
		Timeout:     15 * time.Second,
		MaxAttempts: 3,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		UserAgent:        "torrentctl/0.1",
		MaxResponseBytes: 2 << 20,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Backoff.Multiplier == 0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = def.UserAgent
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = def.MaxResponseBytes
	}
	return c
}

// Client talks to HTTP trackers.
type Client struct {
	cfg    Config
	http   *http.Client
	peerID PeerID
	log    zerolog.Logger

	// rng is shared by every in-flight request's backoff
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewClient builds a client with a fresh peer id. A nil httpClient uses one
// bounded by cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	cfg = cfg.WithDefaults()
	id, err := NewPeerID()
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		peerID: id,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    observability.Logger("tracker"),
	}, nil
}

func (c *Client) PeerID() PeerID {
	return c.peerID
}

// Announce reports to the first tracker of t (or req.Announce) and returns
// its peer list. A tracker failure reason is returned as *FailureError.
func (c *Client) Announce(ctx context.Context, t *metainfo.Torrent, req AnnounceRequest) (*AnnounceResponse, error) {
	base := req.Announce
	if base == "" {
		trackers := t.Trackers()
		if len(trackers) == 0 {
			return nil, ErrNoTracker
		}
		base = trackers[0]
	}
	target, err := announceURL(base, t.InfoHash, c.peerID, req)
	if err != nil {
		return nil, fmt.Errorf("tracker: announce url %q: %w", base, err)
	}

	body, err := c.fetch(ctx, "announce", target)
	if err != nil {
		return nil, err
	}
	var resp AnnounceResponse
	if err := decodeBody("announce", body, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	if resp.WarningMessage != "" {
		c.log.Warn().Str("tracker", base).Str("warning", resp.WarningMessage).Msg("tracker warning")
	}
	c.log.Debug().
		Str("tracker", base).
		Int64("interval", resp.Interval).
		Int("peers", len(resp.Peers)+len(resp.Peers6)).
		Msg("announce ok")
	return &resp, nil
}

// Scrape fetches swarm counts for t from the scrape endpoint of its first
// tracker.
func (c *Client) Scrape(ctx context.Context, t *metainfo.Torrent) (ScrapeFile, error) {
	trackers := t.Trackers()
	if len(trackers) == 0 {
		return ScrapeFile{}, ErrNoTracker
	}
	target, err := scrapeURL(trackers[0], t.InfoHash)
	if err != nil {
		return ScrapeFile{}, fmt.Errorf("tracker: scrape url %q: %w", trackers[0], err)
	}
	body, err := c.fetch(ctx, "scrape", target)
	if err != nil {
		return ScrapeFile{}, err
	}
	var resp ScrapeResponse
	if err := decodeBody("scrape", body, &resp); err != nil {
		return ScrapeFile{}, err
	}
	if resp.FailureReason != "" {
		return ScrapeFile{}, &FailureError{Reason: resp.FailureReason}
	}
	file, ok := resp.Files[t.InfoHash]
	if !ok {
		return ScrapeFile{}, fmt.Errorf("%w: %s", ErrNotInScrape, t.InfoHash)
	}
	return file, nil
}

func decodeBody(kind string, body []byte, v any) error {
	start := time.Now()
	err := bencode.Unmarshal(body, v)
	observability.RecordDecode(kind, len(body), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("tracker: decode %s response: %w", kind, err)
	}
	return nil
}

// fetch GETs target, retrying transport errors and retryable statuses.
func (c *Client) fetch(ctx context.Context, kind, target string) ([]byte, error) {
	var attempt int
	for {
		attempt++
		start := time.Now()
		body, status, err := c.get(ctx, target)
		observability.RecordTrackerRequest(kind, status, time.Since(start), err == nil)
		if err == nil {
			return body, nil
		}
		c.log.Warn().Str("kind", kind).Int("attempt", attempt).Err(err).Msg("tracker request failed")
		if !retryable(err) || !c.shouldRetry(attempt) {
			return nil, err
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (c *Client) get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, resp.StatusCode, ErrResponseTooLarge
	}
	return body, resp.StatusCode, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrResponseTooLarge) {
		return false
	}
	var status *HTTPStatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.cfg.MaxAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	c.rngMu.Lock()
	delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
	c.rngMu.Unlock()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
