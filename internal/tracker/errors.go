package tracker

import (
	"errors"
	"fmt"
)

var (
	ErrNoTracker          = errors.New("tracker: torrent has no tracker url")
	ErrScrapeUnsupported  = errors.New("tracker: announce url does not support scrape")
	ErrResponseTooLarge   = errors.New("tracker: response exceeds size limit")
	ErrMissingInterval    = errors.New("tracker: announce response has no interval")
	ErrNotInScrape        = errors.New("tracker: torrent missing from scrape response")
	ErrUnsupportedScheme  = errors.New("tracker: unsupported url scheme")
	ErrInvalidCompactPeer = errors.New("tracker: invalid compact peer list")
)

// FailureError is a tracker-reported failure. It is never retried.
type FailureError struct {
	Reason string
}

func (e *FailureError) Error() string {
	return "tracker: failure: " + e.Reason
}

// HTTPStatusError is a non-200 tracker response.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("tracker: unexpected http status %s", e.Status)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
