package tracker

import (
	"net/url"
	"strings"

	"github.com/danmuck/torrentctl/internal/metainfo"
)

// ScrapeFile is the per-torrent swarm summary.
type ScrapeFile struct {
	Complete   int64  `bencode:"complete" json:"complete"`
	Downloaded int64  `bencode:"downloaded" json:"downloaded"`
	Incomplete int64  `bencode:"incomplete" json:"incomplete"`
	Name       string `bencode:"name,optional" json:"name,omitempty"`
}

// ScrapeResponse is keyed by the raw 20-byte info-hash.
type ScrapeResponse struct {
	Files         map[metainfo.InfoHash]ScrapeFile `bencode:"files,optional"`
	FailureReason string                           `bencode:"failure reason,optional"`
}

// ScrapeURL derives the scrape endpoint from an announce url by replacing the
// "announce" prefix of its last path segment.
func ScrapeURL(announce string) (string, error) {
	u, err := url.Parse(announce)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedScheme
	}
	i := strings.LastIndexByte(u.Path, '/')
	if i < 0 {
		return "", ErrScrapeUnsupported
	}
	last := u.Path[i+1:]
	if !strings.HasPrefix(last, "announce") {
		return "", ErrScrapeUnsupported
	}
	u.Path = u.Path[:i+1] + "scrape" + strings.TrimPrefix(last, "announce")
	u.RawPath = ""
	return u.String(), nil
}

func scrapeURL(announce string, hash metainfo.InfoHash) (string, error) {
	s, err := ScrapeURL(announce)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("info_hash", string(hash[:]))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
