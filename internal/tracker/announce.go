package tracker

import (
	"net/url"
	"strconv"
	"time"

	"github.com/danmuck/torrentctl/internal/metainfo"
)

// Event is the optional announce event.
type Event string

const (
	EventNone      Event = ""
	EventStarted   Event = "started"
	EventStopped   Event = "stopped"
	EventCompleted Event = "completed"
)

// AnnounceRequest carries the per-announce transfer state. Announce overrides
// the torrent's own tracker list when set.
type AnnounceRequest struct {
	Port       int
	Uploaded   int64
	Downloaded int64
	Left       int64
	Event      Event
	NumWant    int
	TrackerID  string
	Announce   string
}

// AnnounceResponse is the decoded tracker reply.
type AnnounceResponse struct {
	FailureReason  string `bencode:"failure reason,optional"`
	WarningMessage string `bencode:"warning message,optional"`
	Interval       int64  `bencode:"interval,optional"`
	MinInterval    int64  `bencode:"min interval,optional"`
	TrackerID      string `bencode:"tracker id,optional"`
	Complete       int64  `bencode:"complete,optional"`
	Incomplete     int64  `bencode:"incomplete,optional"`
	Peers          Peers  `bencode:"peers,optional"`
	Peers6         Peers6 `bencode:"peers6,optional"`
}

// NextAnnounce is the interval the tracker asked for.
func (r *AnnounceResponse) NextAnnounce() time.Duration {
	return time.Duration(r.Interval) * time.Second
}

// AllPeers joins the IPv4 and IPv6 lists.
func (r *AnnounceResponse) AllPeers() []Peer {
	out := make([]Peer, 0, len(r.Peers)+len(r.Peers6))
	out = append(out, r.Peers...)
	out = append(out, r.Peers6...)
	return out
}

func (r *AnnounceResponse) check() error {
	if r.FailureReason != "" {
		return &FailureError{Reason: r.FailureReason}
	}
	if r.Interval <= 0 {
		return ErrMissingInterval
	}
	return nil
}

// announceURL appends the announce parameters to base, keeping any query the
// tracker url already carries. info_hash and peer_id are raw bytes.
func announceURL(base string, hash metainfo.InfoHash, peer PeerID, req AnnounceRequest) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedScheme
	}
	q := u.Query()
	q.Set("info_hash", string(hash[:]))
	q.Set("peer_id", string(peer[:]))
	q.Set("port", strconv.Itoa(req.Port))
	q.Set("uploaded", strconv.FormatInt(req.Uploaded, 10))
	q.Set("downloaded", strconv.FormatInt(req.Downloaded, 10))
	q.Set("left", strconv.FormatInt(req.Left, 10))
	q.Set("compact", "1")
	if req.Event != EventNone {
		q.Set("event", string(req.Event))
	}
	if req.NumWant > 0 {
		q.Set("numwant", strconv.Itoa(req.NumWant))
	}
	if req.TrackerID != "" {
		q.Set("trackerid", req.TrackerID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
