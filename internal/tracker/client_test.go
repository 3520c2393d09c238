package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/torrentctl/internal/bencode"
	"github.com/danmuck/torrentctl/internal/metainfo"
	"github.com/danmuck/torrentctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTorrent(announce string) *metainfo.Torrent {
	length := int64(1 << 20)
	var hash metainfo.InfoHash
	for i := range hash {
		hash[i] = byte(i + 1)
	}
	return &metainfo.Torrent{
		MetaInfo: metainfo.MetaInfo{
			Announce: announce,
			Info: metainfo.Info{
				Length:      &length,
				Name:        "fixture.bin",
				PieceLength: 1 << 18,
				Pieces:      make(metainfo.PieceList, 4),
			},
		},
		InfoHash: hash,
	}
}

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return c
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := bencode.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestNewPeerIDPrefix(t *testing.T) {
	testlog.Start(t)
	a, err := NewPeerID()
	require.NoError(t, err)
	b, err := NewPeerID()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(a[:]), PeerIDPrefix))
	assert.NotEqual(t, a, b)
}

func TestAnnounceCompactPeers(t *testing.T) {
	testlog.Start(t)
	tor := fixtureTorrent("")
	compact := []byte{127, 0, 0, 1, 0x1a, 0xe1, 10, 0, 0, 2, 0, 80}
	compact6 := append(netip.MustParseAddr("::1").AsSlice(), 0x1a, 0xe2)

	var c *Client
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/announce", r.URL.Path)
		assert.Equal(t, "abc", q.Get("passkey"))
		assert.Equal(t, string(tor.InfoHash[:]), q.Get("info_hash"))
		id := c.PeerID()
		assert.Equal(t, string(id[:]), q.Get("peer_id"))
		assert.Equal(t, "6881", q.Get("port"))
		assert.Equal(t, "1048576", q.Get("left"))
		assert.Equal(t, "1", q.Get("compact"))
		assert.Equal(t, "started", q.Get("event"))
		assert.Equal(t, "torrentctl/0.1", r.UserAgent())
		_, _ = w.Write(mustMarshal(t, map[string]any{
			"interval":     1800,
			"min interval": 60,
			"complete":     5,
			"incomplete":   2,
			"peers":        compact,
			"peers6":       compact6,
		}))
	}))
	defer srv.Close()
	tor.Announce = srv.URL + "/announce?passkey=abc"

	c = testClient(t)
	resp, err := c.Announce(context.Background(), tor, AnnounceRequest{
		Port:  6881,
		Left:  tor.TotalLength(),
		Event: EventStarted,
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, resp.NextAnnounce())
	assert.Equal(t, int64(60), resp.MinInterval)
	assert.Equal(t, int64(5), resp.Complete)
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, "127.0.0.1:6881", resp.Peers[0].String())
	assert.Equal(t, "10.0.0.2:80", resp.Peers[1].String())
	require.Len(t, resp.Peers6, 1)
	assert.Equal(t, "[::1]:6882", resp.Peers6[0].String())
	assert.Len(t, resp.AllPeers(), 3)
}

func TestAnnounceDictPeers(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("d8:intervali900e5:peersld7:peer id3:abc2:ip9:127.0.0.14:porti7000eed2:ip12:tracker.host4:porti1eeee"))
	}))
	defer srv.Close()

	resp, err := testClient(t).Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{Port: 1})
	require.NoError(t, err)
	require.Len(t, resp.Peers, 1)
	assert.Equal(t, "127.0.0.1:7000", resp.Peers[0].Addr.String())
	assert.Equal(t, []byte("abc"), resp.Peers[0].ID)
}

func TestAnnounceFailureReasonIsNotRetried(t *testing.T) {
	testlog.Start(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("d14:failure reason12:unregisterede"))
	}))
	defer srv.Close()

	_, err := testClient(t).Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "unregistered", failure.Reason)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAnnounceRetriesServerErrors(t *testing.T) {
	testlog.Start(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("d8:intervali60e5:peers0:e"))
	}))
	defer srv.Close()

	resp, err := testClient(t).Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(60), resp.Interval)
	assert.Equal(t, int32(3), hits.Load())
}

func TestAnnounceGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(t).Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	var status *HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusBadGateway, status.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestConcurrentAnnouncesShareBackoff(t *testing.T) {
	testlog.Start(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 4 * time.Millisecond, Jitter: true}
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	tor := fixtureTorrent(srv.URL + "/announce")

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Announce(context.Background(), tor, AnnounceRequest{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		var status *HTTPStatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
	}
	assert.Equal(t, int32(callers*3), hits.Load())
}

func TestAnnounceClientErrorIsNotRetried(t *testing.T) {
	testlog.Start(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t).Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	var status *HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAnnounceMissingInterval(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("d5:peers0:e"))
	}))
	defer srv.Close()

	_, err := testClient(t).Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	assert.ErrorIs(t, err, ErrMissingInterval)
}

func TestAnnounceMalformedBody(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("d8:intervali60e5:peers7:abcdefge"))
	}))
	defer srv.Close()

	_, err := testClient(t).Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	assert.ErrorIs(t, err, bencode.ErrConversion)
}

func TestAnnounceResponseTooLarge(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("d8:intervali60e5:peers0:e"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxResponseBytes = 8
	c, err := NewClient(cfg, srv.Client())
	require.NoError(t, err)
	_, err = c.Announce(context.Background(), fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestAnnounceHonorsContextDuringBackoff(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Backoff = BackoffConfig{InitialDelay: time.Hour}
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Announce(ctx, fixtureTorrent(srv.URL+"/announce"), AnnounceRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnnounceWithoutTracker(t *testing.T) {
	testlog.Start(t)
	_, err := testClient(t).Announce(context.Background(), fixtureTorrent(""), AnnounceRequest{})
	assert.ErrorIs(t, err, ErrNoTracker)

	_, err = testClient(t).Announce(context.Background(), fixtureTorrent("udp://tracker.example:80/announce"), AnnounceRequest{})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestScrapeURL(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{in: "http://t.example/announce", want: "http://t.example/scrape"},
		{in: "http://t.example/x/announce.php?k=1", want: "http://t.example/x/scrape.php?k=1"},
		{in: "http://t.example/announce?a=b", want: "http://t.example/scrape?a=b"},
		{in: "http://t.example/a", err: ErrScrapeUnsupported},
		{in: "http://t.example/announce/x", err: ErrScrapeUnsupported},
		{in: "http://t.example", err: ErrScrapeUnsupported},
		{in: "udp://t.example/announce", err: ErrUnsupportedScheme},
	}
	for _, tc := range cases {
		got, err := ScrapeURL(tc.in)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestScrape(t *testing.T) {
	testlog.Start(t)
	tor := fixtureTorrent("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, string(tor.InfoHash[:]), r.URL.Query().Get("info_hash"))
		_, _ = w.Write(mustMarshal(t, map[string]any{
			"files": map[string]any{
				string(tor.InfoHash[:]): map[string]any{
					"complete": 4, "downloaded": 40, "incomplete": 1, "name": "fixture.bin",
				},
			},
		}))
	}))
	defer srv.Close()
	tor.Announce = srv.URL + "/announce"

	file, err := testClient(t).Scrape(context.Background(), tor)
	require.NoError(t, err)
	assert.Equal(t, ScrapeFile{Complete: 4, Downloaded: 40, Incomplete: 1, Name: "fixture.bin"}, file)
}

func TestScrapeMissingTorrent(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("d5:filesdee"))
	}))
	defer srv.Close()

	_, err := testClient(t).Scrape(context.Background(), fixtureTorrent(srv.URL+"/announce"))
	assert.ErrorIs(t, err, ErrNotInScrape)
}
