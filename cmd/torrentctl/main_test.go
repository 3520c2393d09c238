package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/torrentctl/internal/bencode"
	"github.com/danmuck/torrentctl/internal/metainfo"
	"github.com/danmuck/torrentctl/internal/testutil/testlog"
)

func writeTorrent(t *testing.T, announce string) (string, []byte) {
	t.Helper()
	length := int64(4096)
	data, err := bencode.Marshal(metainfo.MetaInfo{
		Announce:  announce,
		CreatedBy: "torrentctl test",
		Info: metainfo.Info{
			Length:      &length,
			Name:        "cli.bin",
			PieceLength: 1024,
			Pieces:      make(metainfo.PieceList, 4),
		},
	})
	if err != nil {
		t.Fatalf("marshal torrent: %v", err)
	}
	path := filepath.Join(t.TempDir(), "cli.torrent")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write torrent: %v", err)
	}
	return path, data
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	testlog.Logf("cli: args=%v code=%d stderr=%q", args, code, stderr.String())
	return code, stdout.String(), stderr.String()
}

func TestUnknownCommandAndUsage(t *testing.T) {
	testlog.Start(t)
	if code, _, stderr := runCLI(t, "bogus"); code != 2 || !strings.Contains(stderr, "unknown command") {
		t.Fatalf("unexpected result code=%d stderr=%q", code, stderr)
	}
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("expected usage exit code, got %d", code)
	}
	if code, _, _ := runCLI(t, "infohash"); code != 2 {
		t.Fatalf("expected usage exit for missing file, got %d", code)
	}
}

func TestInfoHashCommand(t *testing.T) {
	testlog.Start(t)
	path, data := writeTorrent(t, "")
	want, err := metainfo.ComputeInfoHash(data)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	code, stdout, _ := runCLI(t, "infohash", path)
	if code != 0 || strings.TrimSpace(stdout) != want.String() {
		t.Fatalf("code=%d stdout=%q want=%s", code, stdout, want)
	}
}

func TestInspectCommand(t *testing.T) {
	testlog.Start(t)
	path, _ := writeTorrent(t, "http://tracker.example/announce")

	code, stdout, _ := runCLI(t, "inspect", path)
	if code != 0 || !strings.Contains(stdout, "cli.bin") || !strings.Contains(stdout, "http://tracker.example/announce") {
		t.Fatalf("code=%d stdout=%q", code, stdout)
	}

	code, stdout, _ = runCLI(t, "inspect", "-json", path)
	if code != 0 {
		t.Fatalf("inspect -json code=%d", code)
	}
	var summary map[string]any
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("inspect -json output: %v", err)
	}
	if summary["name"] != "cli.bin" || summary["piece_count"] != float64(4) {
		t.Fatalf("unexpected summary %#v", summary)
	}
}

func TestDecodeCommand(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "value.bin")
	if err := os.WriteFile(path, []byte("d4:key15:value4:key2i123ee"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, stdout, _ := runCLI(t, "decode", path)
	if code != 0 {
		t.Fatalf("decode code=%d", code)
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(stdout), &tree); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if tree["key1"] != "value" || tree["key2"] != float64(123) {
		t.Fatalf("unexpected tree %#v", tree)
	}

	if err := os.WriteFile(path, []byte("i12"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if code, _, stderr := runCLI(t, "decode", path); code != 1 || !strings.Contains(stderr, "offset 3") {
		t.Fatalf("expected syntax failure, code=%d stderr=%q", code, stderr)
	}
}

func TestAnnounceAndScrapeCommands(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/announce":
			if r.URL.Query().Get("event") != "started" || r.URL.Query().Get("port") != "7000" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte("d8:intervali120e8:completei3e5:peers6:\x7f\x00\x00\x01\x1a\xe1e"))
		case "/scrape":
			hash := r.URL.Query().Get("info_hash")
			body, _ := bencode.Marshal(map[string]any{
				"files": map[string]any{hash: map[string]any{"complete": 3, "downloaded": 9, "incomplete": 1}},
			})
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	path, _ := writeTorrent(t, srv.URL+"/announce")

	code, stdout, _ := runCLI(t, "announce", "-port", "7000", path)
	if code != 0 || !strings.Contains(stdout, "127.0.0.1:6881") || !strings.Contains(stdout, "2m0s") {
		t.Fatalf("announce code=%d stdout=%q", code, stdout)
	}

	code, stdout, _ = runCLI(t, "scrape", path)
	if code != 0 {
		t.Fatalf("scrape code=%d", code)
	}
	var file map[string]any
	if err := json.Unmarshal([]byte(stdout), &file); err != nil {
		t.Fatalf("scrape output: %v", err)
	}
	if file["complete"] != float64(3) || file["downloaded"] != float64(9) {
		t.Fatalf("unexpected scrape %#v", file)
	}
}

func TestConfigCommands(t *testing.T) {
	testlog.Start(t)
	code, stdout, _ := runCLI(t, "config", "template")
	if code != 0 || !strings.Contains(stdout, "[tracker]") {
		t.Fatalf("template code=%d stdout=%q", code, stdout)
	}

	path := filepath.Join(t.TempDir(), "torrentctl.toml")
	if code, _, _ := runCLI(t, "config", "template", "-o", path); code != 0 {
		t.Fatalf("write template code=%d", code)
	}
	if code, stdout, _ := runCLI(t, "config", "validate", path); code != 0 || !strings.Contains(stdout, "validated") {
		t.Fatalf("validate code=%d stdout=%q", code, stdout)
	}
	if code, stdout, _ := runCLI(t, "-config", path, "config", "template"); code != 0 || !strings.Contains(stdout, "max_attempts") {
		t.Fatalf("template with -config code=%d stdout=%q", code, stdout)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[tracker]\nmax_attempts = -1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if code, _, _ := runCLI(t, "config", "validate", bad); code != 1 {
		t.Fatalf("expected invalid config to fail, got %d", code)
	}
	if code, _, _ := runCLI(t, "-config", bad, "infohash", path); code != 1 {
		t.Fatalf("expected bad -config to fail, got %d", code)
	}
}
