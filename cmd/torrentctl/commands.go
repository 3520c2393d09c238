package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/danmuck/torrentctl/internal/bencode"
	"github.com/danmuck/torrentctl/internal/config"
	"github.com/danmuck/torrentctl/internal/metainfo"
	"github.com/danmuck/torrentctl/internal/observability"
	"github.com/danmuck/torrentctl/internal/server"
	"github.com/danmuck/torrentctl/internal/tracker"
	"github.com/sugawarayuuta/sonnet"
)

func (a *app) loadTorrent(path string) (*metainfo.Torrent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return metainfo.ParseWith(data, metainfo.Options{
		DisallowUnknownFields: a.cfg.Decode.DisallowUnknownFields,
	})
}

func (a *app) writeJSON(v any) error {
	enc := sonnet.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) inspect(args []string) error {
	fs := a.flagSet("inspect")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	path, err := oneArg(fs, args)
	if err != nil {
		return err
	}
	t, err := a.loadTorrent(path)
	if err != nil {
		return err
	}
	s := t.Summary()
	if *asJSON {
		return a.writeJSON(s)
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "name\t%s\n", s.Name)
	fmt.Fprintf(w, "info hash\t%s\n", s.InfoHash)
	fmt.Fprintf(w, "mode\t%s\n", s.Mode)
	fmt.Fprintf(w, "size\t%d bytes\n", s.TotalLength)
	fmt.Fprintf(w, "pieces\t%d x %d bytes\n", s.PieceCount, s.PieceLength)
	if s.Private {
		fmt.Fprintf(w, "private\tyes\n")
	}
	if s.Created != "" {
		fmt.Fprintf(w, "created\t%s\n", s.Created)
	}
	if s.CreatedBy != "" {
		fmt.Fprintf(w, "created by\t%s\n", s.CreatedBy)
	}
	if s.Comment != "" {
		fmt.Fprintf(w, "comment\t%s\n", s.Comment)
	}
	for _, tr := range s.Trackers {
		fmt.Fprintf(w, "tracker\t%s\n", tr)
	}
	for _, ws := range s.WebSeeds {
		fmt.Fprintf(w, "web seed\t%s\n", ws)
	}
	for _, f := range s.Files {
		fmt.Fprintf(w, "file\t%s\n", f)
	}
	return w.Flush()
}

func (a *app) infohash(args []string) error {
	path, err := oneArg(a.flagSet("infohash"), args)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	hash, err := metainfo.ComputeInfoHash(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, hash)
	return err
}

func (a *app) decode(args []string) error {
	path, err := oneArg(a.flagSet("decode"), args)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	start := time.Now()
	var tree any
	err = bencode.Unmarshal(data, &tree)
	observability.RecordDecode("generic", len(data), time.Since(start), err)
	if err != nil {
		return err
	}
	return a.writeJSON(tree)
}

func (a *app) trackerClient() (*tracker.Client, error) {
	tc := a.cfg.Tracker
	return tracker.NewClient(tracker.Config{
		Timeout:     tc.Timeout,
		MaxAttempts: tc.MaxAttempts,
		Backoff: tracker.BackoffConfig{
			InitialDelay: tc.BackoffInitial,
			Multiplier:   2.0,
			MaxDelay:     tc.BackoffMax,
			Jitter:       true,
		},
		UserAgent:        tc.UserAgent,
		MaxResponseBytes: tc.MaxResponseBytes,
	}, nil)
}

func (a *app) announce(ctx context.Context, args []string) error {
	fs := a.flagSet("announce")
	port := fs.Int("port", a.cfg.Tracker.Port, "port reported to the tracker")
	event := fs.String("event", "started", "announce event: started|stopped|completed|none")
	numWant := fs.Int("numwant", 0, "number of peers requested (0 = tracker default)")
	trackerURL := fs.String("tracker", "", "announce url overriding the torrent's trackers")
	path, err := oneArg(fs, args)
	if err != nil {
		return err
	}
	ev, err := parseEvent(*event)
	if err != nil {
		return err
	}
	t, err := a.loadTorrent(path)
	if err != nil {
		return err
	}
	client, err := a.trackerClient()
	if err != nil {
		return err
	}

	left := t.TotalLength()
	if ev == tracker.EventCompleted {
		left = 0
	}
	resp, err := client.Announce(ctx, t, tracker.AnnounceRequest{
		Port:     *port,
		Left:     left,
		Event:    ev,
		NumWant:  *numWant,
		Announce: *trackerURL,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "interval\t%s\n", resp.NextAnnounce())
	if resp.MinInterval > 0 {
		fmt.Fprintf(w, "min interval\t%s\n", time.Duration(resp.MinInterval)*time.Second)
	}
	fmt.Fprintf(w, "seeders\t%d\n", resp.Complete)
	fmt.Fprintf(w, "leechers\t%d\n", resp.Incomplete)
	if resp.WarningMessage != "" {
		fmt.Fprintf(w, "warning\t%s\n", resp.WarningMessage)
	}
	for _, p := range resp.AllPeers() {
		fmt.Fprintf(w, "peer\t%s\n", p)
	}
	return w.Flush()
}

func parseEvent(raw string) (tracker.Event, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return tracker.EventNone, nil
	case "started":
		return tracker.EventStarted, nil
	case "stopped":
		return tracker.EventStopped, nil
	case "completed":
		return tracker.EventCompleted, nil
	default:
		return "", fmt.Errorf("unknown event %q", raw)
	}
}

func (a *app) scrape(ctx context.Context, args []string) error {
	path, err := oneArg(a.flagSet("scrape"), args)
	if err != nil {
		return err
	}
	t, err := a.loadTorrent(path)
	if err != nil {
		return err
	}
	client, err := a.trackerClient()
	if err != nil {
		return err
	}
	file, err := client.Scrape(ctx, t)
	if err != nil {
		return err
	}
	return a.writeJSON(file)
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := a.flagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}
	cfg := a.cfg
	cfg.Server.Addr = *addr
	if err := config.ValidateServer(cfg.Server); err != nil {
		return err
	}
	return server.New(cfg).Serve(ctx)
}

func (a *app) configCmd(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "template":
		fs := a.flagSet("config template")
		output := fs.String("o", "", "write the template to this path instead of stdout")
		force := fs.Bool("force", false, "overwrite an existing file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *output == "" {
			rendered, err := config.Render(a.cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.stdout, rendered)
			return err
		}
		if err := config.WriteTemplate(*output, *force); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "wrote config template to %s\n", *output)
		return nil
	case "validate":
		path, err := oneArg(a.flagSet("config validate"), args[1:])
		if err != nil {
			return err
		}
		if _, err := config.Load(path); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "validated config at %s\n", path)
		return nil
	default:
		return errUsage
	}
}
