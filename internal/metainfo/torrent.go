package metainfo

import (
	"fmt"
	"os"
	"time"

	"github.com/danmuck/torrentctl/internal/bencode"
	"github.com/danmuck/torrentctl/internal/observability"
	"github.com/rs/zerolog/log"
)

// Torrent is a decoded, validated metainfo file with its info-hash.
type Torrent struct {
	MetaInfo
	InfoHash InfoHash
}

// Options tunes Parse.
type Options struct {
	DisallowUnknownFields bool
}

// Parse decodes and validates one .torrent document.
func Parse(data []byte) (*Torrent, error) {
	return ParseWith(data, Options{})
}

func ParseWith(data []byte, opts Options) (*Torrent, error) {
	start := time.Now()
	t, err := parse(data, opts)
	observability.RecordDecode("metainfo", len(data), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("name", t.Info.Name).
		Str("info_hash", t.InfoHash.String()).
		Int("pieces", t.Info.PieceCount()).
		Int64("length", t.Info.TotalLength()).
		Msg("metainfo parsed")
	return t, nil
}

func parse(data []byte, opts Options) (*Torrent, error) {
	var mi MetaInfo
	dec := bencode.NewDecoder(data)
	if opts.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&mi); err != nil {
		return nil, fmt.Errorf("metainfo: decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("metainfo: trailing data at offset %d", dec.InputOffset())
	}
	if err := mi.Info.Validate(); err != nil {
		return nil, err
	}
	hash, err := ComputeInfoHash(data)
	if err != nil {
		return nil, err
	}
	return &Torrent{MetaInfo: mi, InfoHash: hash}, nil
}

// Load reads and parses the .torrent file at path.
func Load(path string) (*Torrent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metainfo: read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// TotalLength is the payload size in bytes.
func (t *Torrent) TotalLength() int64 {
	return t.Info.TotalLength()
}

func (t *Torrent) PieceCount() int {
	return t.Info.PieceCount()
}

// Summary is a JSON-friendly view of a torrent.
type Summary struct {
	Name        string   `json:"name"`
	InfoHash    InfoHash `json:"info_hash"`
	Mode        string   `json:"mode"`
	TotalLength int64    `json:"total_length"`
	PieceLength int64    `json:"piece_length"`
	PieceCount  int      `json:"piece_count"`
	Private     bool     `json:"private"`
	Files       []string `json:"files,omitempty"`
	Trackers    []string `json:"trackers,omitempty"`
	WebSeeds    []string `json:"web_seeds,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty"`
	Created     string   `json:"created,omitempty"`
}

func (t *Torrent) Summary() Summary {
	mode, _ := t.Info.Mode()
	s := Summary{
		Name:        t.Info.Name,
		InfoHash:    t.InfoHash,
		Mode:        mode.String(),
		TotalLength: t.TotalLength(),
		PieceLength: t.Info.PieceLength,
		PieceCount:  t.PieceCount(),
		Private:     t.Info.Private,
		Trackers:    t.Trackers(),
		WebSeeds:    t.URLList,
		Comment:     t.Comment,
		CreatedBy:   t.CreatedBy,
	}
	if created := t.Created(); !created.IsZero() {
		s.Created = created.Format(time.RFC3339)
	}
	for _, f := range t.Info.Files {
		s.Files = append(s.Files, f.DisplayPath())
	}
	for _, n := range t.Nodes {
		s.Nodes = append(s.Nodes, n.String())
	}
	return s
}
