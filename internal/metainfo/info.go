package metainfo

import (
	"fmt"
	"path"
	"strings"
)

// Mode distinguishes single-file from multi-file torrents.
type Mode int

const (
	ModeSingle Mode = iota + 1
	ModeMultiple
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeMultiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// Info is the info dictionary. Exactly one of Length and Files is present.
type Info struct {
	Length      *int64     `bencode:"length"`
	Files       []FileInfo `bencode:"files,optional"`
	Name        string     `bencode:"name"`
	PieceLength int64      `bencode:"piece length"`
	Pieces      PieceList  `bencode:"pieces"`
	Private     bool       `bencode:"private,optional"`
}

// FileInfo is one file of a multi-file torrent.
type FileInfo struct {
	Length int64    `bencode:"length"`
	Path   []string `bencode:"path"`
	MD5Sum string   `bencode:"md5sum,optional"`
}

// DisplayPath joins the path segments with '/'.
func (f FileInfo) DisplayPath() string {
	return path.Join(f.Path...)
}

func (i *Info) Mode() (Mode, error) {
	switch {
	case i.Length != nil && i.Files != nil:
		return 0, ErrAmbiguousMode
	case i.Length != nil:
		return ModeSingle, nil
	case i.Files != nil:
		return ModeMultiple, nil
	default:
		return 0, ErrNoMode
	}
}

// TotalLength is the payload size in bytes across all files.
func (i *Info) TotalLength() int64 {
	if i.Length != nil {
		return *i.Length
	}
	var total int64
	for _, f := range i.Files {
		total += f.Length
	}
	return total
}

func (i *Info) PieceCount() int {
	return len(i.Pieces)
}

// Validate checks the structural rules a decoder cannot express.
func (i *Info) Validate() error {
	if i.PieceLength <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPieceLength, i.PieceLength)
	}
	if len(i.Pieces) == 0 {
		return ErrNoPieces
	}
	mode, err := i.Mode()
	if err != nil {
		return err
	}
	switch mode {
	case ModeSingle:
		if *i.Length < 0 {
			return fmt.Errorf("%w: negative length %d", ErrInvalidFile, *i.Length)
		}
	case ModeMultiple:
		if len(i.Files) == 0 {
			return fmt.Errorf("%w: files list is empty", ErrInvalidFile)
		}
		for idx, f := range i.Files {
			if f.Length < 0 {
				return fmt.Errorf("%w: file[%d] negative length %d", ErrInvalidFile, idx, f.Length)
			}
			if len(f.Path) == 0 {
				return fmt.Errorf("%w: file[%d] has no path", ErrInvalidFile, idx)
			}
			for _, seg := range f.Path {
				if strings.TrimSpace(seg) == "" {
					return fmt.Errorf("%w: file[%d] has an empty path segment", ErrInvalidFile, idx)
				}
			}
		}
	}
	return nil
}
