package metainfo

import (
	"bytes"
	"fmt"
	"time"

	"github.com/danmuck/torrentctl/internal/bencode"
)

// MetaInfo is the top-level dictionary of a .torrent file.
type MetaInfo struct {
	Announce     string     `bencode:"announce,optional"`
	AnnounceList [][]string `bencode:"announce-list,optional"`
	Comment      string     `bencode:"comment,optional"`
	CreatedBy    string     `bencode:"created by,optional"`
	CreationDate int64      `bencode:"creation date,optional"`
	Encoding     string     `bencode:"encoding,optional"`
	Info         Info       `bencode:"info"`
	Nodes        []Node     `bencode:"nodes,optional"`
	URLList      URLList    `bencode:"url-list,optional"`
}

// Created returns the creation date, or the zero time when absent.
func (m *MetaInfo) Created() time.Time {
	if m.CreationDate == 0 {
		return time.Time{}
	}
	return time.Unix(m.CreationDate, 0).UTC()
}

// Trackers flattens announce-list tiers in order, dropping duplicates, and
// falls back to announce.
func (m *MetaInfo) Trackers() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tier := range m.AnnounceList {
		for _, u := range tier {
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	if len(out) == 0 && m.Announce != "" {
		out = append(out, m.Announce)
	}
	return out
}

// Node is a DHT bootstrap node, encoded as a (host, port) list.
type Node struct {
	_    struct{} `bencode:",tuple"`
	Host string
	Port uint16
}

func (n Node) String() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// URLList holds web seed URLs. The wire form is a list, or a single string
// read as a one-element list.
type URLList []string

func (l *URLList) UnmarshalBencode(data []byte) error {
	if len(data) > 0 && data[0] >= '0' && data[0] <= '9' {
		s, err := bencode.Decode[string](data)
		if err != nil {
			return err
		}
		if s == "" {
			*l = URLList{}
			return nil
		}
		*l = URLList{s}
		return nil
	}
	list, err := bencode.Decode[[]string](data)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

func (l URLList) MarshalBencode() ([]byte, error) {
	return bencode.Marshal([]string(l))
}

// PieceList is the concatenation of 20-byte SHA-1 piece digests.
type PieceList [][20]byte

func (p *PieceList) UnmarshalBencode(data []byte) error {
	raw, err := bencode.Decode[[]byte](data)
	if err != nil {
		return err
	}
	if len(raw)%20 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrPiecesLength, len(raw))
	}
	out := make(PieceList, len(raw)/20)
	for i := range out {
		copy(out[i][:], raw[i*20:])
	}
	*p = out
	return nil
}

func (p PieceList) MarshalBencode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(p) * 20)
	for _, piece := range p {
		buf.Write(piece[:])
	}
	return bencode.Marshal(buf.Bytes())
}
