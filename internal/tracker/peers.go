package tracker

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/danmuck/torrentctl/internal/bencode"
)

const (
	compactPeerLen  = 6
	compactPeer6Len = 18
)

// Peer is one swarm member returned by an announce.
type Peer struct {
	Addr netip.AddrPort
	ID   []byte
}

func (p Peer) String() string {
	return p.Addr.String()
}

// Peers accepts both the compact byte-string form and the original list of
// {peer id, ip, port} dicts.
type Peers []Peer

type dictPeer struct {
	ID   []byte `bencode:"peer id,optional"`
	IP   string `bencode:"ip"`
	Port uint16 `bencode:"port"`
}

func (p *Peers) UnmarshalBencode(data []byte) error {
	if len(data) > 0 && data[0] == 'l' {
		var list []dictPeer
		if err := bencode.Unmarshal(data, &list); err != nil {
			return err
		}
		out := make(Peers, 0, len(list))
		for _, dp := range list {
			addr, err := netip.ParseAddr(dp.IP)
			if err != nil {
				// some trackers hand out hostnames here; they are not dialable peers for us
				continue
			}
			out = append(out, Peer{Addr: netip.AddrPortFrom(addr.Unmap(), dp.Port), ID: dp.ID})
		}
		*p = out
		return nil
	}
	var raw []byte
	if err := bencode.Unmarshal(data, &raw); err != nil {
		return err
	}
	peers, err := parseCompact(raw, compactPeerLen)
	if err != nil {
		return err
	}
	*p = peers
	return nil
}

// Peers6 is the compact IPv6 peer list.
type Peers6 []Peer

func (p *Peers6) UnmarshalBencode(data []byte) error {
	var raw []byte
	if err := bencode.Unmarshal(data, &raw); err != nil {
		return err
	}
	peers, err := parseCompact(raw, compactPeer6Len)
	if err != nil {
		return err
	}
	*p = Peers6(peers)
	return nil
}

func parseCompact(raw []byte, stride int) ([]Peer, error) {
	if len(raw)%stride != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidCompactPeer, len(raw), stride)
	}
	out := make([]Peer, 0, len(raw)/stride)
	for i := 0; i < len(raw); i += stride {
		entry := raw[i : i+stride]
		ip, ok := netip.AddrFromSlice(entry[:stride-2])
		if !ok {
			return nil, ErrInvalidCompactPeer
		}
		port := binary.BigEndian.Uint16(entry[stride-2:])
		out = append(out, Peer{Addr: netip.AddrPortFrom(ip, port)})
	}
	return out, nil
}
