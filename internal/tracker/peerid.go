package tracker

import (
	"crypto/rand"
	"fmt"
)

// PeerIDPrefix is the Azureus-style client tag of generated peer ids.
const PeerIDPrefix = "-TC0001-"

// PeerID identifies this client to trackers.
type PeerID [20]byte

func (p PeerID) String() string {
	return fmt.Sprintf("%q", p[:])
}

// NewPeerID returns PeerIDPrefix followed by 12 random bytes.
func NewPeerID() (PeerID, error) {
	var id PeerID
	n := copy(id[:], PeerIDPrefix)
	if _, err := rand.Read(id[n:]); err != nil {
		return PeerID{}, fmt.Errorf("tracker: generate peer id: %w", err)
	}
	return id, nil
}
