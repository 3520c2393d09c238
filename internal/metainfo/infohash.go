package metainfo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/danmuck/torrentctl/internal/bencode"
)

// InfoHash is the SHA-1 digest of the encoded info dictionary.
type InfoHash [20]byte

func (h InfoHash) String() string {
	return hex.EncodeToString(h[:])
}

func (h InfoHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *InfoHash) UnmarshalText(text []byte) error {
	parsed, err := ParseInfoHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseInfoHash reads a 40-character hex digest.
func ParseInfoHash(s string) (InfoHash, error) {
	var h InfoHash
	if len(s) != hex.EncodedLen(len(h)) {
		return h, fmt.Errorf("%w: %q", ErrInvalidInfoHash, s)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidInfoHash, err)
	}
	return h, nil
}

// ComputeInfoHash walks the top-level dict of data with the cursor API and
// hashes the exact bytes of its info value. The rest of the dict is still
// read so malformed trailing content is reported.
func ComputeInfoHash(data []byte) (InfoHash, error) {
	raw, err := InfoBytes(data)
	if err != nil {
		return InfoHash{}, err
	}
	return InfoHash(sha1.Sum(raw)), nil
}

// InfoBytes returns the exact encoded bytes of the info dictionary. The slice
// aliases data.
func InfoBytes(data []byte) ([]byte, error) {
	tz := bencode.NewTokenizer(data)
	obj, ok, err := tz.Parse()
	if err != nil {
		return nil, err
	}
	dict, isDict := obj.Dict()
	if !ok || !isDict {
		return nil, ErrNotDict
	}
	defer dict.Close()

	var info []byte
	for {
		key, val, ok, err := dict.NextPair()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if string(key) != "info" {
			continue
		}
		if val.Kind() != bencode.KindDict {
			return nil, fmt.Errorf("%w: info is a %s", ErrMissingInfo, val.Kind())
		}
		if info, err = val.Raw(); err != nil {
			return nil, err
		}
	}
	if info == nil {
		return nil, ErrMissingInfo
	}
	return info, nil
}
