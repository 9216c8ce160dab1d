package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Digest is a 32-byte content hash identifying component bytecode.
type Digest [32]byte

// DigestOf computes the content digest of raw bytes using the same
// Keccak256 primitive go-ethereum uses for every other on-chain hash in
// this codebase, so a Digest and an event_id are produced the same way.
func DigestOf(b []byte) Digest {
	var d Digest
	copy(d[:], crypto.Keccak256(b))
	return d
}

func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func ParseDigest(s string) (Digest, error) {
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != 32 {
		return Digest{}, fmt.Errorf("parse digest: want 32 bytes, got %d", len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
