// Package lump implements the content-addressed blob store: BLAKE3
// digests, a hot in-memory LRU tier, a durable zstd-compressed on-disk
// tier, refcounted handles, and coalesced remote fetches over a peer
// link.
package lump

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a lump's content address: the BLAKE3-256 hash of its bytes.
type Digest [32]byte

// Compute hashes data into its digest. Computing the same bytes twice
// always yields the same Digest (idempotence is load-bearing: it's what
// lets two processes `put` identical content and land on one shared
// lump).
func Compute(data []byte) Digest {
	var d Digest
	sum := blake3.Sum256(data)
	copy(d[:], sum[:])
	return d
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func (d Digest) IsZero() bool { return d == Digest{} }

// ParseDigest decodes a hex-encoded digest, as seen on the wire in
// LumpRequest/LumpReply frames.
func ParseDigest(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("lump: invalid digest %q: %w", s, err)
	}
	if len(b) != len(Digest{}) {
		return Digest{}, fmt.Errorf("lump: invalid digest length %d", len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}
