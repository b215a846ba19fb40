package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Digests are content fingerprints of a buffer, hex encoded at their full
// width.
type Digests struct {
	SHA256     string `json:"sha256"`
	BLAKE2b256 string `json:"blake2b256"`
	XXH64      string `json:"xxh64"`
}

// ComputeDigests hashes buf with SHA-256, BLAKE2b-256 and XXH64.
func ComputeDigests(buf []byte) Digests {
	sha := sha256.Sum256(buf)
	b2 := blake2b.Sum256(buf)
	return Digests{
		SHA256:     hex.EncodeToString(sha[:]),
		BLAKE2b256: hex.EncodeToString(b2[:]),
		XXH64:      fmt.Sprintf("%016x", xxhash.Sum64(buf)),
	}
}
