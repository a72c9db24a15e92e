package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256     HashAlgorithm = "sha256"
	Blake2b256 HashAlgorithm = "blake2b-256"
)

// Hasher provides extensible hashing functionality
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(Blake2b256)
}

// Hash computes a hex digest of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case SHA256:
		hash := sha256.Sum256(data)
		return hex.EncodeToString(hash[:])
	case Blake2b256:
		hash := blake2b.Sum256(data)
		return hex.EncodeToString(hash[:])
	default:
		hash := blake2b.Sum256(data)
		return hex.EncodeToString(hash[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

var fingerprinter = DefaultHasher()

// Fingerprint is the digest used for app sources and installed
// packages: BLAKE2b-256, hex encoded. Identity and change detection
// only; isolation never depends on it.
func Fingerprint(data []byte) string {
	return fingerprinter.Hash(data)
}

// ShortFingerprint returns an 8-character display form
func ShortFingerprint(full string) string {
	if len(full) < 8 {
		return full
	}
	return full[:8]
}
