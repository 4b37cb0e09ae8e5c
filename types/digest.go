//nolint:revive // types is a common Go package naming convention
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestSize is the length of a SHA-256 digest in bytes.
const DigestSize = sha256.Size

// Digest is a SHA-256 digest.
type Digest [DigestSize]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 8 bytes as hex, for log lines.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:8])
}

// ParseDigest parses a 64-character hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != DigestSize {
		return d, fmt.Errorf("invalid digest length: got %d bytes, want %d", len(b), DigestSize)
	}
	copy(d[:], b)
	return d, nil
}

// DigestFromBytes converts a 32-byte slice into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("invalid digest length: got %d bytes, want %d", len(b), DigestSize)
	}
	copy(d[:], b)
	return d, nil
}

// SumBytes returns the SHA-256 digest of data.
func SumBytes(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}
