package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DigestLength is the size in bytes of every digest produced by Hash.
const DigestLength = sha256.Size

// Digest is a SHA-256 digest of canonical bytes.
type Digest [DigestLength]byte

// Hash computes sha256(data).
func Hash(data []byte) Digest {
	return sha256.Sum256(data)
}

// HashHex returns the lowercase hex form of Hash(data), without prefix.
func HashHex(data []byte) string {
	d := Hash(data)
	return d.Hex()
}

// HashValue canonicalizes v and hashes the result. The canonical bytes are
// returned alongside the digest so callers can sign or store them.
func HashValue(v any) (Digest, []byte, error) {
	raw, err := Canonicalize(v)
	if err != nil {
		return Digest{}, nil, err
	}
	return Hash(raw), raw, nil
}

// ParseDigest decodes a 64-character hex digest, with or without 0x prefix.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) != hex.EncodedLen(DigestLength) {
		return d, fmt.Errorf("digest must be %d hex characters, got %d", hex.EncodedLen(DigestLength), len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}

// Bytes returns a copy of the digest as a slice.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestLength)
	copy(out, d[:])
	return out
}

// Hex returns the lowercase hex encoding without prefix.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String returns the 0x-prefixed hex encoding.
func (d Digest) String() string {
	return "0x" + d.Hex()
}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
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

// Metadata bundles canonical bytes with audit information. It is never part
// of a signed payload.
type Metadata struct {
	Canonical   []byte    `json:"-"`
	Text        string    `json:"canonical"`
	Hash        string    `json:"hash"`
	ByteLength  int       `json:"byteLength"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// WithMetadata canonicalizes v and reports the canonical bytes, their hex
// digest and length, stamped with generatedAt.
func WithMetadata(v any, generatedAt time.Time) (*Metadata, error) {
	digest, raw, err := HashValue(v)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Canonical:   raw,
		Text:        string(raw),
		Hash:        digest.Hex(),
		ByteLength:  len(raw),
		GeneratedAt: generatedAt.UTC(),
	}, nil
}
