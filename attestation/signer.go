package attestation

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EmployerSigner signs attestation digests with an employer's secp256k1 key.
// Signatures are 65-byte EVM-compatible [R || S || V] with V in {27, 28}.
//
// Nonces are derived per RFC 6979 by go-ethereum's secp256k1 backend, so the
// same key and digest always yield the same signature.
type EmployerSigner struct {
	privateKey *ecdsa.PrivateKey
}

// NewEmployerSigner wraps a secp256k1 private key.
func NewEmployerSigner(privateKey *ecdsa.PrivateKey) (*EmployerSigner, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	return &EmployerSigner{privateKey: privateKey}, nil
}

// NewEmployerSignerFromHex parses a 32-byte hex private key, with or without 0x.
func NewEmployerSignerFromHex(hexKey string) (*EmployerSigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewEmployerSigner(key)
}

// GenerateEmployerSigner creates a signer around a fresh random key.
func GenerateEmployerSigner() (*EmployerSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewEmployerSigner(key)
}

// SignDigest signs the provided 32-byte digest (already hashed) and returns a 65-byte EVM-compatible signature.
func (s *EmployerSigner) SignDigest(digest []byte) ([]byte, error) {
	if s == nil || s.privateKey == nil {
		return nil, fmt.Errorf("private key not initialized")
	}

	if len(digest) != crypto.DigestLength {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", crypto.DigestLength, len(digest))
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}

	// crypto.Sign returns V in {0,1}; shift to the EVM {27,28} form.
	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	v &= 1
	signature[64] = v + 27
	return signature, nil
}

// PublicKey returns the 65-byte uncompressed public key.
func (s *EmployerSigner) PublicKey() []byte {
	return crypto.FromECDSAPub(&s.privateKey.PublicKey)
}

// CompressedPublicKey returns the 33-byte compressed public key.
func (s *EmployerSigner) CompressedPublicKey() []byte {
	return crypto.CompressPubkey(&s.privateKey.PublicKey)
}

// Address returns the Ethereum address derived from the public key.
func (s *EmployerSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.privateKey.PublicKey)
}

// PrivateKeyHex exports the key as lowercase hex for key-custody tooling.
func (s *EmployerSigner) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}
