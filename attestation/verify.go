package attestation

import (
	"crypto/ecdsa"
	"crypto/subtle"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an [R || S || V] signature.
const SignatureLength = crypto.SignatureLength

// VerifyDigest checks that signature is a valid secp256k1 signature over the
// exact 32-byte digest by the holder of publicKey (33-byte compressed or
// 65-byte uncompressed).
//
// Verification steps:
// 1. Reject wrong digest / signature lengths and unknown recovery ids
// 2. Verify R and S against the key (high-S encodings are rejected)
// 3. Recover the key from the signature and compare it in constant time
//
// Every failure returns false with a *RejectionError of ReasonSignature.
func VerifyDigest(digest, signature, publicKey []byte) (bool, error) {
	norm, err := normalizeSignature(digest, signature)
	if err != nil {
		return false, err
	}

	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return false, &RejectionError{Reason: ReasonSignature, Err: err}
	}
	uncompressed := crypto.FromECDSAPub(pub)

	if !crypto.VerifySignature(uncompressed, digest, norm[:64]) {
		return false, reject(ReasonSignature, "signature does not match digest and public key")
	}

	recovered, err := crypto.Ecrecover(digest, norm)
	if err != nil {
		return false, reject(ReasonSignature, "recover public key from signature: %v", err)
	}
	if subtle.ConstantTimeCompare(recovered, uncompressed) != 1 {
		return false, reject(ReasonSignature, "recovered public key does not match employer key")
	}
	return true, nil
}

// VerifyDigestAddress is VerifyDigest for callers that only know the
// employer's address.
func VerifyDigestAddress(digest, signature []byte, employer common.Address) (bool, error) {
	norm, err := normalizeSignature(digest, signature)
	if err != nil {
		return false, err
	}

	pub, err := crypto.SigToPub(digest, norm)
	if err != nil {
		return false, reject(ReasonSignature, "recover public key from signature: %v", err)
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(pub), digest, norm[:64]) {
		return false, reject(ReasonSignature, "malformed signature")
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if subtle.ConstantTimeCompare(recovered.Bytes(), employer.Bytes()) != 1 {
		return false, reject(ReasonSignature, "signature was not produced by %s", employer.Hex())
	}
	return true, nil
}

// normalizeSignature validates lengths and returns a copy of signature with V
// in the compact {0,1} form go-ethereum expects.
func normalizeSignature(digest, signature []byte) ([]byte, error) {
	if len(digest) != crypto.DigestLength {
		return nil, reject(ReasonSignature, "digest must be %d bytes, got %d", crypto.DigestLength, len(digest))
	}
	if len(signature) != SignatureLength {
		return nil, reject(ReasonSignature, "signature must be %d bytes, got %d", SignatureLength, len(signature))
	}
	norm := append([]byte(nil), signature...)
	recoveryID, err := toCompactRecoveryID(norm[64])
	if err != nil {
		return nil, &RejectionError{Reason: ReasonSignature, Err: err}
	}
	norm[64] = recoveryID
	return norm, nil
}

func toCompactRecoveryID(v byte) (byte, error) {
	switch v {
	case 0, 1:
		return v, nil
	case 27, 28:
		return v - 27, nil
	default:
		return 0, fmt.Errorf("invalid recovery id %d", v)
	}
}

func parsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	switch len(b) {
	case 33:
		pub, err := crypto.DecompressPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed public key: %w", err)
		}
		return pub, nil
	case 65:
		pub, err := crypto.UnmarshalPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("public key must be 33 or 65 bytes, got %d", len(b))
	}
}
