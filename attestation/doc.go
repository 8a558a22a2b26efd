// Package attestation issues and redeems wage attestations.
//
// An employer signs a claim that a wallet earned an amount for a work period.
// The engine:
// 1. Validates the raw fields, collecting every violated invariant
// 2. Reduces the nine signable fields to canonical bytes and hashes them
// 3. Signs the digest with the employer's secp256k1 key (EVM-compatible R||S||V)
// 4. Derives the period nullifier from (employer, wallet, period nonce)
// 5. Later verifies the signature and consumes the nullifier exactly once
//
// Key components:
// - Validator: collect-all rule evaluation over RawFields
// - EmployerSigner / VerifyDigest: secp256k1 signing and constant-time verification
// - DeriveNullifier: amount-independent period identity
// - Manager: pending → verified → claimed state machine over a registry.Registry
package attestation
