package attestation

import (
	"strings"

	"github.com/trufnetwork/wageproof/canonical"
)

// nullifierSeparator cannot occur in a validated identifier.
const nullifierSeparator = "\x00"

// DeriveNullifier identifies the claim-eligibility of one work period:
// sha256(employerID || 0x00 || lower(wallet) || 0x00 || periodNonce).
//
// The amount, hours, rate and signature are not inputs, so every
// attestation for the same employer, wallet and period nonce shares one
// nullifier and can be redeemed at most once in total.
func DeriveNullifier(employerID, employeeWallet, periodNonce string) canonical.Digest {
	var b strings.Builder
	b.Grow(len(employerID) + len(employeeWallet) + len(periodNonce) + 2)
	b.WriteString(employerID)
	b.WriteString(nullifierSeparator)
	b.WriteString(strings.ToLower(employeeWallet))
	b.WriteString(nullifierSeparator)
	b.WriteString(periodNonce)
	return canonical.Hash([]byte(b.String()))
}

// Nullifier derives the nullifier of v.
func (v *ValidatedAttestation) Nullifier() canonical.Digest {
	return DeriveNullifier(v.EmployerID, v.EmployeeWallet, v.PeriodNonce)
}
