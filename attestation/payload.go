package attestation

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trufnetwork/wageproof/canonical"
)

// PrepareForSigning returns the signable payload of v: exactly the nine
// signed fields, wallet lowercased and timestamps normalized to UTC
// milliseconds. Fields outside that set never reach the signature.
func PrepareForSigning(v *ValidatedAttestation) map[string]any {
	return map[string]any{
		FieldEmployerID:     v.EmployerID,
		FieldEmployeeWallet: strings.ToLower(v.EmployeeWallet),
		FieldWageAmount:     v.WageAmount,
		FieldPeriodStart:    canonical.FormatTime(v.PeriodStart),
		FieldPeriodEnd:      canonical.FormatTime(v.PeriodEnd),
		FieldHoursWorked:    v.HoursWorked,
		FieldHourlyRate:     v.HourlyRate,
		FieldPeriodNonce:    v.PeriodNonce,
		FieldTimestamp:      canonical.FormatTime(v.Timestamp),
	}
}

// CanonicalBytes returns the canonical form of the signable payload.
func CanonicalBytes(v *ValidatedAttestation) ([]byte, error) {
	if v.HoursWorked == nil {
		return nil, &canonical.CanonicalizationError{Path: "/" + FieldHoursWorked, Reason: "missing value"}
	}
	return canonical.Canonicalize(PrepareForSigning(v))
}

// CanonicalHash returns sha256 of the canonical signable payload together with
// the canonical bytes.
func CanonicalHash(v *ValidatedAttestation) (canonical.Digest, []byte, error) {
	raw, err := CanonicalBytes(v)
	if err != nil {
		return canonical.Digest{}, nil, err
	}
	return canonical.Hash(raw), raw, nil
}

// CompareAttestations compares the signable payloads of a and b. Metadata
// such as status, signature or ID is ignored.
func CompareAttestations(a, b *WageAttestation) (*canonical.Comparison, error) {
	if a == nil || b == nil {
		return nil, errors.New("compare attestations: nil attestation")
	}
	if a.HoursWorked == nil || b.HoursWorked == nil {
		return nil, &canonical.CanonicalizationError{Path: "/" + FieldHoursWorked, Reason: "missing value"}
	}
	cmp, err := canonical.Compare(PrepareForSigning(&a.ValidatedAttestation), PrepareForSigning(&b.ValidatedAttestation))
	if err != nil {
		return nil, errors.Wrap(err, "compare attestations")
	}
	return cmp, nil
}
