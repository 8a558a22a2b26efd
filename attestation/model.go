package attestation

import (
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/trufnetwork/wageproof/canonical"
)

// ExpiryWindow is how long an unclaimed attestation stays redeemable.
const ExpiryWindow = 7 * 24 * time.Hour

// Status is the lifecycle state of a WageAttestation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusClaimed  Status = "claimed"
	StatusExpired  Status = "expired"
	StatusRevoked  Status = "revoked"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusClaimed, StatusExpired, StatusRevoked:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusClaimed, StatusExpired, StatusRevoked:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// ValidatedAttestation holds the signable fields after validation. Times are
// UTC with millisecond precision and the wallet is lowercase.
type ValidatedAttestation struct {
	EmployerID     string       `json:"employerId"`
	EmployeeWallet string       `json:"employeeWallet"`
	WageAmount     int64        `json:"wageAmount"`
	PeriodStart    time.Time    `json:"periodStart"`
	PeriodEnd      time.Time    `json:"periodEnd"`
	HoursWorked    *apd.Decimal `json:"hoursWorked"`
	HourlyRate     int64        `json:"hourlyRate"`
	PeriodNonce    string       `json:"periodNonce"`
	Timestamp      time.Time    `json:"timestamp"`
}

// WageAttestation is a signed attestation. Everything except Status is fixed
// once the signature is attached. A single value must not be mutated by
// concurrent Manager calls; racing claimers should hold their own copies.
type WageAttestation struct {
	ID uuid.UUID `json:"attestationId"`
	ValidatedAttestation
	Signature     hexutil.Bytes    `json:"signature"`
	NullifierHash canonical.Digest `json:"nullifierHash"`
	CanonicalHash canonical.Digest `json:"canonicalHash"`
	Status        Status           `json:"status"`
}

// Clone returns a deep copy of a.
func (a *WageAttestation) Clone() *WageAttestation {
	out := *a
	if a.HoursWorked != nil {
		out.HoursWorked = new(apd.Decimal).Set(a.HoursWorked)
	}
	out.Signature = append(hexutil.Bytes(nil), a.Signature...)
	return &out
}

// RawFields is unvalidated attestation input, typically decoded JSON.
type RawFields map[string]any

// Field names shared by RawFields, the signable payload and JSON records.
const (
	FieldEmployerID     = "employerId"
	FieldEmployeeWallet = "employeeWallet"
	FieldWageAmount     = "wageAmount"
	FieldPeriodStart    = "periodStart"
	FieldPeriodEnd      = "periodEnd"
	FieldHoursWorked    = "hoursWorked"
	FieldHourlyRate     = "hourlyRate"
	FieldPeriodNonce    = "periodNonce"
	FieldTimestamp      = "timestamp"
)

// SignableFields lists, in canonical order, the fields covered by the signature.
var SignableFields = []string{
	FieldEmployeeWallet,
	FieldEmployerID,
	FieldHourlyRate,
	FieldHoursWorked,
	FieldPeriodEnd,
	FieldPeriodNonce,
	FieldPeriodStart,
	FieldTimestamp,
	FieldWageAmount,
}
