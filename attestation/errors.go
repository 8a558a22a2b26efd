package attestation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trufnetwork/wageproof/canonical"
)

// Reason is a machine-readable rejection code.
type Reason string

const (
	ReasonValidation        Reason = "validation_failed"
	ReasonCanonicalization  Reason = "canonicalization_failed"
	ReasonSignature         Reason = "signature_invalid"
	ReasonExpired           Reason = "attestation_expired"
	ReasonNullifierConsumed Reason = "nullifier_consumed"
	ReasonNullifierMismatch Reason = "nullifier_mismatch"
	ReasonRevoked           Reason = "attestation_revoked"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonRegistry          Reason = "registry_unavailable"
)

// RejectionError is returned by every non-validation failure of the engine.
// errors.Is matches two RejectionErrors by Reason, so callers compare against
// the Err* sentinels.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *RejectionError) Unwrap() error { return e.Err }

func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Reason == e.Reason
}

var (
	ErrSignature         = &RejectionError{Reason: ReasonSignature}
	ErrExpired           = &RejectionError{Reason: ReasonExpired}
	ErrNullifierConsumed = &RejectionError{Reason: ReasonNullifierConsumed}
	ErrNullifierMismatch = &RejectionError{Reason: ReasonNullifierMismatch}
	ErrRevoked           = &RejectionError{Reason: ReasonRevoked}
	ErrInvalidTransition = &RejectionError{Reason: ReasonInvalidTransition}
	ErrRegistry          = &RejectionError{Reason: ReasonRegistry}
)

func reject(reason Reason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// ReasonOf extracts the machine-readable reason carried by err, or "" when
// err did not come from this package.
func ReasonOf(err error) Reason {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return ReasonValidation
	}
	var cerr *canonical.CanonicalizationError
	if errors.As(err, &cerr) {
		return ReasonCanonicalization
	}
	return ""
}

// ValidationReason identifies the invariant a FieldError violates.
type ValidationReason string

const (
	ReasonMissingField      ValidationReason = "missing_field"
	ReasonInvalidType       ValidationReason = "invalid_type"
	ReasonInvalidWallet     ValidationReason = "invalid_wallet"
	ReasonInvalidIdentifier ValidationReason = "invalid_identifier"
	ReasonNotPositive       ValidationReason = "not_positive"
	ReasonPeriodOrder       ValidationReason = "period_order"
	ReasonPeriodInFuture    ValidationReason = "period_in_future"
	ReasonTimestampInFuture ValidationReason = "timestamp_in_future"
	ReasonPeriodTooLong     ValidationReason = "period_too_long"
	ReasonHoursExceedPeriod ValidationReason = "hours_exceed_period"
	ReasonRateOutOfBounds   ValidationReason = "rate_out_of_bounds"
	ReasonWageMismatch      ValidationReason = "wage_mismatch"
)

// FieldError is a single violated invariant.
type FieldError struct {
	Field   string           `json:"field"`
	Reason  ValidationReason `json:"reason"`
	Message string           `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Reason)
}

// ValidationErrors lists every invariant an input violates.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("validation failed with %d error(s): %s", len(v), strings.Join(parts, "; "))
}

// Has reports whether any entry carries reason.
func (v ValidationErrors) Has(reason ValidationReason) bool {
	for _, fe := range v {
		if fe.Reason == reason {
			return true
		}
	}
	return false
}

// ForField returns the entries attributed to field.
func (v ValidationErrors) ForField(field string) ValidationErrors {
	var out ValidationErrors
	for _, fe := range v {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}
