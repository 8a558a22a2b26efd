package attestation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/apd/v3"
	"github.com/samber/lo"
)

const (
	// MaxPeriod is the longest work period a single attestation may cover.
	MaxPeriod = 28 * 24 * time.Hour

	// WageTolerance is the allowed distance, in minor units, between the
	// attested wage and round(hoursWorked * hourlyRate).
	WageTolerance = 1

	DefaultMinHourlyRate int64 = 100
	DefaultMaxHourlyRate int64 = 50_000
)

var walletPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// decimalCtx is shared read-only; apd contexts carry no mutable state.
var decimalCtx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(40)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// ValidatorOptions tunes the configurable invariants.
type ValidatorOptions struct {
	MinHourlyRate int64
	MaxHourlyRate int64
}

// DefaultValidatorOptions returns the 100–50,000 minor units per hour bounds.
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{MinHourlyRate: DefaultMinHourlyRate, MaxHourlyRate: DefaultMaxHourlyRate}
}

// draft carries decoded fields plus which of them decoded cleanly.
type draft struct {
	ValidatedAttestation
	ok map[string]bool
}

func (d *draft) has(fields ...string) bool {
	for _, f := range fields {
		if !d.ok[f] {
			return false
		}
	}
	return true
}

// rule checks one invariant. Rules skip silently when the fields they depend
// on failed to decode; the decode error is already recorded.
type rule interface {
	Name() string
	Check(d *draft, now time.Time) []FieldError
}

type ruleFunc struct {
	name  string
	check func(d *draft, now time.Time) []FieldError
}

func (r ruleFunc) Name() string                               { return r.name }
func (r ruleFunc) Check(d *draft, now time.Time) []FieldError { return r.check(d, now) }

// Validator applies every attestation invariant and reports all violations.
// It is stateless after construction and safe for concurrent use.
type Validator struct {
	opts  ValidatorOptions
	rules []rule
}

// NewValidator builds a validator with the standard rule set.
func NewValidator(opts ValidatorOptions) *Validator {
	if opts.MinHourlyRate == 0 && opts.MaxHourlyRate == 0 {
		opts = DefaultValidatorOptions()
	}
	return &Validator{
		opts: opts,
		rules: []rule{
			ruleFunc{"wallet_format", checkWallet},
			ruleFunc{"identifiers", checkIdentifiers},
			ruleFunc{"positive_amounts", checkPositive},
			ruleFunc{"period_order", checkPeriod},
			ruleFunc{"timestamp_not_future", checkTimestamp},
			ruleFunc{"period_length", checkPeriodLength},
			ruleFunc{"hours_within_period", checkHoursWithinPeriod},
			ruleFunc{"hourly_rate_bounds", opts.checkRateBounds},
			ruleFunc{"wage_arithmetic", checkWageArithmetic},
		},
	}
}

// Rules returns the rule names in evaluation order.
func (v *Validator) Rules() []string {
	return lo.Map(v.rules, func(r rule, _ int) string { return r.Name() })
}

// Validate decodes raw and checks it against every invariant. On failure the
// returned error is a ValidationErrors listing all violations. A missing
// timestamp defaults to now; a missing periodNonce stays empty for the caller
// to generate. Validate is deterministic for identical raw and now.
func (v *Validator) Validate(raw RawFields, now time.Time) (*ValidatedAttestation, error) {
	dec := &fieldDecoder{raw: raw}
	d := &draft{ok: make(map[string]bool, len(SignableFields))}

	d.EmployerID, d.ok[FieldEmployerID] = dec.str(FieldEmployerID, true)
	d.EmployeeWallet, d.ok[FieldEmployeeWallet] = dec.str(FieldEmployeeWallet, true)
	d.WageAmount, d.ok[FieldWageAmount] = dec.int64(FieldWageAmount)
	d.PeriodStart, d.ok[FieldPeriodStart] = dec.time(FieldPeriodStart, true)
	d.PeriodEnd, d.ok[FieldPeriodEnd] = dec.time(FieldPeriodEnd, true)
	d.HoursWorked, d.ok[FieldHoursWorked] = dec.decimal(FieldHoursWorked)
	d.HourlyRate, d.ok[FieldHourlyRate] = dec.int64(FieldHourlyRate)
	d.PeriodNonce, d.ok[FieldPeriodNonce] = dec.str(FieldPeriodNonce, false)

	var hasTimestamp bool
	d.Timestamp, hasTimestamp = dec.time(FieldTimestamp, false)
	if v, supplied := raw[FieldTimestamp]; !hasTimestamp && (!supplied || v == nil) {
		d.Timestamp = now.UTC().Truncate(time.Millisecond)
	}

	errs := dec.errs
	now = now.UTC()
	for _, r := range v.rules {
		errs = append(errs, r.Check(d, now)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	d.EmployeeWallet = strings.ToLower(d.EmployeeWallet)
	out := d.ValidatedAttestation
	return &out, nil
}

func checkWallet(d *draft, _ time.Time) []FieldError {
	if !d.has(FieldEmployeeWallet) {
		return nil
	}
	if !walletPattern.MatchString(strings.ToLower(d.EmployeeWallet)) {
		return []FieldError{{
			Field:   FieldEmployeeWallet,
			Reason:  ReasonInvalidWallet,
			Message: fmt.Sprintf("must be 0x followed by 40 hex characters, got %q", d.EmployeeWallet),
		}}
	}
	return nil
}

// checkIdentifiers rejects empty identifiers and control characters; the
// nullifier derivation relies on NUL never appearing in them.
func checkIdentifiers(d *draft, _ time.Time) []FieldError {
	var errs []FieldError
	check := func(field, value string, required bool) {
		switch {
		case strings.TrimSpace(value) == "" && required:
			errs = append(errs, FieldError{Field: field, Reason: ReasonInvalidIdentifier, Message: "must not be empty"})
		case strings.IndexFunc(value, unicode.IsControl) >= 0:
			errs = append(errs, FieldError{Field: field, Reason: ReasonInvalidIdentifier, Message: "must not contain control characters"})
		}
	}
	if d.has(FieldEmployerID) {
		check(FieldEmployerID, d.EmployerID, true)
	}
	if d.has(FieldPeriodNonce) {
		check(FieldPeriodNonce, d.PeriodNonce, true)
	}
	return errs
}

func checkPositive(d *draft, _ time.Time) []FieldError {
	var errs []FieldError
	if d.has(FieldWageAmount) && d.WageAmount <= 0 {
		errs = append(errs, FieldError{Field: FieldWageAmount, Reason: ReasonNotPositive, Message: fmt.Sprintf("must be positive, got %d", d.WageAmount)})
	}
	if d.has(FieldHoursWorked) && d.HoursWorked.Sign() <= 0 {
		errs = append(errs, FieldError{Field: FieldHoursWorked, Reason: ReasonNotPositive, Message: fmt.Sprintf("must be positive, got %s", d.HoursWorked.Text('f'))})
	}
	if d.has(FieldHourlyRate) && d.HourlyRate <= 0 {
		errs = append(errs, FieldError{Field: FieldHourlyRate, Reason: ReasonNotPositive, Message: fmt.Sprintf("must be positive, got %d", d.HourlyRate)})
	}
	return errs
}

func checkPeriod(d *draft, now time.Time) []FieldError {
	var errs []FieldError
	if d.has(FieldPeriodStart, FieldPeriodEnd) && !d.PeriodStart.Before(d.PeriodEnd) {
		errs = append(errs, FieldError{
			Field:   FieldPeriodStart,
			Reason:  ReasonPeriodOrder,
			Message: fmt.Sprintf("periodStart %s must be before periodEnd %s", d.PeriodStart.Format(time.RFC3339), d.PeriodEnd.Format(time.RFC3339)),
		})
	}
	if d.has(FieldPeriodEnd) && d.PeriodEnd.After(now) {
		errs = append(errs, FieldError{
			Field:   FieldPeriodEnd,
			Reason:  ReasonPeriodInFuture,
			Message: fmt.Sprintf("periodEnd %s is after now %s", d.PeriodEnd.Format(time.RFC3339), now.Format(time.RFC3339)),
		})
	}
	return errs
}

// checkTimestamp bounds the issue time; the redemption window counts from it.
func checkTimestamp(d *draft, now time.Time) []FieldError {
	if d.Timestamp.After(now) {
		return []FieldError{{
			Field:   FieldTimestamp,
			Reason:  ReasonTimestampInFuture,
			Message: fmt.Sprintf("timestamp %s is after now %s", d.Timestamp.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano)),
		}}
	}
	return nil
}

func checkPeriodLength(d *draft, _ time.Time) []FieldError {
	if !d.has(FieldPeriodStart, FieldPeriodEnd) {
		return nil
	}
	if length := d.PeriodEnd.Sub(d.PeriodStart); length > MaxPeriod {
		return []FieldError{{
			Field:   FieldPeriodEnd,
			Reason:  ReasonPeriodTooLong,
			Message: fmt.Sprintf("period of %s exceeds %s", length, MaxPeriod),
		}}
	}
	return nil
}

func checkHoursWithinPeriod(d *draft, _ time.Time) []FieldError {
	if !d.has(FieldPeriodStart, FieldPeriodEnd, FieldHoursWorked) {
		return nil
	}
	length := d.PeriodEnd.Sub(d.PeriodStart)
	if length <= 0 {
		return nil
	}
	const day = 24 * time.Hour
	days := int64((length + day - 1) / day)
	limit := apd.New(24*days, 0)
	if d.HoursWorked.Cmp(limit) > 0 {
		return []FieldError{{
			Field:   FieldHoursWorked,
			Reason:  ReasonHoursExceedPeriod,
			Message: fmt.Sprintf("%s hours exceeds %d for a %d-day period", d.HoursWorked.Text('f'), 24*days, days),
		}}
	}
	return nil
}

func (o ValidatorOptions) checkRateBounds(d *draft, _ time.Time) []FieldError {
	if !d.has(FieldHourlyRate) || d.HourlyRate <= 0 {
		return nil
	}
	if d.HourlyRate < o.MinHourlyRate || d.HourlyRate > o.MaxHourlyRate {
		return []FieldError{{
			Field:   FieldHourlyRate,
			Reason:  ReasonRateOutOfBounds,
			Message: fmt.Sprintf("%d is outside [%d, %d]", d.HourlyRate, o.MinHourlyRate, o.MaxHourlyRate),
		}}
	}
	return nil
}

func checkWageArithmetic(d *draft, _ time.Time) []FieldError {
	if !d.has(FieldWageAmount, FieldHoursWorked, FieldHourlyRate) {
		return nil
	}
	expected, err := ExpectedWage(d.HoursWorked, d.HourlyRate)
	if err != nil {
		return []FieldError{{Field: FieldWageAmount, Reason: ReasonWageMismatch, Message: err.Error()}}
	}
	diff := d.WageAmount - expected
	if diff < -WageTolerance || diff > WageTolerance {
		return []FieldError{{
			Field:   FieldWageAmount,
			Reason:  ReasonWageMismatch,
			Message: fmt.Sprintf("%d does not match %s hours at %d (expected %d)", d.WageAmount, d.HoursWorked.Text('f'), d.HourlyRate, expected),
		}}
	}
	return nil
}

// ExpectedWage returns hours * rate rounded half-up to whole minor units.
func ExpectedWage(hours *apd.Decimal, rate int64) (int64, error) {
	var product, rounded apd.Decimal
	if _, err := decimalCtx.Mul(&product, hours, apd.New(rate, 0)); err != nil {
		return 0, fmt.Errorf("compute hours * rate: %w", err)
	}
	if _, err := decimalCtx.Quantize(&rounded, &product, 0); err != nil {
		return 0, fmt.Errorf("round wage: %w", err)
	}
	n, err := rounded.Int64()
	if err != nil {
		return 0, fmt.Errorf("wage out of range: %w", err)
	}
	return n, nil
}
