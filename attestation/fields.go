package attestation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/mitchellh/mapstructure"
)

// MaxHoursScale is the number of fractional digits hoursWorked may carry.
const MaxHoursScale = 6

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(apd.Decimal{})
)

// fieldDecoder turns RawFields entries into typed values. Type problems are
// recorded against the field instead of aborting, so one pass reports all of
// them.
type fieldDecoder struct {
	raw  RawFields
	errs ValidationErrors
}

func (d *fieldDecoder) fail(field string, reason ValidationReason, format string, args ...any) {
	d.errs = append(d.errs, FieldError{Field: field, Reason: reason, Message: fmt.Sprintf(format, args...)})
}

// lookup returns the raw value and whether it was supplied. A nil value counts
// as supplied only for required fields, where it is a type error.
func (d *fieldDecoder) lookup(field string, required bool) (any, bool) {
	v, ok := d.raw[field]
	if !ok || v == nil {
		if required {
			if ok {
				d.fail(field, ReasonInvalidType, "must not be null")
			} else {
				d.fail(field, ReasonMissingField, "is required")
			}
		}
		return nil, false
	}
	return v, true
}

func (d *fieldDecoder) decode(field string, in, out any) bool {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			decimalHook,
			integralHook,
		),
		Result: out,
	})
	if err != nil {
		d.fail(field, ReasonInvalidType, "decoder: %v", err)
		return false
	}
	if err := dec.Decode(in); err != nil {
		d.fail(field, ReasonInvalidType, "%v", err)
		return false
	}
	return true
}

func (d *fieldDecoder) str(field string, required bool) (string, bool) {
	v, ok := d.lookup(field, required)
	if !ok {
		return "", false
	}
	s, isString := v.(string)
	if !isString {
		d.fail(field, ReasonInvalidType, "expected string, got %T", v)
		return "", false
	}
	return s, true
}

func (d *fieldDecoder) int64(field string) (int64, bool) {
	v, ok := d.lookup(field, true)
	if !ok {
		return 0, false
	}
	var n int64
	return n, d.decode(field, v, &n)
}

func (d *fieldDecoder) decimal(field string) (*apd.Decimal, bool) {
	v, ok := d.lookup(field, true)
	if !ok {
		return nil, false
	}
	var dec apd.Decimal
	if !d.decode(field, v, &dec) {
		return nil, false
	}
	if dec.Form != apd.Finite {
		d.fail(field, ReasonInvalidType, "must be a finite number")
		return nil, false
	}
	var reduced apd.Decimal
	reduced.Reduce(&dec)
	if reduced.Exponent < -MaxHoursScale {
		d.fail(field, ReasonInvalidType, "at most %d fractional digits, got %s", MaxHoursScale, dec.String())
		return nil, false
	}
	return new(apd.Decimal).Set(&dec), true
}

func (d *fieldDecoder) time(field string, required bool) (time.Time, bool) {
	v, ok := d.lookup(field, required)
	if !ok {
		return time.Time{}, false
	}
	var t time.Time
	if !d.decode(field, v, &t) {
		return time.Time{}, false
	}
	return t.UTC().Truncate(time.Millisecond), true
}

// timeHook accepts RFC 3339 strings with any offset and fractional precision.
func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("expected RFC 3339 timestamp: %w", err)
		}
		return t, nil
	case *time.Time:
		return *v, nil
	case time.Time:
		return v, nil
	default:
		return nil, fmt.Errorf("expected timestamp, got %T", data)
	}
}

// decimalHook accepts integers, floats, json.Number and decimal strings.
func decimalHook(from, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	var out apd.Decimal
	switch v := data.(type) {
	case apd.Decimal:
		out.Set(&v)
	case *apd.Decimal:
		out.Set(v)
	case json.Number:
		if _, _, err := out.SetString(v.String()); err != nil {
			return nil, fmt.Errorf("expected decimal number: %w", err)
		}
	case string:
		if _, _, err := out.SetString(v); err != nil {
			return nil, fmt.Errorf("expected decimal number: %w", err)
		}
	case float64:
		if _, err := out.SetFloat64(v); err != nil {
			return nil, fmt.Errorf("expected finite number: %w", err)
		}
	case float32:
		if _, err := out.SetFloat64(float64(v)); err != nil {
			return nil, fmt.Errorf("expected finite number: %w", err)
		}
	default:
		rv := reflect.ValueOf(data)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out.SetInt64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			out.Coeff.SetUint64(rv.Uint())
			out.Exponent = 0
		default:
			return nil, fmt.Errorf("expected number, got %T", data)
		}
	}
	return out, nil
}

// integralHook keeps mapstructure from truncating fractional floats into
// integer fields.
func integralHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int64 {
		return data, nil
	}
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case string:
		return nil, fmt.Errorf("expected integer, got string")
	case bool:
		return nil, fmt.Errorf("expected integer, got bool")
	default:
		return data, nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("expected integer, got %v", f)
	}
	return int64(f), nil
}
