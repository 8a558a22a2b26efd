// Package canonical renders structured values into a single deterministic byte
// form used for hashing and signing attestations.
//
// The output is JSON-compatible: object keys sorted byte-wise, no insignificant
// whitespace, timestamps in UTC with millisecond precision, numbers without
// exponents and hex addresses lowercased. Two logically equal values always
// produce identical bytes.
package canonical

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
)

// TimeLayout is the only timestamp form emitted by Canonicalize.
const TimeLayout = "2006-01-02T15:04:05.000Z"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var (
	timeType       = reflect.TypeOf(time.Time{})
	decimalType    = reflect.TypeOf(apd.Decimal{})
	bigIntType     = reflect.TypeOf(big.Int{})
	jsonNumberType = reflect.TypeOf(json.Number(""))
)

// Canonicalize returns the canonical byte form of v.
//
// Supported values are nil, bool, strings, every Go integer and float kind,
// json.Number, apd.Decimal, big.Int, time.Time, []byte, slices and arrays of
// supported values, and maps keyed by strings. Pointers are followed; a nil
// pointer, map or slice renders as null. Anything else yields a
// *CanonicalizationError.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, reflect.ValueOf(v), ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustCanonicalize is like Canonicalize but panics on error. Intended for
// static values and tests.
func MustCanonicalize(v any) []byte {
	b, err := Canonicalize(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Parse decodes canonical bytes back into generic values (map[string]any,
// []any, string, bool, nil and json.Number). Feeding the result back into
// Canonicalize yields the original bytes.
func Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, &CanonicalizationError{Reason: "parse: " + err.Error()}
	}
	if dec.More() {
		return nil, &CanonicalizationError{Reason: "parse: trailing data after value"}
	}
	return out, nil
}

func encode(buf *bytes.Buffer, v reflect.Value, path string) error {
	if !v.IsValid() {
		buf.WriteString("null")
		return nil
	}

	switch v.Type() {
	case timeType:
		writeString(buf, FormatTime(v.Interface().(time.Time)))
		return nil
	case decimalType:
		d := v.Interface().(apd.Decimal)
		return encodeDecimal(buf, &d, path)
	case bigIntType:
		b := v.Interface().(big.Int)
		buf.WriteString(b.String())
		return nil
	case jsonNumberType:
		return encodeNumberLiteral(buf, v.String(), path)
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encode(buf, v.Elem(), path)
	case reflect.Bool:
		if v.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return encodeFloat(buf, v.Float(), v.Type().Bits(), path)
	case reflect.String:
		writeString(buf, normalizeString(v.String()))
	case reflect.Slice:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			writeString(buf, "0x"+hex.EncodeToString(v.Bytes()))
			return nil
		}
		return encodeList(buf, v, path)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, v.Len())
			for i := range raw {
				raw[i] = byte(v.Index(i).Uint())
			}
			writeString(buf, normalizeString("0x"+hex.EncodeToString(raw)))
			return nil
		}
		return encodeList(buf, v, path)
	case reflect.Map:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encodeMap(buf, v, path)
	default:
		return &CanonicalizationError{Path: path, Reason: "unsupported type " + v.Type().String()}
	}
	return nil
}

func encodeList(buf *bytes.Buffer, v reflect.Value, path string) error {
	buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, v.Index(i), path+"/"+strconv.Itoa(i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeMap(buf *bytes.Buffer, v reflect.Value, path string) error {
	if v.Type().Key().Kind() != reflect.String {
		return &CanonicalizationError{Path: path, Reason: "map key type " + v.Type().Key().String() + " is not a string"}
	}

	keys := make([]string, 0, v.Len())
	values := make(map[string]reflect.Value, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		keys = append(keys, k)
		values[k] = iter.Value()
	}
	// sort.Strings compares bytes, not runes or locale collation.
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		if err := encode(buf, values[k], path+"/"+k); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeFloat(buf *bytes.Buffer, f float64, bits int, path string) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &CanonicalizationError{Path: path, Reason: "non-finite number"}
	}
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'f', -1, bits))
	return nil
}

// encodeNumberLiteral normalizes a decimal literal such as a json.Number so it
// renders exactly like the equivalent Go numeric value.
func encodeNumberLiteral(buf *bytes.Buffer, lit, path string) error {
	d, _, err := apd.NewFromString(lit)
	if err != nil {
		return &CanonicalizationError{Path: path, Reason: "invalid number literal " + strconv.Quote(lit)}
	}
	return encodeDecimal(buf, d, path)
}

func encodeDecimal(buf *bytes.Buffer, d *apd.Decimal, path string) error {
	if d.Form != apd.Finite {
		return &CanonicalizationError{Path: path, Reason: "non-finite decimal"}
	}
	buf.WriteString(FormatDecimal(d))
	return nil
}

// FormatDecimal renders d in plain notation with trailing fractional zeros
// removed. Negative zero renders as "0".
func FormatDecimal(d *apd.Decimal) string {
	var reduced apd.Decimal
	reduced.Reduce(d)
	if reduced.IsZero() {
		return "0"
	}
	return reduced.Text('f')
}

// FormatTime renders t in UTC with millisecond precision and a Z suffix.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(TimeLayout)
}

// IsAddress reports whether s is shaped like a 20-byte hex address.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

func normalizeString(s string) string {
	if IsAddress(s) {
		return "0x" + toLowerASCII(s[2:])
	}
	return s
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

const hexDigits = "0123456789abcdef"

// writeString emits s as a quoted string. Only '"', '\\' and bytes below 0x20
// are escaped; invalid UTF-8 becomes U+FFFD.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				buf.WriteString(`\"`)
			case '\\':
				buf.WriteString(`\\`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			case '\t':
				buf.WriteString(`\t`)
			default:
				if c < 0x20 {
					buf.WriteString(`\u00`)
					buf.WriteByte(hexDigits[c>>4])
					buf.WriteByte(hexDigits[c&0xF])
				} else {
					buf.WriteByte(c)
				}
			}
			i++
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
