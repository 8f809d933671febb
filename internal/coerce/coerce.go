// Package coerce converts raw string cells into typed values.
//
// Every function follows the same policy: an unparseable cell becomes nil and
// ok reports false. Nothing here returns an error; whether a failure matters
// (for example on a primary-key column) is decided by the caller.
package coerce

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Type is the logical type of a target column.
type Type string

const (
	Integer Type = "integer"
	Float   Type = "float"
	Date    Type = "date"
	Time    Type = "time"
	Text    Type = "text"
)

// DateLayout is the DD.MM.YYYY layout used by the SAP exports.
const DateLayout = "02.01.2006"

// TimeLayout is the HH:MM:SS layout used by the SAP exports.
const TimeLayout = "15:04:05"

// ParseType maps a configuration string onto a Type. Short aliases used by
// older pipeline files (int, str, string) are accepted.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int":
		return Integer, nil
	case "float", "real", "double":
		return Float, nil
	case "date":
		return Date, nil
	case "time":
		return Time, nil
	case "text", "str", "string":
		return Text, nil
	}
	return "", fmt.Errorf("coerce: unknown column type %q", s)
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	switch t {
	case Integer, Float, Date, Time, Text:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// String renders t as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Value implements driver.Valuer. Every supported backend accepts the
// HH:MM:SS literal for a TIME column.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Value coerces raw into t. raw is normally a string or nil; any other type
// is returned unchanged when it already matches t. decimalComma enables the
// locale normalisation of Float cells.
//
// Empty cells become nil with ok=true for every type except Text, which keeps
// the empty string.
func Value(t Type, raw any, decimalComma bool) (any, bool) {
	if raw == nil {
		return nil, true
	}
	s, isStr := raw.(string)
	if !isStr {
		return passthrough(t, raw)
	}
	if t == Text {
		return s, true
	}
	if strings.TrimSpace(s) == "" {
		return nil, true
	}

	var (
		v  any
		ok bool
	)
	switch t {
	case Integer:
		v, ok = Int(s)
	case Float:
		if decimalComma {
			v, ok = LocaleFloat(s)
		} else {
			v, ok = Float64(s)
		}
	case Date:
		v, ok = ParseDate(s)
	case Time:
		v, ok = ParseTime(s)
	default:
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return v, true
}

// Int parses s as a strict base-10 integer. Fractional input is a failure,
// never truncated.
func Int(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// decimal is the plain dot-decimal form, optionally with an exponent.
// ParseFloat alone would also take NaN, Inf, hex and underscored digits.
var decimal = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Float64 parses s as a dot-decimal number.
func Float64(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !decimal.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// LocaleFloat parses numbers written with a comma decimal separator and
// space thousands separators, e.g. "1 234,56".
func LocaleFloat(s string) (float64, bool) {
	return Float64(NormalizeDecimal(s))
}

// NormalizeDecimal strips thousands-separator spaces (including the
// non-breaking variants) and turns a decimal comma into a dot.
func NormalizeDecimal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			continue
		case ',':
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseDate parses DD.MM.YYYY into a UTC midnight time.Time.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseTime parses HH:MM:SS.
func ParseTime(s string) (TimeOfDay, bool) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, true
}

func passthrough(t Type, raw any) (any, bool) {
	switch t {
	case Integer:
		switch n := raw.(type) {
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
	case Float:
		switch f := raw.(type) {
		case float64:
			return f, true
		case int64:
			return float64(f), true
		}
	case Date:
		if d, ok := raw.(time.Time); ok {
			return d, true
		}
	case Time:
		if d, ok := raw.(TimeOfDay); ok {
			return d, true
		}
	case Text:
		return fmt.Sprint(raw), true
	}
	return nil, false
}
