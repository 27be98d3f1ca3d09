package ir

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface for literal values that may appear in a
// filter predicate. Only String, Int and Number implement it.
//
// Floats are never used for literals. Thresholds and scaled values travel
// as Number, which wraps an exact decimal so the rendered literal is
// identical to what the user typed after scaling.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// String is a text literal. It renders single-quoted.
type String string

func (String) irValue() {}

// Int is an integer literal. It renders unquoted.
type Int int64

func (Int) irValue() {}

// Number is an exact decimal literal. It renders unquoted.
type Number struct {
	decimal.Decimal
}

func (Number) irValue() {}

// NewNumber wraps a decimal as a Number.
func NewNumber(d decimal.Decimal) Number {
	return Number{Decimal: d}
}

// ParseNumber parses a decimal literal such as "1200000" or "2.5".
func ParseNumber(s string) (Number, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Number{}, fmt.Errorf("parse number %q: %w", s, err)
	}
	return Number{Decimal: d}, nil
}

// Text returns the unquoted textual form of a value.
func Text(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Number:
		return val.Decimal.String()
	default:
		return ""
	}
}

// IsNumeric reports whether v renders as an unquoted numeric literal.
func IsNumeric(v Value) bool {
	switch v.(type) {
	case Int, Number:
		return true
	default:
		return false
	}
}

// MarshalValue marshals a Value to JSON. Numbers are emitted as JSON
// strings to keep their exact decimal form.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Number:
		return json.Marshal(val.Decimal.String())
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}
