// Package options implements the typed value model and the per-mod option
// store. Values are a closed tagged variant: every option declares one of a
// fixed set of kinds, and encode/decode is a single switch over that kind.
package options

import (
	"fmt"
)

// Kind identifies which variant of Value an option holds.
type Kind string

const (
	// KindBool is an on/off toggle.
	KindBool Kind = "bool"

	// KindNumber is a bounded numeric value with a step size.
	KindNumber Kind = "number"

	// KindChoice is one of a declared set of strings.
	KindChoice Kind = "choice"

	// KindString is a free-form string.
	KindString Kind = "string"

	// KindGroup is a structural node holding child options. Groups carry no
	// value of their own.
	KindGroup Kind = "group"
)

// Value is the tagged variant holding an option's current value.
// Only the payload field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Text   string
}

// BoolValue wraps a bool.
func BoolValue(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// NumberValue wraps a number.
func NumberValue(v float64) Value {
	return Value{Kind: KindNumber, Number: v}
}

// ChoiceValue wraps a choice selection.
func ChoiceValue(v string) Value {
	return Value{Kind: KindChoice, Text: v}
}

// StringValue wraps a string.
func StringValue(v string) Value {
	return Value{Kind: KindString, Text: v}
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindChoice, KindString:
		return v.Text
	default:
		return string(v.Kind)
	}
}

// Encoded is the portable, kind-tagged representation of a value, as written
// into persisted documents. The tag lets decode reject values whose kind no
// longer matches the declared option.
type Encoded struct {
	Kind  Kind `yaml:"kind"`
	Value any  `yaml:"value"`
}

// Encode converts a value into its portable representation.
func (v Value) Encode() Encoded {
	switch v.Kind {
	case KindBool:
		return Encoded{Kind: KindBool, Value: v.Bool}
	case KindNumber:
		return Encoded{Kind: KindNumber, Value: v.Number}
	case KindChoice:
		return Encoded{Kind: KindChoice, Value: v.Text}
	default:
		return Encoded{Kind: KindString, Value: v.Text}
	}
}

// DecodeValue converts a portable representation back into a value of the
// declared kind. A representation tagged with a different kind fails with
// ErrKindMismatch; callers are expected to fall back to the option's default.
func DecodeValue(e Encoded, declared Kind) (Value, error) {
	if e.Kind != declared {
		return Value{}, fmt.Errorf("%w: stored %q, declared %q", ErrKindMismatch, e.Kind, declared)
	}

	switch declared {
	case KindBool:
		b, ok := e.Value.(bool)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not a bool", ErrInvalidValue, e.Value)
		}
		return BoolValue(b), nil

	case KindNumber:
		n, ok := asFloat(e.Value)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not a number", ErrInvalidValue, e.Value)
		}
		return NumberValue(n), nil

	case KindChoice:
		s, ok := e.Value.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not a string", ErrInvalidValue, e.Value)
		}
		return ChoiceValue(s), nil

	case KindString:
		s, ok := e.Value.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not a string", ErrInvalidValue, e.Value)
		}
		return StringValue(s), nil

	default:
		return Value{}, fmt.Errorf("%w: kind %q holds no value", ErrInvalidValue, declared)
	}
}

// asFloat widens the numeric types the YAML decoder may produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
