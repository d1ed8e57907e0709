package attr

import (
	"fmt"
	"strconv"
)

// Kind enumerates the value types attributes can carry.
type Kind int

const (
	KindFloat Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged union holding one attribute reading. Only the field
// selected by Kind is meaningful.
type Value struct {
	Kind  Kind
	Float float64
	Bool  bool
	Str   string
}

func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func String(v string) Value { return Value{Kind: KindString, Str: v} }

// String renders the value in its wire form: floats with two decimals,
// bools as true/false, strings verbatim.
func (v Value) String() string {
	switch v.Kind {
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', 2, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return v.Str
	default:
		return ""
	}
}

// ParseValue parses the wire form of a value of the given kind.
func ParseValue(k Kind, s string) (Value, error) {
	switch k {
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid float %q", s)
		}
		return Float(f), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid bool %q", s)
		}
		return Bool(b), nil
	case KindString:
		return String(s), nil
	default:
		return Value{}, fmt.Errorf("unknown kind %d", k)
	}
}

// Update is the unit broadcast to subscribed clients after a poll cycle.
type Update struct {
	Name  string
	Value Value
}
