package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the primitive held by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a small tagged union of JSON primitives. Domain-specific fields of an
// item live in StructuredData as Values, so one item shape serves every domain.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Interface returns the Go primitive (nil, string, float64 or bool).
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// Text renders the value for flat exports.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts null, strings, numbers and booleans. Objects and arrays
// are rejected: nested payloads belong in separate keys.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("structured value: empty input")
	}
	switch b[0] {
	case 'n':
		*v = Null()
		return json.Unmarshal(b, new(any))
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var x bool
		if err := json.Unmarshal(b, &x); err != nil {
			return err
		}
		*v = Boolean(x)
	case '{', '[':
		return fmt.Errorf("structured value: nested %s not supported", map[byte]string{'{': "object", '[': "array"}[b[0]])
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*v = Number(f)
	}
	return nil
}

// StructuredData is the open key/value payload of an item.
type StructuredData map[string]Value

// FromAny converts decoded JSON-ish values. Unsupported kinds return an error.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Boolean(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	default:
		return Value{}, fmt.Errorf("structured value: unsupported type %T", x)
	}
}

func itoa(i int) string { return strconv.Itoa(i) }
