package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over the values that flow through vox:
// normalized slot parameters, context variables and snapshot payloads.
// Only Null, String, Int, Float, Bool, List and Object implement it.
type Value interface {
	value() // Sealed
}

// Null represents an absent value. Used instead of a nil interface so a
// Value is always safe to type-switch on.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text value (raw passthrough params, symbolic dates, "HH:MM" times).
type String string

func (String) value() {}

// Int is an integer value (numbers, quantities, table references).
type Int int64

func (Int) value() {}

// Float is a decimal value. Only currency amounts produce floats.
type Float float64

func (Float) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// List is an ordered sequence of values.
type List []Value

func (List) value() {}

// Object maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// Pair is a key-value pair for typed Object construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewObject(P("table", Int(5)), P("time", String("14:00")))
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewObject creates an Object from typed pairs.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// Clone returns a shallow copy of the object. A nil object clones to an
// empty, non-nil one.
func (obj Object) Clone() Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for non-BMP keys.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Interface unwraps a Value into plain Go data (string, int64, float64,
// bool, []any, map[string]any, nil). Used at the CLI and YAML boundaries.
func Interface(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Interface(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Interface(elem)
		}
		return out
	default:
		return nil
	}
}

// FromAny converts plain Go data into a Value.
//
// Integral floats (as produced by YAML and encoding/json) become Int so
// that a table number read from a scenario file compares equal to the
// Int produced by the number normalizer.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return floatValue(float64(val)), nil
	case float64:
		return floatValue(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Float(f), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func floatValue(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
// Not canonical (HTML escaping applies); use MarshalCanonical for hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// MarshalJSON implements json.Marshaler for List.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for List.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = make(List, len(raw))
	for i, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("list index %d: %w", i, err)
		}
		(*l)[i] = val
	}
	return nil
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case Float:
		return formatFloat(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case List:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes a JSON document into a Value. Integral numbers
// decode to Int, everything else numeric to Float.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

func formatFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.AppendFloat(nil, f, 'e', -1, 64), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}
