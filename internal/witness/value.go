package witness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Value is a sealed interface representing constrained witness value types.
// Only Null, String, Int, Bool, Array, and Object implement it.
// There is NO float variant - floats break deterministic round-trips.
type Value interface {
	witnessValue() // Sealed - only types in this package implement it
}

// Null represents a JSON null in a witness.
// An explicit type keeps the sealed interface total.
type Null struct{}

func (Null) witnessValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string witness value.
type String string

func (String) witnessValue() {}

// Int represents an integer witness value. Always int64, never float64.
type Int int64

func (Int) witnessValue() {}

// Bool represents a boolean witness value.
type Bool bool

func (Bool) witnessValue() {}

// NewString converts s to its stored form: each invalid UTF-8 byte becomes
// U+FFFD and the result is NFC normalized. The canonical encoder applies the
// same rewrite, so a value built here is always Equal to the decode of its
// own encoding.
func NewString(s string) String {
	return String(storedForm(s))
}

func storedForm(s string) string {
	return norm.NFC.String(replaceInvalidUTF8(s))
}

// replaceInvalidUTF8 substitutes U+FFFD for every invalid byte, one
// replacement per byte, matching what encoding/json emits.
func replaceInvalidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(r)
	}
	return b.String()
}

// Array represents an ordered sequence of witness values.
type Array []Value

func (Array) witnessValue() {}

// Object represents a map of string keys to witness values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) witnessValue() {}

// FromGo converts a plain Go value (as produced by generator libraries) into
// a witness Value. Supported inputs: string, bool, all signed/unsigned integer
// widths (unsigned values must fit int64), []any, map[string]any, and values
// that already are witness Values. Floats and other types are rejected.
// Strings and object keys pass through NewString's stored-form rewrite.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return NewString(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return uintToInt(uint64(val))
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return uintToInt(val)
	case float32, float64:
		return nil, fmt.Errorf("floats are not storable witness values: %v", val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			w, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = w
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			w, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[storedForm(k)] = w
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported witness type: %T", v)
	}
}

func uintToInt(v uint64) (Value, error) {
	if v > 1<<63-1 {
		return nil, fmt.Errorf("unsigned value out of int64 range: %d", v)
	}
	return Int(int64(v)), nil
}

// ToGo converts a witness Value back to a plain Go value for handing to a
// property's check function. Null becomes nil, Int becomes int64.
func ToGo(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// Equal reports structural equality of two witness values.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which produces a DIFFERENT order
// for strings containing surrogate-pair code points.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// UnmarshalValue deserializes JSON into a witness Value with strict
// validation: string/int/bool/null/array/object only, floats rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return convertDecoded(raw)
}

// convertDecoded recursively converts a json-decoded Go value to a Value.
func convertDecoded(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return NewString(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in witness values: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			w, err := convertDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = w
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			w, err := convertDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[storedForm(k)] = w
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
