package ir

import (
	"fmt"
	"reflect"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 style canonical JSON for hashing.
// This is the only serialization that should be used to compute content
// identity.
//
// Key differences from the ordered JSON the store writes:
// 1. Object keys sorted by UTF-16 code units (not insertion order)
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Strings are NFC normalized
// 4. Numbers use the shortest round-trip form
func MarshalCanonical(v any) ([]byte, error) {
	return appendCanonical(nil, v)
}

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case Scalar:
		if s, ok := val.(String); ok {
			return appendCanonicalString(buf, string(s)), nil
		}
		return AppendScalarJSON(buf, val), nil
	case string:
		return appendCanonicalString(buf, val), nil
	case bool:
		return AppendScalarJSON(buf, Bool(val)), nil
	case Content:
		buf = append(buf, '[')
		buf, err := appendCanonical(buf, val.Tables)
		if err != nil {
			return nil, fmt.Errorf("tables: %w", err)
		}
		buf = append(buf, ',')
		buf, err = appendCanonical(buf, val.Values)
		if err != nil {
			return nil, fmt.Errorf("values: %w", err)
		}
		return append(buf, ']'), nil
	case Tables:
		return appendCanonicalMap(buf, val)
	case Table:
		return appendCanonicalMap(buf, val)
	case Row:
		return appendCanonicalMap(buf, val)
	case Values:
		return appendCanonicalMap(buf, val)
	case map[string]any:
		return appendCanonicalMap(buf, val)
	case *Object:
		m := make(map[string]any, val.Len())
		for pair := val.Oldest(); pair != nil; pair = pair.Next() {
			m[pair.Key] = pair.Value
		}
		return appendCanonicalMap(buf, m)
	case []any:
		buf = append(buf, '[')
		for i, elem := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendCanonical(buf, elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		return append(buf, ']'), nil
	}
	if s, ok := ToScalar(v); ok {
		return appendCanonical(buf, s)
	}
	return nil, fmt.Errorf("unsupported type for canonical JSON: %s", reflect.TypeOf(v))
}

func appendCanonicalMap[M ~map[string]V, V any](buf []byte, m M) ([]byte, error) {
	buf = append(buf, '{')
	for i, k := range SortedKeys(m) {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendCanonicalString(buf, k)
		buf = append(buf, ':')
		var err error
		buf, err = appendCanonical(buf, m[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	return append(buf, '}'), nil
}

// appendCanonicalString NFC normalizes at the serialization boundary.
// U+2028 and U+2029 stay literal, unlike encoding/json.
func appendCanonicalString(buf []byte, s string) []byte {
	return AppendJSONString(buf, norm.NFC.String(s))
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (not UTF-8 byte order).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
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
