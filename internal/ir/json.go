package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/buger/jsonparser"
)

// ParseJSON decodes a JSON document into plain Go values while keeping
// object key order: objects become *Object, arrays []any, numbers float64,
// strings string, booleans bool and null nil.
func ParseJSON(data []byte) (any, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid JSON")
	}
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, err
	}
	return parseValue(value, dataType)
}

func parseValue(value []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Number:
		return jsonparser.ParseFloat(value)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		obj := NewObject()
		err := jsonparser.ObjectEach(value, func(key, raw []byte, dt jsonparser.ValueType, _ int) error {
			k := string(key)
			v, err := parseValue(raw, dt)
			if err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
			obj.Set(k, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return obj, nil
	case jsonparser.Array:
		arr := []any{}
		var elemErr error
		_, err := jsonparser.ArrayEach(value, func(raw []byte, dt jsonparser.ValueType, _ int, err error) {
			if elemErr != nil {
				return
			}
			if err != nil {
				elemErr = err
				return
			}
			v, err := parseValue(raw, dt)
			if err != nil {
				elemErr = fmt.Errorf("array[%d]: %w", len(arr), err)
				return
			}
			arr = append(arr, v)
		})
		if err != nil {
			return nil, err
		}
		if elemErr != nil {
			return nil, elemErr
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unsupported JSON value type %v", dataType)
}

// AppendJSONString appends s as a JSON string literal. Only the quote, the
// backslash and control characters are escaped.
func AppendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				buf = append(buf, `�`...)
			} else {
				buf = append(buf, s[i:i+size]...)
			}
			i += size
			continue
		}
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				const hex = "0123456789abcdef"
				buf = append(buf, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
			} else {
				buf = append(buf, c)
			}
		}
		i++
	}
	return append(buf, '"')
}

// AppendScalarJSON appends the JSON form of a scalar. A nil scalar is
// written as null.
func AppendScalarJSON(buf []byte, s Scalar) []byte {
	switch val := s.(type) {
	case String:
		return AppendJSONString(buf, string(val))
	case Number:
		return append(buf, FormatNumber(float64(val))...)
	case Bool:
		if val {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	}
	return append(buf, "null"...)
}
