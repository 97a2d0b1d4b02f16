package ir

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Type names the three scalar kinds. The names double as schema type names.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// ParseType returns the Type named by s, or false for anything else.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeString, TypeNumber, TypeBoolean:
		return Type(s), true
	}
	return "", false
}

// Scalar is a sealed interface over the values a Cell or Value may hold.
// Only String, Number and Bool implement it.
type Scalar interface {
	scalar() // Sealed
	Type() Type
}

// String is a text scalar.
type String string

func (String) scalar()    {}
func (String) Type() Type { return TypeString }

// Number is a finite numeric scalar.
type Number float64

func (Number) scalar()    {}
func (Number) Type() Type { return TypeNumber }

// Bool is a boolean scalar.
type Bool bool

func (Bool) scalar()    {}
func (Bool) Type() Type { return TypeBoolean }

// ToScalar is the validity predicate applied to every write. It accepts the
// Scalar types themselves and any Go string, boolean, integer or float
// (including named types with those kinds). Floats must be finite.
//
// Everything else, including nil, slices, maps, structs, pointers and
// functions, is invalid and reported as false.
func ToScalar(v any) (Scalar, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case String:
		return val, true
	case Bool:
		return val, true
	case Number:
		return finite(float64(val))
	case string:
		return String(val), true
	case bool:
		return Bool(val), true
	case int:
		return Number(val), true
	case int64:
		return Number(val), true
	case float64:
		return finite(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String()), true
	case reflect.Bool:
		return Bool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	}
	return nil, false
}

func finite(f float64) (Scalar, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return Number(f), true
}

// TypeOf returns the scalar type of v, or false if v is not a valid scalar.
func TypeOf(v any) (Type, bool) {
	s, ok := ToScalar(v)
	if !ok {
		return "", false
	}
	return s.Type(), true
}

// Native unwraps a Scalar into string, float64 or bool. A nil Scalar
// returns nil.
func Native(s Scalar) any {
	switch val := s.(type) {
	case String:
		return string(val)
	case Number:
		return float64(val)
	case Bool:
		return bool(val)
	}
	return nil
}

// Compare orders two scalars for sorting. A missing scalar sorts as the
// number zero. Numbers compare numerically, strings by bytes and false sorts
// before true. Mixed kinds order as number < string < boolean.
func Compare(a, b Scalar) int {
	if a == nil {
		a = Number(0)
	}
	if b == nil {
		b = Number(0)
	}
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case Number:
		bv := b.(Number)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case String:
		return strings.Compare(string(av), string(b.(String)))
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		}
		return 1
	}
	return 0
}

func typeRank(s Scalar) int {
	switch s.(type) {
	case Number:
		return 0
	case String:
		return 1
	}
	return 2
}

// ToNumber converts a scalar for numeric aggregation. Numbers pass through,
// booleans count as 1 and 0, and strings holding a decimal number are
// parsed; an empty string is 0. A nil scalar or any other string has no
// numeric value.
func ToNumber(s Scalar) (float64, bool) {
	switch val := s.(type) {
	case Number:
		return float64(val), true
	case Bool:
		if val {
			return 1, true
		}
		return 0, true
	case String:
		trimmed := strings.TrimSpace(string(val))
		if trimmed == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
