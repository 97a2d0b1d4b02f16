package ir

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// ToID coerces a key to its canonical string form.
//
// Strings pass through, integers are written in decimal, floats use the
// shortest representation (1.0 becomes "1"), booleans become "true" or
// "false". A nil key becomes the empty string.
func ToID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case String:
		return string(id)
	case Number:
		return FormatNumber(float64(id))
	case Bool:
		return strconv.FormatBool(bool(id))
	case bool:
		return strconv.FormatBool(id)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		return FormatNumber(id)
	case fmt.Stringer:
		return id.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return FormatNumber(rv.Float())
	}
	return fmt.Sprint(v)
}

// FormatNumber renders a float the way a JSON producer would: integral
// values without a fraction, everything else in the shortest form that
// round-trips.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// IsIntegerID reports whether id is a non-negative decimal integer without
// leading zeros, the form AddRow allocates.
func IsIntegerID(id string) bool {
	if id == "" {
		return false
	}
	if len(id) > 1 && id[0] == '0' {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
