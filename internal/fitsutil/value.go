// Public domain.

package fitsutil

import (
	"math"
	"strings"
)

// AsFloat converts any numeric FITS value to float64.
func AsFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// AsInt converts an integral FITS value to int.  Floats are accepted when
// they hold a whole number, as some writers store integers that way.
func AsInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	case float32:
		return AsInt(float64(x))
	case bool, string, nil:
		return 0, false
	}
	f, ok := AsFloat(v)
	return int(f), ok
}

// AsString returns a string value with FITS padding removed.
func AsString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.Trim(s, " \x00"), true
}

// AsBool accepts logical values and, for tables written by tools that have
// no logical type, integers.
func AsBool(v interface{}) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.TrimSpace(x) {
		case "T":
			return true, true
		case "F":
			return false, true
		}
		return false, false
	}
	if n, ok := AsInt(v); ok {
		return n != 0, true
	}
	return false, false
}
