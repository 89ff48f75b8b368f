package store

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Int64 converts a driver value to int64. Drivers disagree on integer widths
// and some return numeric strings.
func Int64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, eris.Errorf("store: %v is not an integer", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "store: parse %q as integer", n)
		}
		return i, nil
	case []byte:
		return Int64(string(n))
	case nil:
		return 0, eris.New("store: NULL integer")
	default:
		return 0, eris.Errorf("store: unsupported integer type %T", v)
	}
}

// String converts a driver value to a string. ok is false for NULL.
func String(v any) (s string, ok bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}
