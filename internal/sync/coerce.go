// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package sync

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// errMissing reports an absent or null field.
var errMissing = errors.New("missing")

// field reads the first present, non-null key.
func field(rec map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// toID coerces an identifier. MLflow sends IDs as strings, but some
// proxies and older servers emit numeric experiment IDs.
func toID(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		if x != math.Trunc(x) {
			return "", fmt.Errorf("non-integral id %v", x)
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case nil:
		return "", errMissing
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}

// toText coerces a display string. Null maps to the empty string.
func toText(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}

// Timestamps must fall in years 1 through 9999, the range every store
// dialect can hold.
var (
	minStorableMillis = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxStorableMillis = time.Date(9999, time.December, 31, 23, 59, 59, 999_000_000, time.UTC).UnixMilli()
)

// maxInt64Float is 2^63, the first float64 outside the int64 range.
const maxInt64Float = float64(1 << 63)

// toTime coerces an epoch-milliseconds number, a numeric string or an
// RFC 3339 string. Null or absent yields errMissing.
func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, errMissing
	case json.Number:
		return millisString(x.String())
	case float64:
		return millis(x)
	case int64:
		return millisInt(x)
	case int:
		return millisInt(int64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, errMissing
		}
		t, err := millisString(s)
		if err == nil {
			return t, nil
		}
		if _, perr := strconv.ParseFloat(s, 64); perr == nil {
			return time.Time{}, err
		}
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
		}
		if _, err := millisInt(t.UnixMilli()); err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected %T", v)
	}
}

func millisString(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return millisInt(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
	}
	return millis(f)
}

func millis(f float64) (time.Time, error) {
	if math.IsNaN(f) || f < float64(minStorableMillis) || f > float64(maxStorableMillis) {
		return time.Time{}, fmt.Errorf("timestamp out of range: %v", f)
	}
	return time.UnixMilli(int64(f)).UTC(), nil
}

func millisInt(n int64) (time.Time, error) {
	if n < minStorableMillis || n > maxStorableMillis {
		return time.Time{}, fmt.Errorf("timestamp out of range: %d", n)
	}
	return time.UnixMilli(n).UTC(), nil
}

// toFloat coerces a metric value. Numeric strings and the strings NaN,
// Infinity and -Infinity are accepted; booleans are not.
func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, errMissing
	case json.Number:
		return parseFloat(x.String())
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return parseFloat(strings.TrimSpace(x))
	default:
		return 0, fmt.Errorf("non-numeric %T", v)
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, nil // ±Inf on overflow
		}
		return 0, fmt.Errorf("non-numeric %q", s)
	}
	return f, nil
}

// toInt64 coerces a step. Integral floats are accepted.
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, errMissing
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("non-integral %q", x.String())
		}
		return floatToInt64(f)
	case float64:
		return floatToInt64(x)
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("non-integral %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

// floatToInt64 accepts integral floats in [-2^63, 2^63).
func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integral %v", f)
	}
	if f < -maxInt64Float || f >= maxInt64Float {
		return 0, fmt.Errorf("integer out of range: %v", f)
	}
	return int64(f), nil
}

// toParamValue renders a scalar param value. Objects, arrays and null are
// rejected.
func toParamValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case nil:
		return "", errMissing
	case map[string]any:
		return "", errors.New("object value")
	case []any:
		return "", errors.New("array value")
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}
