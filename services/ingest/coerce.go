package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// stringOr renders scalars as their literal text. Null and non-scalars fall
// back to def.
func stringOr(v any, def string) string {
	if s := optionalString(v); s != nil {
		return *s
	}
	return def
}

func optionalString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return nil
	}
	return &s
}

func intField(raw map[string]any, key string) (int, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, err := intValue(v)
	if err != nil {
		return 0, invalid("%s: %v", key, err)
	}
	return n, nil
}

func intValue(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return integralFloat(f)
	case float64:
		return integralFloat(t)
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		return integralFloat(f)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func integralFloat(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int(f), nil
}

// boolValue accepts booleans, common string spellings and numbers.
func boolValue(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
		return false, invalid("is_security_update: %q is not a boolean", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, invalid("is_security_update: %v", err)
		}
		return f != 0, nil
	case float64:
		return t != 0, nil
	default:
		return false, invalid("is_security_update: unexpected %T", v)
	}
}
