// Package config turns a driven.ConfigStore into domain.Settings.
//
// Values come from the store (usually ~/.kcache/config.toml) and may be
// overridden by KCACHE_* environment variables, which can themselves be
// loaded from a .env file.
package config

import (
	"strconv"
	"strings"
)

// AsString converts a stored value to a string.
func AsString(val any) (string, bool) {
	str, ok := val.(string)
	return str, ok
}

// AsInt converts numeric types that may come from TOML/JSON parsing.
func AsInt(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// AsFloat converts numeric types to float64.
func AsFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// AsBool converts a stored value to a bool.
func AsBool(val any) (bool, bool) {
	b, ok := val.(bool)
	return b, ok
}

// AsStringSlice converts TOML arrays ([]any) and []string.
func AsStringSlice(val any) ([]string, bool) {
	switch v := val.(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result, true
	default:
		return nil, false
	}
}

// ParseValue interprets a command-line or environment string as the most
// specific TOML-compatible type: bool, integer, float, then string.
// Comma-separated values inside brackets become a string slice.
func ParseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return []string{}
		}
		parts := strings.Split(inner, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.Trim(strings.TrimSpace(p), `"'`))
		}
		return out
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
