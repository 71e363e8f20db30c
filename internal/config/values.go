package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Int reads an integer from a services.yaml config map. yaml.v3 hands back
// int for plain scalars but quoted or json-sourced values arrive as string
// or float64.
func Int(cfg map[string]interface{}, key string, def int) int {
	if cfg == nil {
		return def
	}
	v, ok := cfg[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return def
}

func String(cfg map[string]interface{}, key, def string) string {
	if cfg == nil {
		return def
	}
	if s, ok := cfg[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return def
}

func Bool(cfg map[string]interface{}, key string, def bool) bool {
	if cfg == nil {
		return def
	}
	switch t := cfg[key].(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	case int:
		return t != 0
	}
	return def
}

// Decimal reads a money value. Numbers are formatted before parsing so a
// yaml float like 25.5 keeps its written precision.
func Decimal(cfg map[string]interface{}, key string, def decimal.Decimal) decimal.Decimal {
	if cfg == nil {
		return def
	}
	var raw string
	switch t := cfg[key].(type) {
	case string:
		raw = t
	case int:
		raw = strconv.Itoa(t)
	case float64:
		raw = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return def
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return d
}

// Strings reads a yaml sequence or a comma separated string. Blank entries
// are dropped.
func Strings(cfg map[string]interface{}, key string, def []string) []string {
	if cfg == nil {
		return def
	}
	var raw []string
	switch t := cfg[key].(type) {
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = t
	case string:
		raw = strings.Split(t, ",")
	default:
		return def
	}
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
