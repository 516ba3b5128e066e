package service

import (
	"encoding/json"
)

// Helpers for field-level coercion of semi-structured model output.
// Items that fail to decode are skipped; fields with the wrong type are
// treated as absent.

func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func getString(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func getNumber(fields map[string]any, key string) *float64 {
	if n, ok := fields[key].(float64); ok {
		return &n
	}
	return nil
}

func getCount(fields map[string]any, key string) *int {
	if n, ok := fields[key].(float64); ok {
		count := int(n)
		return &count
	}
	return nil
}

func getStringList(fields map[string]any, key string) []string {
	items, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	var list []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	return list
}

// oneOf returns value when it is one of allowed, otherwise fallback.
func oneOf(value, fallback string, allowed ...string) string {
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return fallback
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func capList(list []string, max int) []string {
	if len(list) > max {
		return list[:max]
	}
	return list
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
