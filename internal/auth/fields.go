package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlattenFields converts decoded JSON members into request fields. Strings
// are kept as is, numbers keep their literal form and lists of scalars are
// comma joined, so `"tags":["a","b"]` reads like the form field `tags=a,b`.
// Nulls are dropped and anything else is re-encoded as JSON.
func FlattenFields(obj map[string]any) (map[string]string, error) {
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		if v == nil {
			continue
		}
		if s, ok := scalar(v); ok {
			fields[k] = s
			continue
		}
		if list, ok := v.([]any); ok {
			if s, ok := joinScalars(list); ok {
				fields[k] = s
				continue
			}
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("auth: encode field %s: %w", k, err)
		}
		fields[k] = string(data)
	}
	return fields, nil
}

func scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

func joinScalars(list []any) (string, bool) {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := scalar(item)
		if !ok {
			return "", false
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ","), true
}
