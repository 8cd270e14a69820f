package topology

import (
	"fmt"

	"github.com/ovis-hpc/maestro/internal/errs"
)

// sliceOf returns tree[key] as a slice of raw entries. A missing key
// yields an empty, not an error: sections are independently optional
// at the document level (a description need not contain every kind of
// entity), even though fields within a present entry are required.
func sliceOf(tree map[string]interface{}, key string) ([]interface{}, error) {
	raw, ok := tree[key]
	if !ok {
		return nil, nil
	}
	slice, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %T", key, raw)
	}
	return slice, nil
}

func asMap(raw interface{}, section string) (map[string]interface{}, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected a mapping, got %T", section, raw)
	}
	return m, nil
}

func asMapSlice(raw interface{}) []map[string]interface{} {
	slice, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(slice))
	for _, e := range slice {
		if m, ok := e.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func requireString(m map[string]interface{}, section, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", &errs.MissingAttribute{Section: section, Key: key}
	}
	s := toString(raw)
	if s == "" {
		return "", &errs.MissingAttribute{Section: section, Key: key}
	}
	return s, nil
}

func optionalString(m map[string]interface{}, key, def string) string {
	raw, ok := m[key]
	if !ok {
		return def
	}
	s := toString(raw)
	if s == "" {
		return def
	}
	return s
}

func stringSlice(raw interface{}) []string {
	slice, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(slice))
	for _, e := range slice {
		out = append(out, toString(e))
	}
	return out
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
