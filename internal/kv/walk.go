package kv

import (
	"fmt"
	"strings"
)

// Walk converts a generic value tree (nested map[string]interface{},
// []interface{}, and string/bool/numeric leaves) into a flat
// key/value projection rooted at prefix. Mappings contribute one path
// segment per key; ordered sequences contribute a zero-padded,
// width-6 decimal index so lexicographic KV ordering matches numeric
// sequence ordering; empty/falsy leaves are skipped entirely.
func Walk(prefix string, v interface{}) map[string]string {
	out := make(map[string]string)
	walkInto(strings.TrimRight(prefix, "/"), v, out)
	return out
}

func walkInto(path string, v interface{}, out map[string]string) {
	switch t := v.(type) {
	case nil:
		return
	case map[string]interface{}:
		for k, val := range t {
			walkInto(path+"/"+k, val, out)
		}
	case []interface{}:
		for i, val := range t {
			walkInto(path+"/"+seqIndex(i), val, out)
		}
	case string:
		if t != "" {
			out[path] = t
		}
	case bool:
		if t {
			out[path] = "true"
		}
	default:
		s := fmt.Sprintf("%v", t)
		if s != "" && s != "0" {
			out[path] = s
		}
	}
}

// seqIndex zero-pads a sequence index to width 6, per the design
// spec's encoding rule.
func seqIndex(i int) string {
	return fmt.Sprintf("%06d", i)
}
