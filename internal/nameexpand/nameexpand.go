// Package nameexpand expands compact range-notation host/name specs
// such as "orion-[01-08]-[10001-10128]" into ordered name sequences.
package nameexpand

import (
	"strconv"
	"strings"

	"github.com/ovis-hpc/maestro/internal/errs"
)

// Expand expands a single range-notation string into its ordered
// sequence of concrete names.
func Expand(spec string) ([]string, error) {
	tokens, err := tokenize(spec)
	if err != nil {
		return nil, err
	}
	names := []string{""}
	for _, tok := range tokens {
		expanded, err := tok.expand()
		if err != nil {
			return nil, err
		}
		names = cartesian(names, expanded)
	}
	if len(names) == 0 || (len(names) == 1 && names[0] == "") {
		return nil, &errs.InvalidSpec{Spec: spec, Reason: "empty expansion"}
	}
	return names, nil
}

// ExpandAll expands an ordered sequence of range-notation strings and
// concatenates their expansions in input order.
func ExpandAll(specs []string) ([]string, error) {
	var out []string
	for _, s := range specs {
		exp, err := Expand(s)
		if err != nil {
			return nil, err
		}
		out = append(out, exp...)
	}
	return out, nil
}

func cartesian(prefixes []string, suffixes []string) []string {
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}

// token is either a literal run of characters or a bracketed group.
type token struct {
	literal string
	group   string // raw contents between '[' and ']', empty if literal
	isGroup bool
}

func (t token) expand() ([]string, error) {
	if !t.isGroup {
		return []string{t.literal}, nil
	}
	return expandGroup(t.group)
}

// tokenize splits spec into a sequence of literal runs and bracket
// groups, in left-to-right order.
func tokenize(spec string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(spec) {
		if spec[i] == '[' {
			end := strings.IndexByte(spec[i:], ']')
			if end < 0 {
				return nil, &errs.InvalidSpec{Spec: spec, Reason: "unterminated '['"}
			}
			group := spec[i+1 : i+end]
			tokens = append(tokens, token{group: group, isGroup: true})
			i += end + 1
		} else {
			end := strings.IndexByte(spec[i:], '[')
			if end < 0 {
				tokens = append(tokens, token{literal: spec[i:]})
				i = len(spec)
			} else {
				tokens = append(tokens, token{literal: spec[i : i+end]})
				i += end
			}
		}
	}
	if len(tokens) == 0 {
		return nil, &errs.InvalidSpec{Spec: spec, Reason: "empty spec"}
	}
	return tokens, nil
}

// expandGroup expands the contents of a single bracket group: either a
// comma-list of literal tokens, or a zero-padded numeric range
// "start-end".
func expandGroup(group string) ([]string, error) {
	if group == "" {
		return nil, &errs.InvalidSpec{Spec: group, Reason: "empty bracket group"}
	}
	if strings.Contains(group, ",") {
		parts := strings.Split(group, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p == "" {
				return nil, &errs.InvalidSpec{Spec: group, Reason: "empty comma-list entry"}
			}
			out = append(out, p)
		}
		return out, nil
	}
	if strings.Contains(group, "-") {
		return expandRange(group)
	}
	// a single bare token in brackets, e.g. "[foo]".
	return []string{group}, nil
}

func expandRange(group string) ([]string, error) {
	idx := strings.IndexByte(group, '-')
	startStr, endStr := group[:idx], group[idx+1:]
	if startStr == "" || endStr == "" {
		return nil, &errs.InvalidSpec{Spec: group, Reason: "malformed numeric range"}
	}
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, &errs.InvalidSpec{Spec: group, Reason: "non-numeric range bound"}
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return nil, &errs.InvalidSpec{Spec: group, Reason: "non-numeric range bound"}
	}
	if end < start {
		return nil, &errs.InvalidSpec{Spec: group, Reason: "range end before start"}
	}
	width := len(startStr)
	out := make([]string, 0, end-start+1)
	for v := start; v <= end; v++ {
		s := strconv.Itoa(v)
		if len(s) < width {
			s = strings.Repeat("0", width-len(s)) + s
		}
		out = append(out, s)
	}
	return out, nil
}
