// Package interval parses the "<float><unit>" scheduling strings used
// throughout the description document into integer microseconds.
package interval

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ovis-hpc/maestro/internal/errs"
)

// unitMicros maps each recognized unit suffix to its microsecond
// multiplier. Bare numbers (no suffix) are seconds.
var unitMicros = map[string]int64{
	"us": 1,
	"ms": 1_000,
	"s":  1_000_000,
	"m":  60_000_000,
}

// unitsLongestFirst holds the unit suffixes ordered longest-to-shortest
// so a match against "250ms" tries "ms" before "s" and never
// misclassifies on an overlapping substring.
var unitsLongestFirst = func() []string {
	units := make([]string, 0, len(unitMicros))
	for u := range unitMicros {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return len(units[i]) > len(units[j]) })
	return units
}()

// ParseMicros parses a case-insensitive "<number><unit>" string into
// integer microseconds. A bare number is interpreted as seconds. The
// special "<interval>:<offset>" scheduling form is not handled here;
// callers that need it pass the string through verbatim.
func ParseMicros(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)

	for _, unit := range unitsLongestFirst {
		if strings.HasSuffix(lower, unit) {
			numPart := strings.TrimSpace(trimmed[:len(trimmed)-len(unit)])
			if numPart == "" {
				continue
			}
			v, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				continue
			}
			return int64(v * float64(unitMicros[unit])), nil
		}
	}

	// no recognized unit suffix: bare number, interpreted as seconds.
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, &errs.InvalidInterval{Input: s, Err: err}
	}
	return int64(v * float64(unitMicros["s"])), nil
}
