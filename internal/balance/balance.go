// Package balance implements the deterministic load-balancing split
// used to divide a group's producers across its ready aggregators.
// Unlike a random-shuffle allocator, the split is order-stable: the
// reconciler must reach the same assignment from the same inputs on
// every pass, or every pass would look like unwanted churn to the
// daemons below it.
package balance

import "sort"

// Assignment maps an aggregator name to the producer names it owns.
type Assignment map[string][]string

// Split divides producers across aggregators: base = len(producers) /
// len(aggregators), extra = len(producers) % len(aggregators). Both
// slices are partitioned in the order the caller passes them — their
// declared order — not resorted; the first `extra` aggregators receive
// base+1 consecutive producers, the rest receive base. Aggregators is
// expected to already be filtered down to "ready" members —
// Split itself has no notion of aggregator health.
func Split(producers []string, aggregators []string) Assignment {
	out := make(Assignment, len(aggregators))
	if len(aggregators) == 0 {
		return out
	}
	for _, a := range aggregators {
		out[a] = nil
	}
	if len(producers) == 0 {
		return out
	}

	base := len(producers) / len(aggregators)
	extra := len(producers) % len(aggregators)

	idx := 0
	for i, a := range aggregators {
		share := base
		if i < extra {
			share++
		}
		out[a] = append(out[a], producers[idx:idx+share]...)
		idx += share
	}
	return out
}

// Balanced reports whether an existing assignment already matches what
// Split would produce for the same inputs: it returns false after a
// membership or producer-set change. Producer order within one
// aggregator's list is not compared.
func Balanced(current Assignment, producers []string, aggregators []string) bool {
	want := Split(producers, aggregators)
	if len(current) != len(want) {
		return false
	}
	for agg, wantList := range want {
		gotList, ok := current[agg]
		if !ok || len(gotList) != len(wantList) {
			return false
		}
		gotSorted := append([]string(nil), gotList...)
		sort.Strings(gotSorted)
		wantSorted := append([]string(nil), wantList...)
		sort.Strings(wantSorted)
		for i := range wantSorted {
			if gotSorted[i] != wantSorted[i] {
				return false
			}
		}
	}
	return true
}
