package balance_test

import (
	"testing"

	"github.com/ovis-hpc/maestro/internal/balance"
	"github.com/stretchr/testify/assert"
)

func TestSplitEvenDivision(t *testing.T) {
	ast := assert.New(t)
	producers := []string{"p1", "p2", "p3", "p4"}
	aggs := []string{"agg-1", "agg-2"}
	got := balance.Split(producers, aggs)
	ast.Len(got["agg-1"], 2)
	ast.Len(got["agg-2"], 2)
}

func TestSplitRemainderGoesToEarliestAggregators(t *testing.T) {
	ast := assert.New(t)
	producers := []string{"p1", "p2", "p3", "p4", "p5"}
	aggs := []string{"agg-2", "agg-1", "agg-3"}
	got := balance.Split(producers, aggs)
	// base = 5/3 = 1, extra = 2; agg-2 and agg-1 are first in declared
	// order and get 2 each, regardless of alphabetical sort.
	ast.Len(got["agg-2"], 2)
	ast.Len(got["agg-1"], 2)
	ast.Len(got["agg-3"], 1)
}

func TestSplitUsesDeclaredOrderNotAlphabetical(t *testing.T) {
	ast := assert.New(t)
	// aggC sorts last alphabetically but is declared first; the single
	// extra producer must go to aggC, not to the alphabetically-first
	// aggA.
	producers := []string{"prdcr-x"}
	aggs := []string{"aggC", "aggA", "aggB"}
	got := balance.Split(producers, aggs)
	ast.Equal([]string{"prdcr-x"}, got["aggC"])
	ast.Empty(got["aggA"])
	ast.Empty(got["aggB"])
}

func TestSplitProducersAssignedInDeclaredOrder(t *testing.T) {
	ast := assert.New(t)
	// Declared producer order is not alphabetical; the first two
	// producers (in declared order) must land on the first aggregator.
	producers := []string{"prdcr-z", "prdcr-a", "prdcr-m"}
	aggs := []string{"aggB", "aggA"}
	got := balance.Split(producers, aggs)
	ast.Equal([]string{"prdcr-z", "prdcr-a"}, got["aggB"])
	ast.Equal([]string{"prdcr-m"}, got["aggA"])
}

func TestSplitNoAggregators(t *testing.T) {
	ast := assert.New(t)
	got := balance.Split([]string{"p1"}, nil)
	ast.Empty(got)
}

func TestSplitNoProducers(t *testing.T) {
	ast := assert.New(t)
	got := balance.Split(nil, []string{"agg-1", "agg-2"})
	ast.Contains(got, "agg-1")
	ast.Contains(got, "agg-2")
	ast.Empty(got["agg-1"])
	ast.Empty(got["agg-2"])
}

func TestSplitIsDeterministic(t *testing.T) {
	ast := assert.New(t)
	producers := []string{"p3", "p1", "p2", "p5", "p4"}
	aggs := []string{"agg-3", "agg-1", "agg-2"}
	first := balance.Split(producers, aggs)
	second := balance.Split(producers, aggs)
	ast.Equal(first, second)
}

func TestBalancedDetectsMembershipChange(t *testing.T) {
	ast := assert.New(t)
	producers := []string{"p1", "p2"}
	aggs := []string{"agg-1"}
	current := balance.Split(producers, aggs)
	ast.True(balance.Balanced(current, producers, aggs))

	ast.False(balance.Balanced(current, producers, []string{"agg-1", "agg-2"}))
}

func TestBalancedDetectsProducerSetChange(t *testing.T) {
	ast := assert.New(t)
	aggs := []string{"agg-1", "agg-2"}
	current := balance.Split([]string{"p1", "p2"}, aggs)
	ast.False(balance.Balanced(current, []string{"p1", "p2", "p3"}, aggs))
}
