package reconcile_test

import (
	"context"
	"testing"

	"github.com/ovis-hpc/maestro/internal/comm"
	"github.com/ovis-hpc/maestro/internal/reconcile"
	"github.com/ovis-hpc/maestro/internal/topology"
	"github.com/stretchr/testify/assert"
)

func groupState(n int, readyUpTo int) *topology.DesiredState {
	ds := &topology.DesiredState{
		Hosts:              make(map[string]*topology.Host),
		AggregatorsByGroup: make(map[string]*topology.AggregatorGroup),
		ProducersByGroup:   make(map[string][]*topology.Producer),
		UpdatersByGroup:    make(map[string][]*topology.Updater),
		StoresByGroup:      make(map[string][]*topology.Store),
	}
	aggs := make([]*topology.Aggregator, n)
	for i := 0; i < n; i++ {
		name := aggName(i)
		aggs[i] = &topology.Aggregator{Name: name, Host: name, State: topology.StateStopped}
		ds.Hosts[name] = &topology.Host{Name: name, Addr: "10.0.0.1", Port: 10000 + i, Xprt: "sock"}
	}
	ds.AggregatorsByGroup["L1"] = &topology.AggregatorGroup{Group: "L1", Aggregators: aggs}
	return ds
}

func aggName(i int) string {
	return "agg-" + string(rune('1'+i))
}

func addProducers(ds *topology.DesiredState, group string, count int) {
	for i := 0; i < count; i++ {
		ds.ProducersByGroup[group] = append(ds.ProducersByGroup[group], &topology.Producer{
			Name:  "prdcr-" + string(rune('a'+i)),
			Host:  aggName(0),
			Group: group,
			Type:  topology.ProducerActive,
		})
	}
}

func newReconcilerWithFakes(ds *topology.DesiredState, ready map[string]bool) (*reconcile.Reconciler, map[string]*comm.FakeCommunicator) {
	r := reconcile.New()
	fakes := make(map[string]*comm.FakeCommunicator)
	for _, group := range ds.AggregatorsByGroup {
		for _, agg := range group.Aggregators {
			fc := comm.NewFakeCommunicator()
			if ready[agg.Name] {
				fc.SetDaemonState("ready")
			} else {
				fc.SetDaemonState("stopped")
			}
			fakes[agg.Name] = fc
			r.SetCommunicator(agg.Name, fc)
		}
	}
	return r, fakes
}

func TestReconcilerEvenSplit(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	ds := groupState(4, 4)
	addProducers(ds, "L1", 8)
	ready := map[string]bool{"agg-1": true, "agg-2": true, "agg-3": true, "agg-4": true}
	r, fakes := newReconcilerWithFakes(ds, ready)

	ast.Nil(r.Pass(ctx, ds))

	for _, agg := range ds.AggregatorsByGroup["L1"].Aggregators {
		list, err := fakes[agg.Name].PrdcrStatus(ctx)
		ast.Nil(err)
		ast.Len(list, 8) // every producer is fanned out to every aggregator...
		ast.Equal(2, countConnected(list))
	}
}

func countConnected(list []comm.ProducerStatus) int {
	n := 0
	for _, p := range list {
		if p.State == "CONNECTED" {
			n++
		}
	}
	return n
}

func TestReconcilerUnevenSplit(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	ds := groupState(4, 4)
	addProducers(ds, "L1", 10)
	ready := map[string]bool{"agg-1": true, "agg-2": true, "agg-3": true, "agg-4": true}
	r, fakes := newReconcilerWithFakes(ds, ready)

	ast.Nil(r.Pass(ctx, ds))

	want := map[string]int{"agg-1": 3, "agg-2": 3, "agg-3": 2, "agg-4": 2}
	for name, n := range want {
		list, err := fakes[name].PrdcrStatus(ctx)
		ast.Nil(err)
		ast.Len(list, 10) // every producer is fanned out to every aggregator...
		ast.Equal(n, countConnected(list))
	}
}

func TestReconcilerUnhealthyAggregatorExcluded(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	ds := groupState(4, 4)
	addProducers(ds, "L1", 10)
	ready := map[string]bool{"agg-1": true, "agg-2": false, "agg-3": true, "agg-4": true}
	r, fakes := newReconcilerWithFakes(ds, ready)

	ast.Nil(r.Pass(ctx, ds))

	want := map[string]int{"agg-1": 4, "agg-3": 3, "agg-4": 3}
	for name, n := range want {
		list, err := fakes[name].PrdcrStatus(ctx)
		ast.Nil(err)
		ast.Len(list, 10)
		ast.Equal(n, countConnected(list))
	}
	list, err := fakes["agg-2"].PrdcrStatus(ctx)
	ast.Nil(err)
	ast.Len(list, 10) // producers are still fanned out (added) to every aggregator in the group...
	ast.Equal(0, countConnected(list)) // ...but none are started on an unhealthy peer.
}

func TestReconcilerSamplerReconfigurationStopsRemovedPlugins(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()

	r := reconcile.New()
	fc := comm.NewFakeCommunicator()
	r.SetCommunicator("node-1", fc)

	before := &topology.DesiredState{
		SamplersByKey: map[string]*topology.SamplerSpec{
			"node-1": {
				NamesSpec: "node-1",
				Plugins: []topology.PluginConfig{
					{Name: "meminfo", Interval: "1s"},
					{Name: "vmstat", Interval: "1s"},
				},
			},
		},
	}
	ast.Nil(r.Pass(ctx, before))
	ast.Contains(fc.Calls, "PlugnLoad:meminfo")
	ast.Contains(fc.Calls, "PlugnLoad:vmstat")
	ast.NotContains(fc.Calls, "PlugnStop:meminfo")
	ast.NotContains(fc.Calls, "PlugnStop:vmstat")

	// A new description drops meminfo and keeps vmstat: exactly the
	// removed plugin must be stopped, the surviving one left alone.
	after := &topology.DesiredState{
		SamplersByKey: map[string]*topology.SamplerSpec{
			"node-1": {
				NamesSpec: "node-1",
				Plugins: []topology.PluginConfig{
					{Name: "vmstat", Interval: "1s"},
				},
			},
		},
	}
	ast.Nil(r.Pass(ctx, after))
	ast.Contains(fc.Calls, "PlugnStop:meminfo")
	ast.NotContains(fc.Calls, "PlugnStop:vmstat")
}

func TestReconcilerSamplerGroupRemovedEntirelyIsStopped(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()

	r := reconcile.New()
	fc := comm.NewFakeCommunicator()
	r.SetCommunicator("node-1", fc)

	before := &topology.DesiredState{
		SamplersByKey: map[string]*topology.SamplerSpec{
			"node-1": {
				NamesSpec: "node-1",
				Plugins:   []topology.PluginConfig{{Name: "meminfo", Interval: "1s"}},
			},
		},
	}
	ast.Nil(r.Pass(ctx, before))

	after := &topology.DesiredState{SamplersByKey: map[string]*topology.SamplerSpec{}}
	ast.Nil(r.Pass(ctx, after))
	ast.Contains(fc.Calls, "PlugnStop:meminfo")
}

func TestReconcilerIdempotentSecondPass(t *testing.T) {
	ast := assert.New(t)
	ctx := context.Background()
	ds := groupState(2, 2)
	addProducers(ds, "L1", 4)
	ready := map[string]bool{"agg-1": true, "agg-2": true}
	r, fakes := newReconcilerWithFakes(ds, ready)

	ast.Nil(r.Pass(ctx, ds))
	firstCalls := len(fakes["agg-1"].Calls)
	ast.Nil(r.Pass(ctx, ds))
	ast.True(len(fakes["agg-1"].Calls) > firstCalls) // a second pass still issues calls...

	list, err := fakes["agg-1"].PrdcrStatus(ctx)
	ast.Nil(err)
	ast.Equal(2, countConnected(list)) // ...but the assigned set stays stable, not bounced.
}
