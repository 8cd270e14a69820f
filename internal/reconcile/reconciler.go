// Package reconcile implements the reconciler (component F): the
// health sweep, per-group load balance, and idempotent apply of a
// DesiredState to every daemon the reconciler knows about. Each pass
// receives the Controller's current DesiredState; the reconciler keeps
// the registry of Communicators and the previous pass's sampler
// snapshot between passes.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/ovis-hpc/maestro/internal/balance"
	"github.com/ovis-hpc/maestro/internal/comm"
	"github.com/ovis-hpc/maestro/internal/interval"
	"github.com/ovis-hpc/maestro/internal/logging"
	"github.com/ovis-hpc/maestro/internal/topology"
)

// Reconciler runs one pass at a time against a DesiredState and a set
// of long-lived Communicators, one per aggregator. The Controller
// dials each Communicator and registers it here via SetCommunicator;
// the reconciler keeps the registry.
type Reconciler struct {
	mu sync.Mutex

	// comms maps aggregator name to its Communicator, across every
	// group — aggregator names are unique within a group but the
	// registry is one flat map, looked up by name regardless of group.
	comms map[string]comm.Communicator

	// prevAggState is the aggState snapshot from the previous pass,
	// used to decide whether this pass must rebalance.
	prevAggState map[string]topology.AggregatorState

	// prevSamplers is the SamplersByKey snapshot from the previous
	// pass, used to detect a sampler plugin the current DesiredState no
	// longer names so it can be stopped before samplerBringUp starts
	// the replacement set.
	prevSamplers map[string]*topology.SamplerSpec

	// changeGeneration is bumped by NotifyChange whenever a datastore
	// change event arrives; a pass logs a rebalance if it differs from
	// lastSeenGeneration (every pass recomputes the assignment either
	// way). go.uber.org/atomic gives the watch goroutine
	// and the tick loop a lock-free handoff for this single counter.
	changeGeneration   atomic.Uint64
	lastSeenGeneration uint64
}

// New returns an empty Reconciler. Communicators are registered one at
// a time via SetCommunicator as the Controller dials each aggregator.
func New() *Reconciler {
	return &Reconciler{
		comms:        make(map[string]comm.Communicator),
		prevAggState: make(map[string]topology.AggregatorState),
		prevSamplers: make(map[string]*topology.SamplerSpec),
	}
}

// SetCommunicator registers (or replaces) the Communicator used to
// reach the named aggregator.
func (r *Reconciler) SetCommunicator(aggregatorName string, c comm.Communicator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comms[aggregatorName] = c
}

// Communicator returns the Communicator currently registered for
// aggregatorName, if any, letting the Controller avoid redialing an
// aggregator it has already connected to.
func (r *Reconciler) Communicator(aggregatorName string) (comm.Communicator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comms[aggregatorName]
	return c, ok
}

// NotifyChange records that a datastore change event arrived since the
// last pass, so the next pass logs a rebalance even if every
// aggregator's reported state is unchanged. The assignment itself is
// recomputed on every pass regardless.
func (r *Reconciler) NotifyChange() {
	r.changeGeneration.Inc()
}

// Pass runs exactly one reconciliation pass against ds, in a fixed
// order. It never returns an error for a single unreachable
// peer — those are logged and skipped — but does return an error if ds
// itself is nil.
func (r *Reconciler) Pass(ctx context.Context, ds *topology.DesiredState) error {
	if ds == nil {
		return fmt.Errorf("reconcile: nil desired state")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	aggState := r.healthSweep(ctx, ds)

	if r.changed(aggState) || r.changeGeneration.Load() != r.lastSeenGeneration {
		logging.Sugar().Infow("rebalancing", "reason", "aggregator state or datastore change observed")
	}
	r.prevAggState = aggState
	r.lastSeenGeneration = r.changeGeneration.Load()

	assignments := make(map[string]balance.Assignment, len(ds.ProducersByGroup))
	for group := range ds.ProducersByGroup {
		assignments[group] = r.loadBalance(ds, group, aggState)
	}

	r.teardownSamplers(ctx, ds.SamplersByKey)
	r.samplerBringUp(ctx, ds)
	r.producerFanOut(ctx, ds, aggState)
	r.updaterApply(ctx, ds)
	r.storeApply(ctx, ds)
	r.producerStartStop(ctx, ds, assignments, aggState)

	r.prevSamplers = ds.SamplersByKey

	return nil
}

// changed reports whether aggState differs from the previous pass's
// snapshot.
func (r *Reconciler) changed(aggState map[string]topology.AggregatorState) bool {
	if len(aggState) != len(r.prevAggState) {
		return true
	}
	for name, state := range aggState {
		if r.prevAggState[name] != state {
			return true
		}
	}
	return false
}

// healthSweep ensures every known aggregator's Communicator is
// connected and polls daemon_status, building the aggState map
// An unreachable aggregator is recorded as stopped; no error
// is surfaced for it.
func (r *Reconciler) healthSweep(ctx context.Context, ds *topology.DesiredState) map[string]topology.AggregatorState {
	aggState := make(map[string]topology.AggregatorState)
	for _, group := range ds.AggregatorsByGroup {
		for _, agg := range group.Aggregators {
			c, ok := r.comms[agg.Name]
			if !ok {
				aggState[agg.Name] = topology.StateStopped
				continue
			}
			if c.State() != comm.Connected {
				if err := c.Reconnect(ctx); err != nil {
					logging.Sugar().Warnw("aggregator unreachable", "aggregator", agg.Name, "error", err)
					aggState[agg.Name] = topology.StateStopped
					continue
				}
			}
			status, err := c.DaemonStatus(ctx)
			if err != nil {
				aggState[agg.Name] = topology.StateStopped
				continue
			}
			aggState[agg.Name] = topology.AggregatorState(status.State)
		}
	}
	return aggState
}

// loadBalance computes the producer assignment for one group:
// only aggregators reporting "ready" participate, matching the open
// question resolution that "running" is not eligible.
func (r *Reconciler) loadBalance(ds *topology.DesiredState, group string, aggState map[string]topology.AggregatorState) balance.Assignment {
	aggGroup := ds.AggregatorsByGroup[group]
	if aggGroup == nil {
		return balance.Assignment{}
	}
	var ready []string
	for _, agg := range aggGroup.Aggregators {
		if aggState[agg.Name] == topology.StateReady {
			ready = append(ready, agg.Name)
		}
	}
	if len(ready) == 0 {
		return balance.Assignment{}
	}

	producers := ds.ProducersByGroup[group]
	names := make([]string, len(producers))
	for i, p := range producers {
		names[i] = p.Name
	}
	return balance.Split(names, ready)
}

// teardownSamplers stops any sampler plugin that ran under the
// previous DesiredState but that cur no longer names, either because
// its whole samplers group disappeared or because its plugin list
// changed. This is the only section that needs an explicit diff
// handler: every other section is reapplied wholesale on each pass
// regardless of whether it changed, but a removed sampler plugin has
// to be stopped explicitly or it keeps sampling forever.
func (r *Reconciler) teardownSamplers(ctx context.Context, cur map[string]*topology.SamplerSpec) {
	for key, prevSpec := range r.prevSamplers {
		c, ok := r.comms[samplerCommunicatorKey(key)]
		if !ok {
			continue
		}
		curSpec := cur[key]
		var curPlugins map[string]bool
		if curSpec != nil {
			curPlugins = make(map[string]bool, len(curSpec.Plugins))
			for _, p := range curSpec.Plugins {
				curPlugins[p.Name] = true
			}
		}
		for _, p := range prevSpec.Plugins {
			if curPlugins[p.Name] {
				continue
			}
			if code, err := c.PlugnStop(ctx, p.Name); err != nil || unexpected(code) {
				logging.Sugar().Warnw("plugn_stop failed", "samplers", key, "plugin", p.Name, "code", code, "error", err)
			}
		}
	}
}

// samplerBringUp connects to each sampler daemon and loads/configures/
// starts every plugin its group names. A host's connectivity loss
// aborts only that host's bring-up.
func (r *Reconciler) samplerBringUp(ctx context.Context, ds *topology.DesiredState) {
	for key, spec := range ds.SamplersByKey {
		c, ok := r.comms[samplerCommunicatorKey(key)]
		if !ok {
			continue
		}
		if c.State() != comm.Connected {
			if err := c.Reconnect(ctx); err != nil {
				logging.Sugar().Warnw("sampler unreachable", "samplers", key, "error", err)
				continue
			}
		}
		for _, plugin := range spec.Plugins {
			if code, err := c.PlugnLoad(ctx, plugin.Name); err != nil || unexpected(code, comm.EEXIST) {
				logging.Sugar().Warnw("plugn_load failed", "samplers", key, "plugin", plugin.Name, "code", code, "error", err)
				continue
			}
			params := make(map[string]string, len(plugin.Params)+2)
			for k, v := range plugin.Params {
				params[k] = v
			}
			params["producer"] = key
			params["instance"] = key + "/" + plugin.Name
			if code, err := c.PlugnConfig(ctx, plugin.Name, params); err != nil || code != comm.OK {
				logging.Sugar().Warnw("plugn_config failed", "samplers", key, "plugin", plugin.Name, "code", code, "error", err)
				continue
			}
			if code, err := c.SmplrStart(ctx, plugin.Name, plugin.Interval); err != nil || code != comm.OK {
				logging.Sugar().Warnw("smplr_start failed", "samplers", key, "plugin", plugin.Name, "code", code, "error", err)
			}
		}
	}
}

// samplerCommunicatorKey derives the Communicator registry key used
// for a sampler group: the raw names spec, unchanged. One Communicator
// per sampler group is looked up under that key; the names spec is not
// expanded into per-host Communicators, and the "producer"/"instance"
// plugin parameters are built from the raw spec as well. The
// Supervisor registers Communicators for aggregators only, so a
// sampler group is brought up only when a Communicator has been
// registered under its key through SetCommunicator.
func samplerCommunicatorKey(namesSpec string) string { return namesSpec }

// producerFanOut adds every desired producer to every aggregator of
// its group that does not already report it. Producers are
// always added, never conditionally, so that a later failover is a
// cheap start rather than a full re-add.
func (r *Reconciler) producerFanOut(ctx context.Context, ds *topology.DesiredState, aggState map[string]topology.AggregatorState) {
	for group, producers := range ds.ProducersByGroup {
		aggGroup := ds.AggregatorsByGroup[group]
		if aggGroup == nil {
			continue
		}
		for _, agg := range aggGroup.Aggregators {
			c, ok := r.comms[agg.Name]
			if !ok {
				continue
			}
			reported, err := c.PrdcrStatus(ctx)
			if err != nil {
				logging.Sugar().Warnw("prdcr_status failed", "aggregator", agg.Name, "error", err)
				continue
			}
			have := make(map[string]bool, len(reported))
			for _, p := range reported {
				have[p.Name] = true
			}
			for _, p := range producers {
				if have[p.Name] {
					continue
				}
				host := ds.Hosts[p.Host]
				if host == nil {
					continue
				}
				reconnectMicros := int64(0)
				if p.Reconnect != "" {
					v, err := interval.ParseMicros(p.Reconnect)
					if err != nil {
						logging.Sugar().Warnw("invalid producer reconnect interval", "aggregator", agg.Name, "producer", p.Name, "error", err)
						continue
					}
					reconnectMicros = v
				}
				code, err := c.PrdcrAdd(ctx, p.Name, string(p.Type), p.Transport(ds.Hosts), host.Addr, host.Port, reconnectMicros)
				if err != nil || unexpected(code, comm.EEXIST) {
					logging.Sugar().Warnw("prdcr_add failed", "aggregator", agg.Name, "producer", p.Name, "code", code, "error", err)
				}
			}
		}
	}
}

// updaterApply applies every updater in every group. Start is
// issued last and EBUSY absorbed.
func (r *Reconciler) updaterApply(ctx context.Context, ds *topology.DesiredState) {
	for group, updaters := range ds.UpdatersByGroup {
		aggGroup := ds.AggregatorsByGroup[group]
		if aggGroup == nil {
			continue
		}
		for _, agg := range aggGroup.Aggregators {
			c, ok := r.comms[agg.Name]
			if !ok {
				continue
			}
			for _, u := range updaters {
				if code, err := c.UpdtrAdd(ctx, u.Name, u.Interval, u.Auto, u.Push); err != nil || unexpected(code, comm.EEXIST) {
					logging.Sugar().Warnw("updtr_add failed", "aggregator", agg.Name, "updater", u.Name, "code", code, "error", err)
					continue
				}
				for _, pm := range u.Producers {
					if code, err := c.UpdtrPrdcrAdd(ctx, u.Name, pm.Regex); err != nil || unexpected(code, comm.EEXIST) {
						logging.Sugar().Warnw("updtr_prdcr_add failed", "aggregator", agg.Name, "updater", u.Name, "code", code, "error", err)
					}
				}
				for _, set := range u.Sets {
					if code, err := c.UpdtrMatchAdd(ctx, u.Name, set.Regex, set.Field); err != nil || unexpected(code, comm.EEXIST) {
						logging.Sugar().Warnw("updtr_match_add failed", "aggregator", agg.Name, "updater", u.Name, "code", code, "error", err)
					}
				}
				if code, err := c.UpdtrStart(ctx, u.Name); err != nil || unexpected(code, comm.EBUSY) {
					logging.Sugar().Warnw("updtr_start failed", "aggregator", agg.Name, "updater", u.Name, "code", code, "error", err)
				}
			}
		}
	}
}

// storeApply applies every storage policy in every group.
func (r *Reconciler) storeApply(ctx context.Context, ds *topology.DesiredState) {
	for group, stores := range ds.StoresByGroup {
		aggGroup := ds.AggregatorsByGroup[group]
		if aggGroup == nil {
			continue
		}
		for _, agg := range aggGroup.Aggregators {
			c, ok := r.comms[agg.Name]
			if !ok {
				continue
			}
			for _, s := range stores {
				if code, err := c.PlugnLoad(ctx, s.PluginName); err != nil || unexpected(code, comm.EEXIST) {
					logging.Sugar().Warnw("plugn_load failed", "aggregator", agg.Name, "store", s.Name, "code", code, "error", err)
					continue
				}
				if code, err := c.PlugnConfig(ctx, s.PluginName, s.Plugin); err != nil || code != comm.OK {
					logging.Sugar().Warnw("plugn_config failed", "aggregator", agg.Name, "store", s.Name, "code", code, "error", err)
					continue
				}
				if code, err := c.StrgpAdd(ctx, s.Name, s.PluginName, s.Container, s.Schema); err != nil || unexpected(code, comm.EEXIST) {
					logging.Sugar().Warnw("strgp_add failed", "aggregator", agg.Name, "store", s.Name, "code", code, "error", err)
					continue
				}
				if code, err := c.StrgpPrdcrAdd(ctx, s.Name, ".*"); err != nil || code != comm.OK {
					logging.Sugar().Warnw("strgp_prdcr_add failed", "aggregator", agg.Name, "store", s.Name, "code", code, "error", err)
				}
				if code, err := c.StrgpStart(ctx, s.Name); err != nil || unexpected(code, comm.EBUSY) {
					logging.Sugar().Warnw("strgp_start failed", "aggregator", agg.Name, "store", s.Name, "code", code, "error", err)
				}
			}
		}
	}
}

// producerStartStop diffs each aggregator's reported producer states
// against its load-balance assignment and issues start/stop calls.
func (r *Reconciler) producerStartStop(ctx context.Context, ds *topology.DesiredState, assignments map[string]balance.Assignment, aggState map[string]topology.AggregatorState) {
	for group, aggGroup := range ds.AggregatorsByGroup {
		assignment := assignments[group]
		for _, agg := range aggGroup.Aggregators {
			c, ok := r.comms[agg.Name]
			if !ok || aggState[agg.Name] == topology.StateStopped {
				continue
			}
			reported, err := c.PrdcrStatus(ctx)
			if err != nil {
				continue
			}
			assigned := make(map[string]bool)
			for _, name := range assignment[agg.Name] {
				assigned[name] = true
			}
			for _, p := range reported {
				switch {
				case p.State == "STOPPED" && assigned[p.Name]:
					if code, err := c.PrdcrStart(ctx, p.Name); err != nil || unexpected(code, comm.EBUSY) {
						logging.Sugar().Warnw("prdcr_start failed", "aggregator", agg.Name, "producer", p.Name, "code", code, "error", err)
					}
				case p.State != "STOPPED" && !assigned[p.Name]:
					if code, err := c.PrdcrStop(ctx, p.Name); err != nil || unexpected(code, comm.EBUSY) {
						logging.Sugar().Warnw("prdcr_stop failed", "aggregator", agg.Name, "producer", p.Name, "code", code, "error", err)
					}
				}
			}
		}
	}
}

// unexpected reports whether code is a real failure, i.e. nonzero and
// not one of the verb's benign codes.
func unexpected(code int, benign ...int) bool {
	if code == comm.OK {
		return false
	}
	for _, b := range benign {
		if code == b {
			return false
		}
	}
	return true
}
