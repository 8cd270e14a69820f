// Package control implements the Controller/Supervisor (component G):
// the two CLI entry points' shared lifecycle logic. Configure owns a
// one-shot push of a description into the datastore; Supervisor owns
// the monitor-forever loop — loading the current DesiredState, dialing
// one Communicator per aggregator, watching the commit sentinel, and
// driving the Reconciler at 1 Hz.
package control

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ovis-hpc/maestro/internal/comm"
	"github.com/ovis-hpc/maestro/internal/descriptor"
	"github.com/ovis-hpc/maestro/internal/kv"
	"github.com/ovis-hpc/maestro/internal/logging"
	"github.com/ovis-hpc/maestro/internal/reconcile"
	"github.com/ovis-hpc/maestro/internal/spawn"
	"github.com/ovis-hpc/maestro/internal/topology"
)

// tickInterval is the monitor loop's poll period: a steady 1 Hz tick
// drives each reconciliation pass.
const tickInterval = time.Second

// Configure implements the configure-once entry point: load the
// description, expand it, and atomically replace everything under
// "/<prefix>/" in the datastore.
func Configure(ctx context.Context, store kv.Store, descriptionPath, prefix string, nowSeconds float64) error {
	tree, err := descriptor.LoadDescription(descriptionPath)
	if err != nil {
		return err
	}
	// Build validates the description before anything is written, so a
	// malformed description never produces a partial commit.
	if _, err := topology.Build(tree); err != nil {
		return err
	}
	return kv.SaveConfig(ctx, store, prefix, tree, nowSeconds)
}

// Supervisor runs the monitor-forever entry point. It owns the current
// DesiredState, which it hands to the Reconciler for each pass, and
// dials the Communicators, which it registers with the Reconciler.
type Supervisor struct {
	store  kv.Store
	prefix string

	startAggregators bool
	dialer           func(host *topology.Host) comm.Communicator

	mu      sync.Mutex
	ds      *topology.DesiredState
	reconc  *reconcile.Reconciler
	spawned map[string]bool
}

// NewSupervisor constructs a Supervisor. dialer builds the
// Communicator for a given aggregator host; production callers pass
// one backed by comm.NewGrpcCommunicator, tests pass one backed by
// comm.NewFakeCommunicator.
func NewSupervisor(store kv.Store, prefix string, startAggregators bool, dialer func(host *topology.Host) comm.Communicator) *Supervisor {
	return &Supervisor{
		store:            store,
		prefix:           prefix,
		startAggregators: startAggregators,
		dialer:           dialer,
		reconc:           reconcile.New(),
		spawned:          make(map[string]bool),
	}
}

// Run loads the current DesiredState, optionally spawns aggregator
// daemons, dials every aggregator, then runs the watch+tick loop until
// ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.reload(ctx); err != nil {
		return err
	}

	changes, watchErrs := s.store.Watch(ctx, "/"+trimmedPrefix(s.prefix)+"/last_updated")
	go s.watchLoop(ctx, changes, watchErrs)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.mu.Lock()
			ds := s.ds
			s.mu.Unlock()
			if err := s.reconc.Pass(ctx, ds); err != nil {
				logging.Sugar().Warnw("reconcile pass failed", "error", err)
			}
		}
	}
}

// watchLoop forwards datastore change events into the reconciler's
// change-generation counter and reloads the DesiredState. Any error or
// panic in a callback is caught at this boundary, logged, and never
// allowed to terminate the monitor.
func (s *Supervisor) watchLoop(ctx context.Context, changes <-chan kv.Event, watchErrs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watchErrs:
			if !ok {
				return
			}
			if err != nil {
				logging.Sugar().Warnw("datastore watch error", "error", err)
			}
		case _, ok := <-changes:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						logging.Sugar().Errorw("watch callback panicked", "recovered", r)
					}
				}()
				if err := s.reload(ctx); err != nil {
					logging.Sugar().Warnw("reload after change notification failed", "error", err)
					return
				}
				s.reconc.NotifyChange()
			}()
		}
	}
}

// reload reflects the current DesiredState from the datastore, dials
// any aggregator the Reconciler does not yet have a Communicator for,
// and spawns daemons for newly-seen aggregators if requested.
func (s *Supervisor) reload(ctx context.Context) error {
	tree, err := kv.LoadConfig(ctx, s.store, s.prefix)
	if err != nil {
		return err
	}
	ds, err := topology.Build(tree)
	if err != nil {
		return err
	}
	if raw, ok := tree["last_updated"].(string); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			ds.LastUpdated = v
		}
	}

	s.mu.Lock()
	s.ds = ds
	s.mu.Unlock()

	for _, group := range ds.AggregatorsByGroup {
		for _, agg := range group.Aggregators {
			host := ds.Hosts[agg.Host]
			if host == nil {
				continue
			}
			if s.startAggregators && !s.spawned[agg.Name] {
				if _, err := spawn.Start(host, spawn.DefaultOptions()); err != nil {
					logging.Sugar().Warnw("failed to spawn aggregator daemon", "aggregator", agg.Name, "error", err)
				} else {
					s.spawned[agg.Name] = true
				}
			}
			s.ensureCommunicator(ctx, agg.Name, host)
		}
	}
	return nil
}

// ensureCommunicator dials and registers a Communicator for name the
// first time it is seen; subsequent reloads reuse the existing
// long-lived connection (Communicators are kept in the Reconciler's
// registry and outlive any single reconciliation pass).
func (s *Supervisor) ensureCommunicator(ctx context.Context, name string, host *topology.Host) {
	if _, known := s.reconc.Communicator(name); known {
		return
	}
	c := s.dialer(host)
	if err := c.Connect(ctx); err != nil {
		logging.Sugar().Warnw("initial connect failed, will retry on next pass", "aggregator", name, "error", err)
	}
	s.reconc.SetCommunicator(name, c)
}

func trimmedPrefix(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
