package comm

import (
	"context"
	"fmt"
	"sync"
)

// FakeCommunicator is an in-process Communicator double used by the
// reconciler's tests, standing in for a real daemon connection: a
// guarded set of maps tracking producer/updater/storage-policy state
// instead of a real RPC round trip.
type FakeCommunicator struct {
	mu sync.Mutex

	state      ConnState
	connectErr error

	daemonState string // "stopped", "running", "ready" (mirrors AggregatorState)

	prdcr map[string]*fakeProducer
	updtr map[string]*fakeUpdater
	plugn map[string]bool
	strgp map[string]*fakeStorage

	// Calls records every verb invoked, in order, for assertions.
	Calls []string
}

type fakeProducer struct {
	name    string
	state   string
	matches []string
}

type fakeUpdater struct {
	name      string
	started   bool
	producers []string
}

type fakeStorage struct {
	name      string
	started   bool
	producers []string
}

// NewFakeCommunicator returns a FakeCommunicator whose daemon begins
// stopped and disconnected.
func NewFakeCommunicator() *FakeCommunicator {
	return &FakeCommunicator{
		state:       Disconnected,
		daemonState: "stopped",
		prdcr:       make(map[string]*fakeProducer),
		updtr:       make(map[string]*fakeUpdater),
		plugn:       make(map[string]bool),
		strgp:       make(map[string]*fakeStorage),
	}
}

// SetDaemonState lets a test force the simulated daemon's reported
// health, e.g. to exercise the reconciler's unhealthy-aggregator path.
func (f *FakeCommunicator) SetDaemonState(state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daemonState = state
}

// FailConnect makes subsequent Connect/Reconnect calls return err.
func (f *FakeCommunicator) FailConnect(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *FakeCommunicator) record(verb string) {
	f.Calls = append(f.Calls, verb)
}

func (f *FakeCommunicator) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Connect")
	if f.connectErr != nil {
		f.state = Disconnected
		return f.connectErr
	}
	f.state = Connected
	return nil
}

func (f *FakeCommunicator) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	f.state = Disconnected
	f.mu.Unlock()
	return f.Connect(ctx)
}

func (f *FakeCommunicator) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Close")
	f.state = Disconnected
	return nil
}

func (f *FakeCommunicator) State() ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeCommunicator) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DaemonStatus")
	return DaemonStatus{State: f.daemonState}, nil
}

func (f *FakeCommunicator) PrdcrStatus(ctx context.Context) ([]ProducerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PrdcrStatus")
	out := make([]ProducerStatus, 0, len(f.prdcr))
	for _, p := range f.prdcr {
		out = append(out, ProducerStatus{Name: p.name, State: p.state})
	}
	return out, nil
}

func (f *FakeCommunicator) SmplrStatus(ctx context.Context) ([]ProducerStatus, error) {
	return f.PrdcrStatus(ctx)
}

func (f *FakeCommunicator) PrdcrAdd(ctx context.Context, name, typ, xprt, addr string, port int, reconnectMicros int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PrdcrAdd:" + name)
	if _, exists := f.prdcr[name]; exists {
		return EEXIST, nil
	}
	f.prdcr[name] = &fakeProducer{name: name, state: "STOPPED"}
	return OK, nil
}

func (f *FakeCommunicator) PrdcrStart(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PrdcrStart:" + name)
	p, ok := f.prdcr[name]
	if !ok {
		return 0, fmt.Errorf("comm: fake: no such producer %q", name)
	}
	p.state = "CONNECTED"
	return OK, nil
}

func (f *FakeCommunicator) PrdcrStop(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PrdcrStop:" + name)
	p, ok := f.prdcr[name]
	if !ok {
		return 0, fmt.Errorf("comm: fake: no such producer %q", name)
	}
	p.state = "STOPPED"
	return OK, nil
}

func (f *FakeCommunicator) UpdtrAdd(ctx context.Context, name string, interval, auto, push string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdtrAdd:" + name)
	if _, exists := f.updtr[name]; exists {
		return EEXIST, nil
	}
	f.updtr[name] = &fakeUpdater{name: name}
	return OK, nil
}

func (f *FakeCommunicator) UpdtrPrdcrAdd(ctx context.Context, updater, regex string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdtrPrdcrAdd:" + updater + ":" + regex)
	u, ok := f.updtr[updater]
	if !ok {
		return 0, fmt.Errorf("comm: fake: no such updater %q", updater)
	}
	u.producers = append(u.producers, regex)
	return OK, nil
}

func (f *FakeCommunicator) UpdtrMatchAdd(ctx context.Context, updater, regex, field string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdtrMatchAdd:" + updater + ":" + regex)
	if _, ok := f.updtr[updater]; !ok {
		return 0, fmt.Errorf("comm: fake: no such updater %q", updater)
	}
	return OK, nil
}

func (f *FakeCommunicator) UpdtrStart(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdtrStart:" + name)
	u, ok := f.updtr[name]
	if !ok {
		return 0, fmt.Errorf("comm: fake: no such updater %q", name)
	}
	if u.started {
		return EBUSY, nil
	}
	u.started = true
	return OK, nil
}

func (f *FakeCommunicator) PlugnLoad(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PlugnLoad:" + name)
	if f.plugn[name] {
		return EEXIST, nil
	}
	f.plugn[name] = true
	return OK, nil
}

func (f *FakeCommunicator) PlugnConfig(ctx context.Context, name string, params map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PlugnConfig:" + name)
	if !f.plugn[name] {
		return 0, fmt.Errorf("comm: fake: plugin %q not loaded", name)
	}
	return OK, nil
}

func (f *FakeCommunicator) PlugnStop(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PlugnStop:" + name)
	delete(f.plugn, name)
	return OK, nil
}

func (f *FakeCommunicator) SmplrStart(ctx context.Context, plugin, interval string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SmplrStart:" + plugin)
	return OK, nil
}

func (f *FakeCommunicator) StrgpAdd(ctx context.Context, name, plugin, container, schema string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StrgpAdd:" + name)
	if _, exists := f.strgp[name]; exists {
		return EEXIST, nil
	}
	f.strgp[name] = &fakeStorage{name: name}
	return OK, nil
}

func (f *FakeCommunicator) StrgpPrdcrAdd(ctx context.Context, name, regex string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StrgpPrdcrAdd:" + name + ":" + regex)
	s, ok := f.strgp[name]
	if !ok {
		return 0, fmt.Errorf("comm: fake: no such storage policy %q", name)
	}
	s.producers = append(s.producers, regex)
	return OK, nil
}

func (f *FakeCommunicator) StrgpStart(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StrgpStart:" + name)
	s, ok := f.strgp[name]
	if !ok {
		return 0, fmt.Errorf("comm: fake: no such storage policy %q", name)
	}
	if s.started {
		return EBUSY, nil
	}
	s.started = true
	return OK, nil
}

var _ Communicator = (*FakeCommunicator)(nil)
