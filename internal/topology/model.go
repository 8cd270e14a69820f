// Package topology validates a generic description tree and expands
// it into the in-memory entity graph consumed by the KV projection and
// the reconciler.
package topology

// Auth carries a daemon's authentication method name and its opaque
// configuration. An empty Name means "none".
type Auth struct {
	Name   string
	Config map[string]string
}

// Host is a reachable daemon endpoint.
type Host struct {
	Name string
	Addr string
	Port int
	Xprt string
	Auth Auth
}

// AggregatorState is one of the four states a peer aggregator's
// daemon_status can report.
type AggregatorState string

const (
	StateStopped AggregatorState = "stopped"
	StateRunning AggregatorState = "running"
	StateReady   AggregatorState = "ready"
	StateError   AggregatorState = "error"
)

// Aggregator is one daemon within an AggregatorGroup.
type Aggregator struct {
	Name  string
	Host  string // key into DesiredState.Hosts
	State AggregatorState
}

// AggregatorGroup is a named load-balancing cohort of aggregators at
// one tier.
type AggregatorGroup struct {
	Group       string
	Aggregators []*Aggregator
}

// Names returns the group's aggregator names in declared order.
func (g *AggregatorGroup) Names() []string {
	names := make([]string, len(g.Aggregators))
	for i, a := range g.Aggregators {
		names[i] = a.Name
	}
	return names
}

// PluginConfig is one plugin invocation within a SamplerSpec.
type PluginConfig struct {
	Name     string
	Interval string
	Params   map[string]string
}

// SamplerSpec groups sampler daemons sharing a plugin configuration.
// Keyed by the raw range-notation names string, preserved verbatim;
// an ambiguous duplicate key simply overwrites the earlier entry.
type SamplerSpec struct {
	NamesSpec string
	Plugins   []PluginConfig
}

// ProducerType distinguishes actively-dialing producers from passively
// accepting ones.
type ProducerType string

const (
	ProducerActive  ProducerType = "active"
	ProducerPassive ProducerType = "passive"
)

// Producer is a pull source an aggregator group connects to.
type Producer struct {
	Name      string
	Host      string // key into DesiredState.Hosts
	Group     string
	Type      ProducerType
	Xprt      string // overrides the target host's transport when set
	Reconnect string
	Updaters  []string
}

// Transport returns the transport tag to use when adding this producer
// to a peer: the producer's own xprt override when it has one,
// otherwise the target host's transport.
func (p *Producer) Transport(hosts map[string]*Host) string {
	if p.Xprt != "" {
		return p.Xprt
	}
	if h, ok := hosts[p.Host]; ok {
		return h.Xprt
	}
	return "sock"
}

// MatchRule is one {regex, field} entry in an updater's `sets` list.
type MatchRule struct {
	Regex string
	Field string // "inst" or "schema"
}

// ProducerMatch is one {regex} entry in an updater's `producers` list.
type ProducerMatch struct {
	Regex string
}

// Updater is a pull schedule applied by an aggregator group.
type Updater struct {
	Name      string
	Group     string
	Interval  string
	Sets      []MatchRule
	Producers []ProducerMatch
	Auto      string
	Push      string
}

// Store is a storage policy executed by an aggregator group.
type Store struct {
	Name       string
	Group      string
	Container  string
	Schema     string
	PluginName string
	Plugin     map[string]string
}

// DesiredState is an immutable snapshot of the entity graph.
type DesiredState struct {
	Hosts              map[string]*Host
	AggregatorsByGroup map[string]*AggregatorGroup
	SamplersByKey      map[string]*SamplerSpec
	ProducersByGroup   map[string][]*Producer
	UpdatersByGroup    map[string][]*Updater
	StoresByGroup      map[string][]*Store
	LastUpdated        float64
}

func newDesiredState() *DesiredState {
	return &DesiredState{
		Hosts:              make(map[string]*Host),
		AggregatorsByGroup: make(map[string]*AggregatorGroup),
		SamplersByKey:      make(map[string]*SamplerSpec),
		ProducersByGroup:   make(map[string][]*Producer),
		UpdatersByGroup:    make(map[string][]*Updater),
		StoresByGroup:      make(map[string][]*Store),
	}
}
