// Package comm implements the Communicator abstraction (component E):
// a small connection state machine plus the daemon configuration
// verbs the reconciler drives. The wire protocol itself is treated as
// an external collaborator's concern; what matters here is the
// verb/result contract every transport (real gRPC, or a fake for
// tests) must honor.
package comm

import "context"

// ConnState is the Communicator's connection state machine:
// DISCONNECTED -> CONNECTING -> CONNECTED -> (CLOSING -> DISCONNECTED).
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Closing
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Benign result codes: idempotent verbs treat these as "already done"
// rather than as failures.
const (
	OK     = 0
	EBUSY  = 16
	EEXIST = 17
)

// ProducerStatus is one entry returned by PrdcrStatus.
type ProducerStatus struct {
	Name  string
	State string // "STOPPED", "CONNECTING", "CONNECTED", ...
}

// DaemonStatus is the result of a successful DaemonStatus call.
type DaemonStatus struct {
	State string
}

// Communicator is the abstract RPC channel to one daemon (aggregator
// or sampler host). Every verb returns a grpc/daemon error code (0
// success) and, for the ones that report data, a value; callers
// interpret benign codes (EBUSY, EEXIST) themselves,
// since which codes are benign differs by verb.
type Communicator interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Close(ctx context.Context) error
	State() ConnState

	DaemonStatus(ctx context.Context) (DaemonStatus, error)

	PrdcrStatus(ctx context.Context) ([]ProducerStatus, error)
	PrdcrAdd(ctx context.Context, name, typ, xprt, addr string, port int, reconnectMicros int64) (int, error)
	PrdcrStart(ctx context.Context, name string) (int, error)
	PrdcrStop(ctx context.Context, name string) (int, error)

	UpdtrAdd(ctx context.Context, name string, interval, auto, push string) (int, error)
	UpdtrPrdcrAdd(ctx context.Context, updater, regex string) (int, error)
	UpdtrMatchAdd(ctx context.Context, updater, regex, field string) (int, error)
	UpdtrStart(ctx context.Context, name string) (int, error)

	PlugnLoad(ctx context.Context, name string) (int, error)
	PlugnConfig(ctx context.Context, name string, params map[string]string) (int, error)
	PlugnStop(ctx context.Context, name string) (int, error)

	SmplrStart(ctx context.Context, plugin, interval string) (int, error)
	SmplrStatus(ctx context.Context) ([]ProducerStatus, error)

	StrgpAdd(ctx context.Context, name, plugin, container, schema string) (int, error)
	StrgpPrdcrAdd(ctx context.Context, name, regex string) (int, error)
	StrgpStart(ctx context.Context, name string) (int, error)
}
