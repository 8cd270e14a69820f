package comm

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ovis-hpc/maestro/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxMsgSize is the 16 MiB max send/receive message size required by
// the cluster's connection options, reused here for the Communicator's
// own dial options since both sit on the same gRPC stack.
const maxMsgSize = 16 * 1024 * 1024

// GrpcCommunicator is the real Communicator: one long-lived gRPC
// connection per aggregator/sampler host, dialed lazily and redialed
// on Reconnect.
type GrpcCommunicator struct {
	addr string

	mu    sync.Mutex
	state ConnState
	conn  *grpc.ClientConn
	cl    *daemonClient
}

// NewGrpcCommunicator returns a Communicator for the daemon at addr
// ("host:port"), unconnected.
func NewGrpcCommunicator(addr string) *GrpcCommunicator {
	return &GrpcCommunicator{addr: addr, state: Disconnected}
}

func (c *GrpcCommunicator) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *GrpcCommunicator) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Connected {
		return nil
	}
	c.state = Connecting
	conn, err := grpc.DialContext(ctx, c.addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(maxMsgSize),
			grpc.MaxCallRecvMsgSize(maxMsgSize),
		),
	)
	if err != nil {
		c.state = Disconnected
		return err
	}
	cl := newDaemonClient(conn)
	if _, err := cl.Ping(ctx); err != nil {
		conn.Close()
		c.state = Disconnected
		return fmt.Errorf("comm: %s: ping failed: %w", c.addr, err)
	}
	c.conn = conn
	c.cl = cl
	c.state = Connected
	return nil
}

func (c *GrpcCommunicator) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.cl = nil
	}
	c.state = Disconnected
	c.mu.Unlock()
	return c.Connect(ctx)
}

func (c *GrpcCommunicator) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Closing
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
		c.cl = nil
	}
	c.state = Disconnected
	return err
}

// invoke is the shared path every verb funnels through: build the
// {verb, args} envelope, call Invoke, and split the response into
// (errorCode, payload).
func (c *GrpcCommunicator) invoke(ctx context.Context, verb string, args map[string]interface{}) (int, map[string]interface{}, error) {
	c.mu.Lock()
	cl := c.cl
	c.mu.Unlock()
	if cl == nil {
		return 0, nil, fmt.Errorf("comm: %s: not connected", c.addr)
	}

	reqStruct, err := structpb.NewStruct(map[string]interface{}{
		"verb": verb,
		"args": args,
	})
	if err != nil {
		return 0, nil, err
	}

	resp, err := cl.Invoke(ctx, reqStruct)
	if err != nil {
		logging.Sugar().Warnw("communicator call failed", "addr", c.addr, "verb", verb, "error", err)
		return 0, nil, err
	}

	fields := resp.GetFields()
	code := 0
	if ec, ok := fields["error_code"]; ok {
		code = int(ec.GetNumberValue())
	}
	var payload map[string]interface{}
	if p, ok := fields["payload"]; ok {
		payload = p.GetStructValue().AsMap()
	}
	return code, payload, nil
}

func (c *GrpcCommunicator) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	code, payload, err := c.invoke(ctx, "daemon_status", nil)
	if err != nil || code != OK {
		// any error, for this verb, is treated as "stopped".
		return DaemonStatus{State: "stopped"}, nil
	}
	state, _ := payload["state"].(string)
	return DaemonStatus{State: state}, nil
}

func (c *GrpcCommunicator) PrdcrStatus(ctx context.Context) ([]ProducerStatus, error) {
	code, payload, err := c.invoke(ctx, "prdcr_status", nil)
	if err != nil || code != OK {
		return nil, fmt.Errorf("comm: %s: prdcr_status failed", c.addr)
	}
	return decodeProducerStatusList(payload)
}

func (c *GrpcCommunicator) SmplrStatus(ctx context.Context) ([]ProducerStatus, error) {
	code, payload, err := c.invoke(ctx, "smplr_status", nil)
	if err != nil || code != OK {
		return nil, fmt.Errorf("comm: %s: smplr_status failed", c.addr)
	}
	return decodeProducerStatusList(payload)
}

func decodeProducerStatusList(payload map[string]interface{}) ([]ProducerStatus, error) {
	raw, _ := payload["list"].([]interface{})
	out := make([]ProducerStatus, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		state, _ := m["state"].(string)
		out = append(out, ProducerStatus{Name: name, State: state})
	}
	return out, nil
}

func (c *GrpcCommunicator) PrdcrAdd(ctx context.Context, name, typ, xprt, addr string, port int, reconnectMicros int64) (int, error) {
	code, _, err := c.invoke(ctx, "prdcr_add", map[string]interface{}{
		"name": name, "type": typ, "xprt": xprt, "host": addr,
		"port": strconv.Itoa(port), "reconnect": strconv.FormatInt(reconnectMicros, 10),
	})
	return code, err
}

func (c *GrpcCommunicator) PrdcrStart(ctx context.Context, name string) (int, error) {
	code, _, err := c.invoke(ctx, "prdcr_start", map[string]interface{}{"name": name})
	return code, err
}

func (c *GrpcCommunicator) PrdcrStop(ctx context.Context, name string) (int, error) {
	code, _, err := c.invoke(ctx, "prdcr_stop", map[string]interface{}{"name": name})
	return code, err
}

func (c *GrpcCommunicator) UpdtrAdd(ctx context.Context, name string, interval, auto, push string) (int, error) {
	args := map[string]interface{}{"name": name}
	switch {
	case push != "":
		args["push"] = push
	case auto != "":
		args["auto"] = auto
	default:
		args["interval"] = interval
	}
	code, _, err := c.invoke(ctx, "updtr_add", args)
	return code, err
}

func (c *GrpcCommunicator) UpdtrPrdcrAdd(ctx context.Context, updater, regex string) (int, error) {
	code, _, err := c.invoke(ctx, "updtr_prdcr_add", map[string]interface{}{"name": updater, "regex": regex})
	return code, err
}

func (c *GrpcCommunicator) UpdtrMatchAdd(ctx context.Context, updater, regex, field string) (int, error) {
	args := map[string]interface{}{"name": updater, "regex": regex}
	if field != "" {
		args["match"] = field
	}
	code, _, err := c.invoke(ctx, "updtr_match_add", args)
	return code, err
}

func (c *GrpcCommunicator) UpdtrStart(ctx context.Context, name string) (int, error) {
	code, _, err := c.invoke(ctx, "updtr_start", map[string]interface{}{"name": name})
	return code, err
}

func (c *GrpcCommunicator) PlugnLoad(ctx context.Context, name string) (int, error) {
	code, _, err := c.invoke(ctx, "plugn_load", map[string]interface{}{"name": name})
	return code, err
}

func (c *GrpcCommunicator) PlugnConfig(ctx context.Context, name string, params map[string]string) (int, error) {
	args := map[string]interface{}{"name": name}
	for k, v := range params {
		args[k] = v
	}
	code, _, err := c.invoke(ctx, "plugn_config", args)
	return code, err
}

func (c *GrpcCommunicator) PlugnStop(ctx context.Context, name string) (int, error) {
	code, _, err := c.invoke(ctx, "plugn_stop", map[string]interface{}{"name": name})
	return code, err
}

func (c *GrpcCommunicator) SmplrStart(ctx context.Context, plugin, interval string) (int, error) {
	code, _, err := c.invoke(ctx, "smplr_start", map[string]interface{}{"name": plugin, "interval": interval})
	return code, err
}

func (c *GrpcCommunicator) StrgpAdd(ctx context.Context, name, plugin, container, schema string) (int, error) {
	code, _, err := c.invoke(ctx, "strgp_add", map[string]interface{}{
		"name": name, "plugin": plugin, "container": container, "schema": schema,
	})
	return code, err
}

func (c *GrpcCommunicator) StrgpPrdcrAdd(ctx context.Context, name, regex string) (int, error) {
	code, _, err := c.invoke(ctx, "strgp_prdcr_add", map[string]interface{}{"name": name, "regex": regex})
	return code, err
}

func (c *GrpcCommunicator) StrgpStart(ctx context.Context, name string) (int, error) {
	code, _, err := c.invoke(ctx, "strgp_start", map[string]interface{}{"name": name})
	return code, err
}

var _ Communicator = (*GrpcCommunicator)(nil)
