package comm

import (
	"context"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The Communicator's wire protocol is an implementation detail:
// callers only depend on the Communicator interface. Rather than
// generate one gRPC method per verb from a .proto file, every verb is
// carried as a single generic envelope — {verb, args} in, {error_code,
// payload} out — using google.protobuf.Struct (structpb), a
// predefined, already-generated protobuf message that represents an
// arbitrary JSON-like object. That keeps the transport on real,
// wire-compatible protobuf/gRPC without requiring a protoc step.

const daemonServiceName = "maestro.comm.Daemon"
const invokeMethod = "/" + daemonServiceName + "/Invoke"
const pingMethod = "/" + daemonServiceName + "/Ping"

// daemonServer is implemented by anything that answers Invoke/Ping
// calls: the real ldmsd-facing bridge or, in tests, a fake in-process
// daemon. Ping carries no payload in either direction — it exists
// purely to confirm the transport is alive before a verb call is
// attempted, so it is carried as google.protobuf.Empty rather than the
// generic Struct envelope every verb uses.
type daemonServer interface {
	Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Ping(ctx context.Context, req *empty.Empty) (*empty.Empty, error)
}

var daemonServiceDesc = grpc.ServiceDesc{
	ServiceName: daemonServiceName,
	HandlerType: (*daemonServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler:    invokeHandler,
		},
		{
			MethodName: "Ping",
			Handler:    pingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "maestro/comm/daemon.proto",
}

func invokeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(daemonServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(daemonServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(empty.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(daemonServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pingMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(daemonServer).Ping(ctx, req.(*empty.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterDaemonServer registers srv as the handler for the generic
// Invoke/Ping RPCs on a *grpc.Server.
func RegisterDaemonServer(s *grpc.Server, srv daemonServer) {
	s.RegisterService(&daemonServiceDesc, srv)
}

type daemonClient struct {
	cc *grpc.ClientConn
}

func newDaemonClient(cc *grpc.ClientConn) *daemonClient {
	return &daemonClient{cc: cc}
}

func (c *daemonClient) Invoke(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, invokeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping confirms the daemon on the other end of the connection is
// actually answering RPCs, before any verb is attempted against it.
func (c *daemonClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, pingMethod, new(empty.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
