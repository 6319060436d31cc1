package output

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/posegrain/internal/monitoring"
)

// The relay service has two unary methods, declared in
// proto/posegrain/relay/v1/relay.proto. Messages are well-known protobuf
// types, so no generated message code is needed: Send takes a Struct
// {"address": string, "args": list}.
const (
	relayServiceName = "posegrain.relay.v1.Relay"
	relayPingMethod  = "/" + relayServiceName + "/Ping"
	relaySendMethod  = "/" + relayServiceName + "/Send"
)

// GRPCRelayTransport is the RelayTransport over a gRPC client connection.
type GRPCRelayTransport struct {
	target string
	opts   []grpc.DialOption

	mu   sync.Mutex
	conn *grpc.ClientConn
}

// NewGRPCRelayTransport returns a transport for target. Connections are
// insecure unless opts supply transport credentials.
func NewGRPCRelayTransport(target string, opts ...grpc.DialOption) *GRPCRelayTransport {
	all := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return &GRPCRelayTransport{target: target, opts: all}
}

func (g *GRPCRelayTransport) clientConn() (*grpc.ClientConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		return g.conn, nil
	}
	conn, err := grpc.NewClient(g.target, g.opts...)
	if err != nil {
		return nil, fmt.Errorf("relay client for %s: %w", g.target, err)
	}
	g.conn = conn
	return conn, nil
}

// Connect establishes the session and checks the relay answers.
func (g *GRPCRelayTransport) Connect(ctx context.Context) error {
	conn, err := g.clientConn()
	if err != nil {
		return err
	}
	return conn.Invoke(ctx, relayPingMethod, &emptypb.Empty{}, &emptypb.Empty{})
}

// Send relays one addressed message.
func (g *GRPCRelayTransport) Send(ctx context.Context, address string, args []any) error {
	conn, err := g.clientConn()
	if err != nil {
		return err
	}
	req, err := encodeRelayMessage(address, args)
	if err != nil {
		return err
	}
	return conn.Invoke(ctx, relaySendMethod, req, &emptypb.Empty{})
}

// Close tears down the client connection.
func (g *GRPCRelayTransport) Close() error {
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func encodeRelayMessage(address string, args []any) (*structpb.Struct, error) {
	list := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case float32:
			list[i] = float64(v)
		default:
			list[i] = v
		}
	}
	msg, err := structpb.NewStruct(map[string]any{
		"address": address,
		"args":    list,
	})
	if err != nil {
		return nil, fmt.Errorf("encode relay message %s: %w", address, err)
	}
	return msg, nil
}

func decodeRelayMessage(msg *structpb.Struct) (string, []any, error) {
	fields := msg.GetFields()
	address := fields["address"].GetStringValue()
	if !strings.HasPrefix(address, "/") {
		return "", nil, fmt.Errorf("invalid address %q", address)
	}
	var args []any
	if list := fields["args"].GetListValue(); list != nil {
		args = list.AsSlice()
	}
	return address, args, nil
}

// RelaySink receives each relayed message on the relay host.
type RelaySink func(ctx context.Context, address string, args []any) error

// RelayServer is the far end of the relay backend.
type RelayServer struct {
	sink      RelaySink
	forwarded atomic.Uint64
	failed    atomic.Uint64
}

// NewRelayServer returns a server delivering messages to sink.
func NewRelayServer(sink RelaySink) *RelayServer {
	return &RelayServer{sink: sink}
}

// Register adds the relay service to gs.
func (s *RelayServer) Register(gs *grpc.Server) {
	gs.RegisterService(&relayServiceDesc, s)
}

// Forwarded returns the number of messages handed to the sink successfully.
func (s *RelayServer) Forwarded() uint64 { return s.forwarded.Load() }

// Failed returns the number of messages the sink rejected.
func (s *RelayServer) Failed() uint64 { return s.failed.Load() }

// Ping answers connection checks.
func (s *RelayServer) Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

// Send decodes one message and hands it to the sink.
func (s *RelayServer) Send(ctx context.Context, msg *structpb.Struct) (*emptypb.Empty, error) {
	address, args, err := decodeRelayMessage(msg)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.sink(ctx, address, args); err != nil {
		s.failed.Add(1)
		monitoring.Debugf("relay: forward %s failed: %v", address, err)
		return nil, status.Errorf(codes.Unavailable, "forward %s: %v", address, err)
	}
	s.forwarded.Add(1)
	return &emptypb.Empty{}, nil
}

type relayService interface {
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Send(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

var relayServiceDesc = grpc.ServiceDesc{
	ServiceName: relayServiceName,
	HandlerType: (*relayService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: relayPingHandler},
		{MethodName: "Send", Handler: relaySendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "posegrain/relay/v1/relay.proto",
}

func relayPingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(relayService).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: relayPingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(relayService).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func relaySendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(relayService).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: relaySendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(relayService).Send(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
