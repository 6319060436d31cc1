package output

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type sinkRecorder struct {
	mu   sync.Mutex
	got  []relayed
	fail error
}

func (s *sinkRecorder) sink(_ context.Context, address string, args []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, relayed{Address: address, Args: args})
	return nil
}

func (s *sinkRecorder) messages() []relayed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]relayed(nil), s.got...)
}

// startRelay serves a RelayServer on an in-memory listener and returns a
// transport dialled to it.
func startRelay(t *testing.T, sink RelaySink) (*RelayServer, *GRPCRelayTransport) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	server := NewRelayServer(sink)
	server.Register(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	tr := NewGRPCRelayTransport("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	return server, tr
}

func TestRelay_RoundTrip(t *testing.T) {
	rec := &sinkRecorder{}
	server, tr := startRelay(t, rec.sink)
	c := NewRelayClient(tr, 8, "/ch")
	defer c.Close()

	c.Connect(context.Background())
	require.Equal(t, StatusConnected, c.Status())

	c.SendOscMessage("/FilterCenter", float32(440), "hz", true)
	c.Wait()
	c.SendChannel(2, 0.75)
	c.Wait()

	assert.Equal(t, []relayed{
		{Address: "/FilterCenter", Args: []any{float64(440), "hz", true}},
		{Address: "/ch/02", Args: []any{0.75}},
	}, rec.messages())
	assert.Equal(t, uint64(2), server.Forwarded())
	assert.Equal(t, StatusConnected, c.Status())
}

func TestRelay_SinkFailureDisconnects(t *testing.T) {
	rec := &sinkRecorder{fail: errors.New("engine down")}
	server, tr := startRelay(t, rec.sink)
	c := NewRelayClient(tr, 0, "")
	defer c.Close()

	c.Connect(context.Background())
	require.Equal(t, StatusConnected, c.Status())

	c.SendOscMessage("/Pan", 0.0)
	c.Wait()
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, uint64(1), server.Failed())
}

func TestRelay_ConnectUnreachable(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	lis.Close()
	tr := NewGRPCRelayTransport("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	c := NewRelayClient(tr, 0, "")
	defer c.Close()

	c.Connect(context.Background())
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestRelayServer_RejectsBadAddress(t *testing.T) {
	server := NewRelayServer(func(context.Context, string, []any) error {
		t.Fatal("sink must not be called")
		return nil
	})
	msg, err := structpb.NewStruct(map[string]any{"address": "Pan", "args": []any{1.0}})
	require.NoError(t, err)

	_, err = server.Send(context.Background(), msg)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = server.Send(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRelayMessage_Encoding(t *testing.T) {
	msg, err := encodeRelayMessage("/a", []any{float32(0.5), int32(3), "s"})
	require.NoError(t, err)
	address, args, err := decodeRelayMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "/a", address)
	assert.Equal(t, []any{0.5, float64(3), "s"}, args)

	_, err = encodeRelayMessage("/a", []any{struct{}{}})
	assert.Error(t, err)
}

func TestGRPCRelayTransport_CloseWithoutConnect(t *testing.T) {
	tr := NewGRPCRelayTransport("localhost:1")
	assert.NoError(t, tr.Close())
}

func TestRelayServiceDesc_MatchesProto(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "proto", relayServiceDesc.Metadata.(string)))
	require.NoError(t, err)
	src := string(data)

	pkg, svc, ok := strings.Cut(relayServiceDesc.ServiceName, ".Relay")
	require.True(t, ok)
	assert.Empty(t, svc)
	assert.Contains(t, src, "package "+pkg+";")
	assert.Contains(t, src, "service Relay {")
	assert.Contains(t, src, "rpc Ping(google.protobuf.Empty) returns (google.protobuf.Empty);")
	assert.Contains(t, src, "rpc Send(google.protobuf.Struct) returns (google.protobuf.Empty);")

	var methods []string
	for _, m := range relayServiceDesc.Methods {
		methods = append(methods, m.MethodName)
	}
	assert.Equal(t, []string{"Ping", "Send"}, methods)
}
