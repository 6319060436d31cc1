package output

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/banshee-data/posegrain/internal/monitoring"
)

// UDPTransport is the NativeTransport for an engine listening for OSC over
// UDP on this host. When TelemetryAddr is set, Configure also binds a UDP
// listener for TelemetryAddress messages from the engine.
type UDPTransport struct {
	engineAddr    string
	telemetryAddr string

	mu       sync.Mutex
	client   *osc.Client
	conn     net.PacketConn
	serveErr chan error
	closed   bool
}

// NewUDPTransport returns a transport sending to host:port. telemetryAddr may
// be empty to disable the inbound listener.
func NewUDPTransport(host string, port int, telemetryAddr string) *UDPTransport {
	return &UDPTransport{
		engineAddr:    net.JoinHostPort(host, strconv.Itoa(port)),
		telemetryAddr: telemetryAddr,
		client:        osc.NewClient(host, port),
	}
}

// TelemetryAddr returns the bound telemetry address, or "" when not
// listening.
func (u *UDPTransport) TelemetryAddr() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return ""
	}
	return u.conn.LocalAddr().String()
}

// Configure resolves the engine address and starts the telemetry listener if
// it is not already running.
func (u *UDPTransport) Configure(ctx context.Context, onTelemetry func(payload any)) error {
	if _, err := net.ResolveUDPAddr("udp", u.engineAddr); err != nil {
		return fmt.Errorf("resolve engine address %s: %w", u.engineAddr, err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return net.ErrClosed
	}
	if u.telemetryAddr == "" || u.conn != nil {
		return nil
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", u.telemetryAddr)
	if err != nil {
		return fmt.Errorf("listen for telemetry on %s: %w", u.telemetryAddr, err)
	}

	d := osc.NewStandardDispatcher()
	if err := d.AddMsgHandler(TelemetryAddress, func(msg *osc.Message) {
		onTelemetry(telemetryPayload(msg))
	}); err != nil {
		conn.Close()
		return fmt.Errorf("register telemetry handler: %w", err)
	}

	server := &osc.Server{Dispatcher: d}
	u.conn = conn
	u.serveErr = make(chan error, 1)
	go func(errc chan<- error) {
		// Serve returns on the first unparsable packet, so keep serving
		// until the connection is closed.
		for {
			err := server.Serve(conn)
			if err == nil || errors.Is(err, net.ErrClosed) || u.isClosed() {
				errc <- nil
				return
			}
			monitoring.Debugf("native: telemetry packet rejected: %v", err)
		}
	}(u.serveErr)

	monitoring.Logf("native: listening for telemetry on %s", conn.LocalAddr())
	return nil
}

func (u *UDPTransport) isClosed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

// Send writes msg to the engine.
func (u *UDPTransport) Send(_ context.Context, msg *osc.Message) error {
	if u.isClosed() {
		return net.ErrClosed
	}
	return u.client.Send(msg)
}

// Close stops the telemetry listener. It is safe to call more than once.
func (u *UDPTransport) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	conn, errc := u.conn, u.serveErr
	u.conn = nil
	u.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-errc
	return err
}
