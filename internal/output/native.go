package output

import (
	"context"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/banshee-data/posegrain/internal/monitoring"
	"github.com/banshee-data/posegrain/internal/telemetry"
	"github.com/banshee-data/posegrain/internal/timeutil"
)

// NativeTransport reaches an engine running on the same host.
type NativeTransport interface {
	// Configure prepares the transport and starts delivering inbound
	// telemetry payloads to onTelemetry. It is called on every Connect and
	// must be safe to repeat.
	Configure(ctx context.Context, onTelemetry func(payload any)) error
	Send(ctx context.Context, msg *osc.Message) error
	Close() error
}

// NativeOptions configures a NativeClient.
type NativeOptions struct {
	ChannelCount  int
	ChannelPrefix string
	// Source labels telemetry snapshots that do not name their own source.
	Source string
	Clock  timeutil.Clock
}

// NativeClient sends OSC messages to a local engine and relays the engine's
// scan telemetry to subscribers.
type NativeClient struct {
	*connection

	transport     NativeTransport
	channelCount  int
	channelPrefix string
	source        string
	clock         timeutil.Clock

	telemetryListeners listenerSet[telemetry.ScanTelemetry]
	closeOnce          sync.Once
	closeErr           error
}

// NewNativeClient returns a client over transport. A nil transport yields a
// permanently disabled client.
func NewNativeClient(transport NativeTransport, opts NativeOptions) *NativeClient {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Source == "" {
		opts.Source = string(KindNative)
	}
	if opts.ChannelPrefix == "" {
		opts.ChannelPrefix = DefaultChannelPrefix
	}
	return &NativeClient{
		connection:    newConnection("native", transport != nil),
		transport:     transport,
		channelCount:  NormalizeChannelCount(opts.ChannelCount),
		channelPrefix: opts.ChannelPrefix,
		source:        opts.Source,
		clock:         opts.Clock,
	}
}

// Connect configures the transport and starts the telemetry listener.
func (c *NativeClient) Connect(ctx context.Context) {
	c.connect(ctx, func(ctx context.Context) error {
		return c.transport.Configure(ctx, c.handleTelemetry)
	})
}

// SendChannel sends value on the channel's address.
func (c *NativeClient) SendChannel(channel int, value float64) {
	v, ok := channelValue(c.channelCount, channel, value)
	if !ok {
		return
	}
	c.SendOscMessage(ChannelAddress(c.channelPrefix, channel), float32(v))
}

// SendOscMessage sends one message to the engine.
func (c *NativeClient) SendOscMessage(address string, args ...any) {
	if c.Closed() {
		return
	}
	msg, err := newOSCMessage(address, args)
	if err != nil {
		monitoring.Debugf("native: dropping message: %v", err)
		return
	}
	c.dispatch("send "+address, func(ctx context.Context) error {
		return c.transport.Send(ctx, msg)
	})
}

// SubscribeScanTelemetry registers fn for every valid telemetry snapshot.
func (c *NativeClient) SubscribeScanTelemetry(fn func(telemetry.ScanTelemetry)) func() {
	if fn == nil {
		return func() {}
	}
	return c.telemetryListeners.add(fn)
}

func (c *NativeClient) handleTelemetry(payload any) {
	if c.Closed() {
		return
	}
	t, ok := telemetry.Parse(payload, c.source, timeutil.UnixMillis(c.clock))
	if !ok {
		monitoring.Debugf("native: ignoring malformed telemetry")
		return
	}
	c.telemetryListeners.notify(t)
}

// Close shuts the client down and closes the transport.
func (c *NativeClient) Close() error {
	c.shutdown()
	c.closeOnce.Do(func() {
		if c.transport != nil {
			c.closeErr = c.transport.Close()
		}
	})
	return c.closeErr
}
