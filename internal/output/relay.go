package output

import (
	"context"
	"sync"
)

// RelayTransport reaches the engine through a relay process on another host
// over a persistent session.
type RelayTransport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, address string, args []any) error
	Close() error
}

// RelayClient forwards messages to a remote relay.
type RelayClient struct {
	*connection

	transport     RelayTransport
	channelCount  int
	channelPrefix string

	closeOnce sync.Once
	closeErr  error
}

// NewRelayClient returns a client over transport. A nil transport yields a
// permanently disabled client.
func NewRelayClient(transport RelayTransport, channelCount int, channelPrefix string) *RelayClient {
	if channelPrefix == "" {
		channelPrefix = DefaultChannelPrefix
	}
	return &RelayClient{
		connection:    newConnection("relay", transport != nil),
		transport:     transport,
		channelCount:  NormalizeChannelCount(channelCount),
		channelPrefix: channelPrefix,
	}
}

// Connect opens the relay session.
func (c *RelayClient) Connect(ctx context.Context) {
	c.connect(ctx, func(ctx context.Context) error {
		return c.transport.Connect(ctx)
	})
}

// SendChannel sends value on the channel's address.
func (c *RelayClient) SendChannel(channel int, value float64) {
	v, ok := channelValue(c.channelCount, channel, value)
	if !ok {
		return
	}
	c.SendOscMessage(ChannelAddress(c.channelPrefix, channel), v)
}

// SendOscMessage relays one message. Arguments are copied before the call
// returns.
func (c *RelayClient) SendOscMessage(address string, args ...any) {
	if c.Closed() {
		return
	}
	args = append([]any(nil), args...)
	c.dispatch("send "+address, func(ctx context.Context) error {
		return c.transport.Send(ctx, address, args)
	})
}

// Close shuts the client down and closes the relay session.
func (c *RelayClient) Close() error {
	c.shutdown()
	c.closeOnce.Do(func() {
		if c.transport != nil {
			c.closeErr = c.transport.Close()
		}
	})
	return c.closeErr
}
