package output

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// DeviceTransport writes raw bytes to a selectable output device.
type DeviceTransport interface {
	Ports() ([]string, error)
	// Open selects path, or the first enumerated device when path is "".
	Open(path string) error
	Write(b []byte) error
	Close() error
}

// DefaultBaseController is the first MIDI controller number used for
// channel 1. CC 20-51 are unassigned in the MIDI controller table and free
// for general use.
const DefaultBaseController = 20

// maxBaseController keeps every channel's controller within 0..119; 120 and
// above are channel mode messages.
const maxBaseController = 119 - MaxChannelCount + 1

// DeviceOptions configures a DeviceClient.
type DeviceOptions struct {
	// Port is the device path. Empty selects the first enumerated device.
	Port         string
	ChannelCount int
	// MIDIChannel is the zero-based MIDI channel (0..15).
	MIDIChannel uint8
	// BaseController is the controller for channel 1. Zero selects
	// DefaultBaseController, since CC 0 is bank select.
	BaseController uint8
}

// Validate reports option values that cannot be encoded.
func (o DeviceOptions) Validate() error {
	if o.MIDIChannel > 15 {
		return fmt.Errorf("midi channel %d out of range 0..15", o.MIDIChannel)
	}
	if o.BaseController > maxBaseController {
		return fmt.Errorf("base controller %d out of range 0..%d", o.BaseController, maxBaseController)
	}
	return nil
}

// DeviceClient sends numbered channels as MIDI control changes. Channel n
// maps to controller BaseController+n-1 with value round(v*127).
type DeviceClient struct {
	*connection

	transport    DeviceTransport
	port         string
	channelCount int
	midiChannel  uint8
	baseCC       uint8

	closeOnce sync.Once
	closeErr  error
}

// NewDeviceClient returns a client over transport. A nil transport yields a
// permanently disabled client.
func NewDeviceClient(transport DeviceTransport, opts DeviceOptions) (*DeviceClient, error) {
	if opts.BaseController == 0 {
		opts.BaseController = DefaultBaseController
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &DeviceClient{
		connection:   newConnection("device", transport != nil),
		transport:    transport,
		port:         opts.Port,
		channelCount: NormalizeChannelCount(opts.ChannelCount),
		midiChannel:  opts.MIDIChannel,
		baseCC:       opts.BaseController,
	}, nil
}

// Connect enumerates devices and opens the configured one.
func (c *DeviceClient) Connect(ctx context.Context) {
	c.connect(ctx, func(ctx context.Context) error {
		ports, err := c.transport.Ports()
		if err != nil {
			return err
		}
		if c.port == "" && len(ports) == 0 {
			return fmt.Errorf("no output devices found")
		}
		return c.transport.Open(c.port)
	})
}

// SendChannel writes one control change.
func (c *DeviceClient) SendChannel(channel int, value float64) {
	if c.Closed() {
		return
	}
	v, ok := channelValue(c.channelCount, channel, value)
	if !ok {
		return
	}
	msg := controlChange(c.midiChannel, c.baseCC+uint8(channel-1), v)
	c.dispatch(fmt.Sprintf("channel %d", channel), func(context.Context) error {
		return c.transport.Write(msg)
	})
}

// controlChange encodes a unit value as a 7-bit control change.
func controlChange(channel, controller uint8, v float64) midi.Message {
	return midi.ControlChange(channel, controller, uint8(math.Round(v*127)))
}

// Close shuts the client down and releases the device.
func (c *DeviceClient) Close() error {
	c.shutdown()
	c.closeOnce.Do(func() {
		if c.transport != nil {
			c.closeErr = c.transport.Close()
		}
	})
	return c.closeErr
}
