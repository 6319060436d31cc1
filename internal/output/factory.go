package output

import (
	"fmt"

	"go.bug.st/serial"
	"google.golang.org/grpc"

	"github.com/banshee-data/posegrain/internal/serialport"
	"github.com/banshee-data/posegrain/internal/timeutil"
)

// Options selects and configures a backend. Only the fields for Kind are
// read.
type Options struct {
	Kind          Kind
	ChannelCount  int
	ChannelPrefix string

	// native
	EngineHost      string
	EnginePort      int
	TelemetryListen string
	Clock           timeutil.Clock

	// relay
	RelayTarget string
	RelayDial   []grpc.DialOption

	// device
	SerialPort     string
	Serial         serialport.PortOptions
	MIDIChannel    uint8
	BaseController uint8
	// SerialOpener and SerialLister replace the real serial stack, mainly
	// for tests.
	SerialOpener serialport.Opener
	SerialLister serialport.Lister
}

// NewBackend constructs the backend named by opts.Kind. A backend whose
// transport is not available here is returned disabled rather than as an
// error.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Kind {
	case KindNative:
		var transport NativeTransport
		if opts.EngineHost != "" && opts.EnginePort > 0 {
			transport = NewUDPTransport(opts.EngineHost, opts.EnginePort, opts.TelemetryListen)
		}
		c := NewNativeClient(transport, NativeOptions{
			ChannelCount:  opts.ChannelCount,
			ChannelPrefix: opts.ChannelPrefix,
			Clock:         opts.Clock,
		})
		return Backend{Kind: KindNative, Client: c, Messages: c, Telemetry: c}, nil

	case KindRelay:
		var transport RelayTransport
		if opts.RelayTarget != "" {
			transport = NewGRPCRelayTransport(opts.RelayTarget, opts.RelayDial...)
		}
		c := NewRelayClient(transport, opts.ChannelCount, opts.ChannelPrefix)
		return Backend{Kind: KindRelay, Client: c, Messages: c}, nil

	case KindDevice:
		if _, err := opts.Serial.Normalize(); err != nil {
			return Backend{}, fmt.Errorf("serial options: %w", err)
		}
		opener, lister := opts.SerialOpener, opts.SerialLister
		if opener == nil {
			opener = serialport.OpenSerial
		}
		if lister == nil {
			lister = serial.GetPortsList
		}
		port := serialport.NewWith(opener, lister, opts.Serial)
		var transport DeviceTransport
		if port.Available() {
			transport = port
		}
		c, err := NewDeviceClient(transport, DeviceOptions{
			Port:           opts.SerialPort,
			ChannelCount:   opts.ChannelCount,
			MIDIChannel:    opts.MIDIChannel,
			BaseController: opts.BaseController,
		})
		if err != nil {
			return Backend{}, err
		}
		return Backend{Kind: KindDevice, Client: c}, nil
	}
	return Backend{}, fmt.Errorf("unknown output backend %q", opts.Kind)
}
