// Package output delivers mapped parameter values to the synthesis engine.
//
// Three backends share the Client contract: a native OSC transport on the
// local host, a gRPC network relay, and a serial MIDI device. Delivery is
// fire-and-forget; the only feedback a caller gets is the connection Status.
package output

import (
	"context"

	"github.com/banshee-data/posegrain/internal/telemetry"
)

// Client is the capability every backend provides.
type Client interface {
	// Connect attempts to reach the transport. It may block until the
	// attempt resolves and reports the outcome only through Status.
	Connect(ctx context.Context)
	// SendChannel delivers value, clamped to [0,1], on a numbered channel.
	// Channel numbers outside 1..count are dropped.
	SendChannel(channel int, value float64)
	Status() Status
	SubscribeStatus(fn func(Status)) (unsubscribe func())
	// Close is terminal and idempotent.
	Close() error
}

// MessageSender is implemented by the address-based backends.
type MessageSender interface {
	SendOscMessage(address string, args ...any)
}

// TelemetrySource is implemented by backends that receive scan telemetry
// from the engine.
type TelemetrySource interface {
	SubscribeScanTelemetry(fn func(telemetry.ScanTelemetry)) (unsubscribe func())
}

// Kind selects a backend.
type Kind string

const (
	KindNative Kind = "native"
	KindRelay  Kind = "relay"
	KindDevice Kind = "device"
)

// Kinds lists the supported backends.
var Kinds = []Kind{KindNative, KindRelay, KindDevice}

// Valid reports whether k names a supported backend.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Backend is the client chosen at construction together with the optional
// capabilities it supports. Messages and Telemetry are nil when the backend
// lacks that capability, so callers branch on nil rather than on type.
type Backend struct {
	Kind      Kind
	Client    Client
	Messages  MessageSender
	Telemetry TelemetrySource
}

// Close closes the underlying client.
func (b Backend) Close() error {
	if b.Client == nil {
		return nil
	}
	return b.Client.Close()
}
