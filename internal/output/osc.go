package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// TelemetryAddress is the OSC address the engine reports scan state on.
const TelemetryAddress = "/scan/telemetry"

// telemetryListKeys are the key/value telemetry fields that always carry a
// list, even when only one element follows the key.
var telemetryListKeys = map[string]bool{
	"activeGrainIndices":       true,
	"activeGrainNormPositions": true,
}

// oscArg converts a Go value into a type go-osc can encode.
func oscArg(v any) (any, error) {
	switch a := v.(type) {
	case float32, int32, int64, string, bool, []byte:
		return a, nil
	case float64:
		return float32(a), nil
	case int:
		return int32(a), nil
	case uint8:
		return int32(a), nil
	case uint16:
		return int32(a), nil
	case uint32:
		return int64(a), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported OSC argument type %T", v)
	}
}

// newOSCMessage builds a message after converting args.
func newOSCMessage(address string, args []any) (*osc.Message, error) {
	if !strings.HasPrefix(address, "/") {
		return nil, fmt.Errorf("invalid OSC address %q", address)
	}
	msg := osc.NewMessage(address)
	for _, a := range args {
		conv, err := oscArg(a)
		if err != nil {
			return nil, err
		}
		msg.Append(conv)
	}
	return msg, nil
}

// NewOSCSink returns a RelaySink that forwards every relayed message to an
// OSC client, typically the engine on the relay host.
func NewOSCSink(client *osc.Client) RelaySink {
	return func(_ context.Context, address string, args []any) error {
		msg, err := newOSCMessage(address, args)
		if err != nil {
			return err
		}
		return client.Send(msg)
	}
}

// telemetryPayload turns an inbound telemetry message into something
// telemetry.Parse accepts. A single string argument is taken as a JSON
// object; otherwise arguments are read as key followed by one or more
// values.
func telemetryPayload(msg *osc.Message) any {
	if msg == nil {
		return nil
	}
	if len(msg.Arguments) == 1 {
		if s, ok := msg.Arguments[0].(string); ok {
			return s
		}
	}

	obj := make(map[string]any)
	var key string
	var values []any
	flush := func() {
		if key == "" {
			return
		}
		switch {
		case telemetryListKeys[key]:
			obj[key] = append([]any(nil), values...)
		case len(values) == 1:
			obj[key] = values[0]
		case len(values) > 1:
			obj[key] = append([]any(nil), values...)
		}
	}
	for _, arg := range msg.Arguments {
		if s, ok := arg.(string); ok {
			if key == "" || len(values) > 0 || telemetryListKeys[key] {
				flush()
				key, values = s, nil
				continue
			}
			// A string directly after a non-list key is its value.
			values = append(values, s)
			continue
		}
		values = append(values, arg)
	}
	flush()
	return obj
}
