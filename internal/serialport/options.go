package serialport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// MIDIBaudRate is the DIN MIDI line rate.
const MIDIBaudRate = 31250

// PortOptions describes the line settings used when opening a port. The zero
// value is a standard MIDI line: 31250 baud, 8N1. USB MIDI bridges that
// present as a serial device often want a higher rate instead.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// parities maps accepted spellings to the canonical letter and mode value.
var parities = map[string]struct {
	letter string
	mode   serial.Parity
}{
	"N": {"N", serial.NoParity}, "NONE": {"N", serial.NoParity},
	"E": {"E", serial.EvenParity}, "EVEN": {"E", serial.EvenParity},
	"O": {"O", serial.OddParity}, "ODD": {"O", serial.OddParity},
}

var stopBits = map[int]serial.StopBits{
	1: serial.OneStopBit,
	2: serial.TwoStopBits,
}

// Normalize fills unset fields with the MIDI line defaults and rejects
// settings the serial layer cannot open.
func (o PortOptions) Normalize() (PortOptions, error) {
	if o.BaudRate <= 0 {
		o.BaudRate = MIDIBaudRate
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}

	if o.DataBits < 5 || o.DataBits > 8 {
		return o, fmt.Errorf("invalid data bits %d: must be between 5 and 8", o.DataBits)
	}
	if _, ok := stopBits[o.StopBits]; !ok {
		return o, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", o.StopBits)
	}

	key := strings.ToUpper(strings.TrimSpace(o.Parity))
	if key == "" {
		key = "N"
	}
	p, ok := parities[key]
	if !ok {
		return o, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	o.Parity = p.letter
	return o, nil
}

// String formats the line settings as e.g. "31250 8N1".
func (o PortOptions) String() string {
	return fmt.Sprintf("%d %d%s%d", o.BaudRate, o.DataBits, o.Parity, o.StopBits)
}

// SerialMode converts the options into the go.bug.st/serial mode used to open
// a port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: stopBits[opts.StopBits],
		Parity:   parities[opts.Parity].mode,
	}, nil
}
