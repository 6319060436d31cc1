// Package serialport writes raw bytes to a serial device, such as a DIN MIDI
// interface, with enumeration and reopen support.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/posegrain/internal/monitoring"
)

var (
	// ErrNotOpen is returned by Write before a port has been opened.
	ErrNotOpen = errors.New("serial port not open")
	// ErrNoPorts is returned by Open when no path is given and none are
	// present.
	ErrNoPorts = errors.New("no serial ports found")
	// ErrShortWrite is returned when the device accepts fewer bytes than
	// were written.
	ErrShortWrite = errors.New("short write to serial port")
)

// SerialPorter defines the minimal interface needed for an output port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.Writer
	io.Closer
}

// Opener opens the serial port at path.
type Opener func(path string, mode *serial.Mode) (SerialPorter, error)

// Lister enumerates serial port paths.
type Lister func() ([]string, error)

// OpenSerial opens a real port with go.bug.st/serial.
func OpenSerial(path string, mode *serial.Mode) (SerialPorter, error) {
	return serial.Open(path, mode)
}

// Port is a reopenable, write-only serial port. Writes are serialised.
type Port struct {
	opener Opener
	lister Lister
	opts   PortOptions

	mu   sync.Mutex
	path string
	port SerialPorter
}

// New returns a Port backed by real serial hardware.
func New(opts PortOptions) *Port {
	return NewWith(OpenSerial, serial.GetPortsList, opts)
}

// NewWith returns a Port using the given opener and lister.
func NewWith(opener Opener, lister Lister, opts PortOptions) *Port {
	return &Port{opener: opener, lister: lister, opts: opts}
}

// Available reports whether serial enumeration works on this host.
func (p *Port) Available() bool {
	_, err := p.lister()
	return err == nil
}

// Ports lists the serial ports present.
func (p *Port) Ports() ([]string, error) {
	ports, err := p.lister()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return ports, nil
}

// Path returns the path of the open port, or "".
func (p *Port) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

// Open opens path, replacing any port already open. An empty path selects
// the first enumerated port.
func (p *Port) Open(path string) error {
	opts, err := p.opts.Normalize()
	if err != nil {
		return err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return err
	}
	if path == "" {
		ports, err := p.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			return ErrNoPorts
		}
		path = ports[0]
	}

	port, err := p.opener(path, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	p.mu.Lock()
	old := p.port
	p.port, p.path = port, path
	p.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			monitoring.Logf("serialport: closing previous port: %v", err)
		}
	}
	monitoring.Logf("serialport: opened %s (%s)", path, opts)
	return nil
}

// Write writes b in full.
func (p *Port) Write(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return ErrNotOpen
	}
	n, err := p.port.Write(b)
	if err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(b))
	}
	return nil
}

// Close closes the open port, if any. It is safe to call more than once.
func (p *Port) Close() error {
	p.mu.Lock()
	port := p.port
	p.port, p.path = nil, ""
	p.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}
