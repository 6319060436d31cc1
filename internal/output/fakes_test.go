package output

import (
	"context"
	"sync"

	"github.com/hypebeast/go-osc/osc"
)

// statusRecorder collects every status a subscriber observes.
type statusRecorder struct {
	mu   sync.Mutex
	seen []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, s)
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.seen...)
}

// gate lets a test hold a transport call until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) wait() {
	if g == nil {
		return
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
}

type fakeNative struct {
	mu           sync.Mutex
	sent         []*osc.Message
	configures   int
	configureErr error
	sendErr      error
	sendGate     *gate
	onTelemetry  func(any)
	closes       int
}

func (f *fakeNative) Configure(_ context.Context, onTelemetry func(any)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configures++
	f.onTelemetry = onTelemetry
	return f.configureErr
}

func (f *fakeNative) Send(_ context.Context, msg *osc.Message) error {
	f.mu.Lock()
	g := f.sendGate
	f.mu.Unlock()
	g.wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNative) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeNative) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeNative) messages() []*osc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*osc.Message(nil), f.sent...)
}

func (f *fakeNative) emit(payload any) {
	f.mu.Lock()
	fn := f.onTelemetry
	f.mu.Unlock()
	fn(payload)
}

type fakeRelay struct {
	mu         sync.Mutex
	connectErr error
	sendErr    error
	sent       []relayed
	panicOn    string
}

type relayed struct {
	Address string
	Args    []any
}

func (f *fakeRelay) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectErr
}

func (f *fakeRelay) Send(_ context.Context, address string, args []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if address == f.panicOn {
		panic("boom")
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, relayed{Address: address, Args: args})
	return nil
}

func (f *fakeRelay) Close() error { return nil }

func (f *fakeRelay) messages() []relayed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relayed(nil), f.sent...)
}
