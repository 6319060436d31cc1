// Package session drives mapping evaluation for one performer and hands the
// results to an output backend.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/posegrain/internal/mapping"
	"github.com/banshee-data/posegrain/internal/monitoring"
	"github.com/banshee-data/posegrain/internal/output"
	"github.com/banshee-data/posegrain/internal/params"
	"github.com/banshee-data/posegrain/internal/pose"
	"github.com/banshee-data/posegrain/internal/telemetry"
)

// Config configures a Session.
type Config struct {
	Registry *params.Registry
	Backend  output.Backend
	// AddressPrefix is prepended to every parameter address.
	AddressPrefix string
	// Mappings is the initial mapping set. Nil selects the defaults.
	Mappings []mapping.Mapping
}

// Session owns a mapping set, its smoothing state and an output backend.
// HandleFrame is the single writer of the smoothing state; the mutex only
// guards against SetMappings and the admin routes running concurrently.
type Session struct {
	reg       *params.Registry
	evaluator *mapping.Evaluator
	backend   output.Backend
	prefix    string

	mu       sync.Mutex
	mappings []mapping.Mapping
	state    mapping.SmoothingState
	last     []mapping.Output

	frames    atomic.Uint64
	emptyRuns atomic.Uint64

	telemetryMu sync.RWMutex
	latest      *telemetry.ScanTelemetry

	unsubscribe func()
	closeOnce   sync.Once
	closeErr    error
}

// New validates cfg and subscribes to the backend's telemetry, if any.
func New(cfg Config) (*Session, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("session: registry is required")
	}
	if cfg.Backend.Client == nil {
		return nil, fmt.Errorf("session: backend client is required")
	}
	ms := cfg.Mappings
	if ms == nil {
		ms = mapping.CreateDefaultMappings(cfg.Registry)
	}
	if err := mapping.ValidateAll(cfg.Registry, ms); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		reg:       cfg.Registry,
		evaluator: mapping.NewEvaluator(cfg.Registry),
		backend:   cfg.Backend,
		prefix:    params.NormalizePrefix(cfg.AddressPrefix),
		mappings:  slices.Clone(ms),
		state:     make(mapping.SmoothingState),
	}
	s.unsubscribe = func() {}
	if src := cfg.Backend.Telemetry; src != nil {
		s.unsubscribe = src.SubscribeScanTelemetry(s.setTelemetry)
	}
	return s, nil
}

// HandleFrame evaluates frame and dispatches every output. It never waits on
// the transport.
func (s *Session) HandleFrame(frame *pose.Frame) []mapping.Output {
	s.mu.Lock()
	outputs := s.evaluator.Evaluate(frame, s.mappings, s.state, s.prefix)
	s.last = outputs
	s.mu.Unlock()

	s.frames.Add(1)
	if len(outputs) == 0 {
		s.emptyRuns.Add(1)
		return outputs
	}
	for _, out := range outputs {
		s.dispatch(out)
	}
	return outputs
}

// dispatch sends one output. Address-based backends receive the mapped
// value; channel-only backends receive the unit signal on the channel
// numbered by the parameter's registry position.
func (s *Session) dispatch(out mapping.Output) {
	if msgs := s.backend.Messages; msgs != nil {
		msgs.SendOscMessage(out.Address, out.Value)
		return
	}
	idx := s.reg.Index(out.ParamID)
	if idx < 0 {
		return
	}
	s.backend.Client.SendChannel(idx+1, out.SignalValue)
}

// Run handles frames until ctx is done or frames is closed.
func (s *Session) Run(ctx context.Context, frames <-chan *pose.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			s.HandleFrame(frame)
		}
	}
}

// SetMappings validates and installs ms. Smoothing state for mapping ids no
// longer present is discarded; surviving ids keep their state.
func (s *Session) SetMappings(ms []mapping.Mapping) error {
	if err := mapping.ValidateAll(s.reg, ms); err != nil {
		return err
	}
	keep := make(map[string]bool, len(ms))
	for _, m := range ms {
		keep[m.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = slices.Clone(ms)
	for id := range s.state {
		if !keep[id] {
			delete(s.state, id)
		}
	}
	monitoring.Logf("session: installed %d mappings", len(ms))
	return nil
}

// Mappings returns a copy of the current mapping set.
func (s *Session) Mappings() []mapping.Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mappings)
}

// LastOutputs returns the outputs of the most recent frame.
func (s *Session) LastOutputs() []mapping.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.last)
}

// ResetSmoothing clears all smoothing state so every mapping reseeds on its
// next value.
func (s *Session) ResetSmoothing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.state)
}

// Frames returns the number of frames handled and how many produced no
// output.
func (s *Session) Frames() (handled, empty uint64) {
	return s.frames.Load(), s.emptyRuns.Load()
}

func (s *Session) setTelemetry(t telemetry.ScanTelemetry) {
	s.telemetryMu.Lock()
	defer s.telemetryMu.Unlock()
	s.latest = &t
}

// Telemetry returns the most recent scan telemetry, if any has arrived.
func (s *Session) Telemetry() (telemetry.ScanTelemetry, bool) {
	s.telemetryMu.RLock()
	defer s.telemetryMu.RUnlock()
	if s.latest == nil {
		return telemetry.ScanTelemetry{}, false
	}
	return *s.latest, true
}

// Backend returns the session's output backend.
func (s *Session) Backend() output.Backend {
	return s.backend
}

// Close stops telemetry delivery and closes the backend.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.closeErr = s.backend.Close()
	})
	return s.closeErr
}
