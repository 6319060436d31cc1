package params

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

//go:embed registry.json
var defaultRegistryJSON []byte

// ErrInvalidRegistry wraps every structural problem found while loading a
// registry document.
var ErrInvalidRegistry = errors.New("invalid parameter registry")

// Document is the on-disk registry shape.
type Document struct {
	SchemaVersion string            `json:"schemaVersion"`
	SampleRateHz  float64           `json:"sampleRateHz"`
	Params        []ParamDefinition `json:"params"`
}

// Registry is a validated, read-only catalogue of parameter definitions. It
// is safe for concurrent use because nothing mutates it after load.
type Registry struct {
	schemaVersion string
	sampleRateHz  float64
	ordered       []ParamDefinition
	byID          map[ID]int
}

// ParseRegistry decodes and validates a registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidRegistry, err)
	}
	return NewRegistry(doc)
}

// LoadRegistry reads a registry document from a .json file.
func LoadRegistry(path string) (*Registry, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("registry file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return ParseRegistry(data)
}

// NewRegistry validates doc and builds a Registry. The document must list each
// canonical id exactly once.
func NewRegistry(doc Document) (*Registry, error) {
	if doc.SampleRateHz <= 0 || math.IsNaN(doc.SampleRateHz) || math.IsInf(doc.SampleRateHz, 0) {
		return nil, fmt.Errorf("%w: sampleRateHz must be positive, got %v", ErrInvalidRegistry, doc.SampleRateHz)
	}
	if len(doc.Params) != len(CanonicalIDs) {
		return nil, fmt.Errorf("%w: expected %d params, got %d", ErrInvalidRegistry, len(CanonicalIDs), len(doc.Params))
	}

	reg := &Registry{
		schemaVersion: doc.SchemaVersion,
		sampleRateHz:  doc.SampleRateHz,
		ordered:       make([]ParamDefinition, 0, len(doc.Params)),
		byID:          make(map[ID]int, len(doc.Params)),
	}
	for i, def := range doc.Params {
		if !IsCanonical(def.ID) {
			return nil, fmt.Errorf("%w: params[%d] has unknown id %q", ErrInvalidRegistry, i, def.ID)
		}
		if _, dup := reg.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate param id %q", ErrInvalidRegistry, def.ID)
		}
		if err := validateDefinition(def); err != nil {
			return nil, fmt.Errorf("%w: param %q: %v", ErrInvalidRegistry, def.ID, err)
		}
		reg.byID[def.ID] = len(reg.ordered)
		reg.ordered = append(reg.ordered, def)
	}
	for _, id := range CanonicalIDs {
		if _, ok := reg.byID[id]; !ok {
			return nil, fmt.Errorf("%w: missing param id %q", ErrInvalidRegistry, id)
		}
	}
	return reg, nil
}

func validateDefinition(def ParamDefinition) error {
	if !def.Group.valid() {
		return fmt.Errorf("unknown group %q", def.Group)
	}
	if !def.ScalingDefault.valid() {
		return fmt.Errorf("unknown scaling %q", def.ScalingDefault)
	}
	if !def.AbsoluteRange.finite() || !def.DefaultRange.finite() {
		return errors.New("ranges must be finite")
	}
	if def.AbsoluteRange.Min > def.AbsoluteRange.Max {
		return fmt.Errorf("absoluteRange is inverted: %v > %v", def.AbsoluteRange.Min, def.AbsoluteRange.Max)
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry embedded in the binary.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = ParseRegistry(defaultRegistryJSON)
	})
	return defaultReg, defaultErr
}

// MustDefault returns the embedded registry and panics if it fails to
// validate. Intended for process initialisation and tests.
func MustDefault() *Registry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}

// SchemaVersion returns the document's schema version string.
func (r *Registry) SchemaVersion() string { return r.schemaVersion }

// SampleRateHz returns the engine sample rate declared by the document.
func (r *Registry) SampleRateHz() float64 { return r.sampleRateHz }

// Get returns the definition for id and whether it exists.
func (r *Registry) Get(id ID) (ParamDefinition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return ParamDefinition{}, false
	}
	return r.ordered[i], true
}

// Lookup returns the definition for id. The id set is closed and validated at
// load, so an unknown id is a programming error and Lookup panics.
func (r *Registry) Lookup(id ID) ParamDefinition {
	def, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("params: unknown parameter id %q", id))
	}
	return def
}

// Index returns the zero-based position of id in document order, or -1.
func (r *Registry) Index(id ID) int {
	i, ok := r.byID[id]
	if !ok {
		return -1
	}
	return i
}

// Params returns a copy of every definition in document order.
func (r *Registry) Params() []ParamDefinition {
	out := make([]ParamDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}
