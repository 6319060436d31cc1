// Package mapping converts calibrated pose signals into addressed parameter
// values: transform chain, range mapping and per-frame evaluation.
package mapping

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/posegrain/internal/params"
	"github.com/banshee-data/posegrain/internal/pose"
)

// Combiner declares how a downstream consumer should reconcile several
// mappings that address the same parameter. Evaluation does not combine
// anything; the value travels with each Output as metadata.
type Combiner string

const (
	CombineOverride Combiner = "override"
	CombineSum      Combiner = "sum"
	CombineAverage  Combiner = "average"
	CombineMin      Combiner = "min"
	CombineMax      Combiner = "max"
	CombineMultiply Combiner = "multiply"
)

func (c Combiner) valid() bool {
	switch c {
	case CombineOverride, CombineSum, CombineAverage, CombineMin, CombineMax, CombineMultiply:
		return true
	}
	return false
}

// Normalize returns c, or CombineOverride when c is not a known combiner.
func (c Combiner) Normalize() Combiner {
	if c.valid() {
		return c
	}
	return CombineOverride
}

// Mapping routes one pose signal to one output parameter. Mappings are owned
// by the session layer; the evaluator only reads them.
type Mapping struct {
	ID           string        `json:"id"`
	Enabled      bool          `json:"enabled"`
	PoseSignalID pose.SignalID `json:"poseSignalId,omitempty"`
	ParamID      params.ID     `json:"paramId,omitempty"`
	OutputMin    float64       `json:"outputMin"`
	OutputMax    float64       `json:"outputMax"`
	Offset       float64       `json:"offset"`
	Transforms   Transforms    `json:"transforms"`
	Combiner     Combiner      `json:"combiner"`
}

// Output is one evaluated mapping for one frame.
type Output struct {
	MappingID    string        `json:"mappingId"`
	PoseSignalID pose.SignalID `json:"poseSignalId"`
	ParamID      params.ID     `json:"paramId"`
	Combiner     Combiner      `json:"combiner"`
	Address      string        `json:"address"`
	SignalValue  float64       `json:"signalValue"`
	Value        float64       `json:"value"`
}

// NewMapping creates an enabled mapping with a fresh id, default transforms
// and the parameter's default range.
func NewMapping(reg *params.Registry, signal pose.SignalID, param params.ID) Mapping {
	def := reg.Lookup(param)
	return Mapping{
		ID:           uuid.NewString(),
		Enabled:      true,
		PoseSignalID: signal,
		ParamID:      param,
		OutputMin:    def.DefaultRange.Min,
		OutputMax:    def.DefaultRange.Max,
		Transforms:   DefaultTransforms(),
		Combiner:     CombineOverride,
	}
}

var defaultTargets = []struct {
	signal pose.SignalID
	param  params.ID
}{
	{pose.LeftWristX, params.Pan},
	{pose.LeftWristY, params.GrainRate},
	{pose.RightWristX, params.ScanBegin},
	{pose.RightWristY, params.FilterCenter},
	{pose.LeftElbowY, params.GrainDuration},
	{pose.RightElbowY, params.Amplitude},
	{pose.NoseX, params.PlaybackRate},
	{pose.ShoulderSpan, params.Asynchronicity},
}

// CreateDefaultMappings returns one enabled mapping per pose signal, each
// spanning its parameter's default range. Ids are stable so smoothing state
// and presets survive a restart.
func CreateDefaultMappings(reg *params.Registry) []Mapping {
	out := make([]Mapping, 0, len(defaultTargets))
	for _, target := range defaultTargets {
		m := NewMapping(reg, target.signal, target.param)
		m.ID = "default-" + string(target.signal)
		out = append(out, m)
	}
	return out
}

// Validate rejects mappings that reference unknown signals or parameters.
// Unset ids are allowed; such mappings are simply skipped at evaluation.
func (m Mapping) Validate(reg *params.Registry) error {
	if m.ID == "" {
		return fmt.Errorf("mapping id is required")
	}
	if m.PoseSignalID != "" && !pose.IsKnown(m.PoseSignalID) {
		return fmt.Errorf("mapping %s: unknown pose signal %q", m.ID, m.PoseSignalID)
	}
	if m.ParamID != "" {
		if _, ok := reg.Get(m.ParamID); !ok {
			return fmt.Errorf("mapping %s: unknown parameter %q", m.ID, m.ParamID)
		}
	}
	if m.Combiner != "" && !m.Combiner.valid() {
		return fmt.Errorf("mapping %s: unknown combiner %q", m.ID, m.Combiner)
	}
	return nil
}

// ValidateAll validates every mapping and rejects duplicate ids, which would
// otherwise share smoothing state.
func ValidateAll(reg *params.Registry, mappings []Mapping) error {
	seen := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		if err := m.Validate(reg); err != nil {
			return err
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("duplicate mapping id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}
