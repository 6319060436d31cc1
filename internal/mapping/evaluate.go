package mapping

import (
	"github.com/banshee-data/posegrain/internal/params"
	"github.com/banshee-data/posegrain/internal/pose"
)

// Evaluator runs the mapping pipeline against a parameter registry.
type Evaluator struct {
	Registry *params.Registry
}

// NewEvaluator returns an Evaluator bound to reg.
func NewEvaluator(reg *params.Registry) *Evaluator {
	return &Evaluator{Registry: reg}
}

// Evaluate produces one Output per enabled, fully-specified mapping whose
// signal is present in the frame, in input order. It performs no I/O.
//
// state may be nil to disable smoothing. When non-nil it is read and written
// keyed by mapping id; the caller must not share it across goroutines.
func (e *Evaluator) Evaluate(frame *pose.Frame, mappings []Mapping, state SmoothingState, addressPrefix string) []Output {
	body := frame.PrimaryBody()
	if body == nil {
		return []Output{}
	}

	out := make([]Output, 0, len(mappings))
	for _, m := range mappings {
		if !m.Enabled || m.PoseSignalID == "" || m.ParamID == "" {
			continue
		}
		// Validate screens unknown ids at the edge; skip defensively here so
		// a bad mapping cannot stop the frame loop.
		def, ok := e.Registry.Get(m.ParamID)
		if !ok {
			continue
		}

		raw, ok := pose.Extract(body, m.PoseSignalID)
		if !ok {
			continue
		}
		unit := clamp01(pose.Calibrate(m.PoseSignalID, raw) + m.Offset)
		signal := ApplyTransforms(m.ID, m.Transforms, unit, state)

		// each bound is clamped on its own so a descending range stays descending
		lo := def.AbsoluteRange.Clamp(m.OutputMin)
		hi := def.AbsoluteRange.Clamp(m.OutputMax)

		out = append(out, Output{
			MappingID:    m.ID,
			PoseSignalID: m.PoseSignalID,
			ParamID:      m.ParamID,
			Combiner:     m.Combiner.Normalize(),
			Address:      params.ResolveAddress(m.ParamID, addressPrefix),
			SignalValue:  signal,
			Value:        MapUnitToRange(signal, lo, hi, def.ScalingDefault),
		})
	}
	return out
}
