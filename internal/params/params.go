// Package params holds the static catalogue of granular-synthesis output
// parameters and the fixed address table used to reach them.
package params

import (
	"encoding/json"
	"fmt"
	"math"
)

// ID identifies one of the canonical output parameters.
type ID string

const (
	GrainRate      ID = "grainRate"
	Asynchronicity ID = "asynchronicity"
	Intermittency  ID = "intermittency"
	Streams        ID = "streams"
	PlaybackRate   ID = "playbackRate"
	FilterCenter   ID = "filterCenter"
	Resonance      ID = "resonance"
	SoundFile      ID = "soundFile"
	ScanBegin      ID = "scanBegin"
	ScanRange      ID = "scanRange"
	ScanSpeed      ID = "scanSpeed"
	GrainDuration  ID = "grainDuration"
	EnvelopeShape  ID = "envelopeShape"
	Pan            ID = "pan"
	Amplitude      ID = "amplitude"
)

// CanonicalIDs lists every parameter id in catalogue order. A registry
// document must contain each of these exactly once.
var CanonicalIDs = []ID{
	GrainRate, Asynchronicity, Intermittency, Streams,
	PlaybackRate, FilterCenter, Resonance, SoundFile,
	ScanBegin, ScanRange, ScanSpeed, GrainDuration,
	EnvelopeShape, Pan, Amplitude,
}

// IsCanonical reports whether id is one of the canonical parameter ids.
func IsCanonical(id ID) bool {
	_, ok := addressTable[id]
	return ok
}

// Group is the UI category a parameter belongs to.
type Group string

const (
	GroupScheduling Group = "scheduling"
	GroupPlayback   Group = "playback"
	GroupFilter     Group = "filter"
	GroupOutput     Group = "output"
)

func (g Group) valid() bool {
	switch g {
	case GroupScheduling, GroupPlayback, GroupFilter, GroupOutput:
		return true
	}
	return false
}

// Scaling selects how a unit value is interpolated across a range.
type Scaling string

const (
	ScalingLinear Scaling = "linear"
	ScalingLog    Scaling = "log"
)

func (s Scaling) valid() bool {
	return s == ScalingLinear || s == ScalingLog
}

// Range is a [Min, Max] pair. Encoded in JSON as a two-element array.
type Range struct {
	Min float64
	Max float64
}

// UnmarshalJSON decodes a [min, max] array.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("range must be a [min, max] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("range must have exactly 2 elements, got %d", len(pair))
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes the range as a [min, max] array.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Min, r.Max})
}

// Clamp limits v to the closed interval spanned by the range, regardless of
// which bound is larger. NaN maps to the lower bound.
func (r Range) Clamp(v float64) float64 {
	lo, hi := math.Min(r.Min, r.Max), math.Max(r.Min, r.Max)
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (r Range) finite() bool {
	return !math.IsNaN(r.Min) && !math.IsInf(r.Min, 0) &&
		!math.IsNaN(r.Max) && !math.IsInf(r.Max, 0)
}

// ParamDefinition describes one output parameter. Definitions are immutable
// once a registry has been loaded.
type ParamDefinition struct {
	ID             ID              `json:"id"`
	Label          string          `json:"label"`
	Group          Group           `json:"group"`
	Unit           string          `json:"unit"`
	DefaultValue   float64         `json:"defaultValue"`
	DefaultRange   Range           `json:"defaultRange"`
	AbsoluteRange  Range           `json:"absoluteRange"`
	ScalingDefault Scaling         `json:"scalingDefault"`
	SpecialCases   json.RawMessage `json:"specialCases,omitempty"`
}
