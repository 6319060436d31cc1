package pose

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Window is the observation range over which a raw signal is considered
// meaningfully variable, plus the response exponent applied after
// normalization. Exponents below 1 favour the low end of the window.
type Window struct {
	ObservationMin float64 `json:"observationMin"`
	ObservationMax float64 `json:"observationMax"`
	Exponent       float64 `json:"exponent"`
}

const minSpan = 1e-6

// Calibration windows are fixed per signal. They were chosen so that typical
// gestures in front of a laptop camera sweep most of the unit interval.
var windows = map[SignalID]Window{
	LeftWristX:   {ObservationMin: 0.10, ObservationMax: 0.90, Exponent: 1.0},
	LeftWristY:   {ObservationMin: 0.15, ObservationMax: 0.95, Exponent: 0.9},
	RightWristX:  {ObservationMin: 0.10, ObservationMax: 0.90, Exponent: 1.0},
	RightWristY:  {ObservationMin: 0.15, ObservationMax: 0.95, Exponent: 0.9},
	LeftElbowY:   {ObservationMin: 0.30, ObservationMax: 0.80, Exponent: 1.1},
	RightElbowY:  {ObservationMin: 0.30, ObservationMax: 0.80, Exponent: 1.1},
	NoseX:        {ObservationMin: 0.25, ObservationMax: 0.75, Exponent: 1.0},
	ShoulderSpan: {ObservationMin: 0.25, ObservationMax: 0.85, Exponent: 0.8},
}

// WindowFor returns the calibration window for signal.
func WindowFor(signal SignalID) (Window, bool) {
	w, ok := windows[signal]
	return w, ok
}

// Calibrate rescales a raw observation into [0,1] using the signal's window.
// Unknown signals pass through clamped.
func Calibrate(signal SignalID, raw float64) float64 {
	w, ok := windows[signal]
	if !ok {
		return clamp01(raw)
	}
	return w.Apply(raw)
}

// Apply normalizes raw into the window and shapes it with the exponent.
func (w Window) Apply(raw float64) float64 {
	span := math.Max(w.ObservationMax-w.ObservationMin, minSpan)
	normalized := clamp01((raw - w.ObservationMin) / span)
	exp := w.Exponent
	if exp <= 0 || !finite(exp) {
		exp = 1
	}
	return clamp01(math.Pow(normalized, exp))
}

// Percentiles used when deriving a window from recorded samples. Trimming the
// tails keeps single-frame tracking glitches from stretching the window.
const (
	suggestLowerQuantile = 0.05
	suggestUpperQuantile = 0.95
	minSuggestSamples    = 10
)

// ErrNotEnoughSamples is returned by SuggestWindow when the recording is too
// short to estimate a window.
var ErrNotEnoughSamples = errors.New("not enough samples")

// SuggestWindow derives an observation window from raw samples recorded while
// the performer sweeps through a gesture. The exponent of base is kept.
func SuggestWindow(samples []float64, base Window) (Window, error) {
	clean := make([]float64, 0, len(samples))
	for _, s := range samples {
		if finite(s) {
			clean = append(clean, s)
		}
	}
	if len(clean) < minSuggestSamples {
		return Window{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughSamples, len(clean), minSuggestSamples)
	}
	sort.Float64s(clean)

	lo := stat.Quantile(suggestLowerQuantile, stat.Empirical, clean, nil)
	hi := stat.Quantile(suggestUpperQuantile, stat.Empirical, clean, nil)
	if hi-lo < minSpan {
		return Window{}, fmt.Errorf("samples do not vary: range %.6f", hi-lo)
	}
	return Window{ObservationMin: lo, ObservationMax: hi, Exponent: base.Exponent}, nil
}
