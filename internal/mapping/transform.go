package mapping

import "math"

// Curve is the response curve applied after the deadzone.
type Curve string

const (
	CurveLinear  Curve = "linear"
	CurveEaseIn  Curve = "easeIn"
	CurveEaseOut Curve = "easeOut"
	CurveSCurve  Curve = "sCurve"
)

// Curves lists the supported response curves.
var Curves = []Curve{CurveLinear, CurveEaseIn, CurveEaseOut, CurveSCurve}

const (
	MaxDeadzone  = 0.45
	MaxSmoothing = 0.98

	DefaultDeadzone  = 0.02
	DefaultSmoothing = 0.35
)

// Transforms is the per-mapping shaping chain. Values are normalized on
// every read so hand-edited or stale presets cannot push the chain out of
// its valid domain.
type Transforms struct {
	Curve     Curve   `json:"curve"`
	Deadzone  float64 `json:"deadzone"`
	Smoothing float64 `json:"smoothing"`
	Invert    bool    `json:"invert"`
}

// DefaultTransforms returns the chain new mappings start with.
func DefaultTransforms() Transforms {
	return Transforms{
		Curve:     CurveLinear,
		Deadzone:  DefaultDeadzone,
		Smoothing: DefaultSmoothing,
	}
}

// NormalizeTransforms replaces an unknown curve with linear and clamps the
// deadzone and smoothing into their supported bounds. NaN becomes 0.
func NormalizeTransforms(t Transforms) Transforms {
	switch t.Curve {
	case CurveLinear, CurveEaseIn, CurveEaseOut, CurveSCurve:
	default:
		t.Curve = CurveLinear
	}
	t.Deadzone = clampRange(t.Deadzone, 0, MaxDeadzone)
	t.Smoothing = clampRange(t.Smoothing, 0, MaxSmoothing)
	return t
}

// SmoothingState holds the last emitted unit value per mapping id. It is
// owned by one mapping session and written only by that session's
// evaluation loop; it is not safe for concurrent use.
type SmoothingState map[string]float64

// Deadzone collapses values within d of either end to exactly 0 or 1 and
// re-expands the remaining span to [0,1]. d is clamped to [0, MaxDeadzone].
func Deadzone(v, d float64) float64 {
	d = clampRange(d, 0, MaxDeadzone)
	if d <= 0 {
		return clamp01(v)
	}
	if v <= d {
		return 0
	}
	if v >= 1-d {
		return 1
	}
	return clamp01((v - d) / (1 - 2*d))
}

// ApplyCurve maps x through c. Every curve fixes 0 and 1.
func ApplyCurve(c Curve, x float64) float64 {
	x = clamp01(x)
	switch c {
	case CurveEaseIn:
		return x * x
	case CurveEaseOut:
		inv := 1 - x
		return 1 - inv*inv
	case CurveSCurve:
		return x * x * (3 - 2*x)
	default:
		return x
	}
}

// ApplyTransforms runs invert, deadzone, curve and smoothing in that order.
// Smoothing only happens when state is non-nil; the first value seen for
// mappingID seeds the state unchanged.
func ApplyTransforms(mappingID string, t Transforms, x float64, state SmoothingState) float64 {
	t = NormalizeTransforms(t)

	v := clamp01(x)
	if t.Invert {
		v = 1 - v
	}
	v = Deadzone(v, t.Deadzone)
	v = ApplyCurve(t.Curve, v)

	if state == nil {
		return v
	}
	prev, ok := state[mappingID]
	if !ok {
		state[mappingID] = v
		return v
	}
	next := v
	if t.Smoothing > 0 {
		alpha := 1 - t.Smoothing
		next = clamp01(prev + (v-prev)*alpha)
	}
	state[mappingID] = next
	return next
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v <= lo {
		return lo
	}
	if v >= hi {
		return hi
	}
	return v
}
