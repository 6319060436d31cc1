// Package pose turns landmark lists from the external pose estimator into
// calibrated per-signal observations.
package pose

import (
	"math"
)

// Landmark is a normalized body keypoint. X and Y are in image-relative
// units where (0,0) is the top-left corner.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Frame is one pose-detection result. Only the first body is evaluated.
type Frame struct {
	TimestampMs int64        `json:"timestampMs,omitempty"`
	Bodies      [][]Landmark `json:"bodies"`
}

// PrimaryBody returns the first detected body, or nil when nothing was
// detected.
func (f *Frame) PrimaryBody() []Landmark {
	if f == nil || len(f.Bodies) == 0 {
		return nil
	}
	return f.Bodies[0]
}

// BlazePose landmark indices used by the signal set.
const (
	LandmarkNose          = 0
	LandmarkLeftShoulder  = 11
	LandmarkRightShoulder = 12
	LandmarkLeftElbow     = 13
	LandmarkRightElbow    = 14
	LandmarkLeftWrist     = 15
	LandmarkRightWrist    = 16
)

// SignalID names one of the fixed pose signals.
type SignalID string

const (
	LeftWristX   SignalID = "leftWristX"
	LeftWristY   SignalID = "leftWristY"
	RightWristX  SignalID = "rightWristX"
	RightWristY  SignalID = "rightWristY"
	LeftElbowY   SignalID = "leftElbowY"
	RightElbowY  SignalID = "rightElbowY"
	NoseX        SignalID = "noseX"
	ShoulderSpan SignalID = "shoulderSpan"
)

// Signals lists every signal in canonical order.
var Signals = []SignalID{
	LeftWristX, LeftWristY, RightWristX, RightWristY,
	LeftElbowY, RightElbowY, NoseX, ShoulderSpan,
}

// shoulderSpanGain scales the raw shoulder distance so a subject at a typical
// distance from the camera lands mid-range.
const shoulderSpanGain = 2.5

type axis int

const (
	axisX axis = iota
	axisY
)

type axisRead struct {
	landmark int
	axis     axis
}

var axisSignals = map[SignalID]axisRead{
	LeftWristX:  {LandmarkLeftWrist, axisX},
	LeftWristY:  {LandmarkLeftWrist, axisY},
	RightWristX: {LandmarkRightWrist, axisX},
	RightWristY: {LandmarkRightWrist, axisY},
	LeftElbowY:  {LandmarkLeftElbow, axisY},
	RightElbowY: {LandmarkRightElbow, axisY},
	NoseX:       {LandmarkNose, axisX},
}

// IsKnown reports whether id is one of the fixed signals.
func IsKnown(id SignalID) bool {
	if id == ShoulderSpan {
		return true
	}
	_, ok := axisSignals[id]
	return ok
}

// Extract reads signal from a single body's landmark list. The boolean is
// false when a required landmark is missing or not finite; callers skip the
// signal for this frame.
func Extract(body []Landmark, signal SignalID) (float64, bool) {
	if signal == ShoulderSpan {
		ls, ok := landmarkAt(body, LandmarkLeftShoulder)
		if !ok {
			return 0, false
		}
		rs, ok := landmarkAt(body, LandmarkRightShoulder)
		if !ok {
			return 0, false
		}
		return clamp01(math.Hypot(ls.X-rs.X, ls.Y-rs.Y) * shoulderSpanGain), true
	}

	read, ok := axisSignals[signal]
	if !ok {
		return 0, false
	}
	lm, ok := landmarkAt(body, read.landmark)
	if !ok {
		return 0, false
	}
	if read.axis == axisY {
		// image y grows downward; raising a limb should raise the signal
		return 1 - lm.Y, true
	}
	return lm.X, true
}

func landmarkAt(body []Landmark, index int) (Landmark, bool) {
	if index < 0 || index >= len(body) {
		return Landmark{}, false
	}
	lm := body[index]
	if !finite(lm.X) || !finite(lm.Y) {
		return Landmark{}, false
	}
	return lm, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}
