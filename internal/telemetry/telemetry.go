// Package telemetry parses scan-state snapshots reported by the synthesis
// engine. Payloads arrive untyped from outside the process, so every field
// is coerced defensively and parsing never fails loudly.
package telemetry

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// MaxActiveGrains bounds the grain arrays carried by one snapshot.
const MaxActiveGrains = 2048

// ScanTelemetry is one inbound engine snapshot.
type ScanTelemetry struct {
	Source                   string    `json:"source"`
	ReceivedAtMs             int64     `json:"receivedAtMs"`
	PlayheadNorm             float64   `json:"playheadNorm"`
	ScanHeadNorm             float64   `json:"scanHeadNorm"`
	ScanRangeNorm            float64   `json:"scanRangeNorm"`
	SoundFileFrames          *int64    `json:"soundFileFrames,omitempty"`
	ActiveGrainCount         int       `json:"activeGrainCount"`
	ActiveGrainIndices       []int64   `json:"activeGrainIndices"`
	ActiveGrainNormPositions []float64 `json:"activeGrainNormPositions"`
}

// Parse builds a ScanTelemetry from payload, which must be a JSON object
// (either a decoded map or raw JSON bytes/string). The three required
// position fields must coerce to finite numbers; otherwise ok is false and
// no partial record is returned.
func Parse(payload any, source string, receivedAtMs int64) (ScanTelemetry, bool) {
	obj, ok := asObject(payload)
	if !ok {
		return ScanTelemetry{}, false
	}

	playhead, ok1 := finiteNumber(obj["playheadNorm"])
	scanHead, ok2 := finiteNumber(obj["scanHeadNorm"])
	scanRange, ok3 := finiteNumber(obj["scanRangeNorm"])
	if !ok1 || !ok2 || !ok3 {
		return ScanTelemetry{}, false
	}

	if s, ok := obj["source"].(string); ok && strings.TrimSpace(s) != "" {
		source = strings.TrimSpace(s)
	}

	t := ScanTelemetry{
		Source:        source,
		ReceivedAtMs:  receivedAtMs,
		PlayheadNorm:  clamp01(playhead),
		ScanHeadNorm:  clamp01(scanHead),
		ScanRangeNorm: clamp01(scanRange),
	}

	var frames int64
	if n, ok := positiveInt(obj["soundFileFrames"]); ok {
		frames = n
		t.SoundFileFrames = &frames
	}

	t.ActiveGrainIndices, t.ActiveGrainNormPositions = grains(
		obj["activeGrainIndices"], obj["activeGrainNormPositions"], frames)
	t.ActiveGrainCount = len(t.ActiveGrainIndices)
	return t, true
}

func asObject(payload any) (map[string]any, bool) {
	switch p := payload.(type) {
	case map[string]any:
		return p, p != nil
	case []byte:
		return decodeObject(p)
	case json.RawMessage:
		return decodeObject(p)
	case string:
		return decodeObject([]byte(p))
	}
	return nil, false
}

func decodeObject(data []byte) (map[string]any, bool) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// finiteNumber coerces v to a finite float64. Strings are parsed as numbers.
func finiteNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func positiveInt(v any) (int64, bool) {
	f, ok := finiteNumber(v)
	if !ok {
		return 0, false
	}
	n := math.Floor(f)
	if n < 1 || n > maxGrainIndex {
		return 0, false
	}
	return int64(n), true
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out
	case []int64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out
	}
	return nil
}

// maxGrainIndex keeps floored indices representable as int64.
const maxGrainIndex = math.MaxInt64 / 2

// grains keeps the non-negative integer entries of rawIndices, up to
// MaxActiveGrains, and pairs each with a normalized position. An explicit
// position at the same list offset wins when it is a finite number; other
// grains get one derived from the sound file length. Both results always
// have the same length.
func grains(rawIndices, rawPositions any, frames int64) ([]int64, []float64) {
	list := asList(rawIndices)
	explicit := asList(rawPositions)
	n := min(len(list), MaxActiveGrains)
	indices := make([]int64, 0, n)
	positions := make([]float64, 0, n)
	for i, item := range list {
		if len(indices) == MaxActiveGrains {
			break
		}
		f, ok := finiteNumber(item)
		if !ok || f < 0 || f > maxGrainIndex {
			continue
		}
		idx := int64(math.Floor(f))
		pos, ok := explicitPosition(explicit, i)
		if !ok {
			pos = derivedPosition(idx, frames)
		}
		indices = append(indices, idx)
		positions = append(positions, pos)
	}
	return indices, positions
}

func explicitPosition(list []any, i int) (float64, bool) {
	if i >= len(list) {
		return 0, false
	}
	f, ok := finiteNumber(list[i])
	if !ok {
		return 0, false
	}
	return clamp01(f), true
}

func derivedPosition(idx, frames int64) float64 {
	if frames > 1 {
		return clamp01(float64(idx) / float64(frames))
	}
	return clamp01(float64(idx))
}

func clamp01(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}
