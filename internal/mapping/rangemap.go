package mapping

import (
	"math"

	"github.com/banshee-data/posegrain/internal/params"
)

// MapUnitToRange maps a unit value onto [min, max]. Log interpolation is used
// only when scaling is log and both bounds are strictly positive; otherwise
// it falls back to linear. A descending range (min > max) is honoured so
// that unit 0 always yields min and unit 1 always yields max.
func MapUnitToRange(unit, min, max float64, scaling params.Scaling) float64 {
	lower, upper := math.Min(min, max), math.Max(min, max)
	n := clamp01(unit)

	var mapped float64
	if scaling == params.ScalingLog && lower > 0 && upper > 0 {
		mapped = lower * math.Pow(upper/lower, n)
	} else {
		mapped = lower + n*(upper-lower)
	}

	if min <= max {
		return mapped
	}
	return upper - (mapped - lower)
}
