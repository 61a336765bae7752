package ensemble

import "math"

// MaxIC50 is the affinity, in nM, that maps to a regression target of 0.
const MaxIC50 = 50000.0

// FromIC50 maps an IC50 in nM to a regression target in [0, 1]; stronger
// binders get larger targets.
func FromIC50(ic50 float64) float64 {
	if ic50 <= 0 {
		return 1
	}
	return clip(1-math.Log(ic50)/math.Log(MaxIC50), 0, 1)
}

// ToIC50 inverts FromIC50.
func ToIC50(y float64) float64 {
	return math.Pow(MaxIC50, 1-clip(y, 0, 1))
}

// GeometricMean of positive values. Returns NaN for an empty input.
func GeometricMean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += math.Log(v)
	}
	return math.Exp(sum / float64(len(values)))
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
