package preview

import (
	"math"
	"slices"
)

// StretchParams controls the midtones transfer function stretch
type StretchParams struct {
	TargetBackground float64
	ShadowsClip      float64
}

// DefaultStretch matches the PixInsight screen transfer defaults
var DefaultStretch = StretchParams{
	TargetBackground: 0.25,
	ShadowsClip:      -1.25,
}

// autoStretch maps all planes jointly to [0,1]. Data is normalised by its
// maximum, the shadows are clipped at median + ShadowsClip*avgdev and the
// midtones balance is chosen so the median lands on TargetBackground.
// Blank (non-finite) pixels are treated as black.
func autoStretch(planes [][]float64, p StretchParams) [][]float64 {
	out := make([][]float64, len(planes))
	var total int
	maxValue := math.Inf(-1)
	for _, plane := range planes {
		total += len(plane)
		for _, v := range plane {
			if !math.IsInf(v, 0) && v > maxValue {
				maxValue = v
			}
		}
	}
	if total == 0 || maxValue <= 0 {
		for i, plane := range planes {
			out[i] = make([]float64, len(plane))
		}
		return out
	}

	all := make([]float64, 0, total)
	for i, plane := range planes {
		out[i] = make([]float64, len(plane))
		for j, v := range plane {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			out[i][j] = v / maxValue
		}
		all = append(all, out[i]...)
	}

	med := median(all)
	var dev float64
	for _, v := range all {
		dev += math.Abs(v - med)
	}
	dev /= float64(len(all))

	c0 := clamp(med+p.ShadowsClip*dev, 0, 1)
	m := mtf(p.TargetBackground, med-c0)

	for _, plane := range out {
		for j, v := range plane {
			switch {
			case v < c0:
				plane[j] = 0
			case c0 >= 1:
				plane[j] = 1
			default:
				plane[j] = clamp(mtf(m, (v-c0)/(1-c0)), 0, 1)
			}
		}
	}
	return out
}

// mtf is the midtones transfer function with balance m
func mtf(m, x float64) float64 {
	switch x {
	case 0:
		return 0
	case m:
		return 0.5
	case 1:
		return 1
	}
	return (m - 1) * x / ((2*m-1)*x - m)
}

// median sorts values in place
func median(values []float64) float64 {
	slices.Sort(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
