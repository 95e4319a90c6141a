package calculator

import "math"

// PctChange computes the relative change x[i]/x[i-1] - 1 for every element.
// The first element has no predecessor and is NaN. A zero predecessor yields
// ±Inf (or NaN for 0/0), left for the caller to sanitize.
func PctChange(series []float64) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(series); i++ {
		out[i] = series[i]/series[i-1] - 1
	}
	return out
}

// ReplaceInf turns ±Inf into NaN in place and returns the number of values replaced.
func ReplaceInf(series []float64) int {
	n := 0
	for i, v := range series {
		if math.IsInf(v, 0) {
			series[i] = math.NaN()
			n++
		}
	}
	return n
}

// ForwardFill replaces every NaN with the most recent non-NaN value in place.
// Leading NaNs stay NaN.
func ForwardFill(series []float64) {
	last := math.NaN()
	for i, v := range series {
		if math.IsNaN(v) {
			series[i] = last
			continue
		}
		last = v
	}
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
