package calculator

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// RollingStdDev computes the sample standard deviation (n-1 denominator) over a
// trailing window ending at each index. An index is NaN until `window` values
// are available, and whenever any value in its window is not finite.
func RollingStdDev(series []float64, window int) ([]float64, error) {
	if window < 2 {
		return nil, errors.New("window must be at least 2")
	}
	out := make([]float64, len(series))
	for i := range series {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		w := series[i+1-window : i+1]
		if !allFinite(w) {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(w, nil)
	}
	return out, nil
}

func allFinite(w []float64) bool {
	for _, v := range w {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}
