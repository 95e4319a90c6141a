// Package scaler standardizes feature columns. Fit returns an immutable
// parameter set; Transform applies it without refitting.
package scaler

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"RegimeSentinel/internal/calculator"
	"RegimeSentinel/internal/model"
)

// Method selects how center and scale are estimated.
type Method string

const (
	// Standard uses the column mean and population standard deviation.
	Standard Method = "standard"
	// MinMax maps the fitted column range onto [0, 1].
	MinMax Method = "minmax"
	// Robust uses the median and the interquartile range.
	Robust Method = "robust"
)

// ParseMethod validates a configured method name. Empty means Standard.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", Standard:
		return Standard, nil
	case MinMax, Robust:
		return Method(s), nil
	default:
		return "", fmt.Errorf("%w: unknown scaler %q", model.ErrConfiguration, s)
	}
}

// Params holds per-column (center, scale) pairs.
//
// A column whose fitted scale is exactly zero gets the neutral divisor 1, so
// it is only centered. Those columns are listed in ZeroScaleColumns.
type Params struct {
	Method           Method    `json:"method"`
	Center           []float64 `json:"center"`
	Scale            []float64 `json:"scale"`
	ZeroScaleColumns []int     `json:"zero_scale_columns,omitempty"`
}

// Columns returns the number of columns the params were fitted on.
func (p *Params) Columns() int { return len(p.Center) }

// Check reports params that Transform cannot apply, such as a hand-edited
// file with mismatched lengths or a zero divisor.
func (p *Params) Check() error {
	if len(p.Center) == 0 || len(p.Scale) != len(p.Center) {
		return fmt.Errorf("%w: scaler has %d centers and %d scales", model.ErrShapeMismatch, len(p.Center), len(p.Scale))
	}
	for j, s := range p.Scale {
		if s == 0 || !calculator.IsFinite(s) {
			return fmt.Errorf("%w: scaler column %d has scale %v", model.ErrConfiguration, j, s)
		}
	}
	return nil
}

// Fit estimates per-column parameters over all rows of m.
func Fit(m [][]float64, method Method) (*Params, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: cannot fit scaler on an empty matrix", model.ErrDataInsufficient)
	}
	k := len(m[0])
	if k == 0 {
		return nil, fmt.Errorf("%w: matrix has no columns", model.ErrShapeMismatch)
	}
	for i, row := range m {
		if len(row) != k {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", model.ErrShapeMismatch, i, len(row), k)
		}
		for j, v := range row {
			if !calculator.IsFinite(v) {
				return nil, fmt.Errorf("%w: non-finite value at row %d column %d", model.ErrDataInsufficient, i, j)
			}
		}
	}

	p := &Params{
		Method: method,
		Center: make([]float64, k),
		Scale:  make([]float64, k),
	}
	col := make([]float64, len(m))
	for j := 0; j < k; j++ {
		for i := range m {
			col[i] = m[i][j]
		}
		center, scale, err := estimate(col, method)
		if err != nil {
			return nil, err
		}
		if scale == 0 {
			scale = 1
			p.ZeroScaleColumns = append(p.ZeroScaleColumns, j)
		}
		p.Center[j] = center
		p.Scale[j] = scale
	}
	return p, nil
}

func estimate(col []float64, method Method) (center, scale float64, err error) {
	n := float64(len(col))
	switch method {
	case Standard, "":
		if len(col) == 1 {
			return col[0], 0, nil
		}
		mean, variance := stat.MeanVariance(col, nil)
		return mean, sqrt(variance * (n - 1) / n), nil
	case MinMax:
		lo, hi := floats.Min(col), floats.Max(col)
		return lo, hi - lo, nil
	case Robust:
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
		return median, q3 - q1, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown scaler %q", model.ErrConfiguration, method)
	}
}

// Transform applies (x - center) / scale to every element of m.
func Transform(m [][]float64, p *Params) ([][]float64, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: scaler params are nil", model.ErrConfiguration)
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	k := p.Columns()
	out := make([][]float64, len(m))
	for i, row := range m {
		if len(row) != k {
			return nil, fmt.Errorf("%w: row %d has %d columns, scaler fitted on %d", model.ErrShapeMismatch, i, len(row), k)
		}
		scaled := make([]float64, k)
		for j, v := range row {
			scaled[j] = (v - p.Center[j]) / p.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits on m and returns the transformed matrix with the params.
func FitTransform(m [][]float64, method Method) ([][]float64, *Params, error) {
	p, err := Fit(m, method)
	if err != nil {
		return nil, nil, err
	}
	out, err := Transform(m, p)
	if err != nil {
		return nil, nil, err
	}
	return out, p, nil
}
