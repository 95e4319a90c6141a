package model

import (
	"fmt"
	"time"
)

// Feature column names.
const (
	FeatureReturns      = "returns"
	FeatureVolatility   = "volatility"
	FeatureVolumeChange = "volume_change"
)

// DefaultFeatures is the column order used when none is configured.
var DefaultFeatures = []string{FeatureReturns, FeatureVolatility, FeatureVolumeChange}

// FeatureRow is the stationary feature set derived from one bar and its predecessor.
type FeatureRow struct {
	Time         time.Time
	Close        float64 // close of the source bar, used to align backtest prices
	Returns      float64
	Volatility   float64
	VolumeChange float64
}

// Value returns the named feature.
func (r FeatureRow) Value(name string) (float64, error) {
	switch name {
	case FeatureReturns:
		return r.Returns, nil
	case FeatureVolatility:
		return r.Volatility, nil
	case FeatureVolumeChange:
		return r.VolumeChange, nil
	default:
		return 0, fmt.Errorf("%w: unknown feature %q", ErrConfiguration, name)
	}
}

// FeatureMatrix builds an N×K matrix of the named columns.
func FeatureMatrix(rows []FeatureRow, columns []string) ([][]float64, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no feature columns selected", ErrConfiguration)
	}
	m := make([][]float64, len(rows))
	for i, r := range rows {
		vec := make([]float64, len(columns))
		for j, c := range columns {
			v, err := r.Value(c)
			if err != nil {
				return nil, err
			}
			vec[j] = v
		}
		m[i] = vec
	}
	return m, nil
}

// RowCloses returns the close prices carried by feature rows.
func RowCloses(rows []FeatureRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close
	}
	return out
}
