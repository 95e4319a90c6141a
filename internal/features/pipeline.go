// Package features turns raw OHLCV bars into the stationary feature rows the
// regime model is fitted on.
package features

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"RegimeSentinel/internal/calculator"
	"RegimeSentinel/internal/model"
)

// DefaultWindow is the rolling volatility window in bars.
const DefaultWindow = 24

// Process computes returns, rolling volatility and volume change for every bar.
//
// ±Inf values (division by a zero predecessor) become undefined, undefined
// values are forward-filled per column, and rows still undefined afterwards
// are dropped. A constant series therefore yields all-zero rows, which are kept.
func Process(bars []model.Bar, window int) ([]model.FeatureRow, error) {
	if window < 2 {
		return nil, fmt.Errorf("%w: volatility window must be at least 2, got %d", model.ErrConfiguration, window)
	}
	if err := checkOrdering(bars); err != nil {
		return nil, err
	}

	log.Debug().Int("bars", len(bars)).Int("window", window).Msg("feature pipeline started")

	returns := calculator.PctChange(model.Closes(bars))
	volatility, err := calculator.RollingStdDev(returns, window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	volumeChange := calculator.PctChange(model.Volumes(bars))

	infs := calculator.ReplaceInf(returns) + calculator.ReplaceInf(volatility) + calculator.ReplaceInf(volumeChange)
	calculator.ForwardFill(returns)
	calculator.ForwardFill(volatility)
	calculator.ForwardFill(volumeChange)

	rows := make([]model.FeatureRow, 0, len(bars))
	for i, b := range bars {
		if !calculator.IsFinite(returns[i]) || !calculator.IsFinite(volatility[i]) || !calculator.IsFinite(volumeChange[i]) {
			continue
		}
		rows = append(rows, model.FeatureRow{
			Time:         b.Time,
			Close:        b.Close,
			Returns:      returns[i],
			Volatility:   volatility[i],
			VolumeChange: volumeChange[i],
		})
	}

	log.Info().
		Int("rows_in", len(bars)).
		Int("rows_out", len(rows)).
		Int("infinities_replaced", infs).
		Msg("dropped null and infinity rows")

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no valid feature rows from %d bars with window %d", model.ErrDataInsufficient, len(bars), window)
	}
	return rows, nil
}

func checkOrdering(bars []model.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return fmt.Errorf("%w: bars not strictly ascending at index %d (%s after %s)",
				model.ErrConfiguration, i, bars[i].Time, bars[i-1].Time)
		}
	}
	return nil
}
