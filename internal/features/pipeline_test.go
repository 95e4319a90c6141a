package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/model"
)

func makeBars(closes, volumes []float64) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i := range closes {
		bars[i] = model.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   closes[i],
			High:   closes[i] * 1.01,
			Low:    closes[i] * 0.99,
			Close:  closes[i],
			Volume: volumes[i],
		}
	}
	return bars
}

func waveBars(n int) []model.Bar {
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i)*0.1
		volumes[i] = 1000 + 200*math.Cos(float64(i)/5)
	}
	return makeBars(closes, volumes)
}

func TestProcess_LengthBound(t *testing.T) {
	bars := waveBars(100)
	for _, w := range []int{2, 5, 24} {
		rows, err := Process(bars, w)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(rows), len(bars)-(w-1), "window %d", w)
		assert.Equal(t, len(bars)-w, len(rows), "window %d: first valid row is index w", w)
	}
}

func TestProcess_Values(t *testing.T) {
	bars := makeBars([]float64{100, 110, 121, 133.1}, []float64{10, 20, 10, 10})
	rows, err := Process(bars, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, bars[2].Time, rows[0].Time)
	assert.InDelta(t, 0.10, rows[0].Returns, 1e-9)
	assert.InDelta(t, 0.0, rows[0].Volatility, 1e-9)
	assert.InDelta(t, -0.5, rows[0].VolumeChange, 1e-12)
	assert.Equal(t, 121.0, rows[0].Close)
	assert.InDelta(t, 0.0, rows[1].VolumeChange, 1e-12)
}

func TestProcess_NoLookAhead(t *testing.T) {
	bars := waveBars(60)
	rows, err := Process(bars, 10)
	require.NoError(t, err)

	// Perturbing the last bar must not change any earlier row.
	mutated := append([]model.Bar(nil), bars...)
	mutated[len(mutated)-1].Close *= 3
	rows2, err := Process(mutated, 10)
	require.NoError(t, err)
	require.Equal(t, len(rows), len(rows2))
	for i := 0; i < len(rows)-1; i++ {
		assert.Equal(t, rows[i], rows2[i])
	}
	assert.NotEqual(t, rows[len(rows)-1].Volatility, rows2[len(rows2)-1].Volatility)
}

func TestProcess_ZeroVolumeForwardFilled(t *testing.T) {
	bars := makeBars([]float64{10, 11, 12, 13, 14}, []float64{5, 6, 0, 7, 8})
	rows, err := Process(bars, 2)
	require.NoError(t, err)
	for _, r := range rows {
		assert.False(t, math.IsInf(r.VolumeChange, 0))
		assert.False(t, math.IsNaN(r.VolumeChange))
	}
	// index 3 divides by zero volume; it inherits index 2's change (0/6 - 1 = -1).
	require.Len(t, rows, 3)
	assert.Equal(t, bars[3].Time, rows[1].Time)
	assert.InDelta(t, -1.0, rows[1].VolumeChange, 1e-12)
}

func TestProcess_ConstantPriceKeepsZeroRows(t *testing.T) {
	closes := make([]float64, 30)
	volumes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50
		volumes[i] = 1000
	}
	rows, err := Process(makeBars(closes, volumes), 24)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	for _, r := range rows {
		assert.Equal(t, 0.0, r.Returns)
		assert.Equal(t, 0.0, r.Volatility)
		assert.Equal(t, 0.0, r.VolumeChange)
	}
}

func TestProcess_Deterministic(t *testing.T) {
	bars := waveBars(80)
	a, err := Process(bars, 24)
	require.NoError(t, err)
	b, err := Process(bars, 24)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProcess_Errors(t *testing.T) {
	_, err := Process(waveBars(10), 24)
	assert.ErrorIs(t, err, model.ErrDataInsufficient)

	_, err = Process(nil, 24)
	assert.ErrorIs(t, err, model.ErrDataInsufficient)

	_, err = Process(waveBars(10), 1)
	assert.ErrorIs(t, err, model.ErrConfiguration)

	bars := waveBars(30)
	bars[5].Time = bars[4].Time
	_, err = Process(bars, 3)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
