package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/model"
)

func risingPrices(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = float64(101 + i)
	}
	return prices
}

func halfAndHalf() []int {
	states := make([]int, 100)
	for i := 50; i < 100; i++ {
		states[i] = 1
	}
	return states
}

func TestSimulate_BuyLowSellHigh(t *testing.T) {
	res, err := Simulate(risingPrices(100), halfAndHalf(), 1000, NewLabelSet(0), NewLabelSet(1))
	require.NoError(t, err)
	require.Len(t, res.Values, 100)
	assert.Greater(t, res.FinalValue, 1000.0)
	assert.InDelta(t, 1000*151.0/101.0, res.FinalValue, 1e-9)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, model.SideBuy, res.Trades[0].Side)
	assert.Equal(t, 0, res.Trades[0].Index)
	assert.Equal(t, model.SideSell, res.Trades[1].Side)
	assert.Equal(t, 50, res.Trades[1].Index)
	assert.InDelta(t, res.FinalValue/1000-1, res.TotalReturn, 1e-12)
	assert.Equal(t, 0.0, res.MaxDrawdown)
}

func TestSimulate_ValueInvariants(t *testing.T) {
	prices := []float64{10, 12, 9, 9, 14, 7, 8, 11, 6, 13}
	states := []int{0, 1, 2, 0, 0, 1, 2, 2, 1, 0}

	res, err := Simulate(prices, states, 500, NewLabelSet(0, 2), NewLabelSet(1))
	require.NoError(t, err)

	pf := model.PortfolioState{Cash: 500}
	for i, v := range res.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		for _, tr := range res.Trades {
			if tr.Index == i {
				pf = model.PortfolioState{Cash: tr.Cash, Position: tr.Position}
			}
		}
		assert.True(t, (pf.Cash == 0) != (pf.Position == 0), "bar %d: cash=%g position=%g", i, pf.Cash, pf.Position)
		assert.InDelta(t, pf.Value(prices[i]), v, 1e-9)
	}
	assert.Greater(t, res.MaxDrawdown, 0.0)
}

func TestSimulate_BuyEvaluatedFirst(t *testing.T) {
	// state 0 is in both sets: flat enters, long exits
	res, err := Simulate([]float64{10, 20, 40}, []int{0, 0, 0}, 100, NewLabelSet(0), NewLabelSet(0))
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)
	assert.Equal(t, model.SideBuy, res.Trades[0].Side)
	assert.Equal(t, model.SideSell, res.Trades[1].Side)
	assert.Equal(t, model.SideBuy, res.Trades[2].Side)
	assert.Equal(t, []float64{100, 200, 200}, res.Values)
}

func TestSimulate_HoldStatesNeverTrade(t *testing.T) {
	res, err := Simulate([]float64{5, 6, 7}, []int{2, 2, 2}, 100, NewLabelSet(0), NewLabelSet(1))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, []float64{100, 100, 100}, res.Values)
}

func TestSimulate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		states []int
		cash   float64
		want   error
	}{
		{"length mismatch", []float64{1, 2, 3}, []int{0, 1}, 100, model.ErrAlignment},
		{"zero cash", []float64{1}, []int{0}, 0, model.ErrConfiguration},
		{"negative cash", []float64{1}, []int{0}, -5, model.ErrConfiguration},
		{"empty", nil, nil, 100, model.ErrDataInsufficient},
		{"zero price", []float64{1, 0}, []int{0, 1}, 100, model.ErrConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Simulate(tc.prices, tc.states, tc.cash, NewLabelSet(0), NewLabelSet(1))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAttachTimes(t *testing.T) {
	res, err := Simulate(risingPrices(100), halfAndHalf(), 1000, NewLabelSet(0), NewLabelSet(1))
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, 100)
	for i := range times {
		times[i] = base.AddDate(0, 0, i)
	}
	res.AttachTimes(times)
	assert.Equal(t, base, res.Trades[0].Time)
	assert.Equal(t, base.AddDate(0, 0, 50), res.Trades[1].Time)
}

func TestLabelSet(t *testing.T) {
	s := NewLabelSet(2, 0, 2)
	assert.Equal(t, LabelSet{0, 2}, s)
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(1))
	assert.Equal(t, "{0,2}", s.String())

	parsed, err := ParseLabelSet(" 1, 0 ")
	require.NoError(t, err)
	assert.Equal(t, LabelSet{0, 1}, parsed)

	_, err = ParseLabelSet("a")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
