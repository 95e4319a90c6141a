package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/model"
)

func TestCombinations(t *testing.T) {
	assert.Equal(t, []Combination{
		{Buy: LabelSet{0}, Sell: LabelSet{1}},
		{Buy: LabelSet{1}, Sell: LabelSet{0}},
	}, Combinations(2))

	// 3 labels: for each non-empty buy subset, 2^(3-|buy|)-1 sell subsets
	combos := Combinations(3)
	assert.Len(t, combos, 3*3+3*1)
	for _, c := range combos {
		assert.NotEmpty(t, c.Buy)
		assert.NotEmpty(t, c.Sell)
		for _, b := range c.Buy {
			assert.False(t, c.Sell.Contains(b))
		}
	}
}

func TestSearch_FindsBuyLowSellHigh(t *testing.T) {
	res, err := Search(risingPrices(100), halfAndHalf(), 2, 1000, 4)
	require.NoError(t, err)
	assert.Equal(t, LabelSet{0}, res.Best.Buy)
	assert.Equal(t, LabelSet{1}, res.Best.Sell)
	assert.Len(t, res.Outcomes, 2)
}

func TestSearch_MatchesSequentialSimulate(t *testing.T) {
	prices := []float64{10, 12, 9, 9, 14, 7, 8, 11, 6, 13}
	states := []int{0, 1, 2, 0, 0, 1, 2, 2, 1, 0}

	res, err := Search(prices, states, 3, 100, 3)
	require.NoError(t, err)
	for _, o := range res.Outcomes {
		direct, err := Simulate(prices, states, 100, o.Buy, o.Sell)
		require.NoError(t, err)
		assert.Equal(t, direct.FinalValue, o.FinalValue)
		assert.Equal(t, direct.MaxDrawdown, o.MaxDrawdown)
		assert.Len(t, direct.Trades, o.Trades)
		assert.LessOrEqual(t, o.FinalValue, res.Best.FinalValue)
	}

	best, err := Simulate(prices, states, 100, res.Best.Buy, res.Best.Sell)
	require.NoError(t, err)
	assert.Equal(t, best, res.BestResult)
}

func TestSearch_TieKeepsEarliest(t *testing.T) {
	// constant prices make every combination end at the initial cash
	res, err := Search([]float64{5, 5, 5}, []int{0, 1, 2}, 3, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, Combinations(3)[0], res.Best.Combination)
}

func TestSearch_Errors(t *testing.T) {
	_, err := Search([]float64{1}, []int{0}, 1, 100, 1)
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = Search([]float64{1}, []int{0}, MaxSearchStates+1, 100, 1)
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = Search([]float64{1, 2}, []int{0}, 2, 100, 1)
	assert.ErrorIs(t, err, model.ErrAlignment)
}
