// Package backtest replays a regime sequence as a long/flat strategy.
package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"RegimeSentinel/internal/model"
)

// Result is the outcome of one simulation.
type Result struct {
	Values      []float64          `json:"values"`
	Trades      []model.TradeEvent `json:"trades"`
	InitialCash float64            `json:"initial_cash"`
	FinalValue  float64            `json:"final_value"`
	TotalReturn float64            `json:"total_return"`
	// MaxDrawdown is the largest peak-to-trough loss as a fraction of the peak.
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Simulate walks prices and states bar by bar.
//
// A bar whose state is in buy converts all cash into the asset when flat.
// Otherwise a state in sell converts the whole position back to cash when
// long. The portfolio is marked to the bar's price after every bar.
func Simulate(prices []float64, states []int, initialCash float64, buy, sell LabelSet) (*Result, error) {
	if len(prices) != len(states) {
		return nil, fmt.Errorf("%w: %d prices vs %d states", model.ErrAlignment, len(prices), len(states))
	}
	if initialCash <= 0 {
		return nil, fmt.Errorf("%w: initial cash must be positive, got %g", model.ErrConfiguration, initialCash)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: nothing to simulate", model.ErrDataInsufficient)
	}
	for i, p := range prices {
		if !(p > 0) {
			return nil, fmt.Errorf("%w: price at bar %d is %g", model.ErrConfiguration, i, p)
		}
	}

	pf := model.PortfolioState{Cash: initialCash}
	res := &Result{
		Values:      make([]float64, len(prices)),
		InitialCash: initialCash,
	}
	for i, price := range prices {
		state := states[i]
		switch {
		case buy.Contains(state) && pf.Position == 0:
			pf.Position = pf.Cash / price
			pf.Cash = 0
			res.Trades = append(res.Trades, trade(i, model.SideBuy, state, price, pf))
		case sell.Contains(state) && pf.Position > 0:
			pf.Cash = pf.Position * price
			pf.Position = 0
			res.Trades = append(res.Trades, trade(i, model.SideSell, state, price, pf))
		}
		res.Values[i] = pf.Value(price)
	}

	res.FinalValue = res.Values[len(res.Values)-1]
	res.TotalReturn = res.FinalValue/initialCash - 1
	res.MaxDrawdown = maxDrawdown(res.Values)
	return res, nil
}

func trade(i int, side model.TradeSide, state int, price float64, pf model.PortfolioState) model.TradeEvent {
	ev := model.TradeEvent{
		Index:    i,
		Side:     side,
		State:    state,
		Price:    price,
		Cash:     pf.Cash,
		Position: pf.Position,
		Value:    pf.Value(price),
	}
	log.Debug().
		Int("bar", i).
		Str("side", string(side)).
		Int("state", state).
		Float64("price", price).
		Float64("value", ev.Value).
		Msg("trade")
	return ev
}

// AttachTimes stamps each trade with the time of its bar.
func (r *Result) AttachTimes(times []time.Time) {
	for i := range r.Trades {
		if idx := r.Trades[i].Index; idx < len(times) {
			r.Trades[i].Time = times[idx]
		}
	}
}

func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
