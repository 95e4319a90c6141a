package model

import "time"

// TradeSide is the direction of a full-balance swap.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// PortfolioState is the mutable simulation state of a single backtest run.
type PortfolioState struct {
	Cash     float64 `json:"cash"`
	Position float64 `json:"position"`
}

// Value marks the portfolio to the given price.
func (p PortfolioState) Value(price float64) float64 {
	return p.Cash + p.Position*price
}

// TradeEvent records one position change.
type TradeEvent struct {
	Index    int       `json:"index"`
	Time     time.Time `json:"time"`
	Side     TradeSide `json:"side"`
	State    int       `json:"state"`
	Price    float64   `json:"price"`
	Cash     float64   `json:"cash"`
	Position float64   `json:"position"`
	Value    float64   `json:"value"`
}

// StateSummary describes the rows assigned to one regime.
type StateSummary struct {
	State            int     `json:"state"`
	Count            int     `json:"count"`
	Share            float64 `json:"share"`
	MeanReturn       float64 `json:"mean_return"`
	MeanVolatility   float64 `json:"mean_volatility"`
	MeanVolumeChange float64 `json:"mean_volume_change"`
}
