package model

import "time"

// Bar represents a single OHLCV candlestick.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries holds raw price data for one symbol and interval.
type PriceSeries struct {
	Symbol    string
	Interval  string
	Bars      []Bar
	FetchedAt time.Time
}

// Closes extracts the close prices of bars in order.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes extracts the volumes of bars in order.
func Volumes(bars []Bar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return vols
}

// MarketSnapshot is the current spot view of a coin from a market-data API.
type MarketSnapshot struct {
	CoinID            string
	Currency          string
	Price             float64
	MarketCap         float64
	TotalVolume       float64
	PriceChangePct24h float64
	At                time.Time
}
