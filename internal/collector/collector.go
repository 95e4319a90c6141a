package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"RegimeSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  []model.Bar
	Err   error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(_ context.Context, _ string, start, end time.Time, interval string) ([]model.Bar, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return normalize(append([]model.Bar(nil), m.Bars...), start, end), nil
	}
	step := 24 * time.Hour
	if d, err := intervalDuration(interval); err == nil {
		step = d
	}
	return generateMockBars(m.Price, start, end, step), nil
}

func generateMockBars(basePrice float64, start, end time.Time, step time.Duration) []model.Bar {
	var bars []model.Bar
	i := 0
	for t := start; t.Before(end); t = t.Add(step) {
		// slow drift with a weekly wobble so features are not constant
		p := basePrice * (1 + float64(i)*0.001 + 0.01*float64(i%7-3))
		bars = append(bars, model.Bar{
			Time:   t,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000 + float64(i%5)*10000,
		})
		i++
	}
	return bars
}

func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "2m":
		return 2 * time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "60m", "1h":
		return time.Hour, nil
	case "90m":
		return 90 * time.Minute, nil
	case "1d":
		return 24 * time.Hour, nil
	case "5d":
		return 5 * 24 * time.Hour, nil
	case "1wk":
		return 7 * 24 * time.Hour, nil
	case "1mo":
		return 30 * 24 * time.Hour, nil
	case "3mo":
		return 90 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unsupported interval %q", model.ErrConfiguration, interval)
	}
}

// Collector fetches the history window the regime model is trained on.
type Collector struct {
	Fetcher Fetcher
	Symbol  string
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, symbol string) *Collector {
	return &Collector{Fetcher: fetcher, Symbol: symbol}
}

// Window returns [end-days, end) with both bounds truncated to midnight.
func Window(days int, end time.Time) (time.Time, time.Time) {
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	return endDay.AddDate(0, 0, -days), endDay
}

// Collect fetches days of history ending at end. A zero end means now.
func (c *Collector) Collect(ctx context.Context, days int, interval string, end time.Time) (*model.PriceSeries, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", model.ErrConfiguration, days)
	}
	if end.IsZero() {
		end = time.Now()
	}
	start, stop := Window(days, end)

	bars, err := c.Fetcher.FetchHistory(ctx, c.Symbol, start, stop, interval)
	if err != nil {
		log.Error().Err(err).Str("source", c.Fetcher.Name()).Str("symbol", c.Symbol).Msg("fetch history failed")
		return nil, fmt.Errorf("fetch %s from %s: %w", c.Symbol, c.Fetcher.Name(), err)
	}
	if len(bars) == 0 {
		log.Warn().Str("source", c.Fetcher.Name()).Str("symbol", c.Symbol).Msg("empty history")
		return nil, fmt.Errorf("%w: %s returned no bars for %s between %s and %s",
			model.ErrUpstreamDataUnavailable, c.Fetcher.Name(), c.Symbol, start.Format(time.DateOnly), stop.Format(time.DateOnly))
	}

	log.Info().
		Str("source", c.Fetcher.Name()).
		Str("symbol", c.Symbol).
		Str("interval", interval).
		Int("bars", len(bars)).
		Msg("history fetched")
	return &model.PriceSeries{
		Symbol:    c.Symbol,
		Interval:  interval,
		Bars:      bars,
		FetchedAt: time.Now(),
	}, nil
}
