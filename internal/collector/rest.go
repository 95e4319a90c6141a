package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"RegimeSentinel/internal/model"
)

// RESTFetcher implements Fetcher against a generic bars endpoint:
//
//	GET {BaseURL}/api/v1/bars?symbol=..&interval=..&start=..&end=..
//
// returning a JSON array of {timestamp, open, high, low, close, volume}.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bars endpoint.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *RESTFetcher) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Bar, error) {
	bars, err := f.fetchBars(ctx, symbol, start, end, interval)
	if err != nil && interval == "1wk" {
		// Fallback: aggregate daily bars when the API has no weekly series.
		log.Warn().Err(err).Str("symbol", symbol).Msg("weekly bars unavailable, aggregating daily")
		daily, dailyErr := f.fetchBars(ctx, symbol, start, end, "1d")
		if dailyErr != nil {
			return nil, fmt.Errorf("weekly fetch failed: %w; daily fallback also failed: %w", err, dailyErr)
		}
		return aggregateWeekly(daily), nil
	}
	return bars, err
}

func (f *RESTFetcher) fetchBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start", fmt.Sprint(start.Unix()))
	q.Set("end", fmt.Sprint(end.Unix()))
	endpoint := fmt.Sprintf("%s/api/v1/bars?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: bars endpoint status %d, body: %s", model.ErrUpstreamDataUnavailable, resp.StatusCode, string(body))
	}
	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.Bar, 0, len(raw))
	for _, rb := range raw {
		if rb.Close == 0 {
			continue
		}
		bars = append(bars, model.Bar{
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		})
	}
	return normalize(bars, start, end), nil
}

// aggregateWeekly folds sorted daily bars into ISO-week bars stamped with the
// first day of each week.
func aggregateWeekly(daily []model.Bar) []model.Bar {
	var weekly []model.Bar
	for _, d := range daily {
		if n := len(weekly); n > 0 {
			wy, ww := weekly[n-1].Time.ISOWeek()
			dy, dw := d.Time.ISOWeek()
			if wy == dy && ww == dw {
				w := &weekly[n-1]
				w.High = max(w.High, d.High)
				w.Low = min(w.Low, d.Low)
				w.Close = d.Close
				w.Volume += d.Volume
				continue
			}
		}
		weekly = append(weekly, d)
	}
	return weekly
}
