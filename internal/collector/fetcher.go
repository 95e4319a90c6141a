package collector

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"time"

	"RegimeSentinel/internal/model"
)

// Fetcher defines the interface for fetching historical bars.
type Fetcher interface {
	// FetchHistory returns bars with start <= Time < end, oldest first.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Bar, error)
	Name() string
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// normalize sorts bars, drops duplicate timestamps (the later bar wins) and
// keeps only bars inside [start, end).
func normalize(bars []model.Bar, start, end time.Time) []model.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if b.Time.Before(start) || !b.Time.Before(end) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
