package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"RegimeSentinel/internal/model"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko is a client for the CoinGecko v3 API authenticated with a demo
// key.
type CoinGecko struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewCoinGecko creates a client. The demo plan allows about 30 calls a
// minute, so requests are spaced to stay under it.
func NewCoinGecko(apiKey, proxyURL string) *CoinGecko {
	return &CoinGecko{
		BaseURL: coinGeckoBaseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
		Limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// CoinInfo describes a coin.
type CoinInfo struct {
	ID          string
	Name        string
	Symbol      string
	Description string
	Homepage    string
	GenesisDate string
}

// CoinRef is one entry of the supported-coins list.
type CoinRef struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

func (c *CoinGecko) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("coingecko rate limit: %w", err)
		}
	}
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coingecko %s: read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: coingecko %s status %d, body: %s", model.ErrUpstreamDataUnavailable, path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("coingecko %s: decode: %w", path, err)
	}
	return nil
}

// Ping checks that the API is reachable and the key is accepted.
func (c *CoinGecko) Ping(ctx context.Context) error {
	return c.get(ctx, "/ping", nil, nil)
}

// Price returns the spot price of coinID in currency (e.g. "bitcoin", "usd").
func (c *CoinGecko) Price(ctx context.Context, coinID, currency string) (float64, error) {
	var out map[string]map[string]float64
	q := url.Values{"ids": {coinID}, "vs_currencies": {currency}}
	if err := c.get(ctx, "/simple/price", q, &out); err != nil {
		return 0, err
	}
	p, ok := out[coinID][currency]
	if !ok {
		return 0, fmt.Errorf("%w: coingecko has no %s price for %s", model.ErrUpstreamDataUnavailable, currency, coinID)
	}
	return p, nil
}

// MarketData returns price, market cap, 24h volume and 24h change in USD.
func (c *CoinGecko) MarketData(ctx context.Context, coinID string) (*model.MarketSnapshot, error) {
	var rows []struct {
		CurrentPrice             float64  `json:"current_price"`
		MarketCap                float64  `json:"market_cap"`
		TotalVolume              float64  `json:"total_volume"`
		PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	}
	q := url.Values{"vs_currency": {"usd"}, "ids": {coinID}}
	if err := c.get(ctx, "/coins/markets", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: coingecko has no market data for %s", model.ErrUpstreamDataUnavailable, coinID)
	}
	r := rows[0]
	snap := &model.MarketSnapshot{
		CoinID:      coinID,
		Currency:    "usd",
		Price:       r.CurrentPrice,
		MarketCap:   r.MarketCap,
		TotalVolume: r.TotalVolume,
		At:          time.Now(),
	}
	if r.PriceChangePercentage24h != nil {
		snap.PriceChangePct24h = *r.PriceChangePercentage24h
	}
	return snap, nil
}

// CoinInfo returns descriptive details of coinID.
func (c *CoinGecko) CoinInfo(ctx context.Context, coinID string) (*CoinInfo, error) {
	var raw struct {
		ID          string            `json:"id"`
		Name        string            `json:"name"`
		Symbol      string            `json:"symbol"`
		Description map[string]string `json:"description"`
		Links       struct {
			Homepage []string `json:"homepage"`
		} `json:"links"`
		GenesisDate string `json:"genesis_date"`
	}
	q := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"market_data":    {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}
	if err := c.get(ctx, "/coins/"+url.PathEscape(coinID), q, &raw); err != nil {
		return nil, err
	}
	info := &CoinInfo{
		ID:          raw.ID,
		Name:        raw.Name,
		Symbol:      raw.Symbol,
		Description: raw.Description["en"],
		GenesisDate: raw.GenesisDate,
	}
	if len(raw.Links.Homepage) > 0 {
		info.Homepage = raw.Links.Homepage[0]
	}
	return info, nil
}

// SupportedCoins lists every coin id the API knows.
func (c *CoinGecko) SupportedCoins(ctx context.Context) ([]CoinRef, error) {
	var coins []CoinRef
	if err := c.get(ctx, "/coins/list", nil, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}
