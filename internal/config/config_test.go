package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/backtest"
	"RegimeSentinel/internal/hmm"
	"RegimeSentinel/internal/model"
	"RegimeSentinel/internal/scaler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTC-USD", cfg.Symbol)
	assert.Equal(t, "1d", cfg.Interval)
	assert.Equal(t, 365, cfg.Days)
	assert.Equal(t, 24, cfg.Window)
	assert.Equal(t, []string{"returns", "volatility", "volume_change"}, cfg.Features)
	assert.Equal(t, 3, cfg.States)
	assert.Equal(t, 10000.0, cfg.InitialCash)
	assert.Equal(t, []int{1}, cfg.BuyStates)
	assert.Equal(t, []int{2}, cfg.SellStates)
	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, 3, cfg.Telegram.MaxRetries)
	assert.Equal(t, "0 0 8 * * *", cfg.Schedule.RefreshCron)
	assert.Equal(t, "bitcoin", cfg.CoinGecko.CoinID)
}

func TestLoad_CoinGeckoKeyFromEnv(t *testing.T) {
	t.Setenv("CG_API_KEY", "demo")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.CoinGecko.APIKey)
}

func TestValidate_AcceptsMonthlyIntervals(t *testing.T) {
	for _, iv := range []string{"1mo", "3mo"} {
		cfg, err := Load(writeConfig(t, "interval: "+iv+"\n"))
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate(), iv)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
symbol: ETH-USD
states: 4
covariance: diag
scaler: robust
buy_states: [0, 3]
sell_states: [1]
data_source:
  provider: rest
  base_url: http://localhost:8080
`)
	t.Setenv("INITIAL_CASH", "2500")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ETH-USD", cfg.Symbol)
	assert.Equal(t, 2500.0, cfg.InitialCash)
	assert.Equal(t, "token", cfg.Telegram.BotToken)
	assert.Equal(t, 365, cfg.Days)

	rc, err := cfg.Regime()
	require.NoError(t, err)
	assert.Equal(t, 4, rc.HMM.NStates)
	assert.Equal(t, hmm.Diag, rc.HMM.Covariance)
	assert.Equal(t, scaler.Robust, rc.Scaler)

	buy, sell := cfg.Strategy()
	assert.Equal(t, backtest.LabelSet{0, 3}, buy)
	assert.Equal(t, backtest.LabelSet{1}, sell)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero states", "states: 0\nbuy_states: []\nsell_states: []\n"},
		{"non-positive cash", "initial_cash: -1\n"},
		{"window too small", "window: 1\n"},
		{"unknown feature", "features: [momentum]\n"},
		{"unknown covariance", "covariance: spherical\n"},
		{"label out of range", "states: 2\n"},
		{"rest without url", "data_source:\n  provider: rest\n"},
		{"chat id missing", "telegram:\n  bot_token: abc\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tc.body))
			require.NoError(t, err)
			assert.ErrorIs(t, cfg.Validate(), model.ErrConfiguration)
		})
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("STATES", "three")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
