package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"RegimeSentinel/internal/backtest"
	"RegimeSentinel/internal/hmm"
	"RegimeSentinel/internal/model"
	"RegimeSentinel/internal/regime"
	"RegimeSentinel/internal/scaler"
)

var validate = validator.New()

// Config holds all application configuration.
type Config struct {
	Symbol   string   `yaml:"symbol" default:"BTC-USD" validate:"required"`
	Interval string   `yaml:"interval" default:"1d" validate:"oneof=1m 2m 5m 15m 30m 60m 90m 1h 1d 5d 1wk 1mo 3mo"`
	Days     int      `yaml:"days" default:"365" validate:"gte=1"`
	Window   int      `yaml:"window" default:"24" validate:"gte=2"`
	Features []string `yaml:"features" default:"[\"returns\",\"volatility\",\"volume_change\"]" validate:"min=1,unique,dive,oneof=returns volatility volume_change"`
	Scaler   string   `yaml:"scaler" default:"standard" validate:"oneof=standard minmax robust"`

	States     int     `yaml:"states" default:"3" validate:"gte=1"`
	Covariance string  `yaml:"covariance" default:"full" validate:"oneof=diag full"`
	MaxIters   int     `yaml:"max_iters" default:"100" validate:"gte=1"`
	Tol        float64 `yaml:"tol" default:"0.01" validate:"gte=0"`
	MinCovar   float64 `yaml:"min_covar" default:"0.001" validate:"gte=0"`
	Seed       uint64  `yaml:"seed" default:"42"`

	InitialCash   float64 `yaml:"initial_cash" default:"10000" validate:"gt=0"`
	BuyStates     []int   `yaml:"buy_states" default:"[1]" validate:"dive,gte=0"`
	SellStates    []int   `yaml:"sell_states" default:"[2]" validate:"dive,gte=0"`
	SearchWorkers int     `yaml:"search_workers" default:"0" validate:"gte=0"`

	DatasetDir string `yaml:"dataset_dir" default:"data"`
	ModelPath  string `yaml:"model_path" default:"data/model.json"`
	SQLitePath string `yaml:"sqlite_path" default:"data/regime_sentinel.db"`

	Telegram struct {
		BotToken   string `yaml:"bot_token"`
		ChatID     string `yaml:"chat_id" validate:"required_with=BotToken"`
		MaxRetries int    `yaml:"max_retries" default:"3" validate:"gte=0"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider  string  `yaml:"provider" default:"yahoo" validate:"oneof=yahoo rest mock"`
		BaseURL   string  `yaml:"base_url" validate:"required_if=Provider rest"`
		APIKey    string  `yaml:"api_key"`
		RateLimit float64 `yaml:"rate_limit" default:"2" validate:"gte=0"`
		MockPrice float64 `yaml:"mock_price" default:"100" validate:"gt=0"`
	} `yaml:"data_source"`
	CoinGecko struct {
		APIKey string `yaml:"api_key"`
		CoinID string `yaml:"coin_id" default:"bitcoin"`
	} `yaml:"coingecko"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron" default:"0 0 8 * * *" validate:"required"`
		RunOnStart  bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Metrics struct {
		Addr string `yaml:"addr" default:":9090"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. Unset fields take their `default` tag.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"SYMBOL":               &c.Symbol,
		"INTERVAL":             &c.Interval,
		"TELEGRAM_BOT_TOKEN":   &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":     &c.Telegram.ChatID,
		"DATA_SOURCE_PROVIDER": &c.DataSource.Provider,
		"DATA_SOURCE_BASE_URL": &c.DataSource.BaseURL,
		"DATA_SOURCE_API_KEY":  &c.DataSource.APIKey,
		"CG_API_KEY":           &c.CoinGecko.APIKey,
		"CG_COIN_ID":           &c.CoinGecko.CoinID,
		"HTTPS_PROXY":          &c.Proxy,
		"SQLITE_PATH":          &c.SQLitePath,
		"MODEL_PATH":           &c.ModelPath,
		"DATASET_DIR":          &c.DatasetDir,
		"REFRESH_CRON":         &c.Schedule.RefreshCron,
		"METRICS_ADDR":         &c.Metrics.Addr,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FILE":             &c.Log.File,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("STATES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: invalid STATES: %v", model.ErrConfiguration, err)
		}
		c.States = n
	}
	if v := os.Getenv("INITIAL_CASH"); v != "" {
		cash, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid INITIAL_CASH: %v", model.ErrConfiguration, err)
		}
		c.InitialCash = cash
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true"
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s%s", fe.Namespace(), fe.Tag(), param(fe)))
			}
			return fmt.Errorf("%w: %s", model.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	for _, s := range append(append([]int(nil), c.BuyStates...), c.SellStates...) {
		if s >= c.States {
			return fmt.Errorf("%w: state label %d out of range for %d states", model.ErrConfiguration, s, c.States)
		}
	}
	return nil
}

func param(fe validator.FieldError) string {
	if fe.Param() == "" {
		return ""
	}
	return "=" + fe.Param()
}

// Regime converts the model settings into a pipeline configuration.
func (c *Config) Regime() (regime.Config, error) {
	method, err := scaler.ParseMethod(c.Scaler)
	if err != nil {
		return regime.Config{}, err
	}
	cov, err := hmm.ParseCovariance(c.Covariance)
	if err != nil {
		return regime.Config{}, err
	}
	return regime.Config{
		Window:   c.Window,
		Features: c.Features,
		Scaler:   method,
		HMM: hmm.Config{
			NStates:    c.States,
			Covariance: cov,
			MaxIters:   c.MaxIters,
			Tol:        c.Tol,
			MinCovar:   c.MinCovar,
			Seed:       c.Seed,
		},
	}, nil
}

// Strategy returns the configured buy and sell label sets.
func (c *Config) Strategy() (buy, sell backtest.LabelSet) {
	return backtest.NewLabelSet(c.BuyStates...), backtest.NewLabelSet(c.SellStates...)
}
