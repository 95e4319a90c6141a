package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"RegimeSentinel/internal/collector"
	"RegimeSentinel/internal/config"
	"RegimeSentinel/internal/dataset"
	"RegimeSentinel/internal/logger"
	"RegimeSentinel/internal/model"
)

var (
	configPath string
	logLevel   string

	cfg       *config.Config
	logCloser interface{ Close() error }
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Hidden Markov market regime detection and backtesting",
	Long: `RegimeSentinel fits a Gaussian hidden Markov model to engineered price
features, labels every bar with a latent market regime and replays a
long/flat strategy driven by those labels.

Examples:
  sentinel fetch --days 730
  sentinel train --states 3
  sentinel backtest --buy 1 --sell 2
  sentinel search
  sentinel serve`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		closer, err := logger.Setup(c.Log.Level, c.Log.File)
		if err != nil {
			return err
		}
		cfg, logCloser = c, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFetcher picks the history source named by data_source.provider.
func newFetcher(c *config.Config) collector.Fetcher {
	switch c.DataSource.Provider {
	case "rest":
		return collector.NewRESTFetcher(c.DataSource.BaseURL, c.DataSource.APIKey, c.Proxy)
	case "mock":
		return &collector.MockFetcher{Price: c.DataSource.MockPrice}
	default:
		return collector.NewYahooFetcher(c.Proxy, c.DataSource.RateLimit)
	}
}

func datasetPath(c *config.Config) string {
	return filepath.Join(c.DatasetDir, dataset.FileName(c.Symbol, c.Interval))
}

// loadBars reads the cached dataset, fetching and caching it when missing or
// when refresh is set.
func loadBars(ctx context.Context, c *config.Config, refresh bool) ([]model.Bar, error) {
	path := datasetPath(c)
	if !refresh {
		bars, err := dataset.LoadBars(path)
		if err == nil {
			log.Info().Str("path", path).Int("bars", len(bars)).Msg("dataset loaded")
			return bars, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read dataset %s: %w", path, err)
		}
	}

	col := collector.NewCollector(newFetcher(c), c.Symbol)
	series, err := col.Collect(ctx, c.Days, c.Interval, time.Time{})
	if err != nil {
		return nil, err
	}
	if err := dataset.SaveBars(path, series.Bars); err != nil {
		return nil, fmt.Errorf("save dataset: %w", err)
	}
	log.Info().Str("path", path).Int("bars", len(series.Bars)).Msg("dataset saved")
	return series.Bars, nil
}
