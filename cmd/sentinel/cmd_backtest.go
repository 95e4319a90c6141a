package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"RegimeSentinel/internal/backtest"
	"RegimeSentinel/internal/dataset"
	"RegimeSentinel/internal/model"
	"RegimeSentinel/internal/regime"
)

var (
	btBuy   string
	btSell  string
	btCash  float64
	btRefit bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the long/flat regime strategy over the cached history",
	Long: `Label the cached history with the saved model (or a fresh fit when no
model exists or --refit is given) and simulate buying on --buy states and
selling on --sell states.

Examples:
  sentinel backtest
  sentinel backtest --buy 0,2 --sell 1 --cash 5000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		buy, sell := cfg.Strategy()
		var err error
		if btBuy != "" {
			if buy, err = backtest.ParseLabelSet(btBuy); err != nil {
				return err
			}
		}
		if btSell != "" {
			if sell, err = backtest.ParseLabelSet(btSell); err != nil {
				return err
			}
		}
		cash := cfg.InitialCash
		if cmd.Flags().Changed("cash") {
			cash = btCash
		}

		rows, states, err := labelHistory(cmd, btRefit)
		if err != nil {
			return err
		}
		prices := model.RowCloses(rows)
		res, err := backtest.Simulate(prices, states, cash, buy, sell)
		if err != nil {
			return err
		}
		times := rowTimes(rows)
		res.AttachTimes(times)

		path := filepath.Join(cfg.DatasetDir,
			strings.TrimSuffix(dataset.FileName(cfg.Symbol, cfg.Interval), ".csv")+"_backtest.csv")
		if err := dataset.SaveSeries(path, times, prices, states, res.Values); err != nil {
			return fmt.Errorf("save backtest series: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "buy %s sell %s over %d bars\n", buy, sell, len(prices))
		fmt.Fprintf(out, "initial %.2f  final %.2f  return %+.2f%%  max drawdown %.2f%%  trades %d\n",
			res.InitialCash, res.FinalValue, res.TotalReturn*100, res.MaxDrawdown*100, len(res.Trades))
		fmt.Fprintf(out, "series written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVar(&btBuy, "buy", "", "Comma-separated buy states (default from config)")
	backtestCmd.Flags().StringVar(&btSell, "sell", "", "Comma-separated sell states (default from config)")
	backtestCmd.Flags().Float64Var(&btCash, "cash", 0, "Initial cash (default from config)")
	backtestCmd.Flags().BoolVar(&btRefit, "refit", false, "Fit a new model instead of loading the saved one")
}

// labelHistory returns the cached history's feature rows and their regimes.
func labelHistory(cmd *cobra.Command, refit bool) ([]model.FeatureRow, []int, error) {
	bars, err := loadBars(cmd.Context(), cfg, false)
	if err != nil {
		return nil, nil, err
	}
	if !refit {
		saved, snap, err := regime.LoadModel(cfg.ModelPath)
		switch {
		case err == nil:
			log.Info().Str("path", cfg.ModelPath).Time("saved_at", snap.SavedAt).Msg("using saved model")
			return saved.Apply(bars)
		case !os.IsNotExist(err):
			return nil, nil, fmt.Errorf("load model: %w", err)
		}
	}

	rc, err := cfg.Regime()
	if err != nil {
		return nil, nil, err
	}
	res, err := regime.Run(bars, rc)
	if err != nil {
		return nil, nil, err
	}
	if err := regime.SaveModel(cfg.ModelPath, cfg.Symbol, res); err != nil {
		return nil, nil, fmt.Errorf("save model: %w", err)
	}
	return res.Rows, res.States, nil
}

func rowTimes(rows []model.FeatureRow) []time.Time {
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.Time
	}
	return out
}
