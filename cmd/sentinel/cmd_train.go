package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"RegimeSentinel/internal/regime"
)

var (
	trainStates  int
	trainRefresh bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the regime model and save it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("states") {
			cfg.States = trainStates
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		rc, err := cfg.Regime()
		if err != nil {
			return err
		}
		bars, err := loadBars(cmd.Context(), cfg, trainRefresh)
		if err != nil {
			return err
		}
		res, err := regime.Run(bars, rc)
		if err != nil {
			return err
		}
		if err := regime.SaveModel(cfg.ModelPath, cfg.Symbol, res); err != nil {
			return fmt.Errorf("save model: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fitted %d states on %d rows: loglik %.4f after %d iterations (converged=%t)\n",
			res.Model.NStates, len(res.Rows), res.Model.LogLikelihood, res.Model.Iterations, res.Model.Converged)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STATE\tBARS\tSHARE\tMEAN RETURN\tMEAN VOL")
		for _, s := range res.Summaries {
			fmt.Fprintf(tw, "%d\t%d\t%.1f%%\t%+.4f%%\t%.4f%%\n", s.State, s.Count, s.Share*100, s.MeanReturn*100, s.MeanVolatility*100)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "model saved to %s\n", cfg.ModelPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().IntVar(&trainStates, "states", 0, "Number of hidden states (default from config)")
	trainCmd.Flags().BoolVar(&trainRefresh, "refresh", false, "Fetch fresh history instead of using the cached dataset")
}
