package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"RegimeSentinel/internal/backtest"
	"RegimeSentinel/internal/model"
)

var (
	searchTop   int
	searchRefit bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Try every buy/sell state combination and rank them by final value",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, states, err := labelHistory(cmd, searchRefit)
		if err != nil {
			return err
		}
		nStates := 0
		for _, s := range states {
			nStates = max(nStates, s+1)
		}
		nStates = max(nStates, cfg.States)

		sr, err := backtest.Search(model.RowCloses(rows), states, nStates, cfg.InitialCash, cfg.SearchWorkers)
		if err != nil {
			return err
		}

		ranked := append([]backtest.Outcome(nil), sr.Outcomes...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].FinalValue > ranked[j].FinalValue
		})
		if searchTop > 0 && len(ranked) > searchTop {
			ranked = ranked[:searchTop]
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BUY\tSELL\tFINAL\tRETURN\tMAX DD\tTRADES")
		for _, o := range ranked {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%+.2f%%\t%.2f%%\t%d\n",
				o.Buy, o.Sell, o.FinalValue, o.TotalReturn*100, o.MaxDrawdown*100, o.Trades)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "best of %d: buy %s sell %s -> %.2f\n",
			len(sr.Outcomes), sr.Best.Buy, sr.Best.Sell, sr.Best.FinalValue)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchTop, "top", 10, "Show only the best N combinations (0 for all)")
	searchCmd.Flags().BoolVar(&searchRefit, "refit", false, "Fit a new model instead of loading the saved one")
}
