package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchDays int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download price history and cache it as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("days") {
			cfg.Days = fetchDays
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		bars, err := loadBars(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d bars from %s to %s -> %s\n",
			cfg.Symbol, cfg.Interval, len(bars),
			bars[0].Time.Format("2006-01-02"), bars[len(bars)-1].Time.Format("2006-01-02"),
			datasetPath(cfg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "Days of history to fetch (default from config)")
}
