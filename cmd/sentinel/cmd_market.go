package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"RegimeSentinel/internal/collector"
)

var (
	marketCoin     string
	marketCurrency string
	marketList     bool
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Show the current CoinGecko price, market data and coin details",
	Long: `Query CoinGecko for the configured coin. Set CG_API_KEY (or
coingecko.api_key) to use a demo key.

Examples:
  sentinel market
  sentinel market --coin ethereum --currency eur
  sentinel market --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		cg := collector.NewCoinGecko(cfg.CoinGecko.APIKey, cfg.Proxy)
		if err := cg.Ping(ctx); err != nil {
			return err
		}

		if marketList {
			coins, err := cg.SupportedCoins(ctx)
			if err != nil {
				return err
			}
			for _, c := range coins {
				fmt.Fprintf(out, "%s\t%s\t%s\n", c.ID, c.Symbol, c.Name)
			}
			return nil
		}

		coin := cfg.CoinGecko.CoinID
		if marketCoin != "" {
			coin = marketCoin
		}
		price, err := cg.Price(ctx, coin, marketCurrency)
		if err != nil {
			return err
		}
		snap, err := cg.MarketData(ctx, coin)
		if err != nil {
			return err
		}
		info, err := cg.CoinInfo(ctx, coin)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s (%s)  genesis %s  %s\n", info.Name, strings.ToUpper(info.Symbol), info.GenesisDate, info.Homepage)
		fmt.Fprintf(out, "price      %.2f %s\n", price, strings.ToUpper(marketCurrency))
		fmt.Fprintf(out, "market cap %.0f USD\n", snap.MarketCap)
		fmt.Fprintf(out, "24h volume %.0f USD\n", snap.TotalVolume)
		fmt.Fprintf(out, "24h change %+.2f%%\n", snap.PriceChangePct24h)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(marketCmd)
	marketCmd.Flags().StringVar(&marketCoin, "coin", "", "CoinGecko coin id (default from config)")
	marketCmd.Flags().StringVar(&marketCurrency, "currency", "usd", "Quote currency for the spot price")
	marketCmd.Flags().BoolVar(&marketList, "list", false, "List every supported coin id instead")
}
