package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"RegimeSentinel/internal/backtest"
	"RegimeSentinel/internal/model"
	"RegimeSentinel/internal/recorder"
	"RegimeSentinel/internal/regime"
)

// Report is everything one refresh produced.
type Report struct {
	Symbol   string
	Interval string
	At       time.Time
	Regime   *regime.Result
	Buy      backtest.LabelSet
	Sell     backtest.LabelSet
	Backtest *backtest.Result
	Search   *backtest.SearchResult // optional
	Market   *model.MarketSnapshot  // optional
}

// FormatRunReport formats a refresh into a Telegram message.
func FormatRunReport(r *Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>RegimeSentinel</b> | %s %s | %s\n\n",
		html.EscapeString(r.Symbol), r.Interval, r.At.Format("2006-01-02 15:04")))

	if rg := r.Regime; rg != nil {
		m := rg.Model
		b.WriteString(fmt.Sprintf("Model: %d states (%s), %d iterations, converged=%v\n",
			m.NStates, m.Covariance, m.Iterations, m.Converged))
		b.WriteString(fmt.Sprintf("Log-likelihood: %.2f over %d rows\n", m.LogLikelihood, len(rg.Rows)))
		if n := len(rg.States); n > 0 {
			b.WriteString(fmt.Sprintf("Current regime: <b>%d</b> (%.0f%% confidence)\n", rg.States[n-1], rg.Confidence*100))
		}

		b.WriteString("\n📈 <b>Regimes:</b>\n")
		for _, s := range rg.Summaries {
			b.WriteString(fmt.Sprintf("  %d: %4.1f%% of bars | ret %+.3f%% | vol %.3f%%\n",
				s.State, s.Share*100, s.MeanReturn*100, s.MeanVolatility*100))
		}
	}

	if bt := r.Backtest; bt != nil {
		b.WriteString(fmt.Sprintf("\n💰 <b>Backtest</b> buy %s sell %s\n", r.Buy, r.Sell))
		b.WriteString(fmt.Sprintf("   %.2f → %.2f (%+.2f%%)\n", bt.InitialCash, bt.FinalValue, bt.TotalReturn*100))
		b.WriteString(fmt.Sprintf("   Max drawdown: %.2f%% | Trades: %d\n", bt.MaxDrawdown*100, len(bt.Trades)))
	}

	if s := r.Search; s != nil && len(s.Outcomes) > 0 {
		b.WriteString(fmt.Sprintf("\n🔎 <b>Best of %d combinations:</b> buy %s sell %s → %.2f\n",
			len(s.Outcomes), s.Best.Buy, s.Best.Sell, s.Best.FinalValue))
	}

	if m := r.Market; m != nil {
		b.WriteString(fmt.Sprintf("\n🌐 <b>Market</b> (%s)\n", html.EscapeString(m.CoinID)))
		b.WriteString(fmt.Sprintf("   Price: %.2f %s | 24h: %+.2f%%\n",
			m.Price, strings.ToUpper(m.Currency), m.PriceChangePct24h))
		b.WriteString(fmt.Sprintf("   Market cap: %s | 24h volume: %s\n",
			formatAmount(m.MarketCap), formatAmount(m.TotalVolume)))
	}

	return b.String()
}

// FormatStatus renders the last report followed by the recent run history.
func FormatStatus(lastReport string, history []recorder.RunRecord, tradeCounts map[string]int) string {
	var b strings.Builder
	if lastReport == "" {
		b.WriteString("No refresh has completed yet.\n")
	} else {
		b.WriteString(lastReport)
	}
	if len(history) == 0 {
		return b.String()
	}
	b.WriteString("\n🕘 <b>Recent runs:</b>\n")
	for _, run := range history {
		if run.Outcome != recorder.OutcomeSuccess {
			b.WriteString(fmt.Sprintf("  %s ❌ %s\n", run.StartedAt.Format("01-02 15:04"), html.EscapeString(run.Error)))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s ✅ %.2f (%+.2f%%) | %d trades\n",
			run.StartedAt.Format("01-02 15:04"), run.FinalValue, run.TotalReturn*100, tradeCounts[run.ID]))
	}
	return b.String()
}

// formatAmount abbreviates large amounts: 1.23B, 45.60M, 7.89K.
func formatAmount(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case a >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case a >= 1e4:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// FormatFailure formats a failed refresh.
func FormatFailure(symbol string, err error, at time.Time) string {
	return fmt.Sprintf("⚠️ <b>RegimeSentinel</b> | %s | %s\nRefresh failed: %s\n",
		html.EscapeString(symbol), at.Format("2006-01-02 15:04"), html.EscapeString(err.Error()))
}
