package recorder

import (
	"time"

	"RegimeSentinel/internal/model"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// RunRecord summarizes one fit-decode-backtest run.
type RunRecord struct {
	ID            string // assigned by RecordRun when empty
	StartedAt     time.Time
	Symbol        string
	Interval      string
	Bars          int
	Rows          int
	States        int
	Covariance    string
	LogLikelihood float64
	Iterations    int
	Converged     bool
	BuyStates     string
	SellStates    string
	InitialCash   float64
	FinalValue    float64
	TotalReturn   float64
	MaxDrawdown   float64
	Outcome       string
	Error         string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordRun(run *RunRecord) error
	RecordStates(runID string, summaries []model.StateSummary) error
	RecordTrades(runID string, trades []model.TradeEvent) error
	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(limit int) ([]RunRecord, error)
	CountTrades(runID string) (int, error)
	Close() error
}
