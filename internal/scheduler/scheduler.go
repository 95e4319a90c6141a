package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"RegimeSentinel/internal/backtest"
	"RegimeSentinel/internal/collector"
	"RegimeSentinel/internal/dataset"
	"RegimeSentinel/internal/metrics"
	"RegimeSentinel/internal/model"
	"RegimeSentinel/internal/notifier"
	"RegimeSentinel/internal/recorder"
	"RegimeSentinel/internal/regime"
)

// Options are the per-refresh settings.
type Options struct {
	Interval      string
	Days          int
	Regime        regime.Config
	InitialCash   float64
	Buy           backtest.LabelSet
	Sell          backtest.LabelSet
	Search        bool
	SearchWorkers int
	DatasetDir    string
	ModelPath     string
	MaxRetries    int
	// CoinID names the coin whose market snapshot is added to reports.
	CoinID string
}

// statusRuns is how many recorded runs /status lists.
const statusRuns = 5

// MarketSource supplies the spot snapshot shown in reports.
type MarketSource interface {
	MarketData(ctx context.Context, coinID string) (*model.MarketSnapshot, error)
}

// Scheduler manages the cron refresh task.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Metrics   *metrics.Recorder
	Market    MarketSource // optional
	Opts      Options
	Ctx       context.Context

	mu         sync.Mutex // serializes refreshes
	lastReport string
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, n notifier.Notifier, rec recorder.Recorder, m *metrics.Recorder, opts Options) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Notifier:  n,
		Recorder:  rec,
		Metrics:   m,
		Opts:      opts,
		Ctx:       ctx,
	}
}

// Register adds the refresh task.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running refresh.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes the refresh immediately (for manual trigger / run_on_start).
func (s *Scheduler) RunNow() (*notifier.Report, error) {
	return s.Refresh(s.Ctx)
}

func (s *Scheduler) refreshTask() {
	if _, err := s.Refresh(s.Ctx); err != nil {
		log.Error().Err(err).Msg("scheduled refresh failed")
	}
}

// Refresh fetches fresh history, refits the model, replays the strategy and
// publishes the outcome.
func (s *Scheduler) Refresh(ctx context.Context) (*notifier.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := s.Collector.Symbol
	run := &recorder.RunRecord{
		StartedAt:   time.Now(),
		Symbol:      symbol,
		Interval:    s.Opts.Interval,
		States:      s.Opts.Regime.HMM.NStates,
		Covariance:  string(s.Opts.Regime.HMM.Covariance),
		BuyStates:   s.Opts.Buy.String(),
		SellStates:  s.Opts.Sell.String(),
		InitialCash: s.Opts.InitialCash,
	}
	log.Info().Str("symbol", symbol).Msg("running refresh")

	report, err := s.refresh(ctx, run)
	if err != nil {
		run.Outcome = recorder.OutcomeFailed
		run.Error = err.Error()
		s.record(run, nil)
		s.Metrics.RecordRun(symbol, recorder.OutcomeFailed)
		s.trySend(ctx, notifier.FormatFailure(symbol, err, run.StartedAt))
		return nil, err
	}

	run.Outcome = recorder.OutcomeSuccess
	s.record(run, report)
	s.Metrics.RecordRun(symbol, recorder.OutcomeSuccess)

	text := notifier.FormatRunReport(report)
	s.lastReport = text
	s.trySend(ctx, text)
	return report, nil
}

func (s *Scheduler) refresh(ctx context.Context, run *recorder.RunRecord) (*notifier.Report, error) {
	series, err := s.Collector.Collect(ctx, s.Opts.Days, s.Opts.Interval, time.Time{})
	if err != nil {
		return nil, err
	}
	run.Bars = len(series.Bars)

	if s.Opts.DatasetDir != "" {
		path := filepath.Join(s.Opts.DatasetDir, dataset.FileName(series.Symbol, series.Interval))
		if err := dataset.SaveBars(path, series.Bars); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("save dataset failed")
		}
	}

	res, err := regime.Run(series.Bars, s.Opts.Regime)
	if err != nil {
		return nil, err
	}
	run.Rows = len(res.Rows)
	run.LogLikelihood = res.Model.LogLikelihood
	run.Iterations = res.Model.Iterations
	run.Converged = res.Model.Converged
	s.Metrics.RecordFit(series.Symbol, res.FitTime, res.Model.Iterations, res.Model.LogLikelihood)

	if s.Opts.ModelPath != "" {
		if err := regime.SaveModel(s.Opts.ModelPath, series.Symbol, res); err != nil {
			log.Warn().Err(err).Str("path", s.Opts.ModelPath).Msg("save model failed")
		}
	}

	prices := res.Prices()
	bt, err := backtest.Simulate(prices, res.States, s.Opts.InitialCash, s.Opts.Buy, s.Opts.Sell)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	bt.AttachTimes(res.Times())
	run.FinalValue = bt.FinalValue
	run.TotalReturn = bt.TotalReturn
	run.MaxDrawdown = bt.MaxDrawdown

	sides := map[string]int{}
	for _, tr := range bt.Trades {
		sides[string(tr.Side)]++
	}
	s.Metrics.RecordBacktest(series.Symbol, bt.FinalValue, res.States[len(res.States)-1], sides)

	if s.Opts.DatasetDir != "" {
		name := strings.TrimSuffix(dataset.FileName(series.Symbol, series.Interval), ".csv") + "_backtest.csv"
		path := filepath.Join(s.Opts.DatasetDir, name)
		if err := dataset.SaveSeries(path, res.Times(), prices, res.States, bt.Values); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("save backtest series failed")
		}
	}

	report := &notifier.Report{
		Symbol:   series.Symbol,
		Interval: series.Interval,
		At:       run.StartedAt,
		Regime:   res,
		Buy:      s.Opts.Buy,
		Sell:     s.Opts.Sell,
		Backtest: bt,
	}
	if s.Opts.Search && res.Model.NStates >= 2 {
		sr, err := backtest.Search(prices, res.States, res.Model.NStates, s.Opts.InitialCash, s.Opts.SearchWorkers)
		if err != nil {
			log.Warn().Err(err).Msg("combination search failed")
		} else {
			report.Search = sr
		}
	}
	if s.Market != nil && s.Opts.CoinID != "" {
		snap, err := s.Market.MarketData(ctx, s.Opts.CoinID)
		if err != nil {
			log.Warn().Err(err).Str("coin", s.Opts.CoinID).Msg("market snapshot unavailable")
		} else {
			report.Market = snap
		}
	}
	return report, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/run":
		// Refresh sends its own report or failure notice.
		_, _ = s.Refresh(ctx)
		return ""
	case "/status":
		s.mu.Lock()
		last := s.lastReport
		s.mu.Unlock()
		return s.status(last)
	default:
		return "Available commands:\n• /run  refit and backtest now\n• /status  last report and recent runs"
	}
}

func (s *Scheduler) status(lastReport string) string {
	runs, err := s.Recorder.RecentRuns(statusRuns)
	if err != nil {
		log.Warn().Err(err).Msg("load run history")
	}
	trades := make(map[string]int, len(runs))
	for _, run := range runs {
		if run.Outcome != recorder.OutcomeSuccess {
			continue
		}
		n, err := s.Recorder.CountTrades(run.ID)
		if err != nil {
			log.Warn().Err(err).Str("run", run.ID).Msg("count trades")
			continue
		}
		trades[run.ID] = n
	}
	return notifier.FormatStatus(lastReport, runs, trades)
}

func (s *Scheduler) record(run *recorder.RunRecord, report *notifier.Report) {
	if err := s.Recorder.RecordRun(run); err != nil {
		log.Error().Err(err).Msg("record run")
		return
	}
	if report == nil {
		return
	}
	if err := s.Recorder.RecordStates(run.ID, report.Regime.Summaries); err != nil {
		log.Error().Err(err).Msg("record regime states")
	}
	if err := s.Recorder.RecordTrades(run.ID, report.Backtest.Trades); err != nil {
		log.Error().Err(err).Msg("record trades")
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.SendWithRetry(ctx, text, s.Opts.MaxRetries); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
