package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"RegimeSentinel/internal/backtest"
	"RegimeSentinel/internal/collector"
	"RegimeSentinel/internal/metrics"
	"RegimeSentinel/internal/notifier"
	"RegimeSentinel/internal/recorder"
	"RegimeSentinel/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Refit and backtest on a cron schedule, report to Telegram and export metrics",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info().Str("symbol", cfg.Symbol).Str("interval", cfg.Interval).Msg("RegimeSentinel starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := newFetcher(cfg)
	log.Info().Str("source", fetcher.Name()).Msg("data source selected")
	col := collector.NewCollector(fetcher, cfg.Symbol)

	var (
		n  notifier.Notifier = notifier.NoopNotifier{}
		tn *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	} else {
		log.Warn().Msg("telegram bot token not set, notifications disabled")
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	defer rec.Close()

	rc, err := cfg.Regime()
	if err != nil {
		return err
	}
	buy, sell := cfg.Strategy()
	m := metrics.New()

	sched := scheduler.NewScheduler(ctx, col, n, rec, m, scheduler.Options{
		Interval:      cfg.Interval,
		Days:          cfg.Days,
		Regime:        rc,
		InitialCash:   cfg.InitialCash,
		Buy:           buy,
		Sell:          sell,
		Search:        cfg.States >= 2 && cfg.States <= backtest.MaxSearchStates,
		SearchWorkers: cfg.SearchWorkers,
		DatasetDir:    cfg.DatasetDir,
		ModelPath:     cfg.ModelPath,
		MaxRetries:    cfg.Telegram.MaxRetries,
		CoinID:        cfg.CoinGecko.CoinID,
	})
	if cfg.CoinGecko.APIKey != "" {
		cg := collector.NewCoinGecko(cfg.CoinGecko.APIKey, cfg.Proxy)
		pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
		if err := cg.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("coingecko unreachable, reports will omit market data")
		} else {
			log.Info().Str("coin", cfg.CoinGecko.CoinID).Msg("coingecko reachable")
			sched.Market = cg
		}
		cancelPing()
	}
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if cfg.Schedule.RunOnStart {
		log.Info().Msg("run_on_start enabled, refreshing now")
		go func() {
			_, _ = sched.RunNow()
		}()
	}

	log.Info().Msg("RegimeSentinel is running, press Ctrl+C to stop")
	<-ctx.Done()

	log.Info().Msg("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
	log.Info().Msg("RegimeSentinel stopped")
	return nil
}
