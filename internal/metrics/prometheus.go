// Package metrics exposes refresh and model-fit instruments to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the Prometheus instruments of a refresh loop.
type Recorder struct {
	gatherer      prometheus.Gatherer
	runsTotal     *prometheus.CounterVec
	fitDuration   *prometheus.HistogramVec
	emIterations  *prometheus.GaugeVec
	logLikelihood *prometheus.GaugeVec
	finalValue    *prometheus.GaugeVec
	currentState  *prometheus.GaugeVec
	tradesTotal   *prometheus.CounterVec
}

// New registers the instruments on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regime_runs_total",
				Help: "Total number of refresh runs by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		fitDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regime_fit_duration_seconds",
				Help:    "Duration of HMM fitting in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		emIterations: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regime_em_iterations",
				Help: "EM iterations used by the last fit",
			},
			[]string{"symbol"},
		),
		logLikelihood: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regime_log_likelihood",
				Help: "Log-likelihood of the last fit",
			},
			[]string{"symbol"},
		),
		finalValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regime_backtest_final_value",
				Help: "Final portfolio value of the last backtest",
			},
			[]string{"symbol"},
		),
		currentState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regime_current_state",
				Help: "Regime label of the most recent bar",
			},
			[]string{"symbol"},
		),
		tradesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regime_backtest_trades_total",
				Help: "Total number of simulated trades by side",
			},
			[]string{"symbol", "side"},
		),
	}
}

// RecordRun counts a finished refresh.
func (r *Recorder) RecordRun(symbol, outcome string) {
	r.runsTotal.WithLabelValues(symbol, outcome).Inc()
}

// RecordFit records the diagnostics of one fit.
func (r *Recorder) RecordFit(symbol string, elapsed time.Duration, iterations int, loglik float64) {
	r.fitDuration.WithLabelValues(symbol).Observe(elapsed.Seconds())
	r.emIterations.WithLabelValues(symbol).Set(float64(iterations))
	r.logLikelihood.WithLabelValues(symbol).Set(loglik)
}

// RecordBacktest records the outcome of one simulation.
func (r *Recorder) RecordBacktest(symbol string, finalValue float64, state int, trades map[string]int) {
	r.finalValue.WithLabelValues(symbol).Set(finalValue)
	r.currentState.WithLabelValues(symbol).Set(float64(state))
	for side, n := range trades {
		r.tradesTotal.WithLabelValues(symbol, side).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
