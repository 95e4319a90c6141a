// Package regime chains the feature pipeline, scaler and hidden Markov model
// into one fit-and-decode run.
package regime

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"RegimeSentinel/internal/features"
	"RegimeSentinel/internal/hmm"
	"RegimeSentinel/internal/model"
	"RegimeSentinel/internal/scaler"
)

// Stage names reported in StageError.
const (
	StageFeatures = "features"
	StageScale    = "scale"
	StageFit      = "fit"
	StageDecode   = "decode"
)

// Config bundles the parameters of a run.
type Config struct {
	Window   int
	Features []string
	Scaler   scaler.Method
	HMM      hmm.Config
}

// DefaultConfig mirrors the defaults of each stage.
func DefaultConfig() Config {
	return Config{
		Window:   features.DefaultWindow,
		Features: model.DefaultFeatures,
		Scaler:   scaler.Standard,
		HMM:      hmm.DefaultConfig(),
	}
}

// Result is a fitted model together with the labelled training rows.
type Result struct {
	Window    int
	Features  []string
	Rows      []model.FeatureRow
	Scaler    *scaler.Params
	Model     *hmm.Params
	States    []int
	Summaries []model.StateSummary
	FitTime   time.Duration

	// Confidence is the posterior probability of the last decoded state.
	Confidence float64
}

// Prices returns the close of every labelled row, aligned with States.
func (r *Result) Prices() []float64 { return model.RowCloses(r.Rows) }

// Times returns the timestamp of every labelled row.
func (r *Result) Times() []time.Time {
	out := make([]time.Time, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Time
	}
	return out
}

// Run fits a fresh model on bars and labels every surviving feature row.
func Run(bars []model.Bar, cfg Config) (*Result, error) {
	if len(cfg.Features) == 0 {
		cfg.Features = model.DefaultFeatures
	}

	log.Info().Int("bars", len(bars)).Int("window", cfg.Window).Msg("stage features")
	rows, err := features.Process(bars, cfg.Window)
	if err != nil {
		return nil, model.WrapStage(StageFeatures, fmt.Errorf("%d bars: %w", len(bars), err))
	}
	m, err := model.FeatureMatrix(rows, cfg.Features)
	if err != nil {
		return nil, model.WrapStage(StageFeatures, err)
	}

	log.Info().Int("rows", len(m)).Strs("columns", cfg.Features).Str("method", string(cfg.Scaler)).Msg("stage scale")
	scaled, sp, err := scaler.FitTransform(m, cfg.Scaler)
	if err != nil {
		return nil, model.WrapStage(StageScale, fmt.Errorf("%d×%d matrix: %w", len(m), len(cfg.Features), err))
	}
	if len(sp.ZeroScaleColumns) > 0 {
		log.Warn().Ints("columns", sp.ZeroScaleColumns).Msg("zero-variance feature columns are only centered")
	}

	log.Info().Int("states", cfg.HMM.NStates).Str("covariance", string(cfg.HMM.Covariance)).Msg("stage fit")
	start := time.Now()
	params, err := hmm.Fit(scaled, cfg.HMM)
	if err != nil {
		return nil, model.WrapStage(StageFit, fmt.Errorf("%d rows, %d states: %w", len(scaled), cfg.HMM.NStates, err))
	}
	fitTime := time.Since(start)

	states, err := hmm.Decode(params, scaled)
	if err != nil {
		return nil, model.WrapStage(StageDecode, err)
	}
	post, err := hmm.Posteriors(params, scaled)
	if err != nil {
		return nil, model.WrapStage(StageDecode, err)
	}
	last := len(states) - 1

	res := &Result{
		Window:    cfg.Window,
		Features:  append([]string(nil), cfg.Features...),
		Rows:      rows,
		Scaler:    sp,
		Model:     params,
		States:    states,
		Summaries: Summarize(rows, states, params.NStates),
		FitTime:   fitTime,

		Confidence: post[last][states[last]],
	}
	for _, s := range res.Summaries {
		log.Info().
			Int("state", s.State).
			Int("count", s.Count).
			Float64("share", s.Share).
			Float64("mean_return", s.MeanReturn).
			Float64("mean_volatility", s.MeanVolatility).
			Msg("regime summary")
	}
	return res, nil
}

// Apply labels new bars with the fitted scaler and model. Nothing is refit.
func (r *Result) Apply(bars []model.Bar) ([]model.FeatureRow, []int, error) {
	rows, err := features.Process(bars, r.Window)
	if err != nil {
		return nil, nil, model.WrapStage(StageFeatures, err)
	}
	m, err := model.FeatureMatrix(rows, r.Features)
	if err != nil {
		return nil, nil, model.WrapStage(StageFeatures, err)
	}
	scaled, err := scaler.Transform(m, r.Scaler)
	if err != nil {
		return nil, nil, model.WrapStage(StageScale, err)
	}
	states, err := hmm.Decode(r.Model, scaled)
	if err != nil {
		return nil, nil, model.WrapStage(StageDecode, err)
	}
	// A per-row log-likelihood well below the training fit means the market
	// has drifted away from the stored regimes.
	if ll, err := hmm.Score(r.Model, scaled); err == nil {
		log.Info().
			Int("rows", len(scaled)).
			Float64("loglik_per_row", ll/float64(len(scaled))).
			Msg("applied stored model")
	}
	return rows, states, nil
}
