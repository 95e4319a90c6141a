// Package hmm fits a Gaussian hidden Markov model with Baum-Welch and decodes
// state sequences with Viterbi.
package hmm

import (
	"fmt"

	"RegimeSentinel/internal/model"
)

// CovarianceType selects the emission covariance family.
type CovarianceType string

const (
	// Diag keeps one variance per feature and state.
	Diag CovarianceType = "diag"
	// Full keeps a complete covariance matrix per state.
	Full CovarianceType = "full"
)

// ParseCovariance validates a configured covariance family. Empty means Full.
func ParseCovariance(s string) (CovarianceType, error) {
	switch CovarianceType(s) {
	case "", Full:
		return Full, nil
	case Diag:
		return Diag, nil
	default:
		return "", fmt.Errorf("%w: unknown covariance type %q", model.ErrConfiguration, s)
	}
}

// Config controls a single Fit.
type Config struct {
	NStates    int
	Covariance CovarianceType
	MaxIters   int
	// Tol is the minimum log-likelihood gain per iteration before EM stops.
	Tol float64
	// MinCovar is added to every covariance diagonal after each M-step.
	MinCovar float64
	Seed     uint64
}

// DefaultConfig returns a three-state full-covariance configuration.
func DefaultConfig() Config {
	return Config{
		NStates:    3,
		Covariance: Full,
		MaxIters:   100,
		Tol:        1e-2,
		MinCovar:   1e-3,
		Seed:       42,
	}
}

func (c Config) validate(nSamples int) error {
	switch {
	case c.NStates < 1:
		return fmt.Errorf("%w: number of states must be at least 1, got %d", model.ErrModelFitFailed, c.NStates)
	case c.MaxIters < 1:
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", model.ErrModelFitFailed, c.MaxIters)
	case c.Covariance != Diag && c.Covariance != Full:
		return fmt.Errorf("%w: unknown covariance type %q", model.ErrModelFitFailed, c.Covariance)
	case c.Tol < 0 || c.MinCovar < 0:
		return fmt.Errorf("%w: tolerance and min covariance must be non-negative", model.ErrModelFitFailed)
	case nSamples < c.NStates || nSamples < 2:
		return fmt.Errorf("%w: %d samples cannot support %d states", model.ErrModelFitFailed, nSamples, c.NStates)
	}
	return nil
}
