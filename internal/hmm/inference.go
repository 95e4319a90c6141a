package hmm

import (
	"fmt"
	"math"

	"RegimeSentinel/internal/model"
)

// lattice holds the scaled forward-backward quantities for one sequence.
type lattice struct {
	alpha [][]float64 // scaled forward variables, rows sum to 1
	beta  [][]float64
	scale []float64 // c_t
	emit  [][]float64
	// loglik = Σ log c_t + Σ shift_t
	loglik float64
}

// forwardBackward runs the scaled recursions. Emission densities are shifted
// by their per-row maximum before exponentiation so tiny densities survive.
func forwardBackward(p *Params, logB [][]float64) (*lattice, error) {
	n, T := p.NStates, len(logB)
	lt := &lattice{
		alpha: make([][]float64, T),
		beta:  make([][]float64, T),
		scale: make([]float64, T),
		emit:  make([][]float64, T),
	}

	for t := 0; t < T; t++ {
		shift := math.Inf(-1)
		for _, v := range logB[t] {
			shift = math.Max(shift, v)
		}
		if math.IsInf(shift, 0) {
			return nil, fmt.Errorf("%w: row %d has zero likelihood under every state", model.ErrModelFitFailed, t)
		}
		lt.emit[t] = make([]float64, n)
		for j, v := range logB[t] {
			lt.emit[t][j] = math.Exp(v - shift)
		}
		lt.loglik += shift
	}

	for t := 0; t < T; t++ {
		a := make([]float64, n)
		for j := 0; j < n; j++ {
			var acc float64
			if t == 0 {
				acc = p.StartProb[j]
			} else {
				for i := 0; i < n; i++ {
					acc += lt.alpha[t-1][i] * p.TransMat[i][j]
				}
			}
			a[j] = acc * lt.emit[t][j]
		}
		var c float64
		for _, v := range a {
			c += v
		}
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: forward pass vanished at row %d", model.ErrModelFitFailed, t)
		}
		for j := range a {
			a[j] /= c
		}
		lt.alpha[t] = a
		lt.scale[t] = c
		lt.loglik += math.Log(c)
	}

	lt.beta[T-1] = make([]float64, n)
	for j := range lt.beta[T-1] {
		lt.beta[T-1][j] = 1
	}
	for t := T - 2; t >= 0; t-- {
		b := make([]float64, n)
		for i := 0; i < n; i++ {
			var acc float64
			for j := 0; j < n; j++ {
				acc += p.TransMat[i][j] * lt.emit[t+1][j] * lt.beta[t+1][j]
			}
			b[i] = acc / lt.scale[t+1]
		}
		lt.beta[t] = b
	}

	if math.IsNaN(lt.loglik) || math.IsInf(lt.loglik, 0) {
		return nil, fmt.Errorf("%w: non-finite log-likelihood", model.ErrModelFitFailed)
	}
	return lt, nil
}

// posteriors returns γ_t(j), each row normalized to sum to 1.
func (lt *lattice) posteriors() [][]float64 {
	gamma := make([][]float64, len(lt.alpha))
	for t := range lt.alpha {
		row := make([]float64, len(lt.alpha[t]))
		var sum float64
		for j := range row {
			row[j] = lt.alpha[t][j] * lt.beta[t][j]
			sum += row[j]
		}
		if sum > 0 {
			for j := range row {
				row[j] /= sum
			}
		}
		gamma[t] = row
	}
	return gamma
}

// Decode returns the most likely state path (Viterbi), one label per row.
// Ties resolve to the lowest state index.
func Decode(p *Params, x [][]float64) ([]int, error) {
	if err := p.checkInput(x); err != nil {
		return nil, err
	}
	logB, err := p.logEmissions(x)
	if err != nil {
		return nil, err
	}
	return viterbi(p, logB), nil
}

func viterbi(p *Params, logB [][]float64) []int {
	n, T := p.NStates, len(logB)
	logA := make([][]float64, n)
	for i := range logA {
		logA[i] = make([]float64, n)
		for j := range logA[i] {
			logA[i][j] = math.Log(p.TransMat[i][j])
		}
	}

	delta := make([]float64, n)
	next := make([]float64, n)
	back := make([][]int, T)
	for j := 0; j < n; j++ {
		delta[j] = math.Log(p.StartProb[j]) + logB[0][j]
	}
	for t := 1; t < T; t++ {
		back[t] = make([]int, n)
		for j := 0; j < n; j++ {
			best, arg := math.Inf(-1), 0
			for i := 0; i < n; i++ {
				if v := delta[i] + logA[i][j]; v > best {
					best, arg = v, i
				}
			}
			next[j] = best + logB[t][j]
			back[t][j] = arg
		}
		delta, next = next, delta
	}

	path := make([]int, T)
	best := math.Inf(-1)
	for j := 0; j < n; j++ {
		if delta[j] > best {
			best, path[T-1] = delta[j], j
		}
	}
	for t := T - 1; t > 0; t-- {
		path[t-1] = back[t][path[t]]
	}
	return path
}

// Posteriors returns per-row marginal state probabilities.
func Posteriors(p *Params, x [][]float64) ([][]float64, error) {
	lt, err := infer(p, x)
	if err != nil {
		return nil, err
	}
	return lt.posteriors(), nil
}

// Score returns the log-likelihood of x under p.
func Score(p *Params, x [][]float64) (float64, error) {
	lt, err := infer(p, x)
	if err != nil {
		return 0, err
	}
	return lt.loglik, nil
}

func infer(p *Params, x [][]float64) (*lattice, error) {
	if err := p.checkInput(x); err != nil {
		return nil, err
	}
	logB, err := p.logEmissions(x)
	if err != nil {
		return nil, err
	}
	return forwardBackward(p, logB)
}
