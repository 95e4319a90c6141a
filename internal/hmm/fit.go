package hmm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"RegimeSentinel/internal/model"
)

// starvedWeight is the posterior mass below which a state keeps its previous
// emission parameters.
const starvedWeight = 1e-10

const kmeansIters = 100

// Fit estimates model parameters from x with Baum-Welch.
//
// Means start from seeded k-means centroids and every covariance from the
// global data covariance. EM stops when the log-likelihood gains less than
// cfg.Tol or after cfg.MaxIters iterations.
func Fit(x [][]float64, cfg Config) (*Params, error) {
	if err := cfg.validate(len(x)); err != nil {
		return nil, err
	}
	k := len(x[0])
	if k == 0 {
		return nil, fmt.Errorf("%w: observation matrix has no columns", model.ErrShapeMismatch)
	}
	for i, row := range x {
		if len(row) != k {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", model.ErrShapeMismatch, i, len(row), k)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite observation at row %d", model.ErrModelFitFailed, i)
			}
		}
	}

	start := time.Now()
	p := initialize(x, cfg)
	prev := math.Inf(-1)
	for iter := 1; iter <= cfg.MaxIters; iter++ {
		logB, err := p.logEmissions(x)
		if err != nil {
			return nil, err
		}
		lt, err := forwardBackward(p, logB)
		if err != nil {
			return nil, err
		}
		maximize(p, x, lt, cfg)

		p.LogLikelihood = lt.loglik
		p.Iterations = iter
		delta := lt.loglik - prev
		log.Debug().Int("iter", iter).Float64("loglik", lt.loglik).Float64("delta", delta).Msg("em iteration")
		if delta < cfg.Tol {
			p.Converged = true
			break
		}
		prev = lt.loglik
	}

	// the last M-step must still leave a usable model
	if _, err := p.emissions(); err != nil {
		return nil, err
	}
	p.FittedAt = time.Now()

	ev := log.Info()
	if !p.Converged {
		ev = log.Warn()
	}
	ev.Int("states", p.NStates).
		Str("covariance", string(p.Covariance)).
		Int("iterations", p.Iterations).
		Bool("converged", p.Converged).
		Float64("loglik", p.LogLikelihood).
		Dur("elapsed", time.Since(start)).
		Msg("hmm fitted")
	return p, nil
}

func initialize(x [][]float64, cfg Config) *Params {
	n, k := cfg.NStates, len(x[0])
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	p := &Params{
		NStates:    n,
		NFeatures:  k,
		Covariance: cfg.Covariance,
		StartProb:  make([]float64, n),
		TransMat:   make([][]float64, n),
		Means:      kmeans(x, n, rng),
		Covars:     make([][][]float64, n),
	}
	for i := 0; i < n; i++ {
		p.StartProb[i] = 1 / float64(n)
		p.TransMat[i] = make([]float64, n)
		for j := range p.TransMat[i] {
			p.TransMat[i][j] = 1 / float64(n)
		}
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, mat.NewDense(len(x), k, flatten(x)), nil)
	global := make([][]float64, k)
	for i := 0; i < k; i++ {
		global[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			if cfg.Covariance == Full || i == j {
				global[i][j] = cov.At(i, j)
			}
		}
		global[i][i] += cfg.MinCovar
	}
	for s := 0; s < n; s++ {
		p.Covars[s] = copyMatrix(global)
	}
	return p
}

// kmeans runs Lloyd's algorithm from n distinct seeded rows. An empty cluster
// keeps its previous centroid.
func kmeans(x [][]float64, n int, rng *rand.Rand) [][]float64 {
	k := len(x[0])
	centers := make([][]float64, n)
	for i, idx := range rng.Perm(len(x))[:n] {
		centers[i] = append([]float64(nil), x[idx]...)
	}

	assign := make([]int, len(x))
	for i := range assign {
		assign[i] = -1
	}
	for iter := 0; iter < kmeansIters; iter++ {
		changed := false
		for t, row := range x {
			best, arg := math.Inf(1), 0
			for c, center := range centers {
				if d := floats.Distance(row, center, 2); d < best {
					best, arg = d, c
				}
			}
			if assign[t] != arg {
				assign[t] = arg
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, n)
		counts := make([]int, n)
		for c := range sums {
			sums[c] = make([]float64, k)
		}
		for t, row := range x {
			floats.Add(sums[assign[t]], row)
			counts[assign[t]]++
		}
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centers[c] = sums[c]
		}
	}
	return centers
}

// maximize re-estimates p in place from the posteriors in lt.
func maximize(p *Params, x [][]float64, lt *lattice, cfg Config) {
	n, k, T := p.NStates, p.NFeatures, len(x)
	gamma := lt.posteriors()

	copy(p.StartProb, gamma[0])

	xi := make([][]float64, n)
	for i := range xi {
		xi[i] = make([]float64, n)
	}
	for t := 0; t < T-1; t++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				xi[i][j] += lt.alpha[t][i] * p.TransMat[i][j] * lt.emit[t+1][j] * lt.beta[t+1][j] / lt.scale[t+1]
			}
		}
	}
	for i := 0; i < n; i++ {
		sum := floats.Sum(xi[i])
		if sum <= 0 {
			continue
		}
		for j := 0; j < n; j++ {
			p.TransMat[i][j] = xi[i][j] / sum
		}
	}

	for s := 0; s < n; s++ {
		var w float64
		mean := make([]float64, k)
		for t, row := range x {
			w += gamma[t][s]
			floats.AddScaled(mean, gamma[t][s], row)
		}
		if w < starvedWeight {
			continue
		}
		floats.Scale(1/w, mean)

		cov := make([][]float64, k)
		for i := range cov {
			cov[i] = make([]float64, k)
		}
		for t, row := range x {
			g := gamma[t][s]
			for i := 0; i < k; i++ {
				di := row[i] - mean[i]
				for j := 0; j < k; j++ {
					if cfg.Covariance == Diag && i != j {
						continue
					}
					cov[i][j] += g * di * (row[j] - mean[j])
				}
			}
		}
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				cov[i][j] /= w
			}
			cov[i][i] += cfg.MinCovar
		}
		p.Means[s] = mean
		p.Covars[s] = cov
	}
}

func flatten(x [][]float64) []float64 {
	out := make([]float64, 0, len(x)*len(x[0]))
	for _, row := range x {
		out = append(out, row...)
	}
	return out
}
