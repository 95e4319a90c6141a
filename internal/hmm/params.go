package hmm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"RegimeSentinel/internal/model"
)

// Params is a fitted model. Diagonal models still store full K×K covariance
// matrices with zero off-diagonal entries.
type Params struct {
	NStates    int            `json:"n_states"`
	NFeatures  int            `json:"n_features"`
	Covariance CovarianceType `json:"covariance"`
	StartProb  []float64      `json:"start_prob"`
	TransMat   [][]float64    `json:"trans_mat"`
	Means      [][]float64    `json:"means"`
	Covars     [][][]float64  `json:"covars"`

	LogLikelihood float64   `json:"log_likelihood"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
	FittedAt      time.Time `json:"fitted_at"`
}

// Check verifies internal consistency, e.g. after loading from disk.
func (p *Params) Check() error {
	n, k := p.NStates, p.NFeatures
	if n < 1 || k < 1 {
		return fmt.Errorf("%w: invalid dimensions %d states × %d features", model.ErrShapeMismatch, n, k)
	}
	if len(p.StartProb) != n || len(p.TransMat) != n || len(p.Means) != n || len(p.Covars) != n {
		return fmt.Errorf("%w: parameter arrays do not match %d states", model.ErrShapeMismatch, n)
	}
	for i := 0; i < n; i++ {
		if len(p.TransMat[i]) != n {
			return fmt.Errorf("%w: transition row %d has %d entries", model.ErrShapeMismatch, i, len(p.TransMat[i]))
		}
		if len(p.Means[i]) != k || len(p.Covars[i]) != k {
			return fmt.Errorf("%w: state %d parameters do not match %d features", model.ErrShapeMismatch, i, k)
		}
		for _, row := range p.Covars[i] {
			if len(row) != k {
				return fmt.Errorf("%w: state %d covariance is not %d×%d", model.ErrShapeMismatch, i, k, k)
			}
		}
	}
	_, err := p.emissions()
	return err
}

func (p *Params) checkInput(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: empty observation matrix", model.ErrDataInsufficient)
	}
	for i, row := range x {
		if len(row) != p.NFeatures {
			return fmt.Errorf("%w: row %d has %d columns, model expects %d", model.ErrShapeMismatch, i, len(row), p.NFeatures)
		}
	}
	return nil
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}

// gaussian caches what the log density needs for one state.
type gaussian struct {
	mean    []float64
	chol    mat.Cholesky
	logNorm float64
	diff    *mat.VecDense
	solved  *mat.VecDense
}

func (g *gaussian) logPDF(x []float64) float64 {
	for j := range x {
		g.diff.SetVec(j, x[j]-g.mean[j])
	}
	if err := g.chol.SolveVecTo(g.solved, g.diff); err != nil {
		// an ill-conditioned solve still yields a usable result
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return math.NaN()
		}
	}
	return g.logNorm - 0.5*mat.Dot(g.diff, g.solved)
}

// emissions factorizes every state covariance. A matrix that is not positive
// definite fails the model.
func (p *Params) emissions() ([]*gaussian, error) {
	k := p.NFeatures
	out := make([]*gaussian, p.NStates)
	for s := 0; s < p.NStates; s++ {
		sym := mat.NewSymDense(k, nil)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				v := p.Covars[s][i][j]
				if p.Covariance == Diag && i != j {
					v = 0
				}
				sym.SetSym(i, j, v)
			}
		}
		g := &gaussian{
			mean:   p.Means[s],
			diff:   mat.NewVecDense(k, nil),
			solved: mat.NewVecDense(k, nil),
		}
		if ok := g.chol.Factorize(sym); !ok {
			return nil, fmt.Errorf("%w: covariance of state %d is not positive definite", model.ErrModelFitFailed, s)
		}
		g.logNorm = -0.5 * (float64(k)*math.Log(2*math.Pi) + g.chol.LogDet())
		out[s] = g
	}
	return out, nil
}

// logEmissions returns log b_j(x_t) for every row and state.
func (p *Params) logEmissions(x [][]float64) ([][]float64, error) {
	gs, err := p.emissions()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(x))
	for t, row := range x {
		out[t] = make([]float64, p.NStates)
		for s, g := range gs {
			v := g.logPDF(row)
			if math.IsNaN(v) {
				return nil, fmt.Errorf("%w: emission density undefined at row %d", model.ErrModelFitFailed, t)
			}
			out[t][s] = v
		}
	}
	return out, nil
}
