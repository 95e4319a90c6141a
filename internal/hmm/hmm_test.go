package hmm

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/model"
)

// twoRegimes returns 100 rows around 0 followed by 100 rows around 5.
func twoRegimes() [][]float64 {
	rng := rand.New(rand.NewPCG(7, 11))
	x := make([][]float64, 0, 200)
	for i := 0; i < 200; i++ {
		center := 0.0
		if i >= 100 {
			center = 5
		}
		x = append(x, []float64{center + 0.1*rng.NormFloat64(), center + 0.1*rng.NormFloat64()})
	}
	return x
}

func handBuilt() *Params {
	return &Params{
		NStates:    2,
		NFeatures:  1,
		Covariance: Full,
		StartProb:  []float64{0.5, 0.5},
		TransMat:   [][]float64{{0.9, 0.1}, {0.1, 0.9}},
		Means:      [][]float64{{0}, {10}},
		Covars:     [][][]float64{{{1}}, {{1}}},
	}
}

func TestViterbi_HandBuiltModel(t *testing.T) {
	x := [][]float64{{0}, {0.1}, {10}, {9.8}, {0.2}}
	states, err := Decode(handBuilt(), x)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 0}, states)
}

func TestViterbi_StickyTransitionsSmoothOutlier(t *testing.T) {
	p := handBuilt()
	p.Means = [][]float64{{0}, {2}}
	p.TransMat = [][]float64{{0.999, 0.001}, {0.001, 0.999}}
	// a single moderately shifted row is not worth two switches
	x := [][]float64{{0}, {0}, {1.2}, {0}, {0}}
	states, err := Decode(p, x)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, states)
}

func argmaxRows(post [][]float64) []int {
	out := make([]int, len(post))
	for t, row := range post {
		for j, v := range row {
			if v > row[out[t]] {
				out[t] = j
			}
		}
	}
	return out
}

func TestDecode_PathDiffersFromMarginalArgmax(t *testing.T) {
	p := handBuilt()
	p.Means = [][]float64{{0}, {1}}
	p.TransMat = [][]float64{{0.704, 0.296}, {0.296, 0.704}}
	x := [][]float64{{1.0020}, {1.2772}, {0.7083}, {-0.2165}}

	states, err := Decode(p, x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 1}, states)

	// the last row alone leans to state 0, but the best joint path stays in 1
	post, err := Posteriors(p, x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 0}, argmaxRows(post))
}

func TestFit_SeparatesRegimes(t *testing.T) {
	for _, cov := range []CovarianceType{Full, Diag} {
		t.Run(string(cov), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.NStates = 2
			cfg.Covariance = cov
			x := twoRegimes()

			p, err := Fit(x, cfg)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(p.LogLikelihood))
			assert.GreaterOrEqual(t, p.Iterations, 1)

			states, err := Decode(p, x)
			require.NoError(t, err)
			require.Len(t, states, len(x))
			for i := 1; i < 100; i++ {
				assert.Equal(t, states[0], states[i])
			}
			for i := 101; i < 200; i++ {
				assert.Equal(t, states[100], states[i])
			}
			assert.NotEqual(t, states[0], states[100])
		})
	}
}

func TestFit_DiagStoresZeroOffDiagonals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NStates = 2
	cfg.Covariance = Diag
	p, err := Fit(twoRegimes(), cfg)
	require.NoError(t, err)
	for _, c := range p.Covars {
		assert.Equal(t, 0.0, c[0][1])
		assert.Equal(t, 0.0, c[1][0])
		assert.Greater(t, c[0][0], 0.0)
	}
}

func TestFit_InvariantsHold(t *testing.T) {
	cfg := DefaultConfig()
	x := twoRegimes()
	p, err := Fit(x, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, sum(p.StartProb), 1e-9)
	for _, row := range p.TransMat {
		assert.InDelta(t, 1.0, sum(row), 1e-9)
	}

	states, err := Decode(p, x)
	require.NoError(t, err)
	require.Len(t, states, len(x))
	for _, s := range states {
		assert.True(t, s >= 0 && s < cfg.NStates)
	}

	post, err := Posteriors(p, x)
	require.NoError(t, err)
	require.Len(t, post, len(x))
	for _, row := range post {
		assert.InDelta(t, 1.0, sum(row), 1e-9)
	}
}

func TestFit_DeterministicForSeed(t *testing.T) {
	cfg := DefaultConfig()
	x := twoRegimes()
	a, err := Fit(x, cfg)
	require.NoError(t, err)
	b, err := Fit(x, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Means, b.Means)
	assert.Equal(t, a.TransMat, b.TransMat)
	assert.Equal(t, a.LogLikelihood, b.LogLikelihood)
}

func TestDecode_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	x := twoRegimes()
	p, err := Fit(x, cfg)
	require.NoError(t, err)
	first, err := Decode(p, x)
	require.NoError(t, err)
	second, err := Decode(p, x)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFit_ConstantDataIsRegularized(t *testing.T) {
	x := make([][]float64, 30)
	for i := range x {
		x[i] = []float64{0, 0, 0}
	}
	p, err := Fit(x, DefaultConfig())
	require.NoError(t, err)
	states, err := Decode(p, x)
	require.NoError(t, err)
	assert.Len(t, states, 30)
}

func TestScore_PrefersMatchingModel(t *testing.T) {
	x := [][]float64{{0}, {0.1}, {-0.2}}
	good, err := Score(handBuilt(), x)
	require.NoError(t, err)

	shifted := handBuilt()
	shifted.Means = [][]float64{{20}, {30}}
	bad, err := Score(shifted, x)
	require.NoError(t, err)
	assert.Greater(t, good, bad)
}

func TestFit_Errors(t *testing.T) {
	x := twoRegimes()
	tests := []struct {
		name   string
		x      [][]float64
		mutate func(*Config)
		want   error
	}{
		{"zero states", x, func(c *Config) { c.NStates = 0 }, model.ErrModelFitFailed},
		{"zero iterations", x, func(c *Config) { c.MaxIters = 0 }, model.ErrModelFitFailed},
		{"fewer rows than states", x[:2], func(c *Config) { c.NStates = 3 }, model.ErrModelFitFailed},
		{"ragged", [][]float64{{1, 2}, {3}, {4, 5}}, func(c *Config) { c.NStates = 1 }, model.ErrShapeMismatch},
		{"non-finite", [][]float64{{1}, {math.NaN()}, {2}}, func(c *Config) { c.NStates = 1 }, model.ErrModelFitFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := Fit(tc.x, cfg)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecode_ShapeMismatch(t *testing.T) {
	_, err := Decode(handBuilt(), [][]float64{{1, 2}})
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = Decode(handBuilt(), nil)
	assert.ErrorIs(t, err, model.ErrDataInsufficient)
}

func TestCheck_RejectsBadCovariance(t *testing.T) {
	p := handBuilt()
	require.NoError(t, p.Check())

	p.Covars[1] = [][]float64{{-1}}
	assert.ErrorIs(t, p.Check(), model.ErrModelFitFailed)

	p = handBuilt()
	p.TransMat = p.TransMat[:1]
	assert.ErrorIs(t, p.Check(), model.ErrShapeMismatch)
}

func TestParseCovariance(t *testing.T) {
	c, err := ParseCovariance("")
	require.NoError(t, err)
	assert.Equal(t, Full, c)

	c, err = ParseCovariance("diag")
	require.NoError(t, err)
	assert.Equal(t, Diag, c)

	_, err = ParseCovariance("spherical")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
