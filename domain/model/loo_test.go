package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantLogLikFit builds a fit whose log-likelihood is identical across
// draws, so the importance-sampling estimate is exact.
func constantLogLikFit(name string, nDraws int, perObs []float64) *FitResult {
	ll := make([][]float64, nDraws)
	for s := range ll {
		ll[s] = append([]float64(nil), perObs...)
	}
	return &FitResult{
		Spec:            Spec{Name: name},
		PointwiseLogLik: ll,
	}
}

func TestLoo_ConstantLogLik(t *testing.T) {
	perObs := []float64{-1.2, -0.8, -2.0}
	fit := constantLogLikFit("m1", 50, perObs)

	result, err := Loo(fit)
	require.NoError(t, err)

	// With identical draws the pointwise elpd equals the log-likelihood itself
	assert.Equal(t, "m1", result.Name)
	require.Len(t, result.Pointwise, len(perObs))
	for i, want := range perObs {
		assert.InDelta(t, want, result.Pointwise[i], 1e-9)
	}
	assert.InDelta(t, -4.0, result.ELPD, 1e-9)
	assert.Equal(t, 0, result.Stabilized)
}

func TestLoo_TruncatesExtremeRatios(t *testing.T) {
	// One draw assigns near-zero likelihood to the first observation, giving
	// it an importance ratio far above the rest.
	nDraws := 16
	ll := make([][]float64, nDraws)
	for s := range ll {
		ll[s] = []float64{-0.5, -0.5}
	}
	ll[0][0] = -100

	fit := &FitResult{Spec: Spec{Name: "heavy"}, PointwiseLogLik: ll}
	result, err := Loo(fit)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stabilized)
	for _, v := range result.Pointwise {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestLoo_EmptyFit(t *testing.T) {
	_, err := Loo(&FitResult{Spec: Spec{Name: "empty"}})
	require.Error(t, err)
}

func TestCompare_FavorsHigherELPD(t *testing.T) {
	better := constantLogLikFit("better", 40, []float64{-1.0, -1.0, -1.0, -1.0})
	worse := constantLogLikFit("worse", 40, []float64{-2.0, -2.0, -2.0, -2.0})

	cmp, err := Compare(better, worse)
	require.NoError(t, err)

	assert.Equal(t, "better", cmp.Favored)
	assert.InDelta(t, 4.0, cmp.ELPDDiff, 1e-9)
	// Constant pointwise differences carry no sampling variance
	assert.InDelta(t, 0.0, cmp.SEDiff, 1e-9)

	// Reversed order flips the sign and the favored name
	flipped, err := Compare(worse, better)
	require.NoError(t, err)
	assert.Equal(t, "better", flipped.Favored)
	assert.InDelta(t, -4.0, flipped.ELPDDiff, 1e-9)
}

func TestCompare_MismatchedObservations(t *testing.T) {
	a := constantLogLikFit("a", 10, []float64{-1, -1})
	b := constantLogLikFit("b", 10, []float64{-1, -1, -1})

	_, err := Compare(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observation counts")
}
