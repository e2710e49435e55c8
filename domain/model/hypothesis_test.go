package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDraws() Draws {
	// Deterministic fake posterior: intercept around 1, slope around -0.5
	n := 400
	intercept := make([]float64, n)
	slope := make([]float64, n)
	for i := 0; i < n; i++ {
		// Spread draws symmetrically without randomness
		offset := (float64(i) - float64(n-1)/2) / float64(n)
		intercept[i] = 1.0 + offset
		slope[i] = -0.5 + offset/2
	}
	return Draws{
		CoefIntercept: intercept,
		CoefCondition: slope,
	}
}

func TestEvaluateHypothesis_SumExpression(t *testing.T) {
	draws := testDraws()

	result, err := EvaluateHypothesis(draws, CoefIntercept+" + "+CoefCondition, 0)
	require.NoError(t, err)

	// Mean of intercept is 1.0, mean of slope is -0.5
	assert.InDelta(t, 0.5, result.Estimate, 0.01)
	assert.Less(t, result.Lower, result.Estimate)
	assert.Greater(t, result.Upper, result.Estimate)
	// Every draw of the sum is well above zero
	assert.Equal(t, 1.0, result.PosteriorProb)
}

func TestEvaluateHypothesis_ExpAndScale(t *testing.T) {
	draws := Draws{
		CoefIntercept: {0, 0, 0, 0},
		CoefCondition: {math.Log(2), math.Log(2), math.Log(2), math.Log(2)},
	}

	// exp(0 + log(2)*1) = 2 for every draw
	result, err := EvaluateHypothesis(draws, "exp("+CoefIntercept+" + "+CoefCondition+"*1)", 2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, result.Estimate, 1e-9)
	// No draw is strictly greater than the stated value
	assert.Equal(t, 0.0, result.PosteriorProb)
}

func TestEvaluateHypothesis_MonotonicInValue(t *testing.T) {
	draws := testDraws()
	expr := "exp(" + CoefIntercept + " + " + CoefCondition + ")"

	small, err := EvaluateHypothesis(draws, expr, 0)
	require.NoError(t, err)
	large, err := EvaluateHypothesis(draws, expr, 100)
	require.NoError(t, err)

	// Testing against zero and against a huge value cannot both look likely
	assert.Equal(t, 1.0, small.PosteriorProb)
	assert.Equal(t, 0.0, large.PosteriorProb)
	assert.GreaterOrEqual(t, small.PosteriorProb, large.PosteriorProb)
}

func TestEvaluateHypothesis_UnknownCoefficient(t *testing.T) {
	draws := testDraws()

	_, err := EvaluateHypothesis(draws, "b_ghost + 1", 0)
	require.Error(t, err)
}

func TestEvaluateHypothesis_MalformedExpression(t *testing.T) {
	draws := testDraws()

	for _, expr := range []string{"", "1 +", "exp(", "foo(1)", "1 ** 2", ")("} {
		_, err := EvaluateHypothesis(draws, expr, 0)
		assert.Error(t, err, "expression %q should not parse", expr)
	}
}

func TestValidateHypothesis(t *testing.T) {
	draws := testDraws()

	require.NoError(t, ValidateHypothesis(draws, CoefIntercept+" * 2"))

	err := ValidateHypothesis(draws, "b_ghost + "+CoefIntercept)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b_ghost")
}

func TestValidateHypothesis_MissingNamesSorted(t *testing.T) {
	draws := testDraws()

	err := ValidateHypothesis(draws, "b_zebra + b_alpha + b_middle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b_alpha, b_middle, b_zebra")
}

func TestEvaluateHypothesis_Precedence(t *testing.T) {
	draws := Draws{
		CoefIntercept: {3},
		CoefCondition: {2},
	}

	// 3 + 2*2 = 7, not 10
	result, err := EvaluateHypothesis(draws, CoefIntercept+" + "+CoefCondition+"*2", 0)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, result.Estimate, 1e-12)

	// -3 + 2 = -1
	result, err = EvaluateHypothesis(draws, "-"+CoefIntercept+" + "+CoefCondition, 0)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, result.Estimate, 1e-12)
}
