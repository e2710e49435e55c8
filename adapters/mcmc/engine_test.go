package mcmc

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
	"gesturelab/internal/testkit"
)

// shortControls keeps engine tests fast while leaving enough draws for the
// diagnostics to be meaningful
func shortControls(seed uint64) model.SamplerControls {
	return model.SamplerControls{
		TargetAccept:  0.8,
		MaxScaleDepth: 10,
		Warmup:        200,
		Iterations:    500,
		Chains:        2,
		Cores:         2,
		Seed:          seed,
	}
}

func TestEngine_FitPoissonOffset(t *testing.T) {
	data := testkit.SyntheticPaired(10, model.FamilyPoisson, 7)
	spec := model.NewSpec("m_offset", model.FamilyPoisson, model.RandomIntercept, model.ExposureLogOffset)
	spec.Controls = shortControls(42)

	fit, err := NewEngine(nil, nil).Fit(context.Background(), spec, data)
	require.NoError(t, err)

	// 2 chains x 300 retained iterations
	assert.Equal(t, 600, fit.Draws.Len())
	assert.Len(t, fit.AcceptRates, 2)
	assert.False(t, fit.ID.String() == "")

	for _, name := range []string{model.CoefIntercept, model.CoefCondition, model.CoefSDIntercept} {
		samples, err := fit.Draws.Coefficient(name)
		require.NoError(t, err, "missing coefficient %s", name)
		assert.Len(t, samples, 600)

		summary, err := fit.Summary(name)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(summary.Estimate))
		assert.False(t, math.IsNaN(summary.EstError))
		assert.LessOrEqual(t, summary.Lower, summary.Upper)
	}

	// Scale parameters are reported on the natural scale
	sdSummary, err := fit.Summary(model.CoefSDIntercept)
	require.NoError(t, err)
	assert.Greater(t, sdSummary.Estimate, 0.0)

	// One conditional effect per condition level, raw columns
	require.Len(t, fit.Effects, 2)
	for _, eff := range fit.Effects {
		assert.Contains(t, []string{"friend", "professor"}, eff.Level)
		assert.Contains(t, eff.Columns, model.RawColEstimate)
		assert.Contains(t, eff.Columns, model.RawColLower)
		assert.Greater(t, eff.Columns[model.RawColEstimate], 0.0)
	}

	// Pointwise log-likelihood covers every draw and observation
	require.Len(t, fit.PointwiseLogLik, 600)
	assert.Len(t, fit.PointwiseLogLik[0], data.Len())
	assert.Len(t, fit.Observed, data.Len())
	assert.NotEmpty(t, fit.Replicated)
	assert.Len(t, fit.Replicated[0], data.Len())
}

func TestEngine_FitNegBinomialRate(t *testing.T) {
	data := testkit.SyntheticPaired(10, model.FamilyNegBinomial, 11)
	spec := model.NewSpec("m_rate", model.FamilyNegBinomial, model.RandomIntercept, model.ExposureRate)
	spec.Controls = shortControls(42)

	fit, err := NewEngine(nil, nil).Fit(context.Background(), spec, data)
	require.NoError(t, err)

	shape, err := fit.Summary(model.CoefShape)
	require.NoError(t, err)
	assert.Greater(t, shape.Estimate, 0.0)

	// Replicated counts are non-negative integers
	for _, v := range fit.Replicated[0] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Equal(t, math.Trunc(v), v)
	}
}

func TestEngine_SameSeedSameDraws(t *testing.T) {
	data := testkit.SyntheticPaired(6, model.FamilyPoisson, 3)
	spec := model.NewSpec("m_repro", model.FamilyPoisson, model.RandomNone, model.ExposureNone)
	spec.Controls = shortControls(99)

	first, err := NewEngine(nil, nil).Fit(context.Background(), spec, data)
	require.NoError(t, err)
	second, err := NewEngine(nil, nil).Fit(context.Background(), spec, data)
	require.NoError(t, err)

	a, err := first.Draws.Coefficient(model.CoefCondition)
	require.NoError(t, err)
	b, err := second.Draws.Coefficient(model.CoefCondition)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEngine_RecoversNegativeEffect(t *testing.T) {
	if testing.Short() {
		t.Skip("sampling test")
	}

	// The synthetic generator applies a -0.4 condition effect on the log scale
	data := testkit.SyntheticPaired(40, model.FamilyPoisson, 5)
	spec := model.NewSpec("m_recover", model.FamilyPoisson, model.RandomIntercept, model.ExposureLogOffset)
	spec.Controls = model.SamplerControls{
		TargetAccept:  0.8,
		MaxScaleDepth: 10,
		Warmup:        500,
		Iterations:    1500,
		Chains:        2,
		Cores:         2,
		Seed:          17,
	}

	fit, err := NewEngine(nil, nil).Fit(context.Background(), spec, data)
	require.NoError(t, err)

	slope, err := fit.Summary(model.CoefCondition)
	require.NoError(t, err)
	assert.Less(t, slope.Estimate, 0.0)
	assert.InDelta(t, -0.4, slope.Estimate, 0.35)
}

func TestEngine_CancelledContext(t *testing.T) {
	data := testkit.SyntheticPaired(6, model.FamilyPoisson, 3)
	spec := model.NewSpec("m_cancel", model.FamilyPoisson, model.RandomNone, model.ExposureNone)
	spec.Controls = shortControls(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(nil, nil).Fit(ctx, spec, data)
	require.Error(t, err)
}

func TestEngine_RejectsBadSpecs(t *testing.T) {
	data := testkit.SyntheticPaired(6, model.FamilyPoisson, 3)

	tests := []struct {
		name string
		spec model.Spec
	}{
		{
			name: "rate exposure on a Poisson model",
			spec: model.NewSpec("bad", model.FamilyPoisson, model.RandomNone, model.ExposureRate),
		},
		{
			name: "offset exposure on a negative-binomial model",
			spec: model.NewSpec("bad", model.FamilyNegBinomial, model.RandomNone, model.ExposureLogOffset),
		},
		{
			name: "unknown family",
			spec: model.NewSpec("bad", model.Family("gaussian"), model.RandomNone, model.ExposureNone),
		},
		{
			name: "unknown exposure",
			spec: model.NewSpec("bad", model.FamilyPoisson, model.RandomNone, model.Exposure("sqrt")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(nil, nil).Fit(context.Background(), tt.spec, data)
			require.Error(t, err)
		})
	}
}

func TestEngine_RandomEffectsRequirePairing(t *testing.T) {
	unpaired := &gesture.Dataset{Rows: []gesture.Observation{
		{Participant: "P1", Condition: gesture.ConditionFriend, DurationSec: 60, Gestures: 5},
		{Participant: "P1", Condition: gesture.ConditionProfessor, DurationSec: 60, Gestures: 3},
		{Participant: "P2", Condition: gesture.ConditionFriend, DurationSec: 30, Gestures: 2},
	}}

	spec := model.NewSpec("m", model.FamilyPoisson, model.RandomIntercept, model.ExposureNone)
	spec.Controls = shortControls(1)

	_, err := NewEngine(nil, nil).Fit(context.Background(), spec, unpaired)
	require.Error(t, err)

	// The same data fits fine without random effects
	fixed := model.NewSpec("m", model.FamilyPoisson, model.RandomNone, model.ExposureNone)
	fixed.Controls = shortControls(1)
	_, err = NewEngine(nil, nil).Fit(context.Background(), fixed, unpaired)
	require.NoError(t, err)
}

func TestResolveControls(t *testing.T) {
	// A zero value picks up every default
	ctrl, err := resolveControls(model.SamplerControls{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultControls().TargetAccept, ctrl.TargetAccept)
	assert.Equal(t, model.DefaultControls().Chains, ctrl.Chains)
	assert.LessOrEqual(t, ctrl.Cores, ctrl.Chains)

	// Workers never exceed chains
	ctrl, err = resolveControls(model.SamplerControls{
		TargetAccept: 0.8, MaxScaleDepth: 10, Warmup: 10, Iterations: 20, Chains: 2, Cores: 16, Seed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ctrl.Cores)

	// Out-of-range acceptance target
	_, err = resolveControls(model.SamplerControls{
		TargetAccept: 1.5, MaxScaleDepth: 10, Warmup: 10, Iterations: 20, Chains: 2, Seed: 1,
	})
	require.Error(t, err)

	// Warmup must leave retained iterations
	_, err = resolveControls(model.SamplerControls{
		TargetAccept: 0.8, MaxScaleDepth: 10, Warmup: 20, Iterations: 20, Chains: 2, Seed: 1,
	})
	require.Error(t, err)
}

func TestConditionalEffects_NoDraws(t *testing.T) {
	data := testkit.ReferenceDataset()
	spec := model.NewSpec("m", model.FamilyPoisson, model.RandomNone, model.ExposureNone)

	d, err := buildDesign(spec, data)
	require.NoError(t, err)

	_, err = conditionalEffects(nil, newLayout(spec, d), spec, d)
	require.Error(t, err)
}

func TestBuildDesign_BaselineAndOffset(t *testing.T) {
	data := testkit.ReferenceDataset()
	spec := model.NewSpec("m", model.FamilyPoisson, model.RandomIntercept, model.ExposureLogOffset)

	d, err := buildDesign(spec, data)
	require.NoError(t, err)

	// First-seen condition is the baseline
	assert.Equal(t, []string{"friend", "professor"}, d.levels)
	assert.Equal(t, []float64{0, 1, 0, 1}, d.x)
	assert.Equal(t, 2, d.nPart)
	assert.InDelta(t, 60.0, d.refDur, 1e-9)
	for _, off := range d.offset {
		assert.InDelta(t, math.Log(60), off, 1e-9)
	}

	// Without exposure the offset stays at zero
	plain := model.NewSpec("m", model.FamilyPoisson, model.RandomNone, model.ExposureNone)
	d, err = buildDesign(plain, data)
	require.NoError(t, err)
	for _, off := range d.offset {
		assert.Zero(t, off)
	}
}
