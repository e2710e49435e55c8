package app

import (
	"context"
	"path/filepath"

	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
	"gesturelab/internal"
	"gesturelab/ports"
)

// Chart artifact file names, fixed by convention
const (
	ChartConditionalEffects = "conditional_effects.png"
	ChartSlopeDensity       = "posterior_slope_density.png"
	ChartPPCPoisson         = "ppc_poisson.png"
	ChartPPCNegBinomial     = "ppc_negbinomial.png"
)

// ModelService builds model specifications, hands them to the fitting
// engine, and extracts summaries, hypotheses, and comparisons from the
// results. It never mutates a FitResult.
type ModelService struct {
	engine ports.FitEngine
	charts ports.ChartRenderer
	logger *internal.Logger
}

// NewModelService creates a model service over a fitting engine and renderer
func NewModelService(engine ports.FitEngine, charts ports.ChartRenderer, logger *internal.Logger) *ModelService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ModelService{engine: engine, charts: charts, logger: logger}
}

// Fit invokes the engine with a spec. Engine errors surface as-is; there is
// no recovery path here.
func (s *ModelService) Fit(ctx context.Context, spec model.Spec, data *gesture.Dataset) (*model.FitResult, error) {
	s.logger.Info("requesting fit: %s", spec)
	return s.engine.Fit(ctx, spec, data)
}

// ConditionalEffects returns a fit's predicted values per condition level
// with the engine's double-underscore columns renamed to plain names
func (s *ModelService) ConditionalEffects(fit *model.FitResult) ([]model.ConditionalEffect, error) {
	renamed := make([]model.ConditionalEffect, 0, len(fit.Effects))
	for _, eff := range fit.Effects {
		cols, err := model.RenameEffectColumns(eff.Columns)
		if err != nil {
			return nil, err
		}
		renamed = append(renamed, model.ConditionalEffect{Level: eff.Level, Columns: cols})
	}
	return renamed, nil
}

// Hypothesis evaluates an algebraic expression over a fit's coefficients
// against a stated value
func (s *ModelService) Hypothesis(fit *model.FitResult, expression string, value float64) (model.HypothesisResult, error) {
	if err := model.ValidateHypothesis(fit.Draws, expression); err != nil {
		return model.HypothesisResult{}, err
	}
	return model.EvaluateHypothesis(fit.Draws, expression, value)
}

// Compare runs LOO cross-validation on two fits of the same data and
// reports the expected predictive accuracy difference
func (s *ModelService) Compare(a, b *model.FitResult) (model.LooComparison, error) {
	comparison, err := model.Compare(a, b)
	if err != nil {
		return model.LooComparison{}, err
	}
	s.logger.Info("loo comparison: %s favored (elpd diff %.2f, se %.2f)",
		comparison.Favored, comparison.ELPDDiff, comparison.SEDiff)
	return comparison, nil
}

// RenderCharts writes the four fixed-name chart artifacts for a Poisson fit
// and a negative-binomial fit of the same data
func (s *ModelService) RenderCharts(poisson, negbinom *model.FitResult, outDir string) error {
	effects, err := s.ConditionalEffects(poisson)
	if err != nil {
		return err
	}
	if err := s.charts.ConditionalEffects(effects,
		"Predicted gestures by condition", filepath.Join(outDir, ChartConditionalEffects)); err != nil {
		return err
	}

	slope, err := poisson.Draws.Coefficient(model.CoefCondition)
	if err != nil {
		return err
	}
	if err := s.charts.Density(slope,
		"Posterior of the condition effect (log scale)", filepath.Join(outDir, ChartSlopeDensity)); err != nil {
		return err
	}

	if err := s.charts.PredictiveOverlay(poisson.Observed, poisson.Replicated,
		"Posterior predictive check: Poisson", filepath.Join(outDir, ChartPPCPoisson)); err != nil {
		return err
	}
	return s.charts.PredictiveOverlay(negbinom.Observed, negbinom.Replicated,
		"Posterior predictive check: negative binomial", filepath.Join(outDir, ChartPPCNegBinomial))
}
