package mcmc

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	mstats "github.com/montanaflynn/stats"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gesturelab/domain/core"
	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
	"gesturelab/internal"
	"gesturelab/internal/errors"
	"gesturelab/ports"
)

const maxReplicates = 100

// Engine implements ports.FitEngine with an adaptive random-walk
// Metropolis sampler over the model's log posterior. Chains run in
// parallel; everything downstream of Fit treats the result as opaque.
type Engine struct {
	logger *internal.Logger
	rng    ports.RNGPort
}

// NewEngine creates a fitting engine
func NewEngine(logger *internal.Logger, rng ports.RNGPort) *Engine {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if rng == nil {
		rng = NewStreamFactory()
	}
	return &Engine{logger: logger, rng: rng}
}

// Fit samples the posterior of spec given data
func (e *Engine) Fit(ctx context.Context, spec model.Spec, data *gesture.Dataset) (*model.FitResult, error) {
	start := time.Now()

	ctrl, err := resolveControls(spec.Controls)
	if err != nil {
		return nil, err
	}
	spec.Controls = ctrl

	d, err := buildDesign(spec, data)
	if err != nil {
		return nil, err
	}
	l := newLayout(spec, d)
	lp := logPosterior(spec, l, d)
	init := initialValues(l, d)

	e.logger.Info("fitting %s: %s (%d chains x %d iterations, %d warmup, seed %d)",
		spec.Name, spec, ctrl.Chains, ctrl.Iterations, ctrl.Warmup, ctrl.Seed)

	chainDraws := make([][][]float64, ctrl.Chains)
	acceptRates := make([]float64, ctrl.Chains)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ctrl.Cores)
	for c := 0; c < ctrl.Chains; c++ {
		g.Go(func() error {
			stream, err := e.rng.SeededStream(gctx, fmt.Sprintf("%s/chain-%d", spec.Name, c), ctrl.Seed)
			if err != nil {
				return err
			}
			draws, rate, err := runChain(gctx, lp, init, ctrl, stream)
			if err != nil {
				return errors.EngineError(fmt.Sprintf("chain %d failed", c), err)
			}
			chainDraws[c] = draws
			acceptRates[c] = rate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pooled := poolDraws(chainDraws)
	exported := exportedParams(l)

	draws := make(model.Draws, len(exported))
	summaries := make([]model.CoefficientSummary, 0, len(exported))
	for _, p := range exported {
		series := make([]float64, len(pooled))
		perChain := make([][]float64, len(chainDraws))
		offset := 0
		for c, chain := range chainDraws {
			perChain[c] = make([]float64, len(chain))
			for i, theta := range chain {
				v := p.transform(theta[p.idx])
				perChain[c][i] = v
				series[offset+i] = v
			}
			offset += len(chain)
		}
		draws[p.name] = series

		summary, err := summarize(p.name, series, perChain)
		if err != nil {
			return nil, errors.EngineError(fmt.Sprintf("summarizing %s", p.name), err)
		}
		summaries = append(summaries, summary)
	}

	ppcStream, err := e.rng.SeededStream(ctx, spec.Name+"/ppc", ctrl.Seed)
	if err != nil {
		return nil, err
	}

	effects, err := conditionalEffects(pooled, l, spec, d)
	if err != nil {
		return nil, errors.EngineError("summarizing conditional effects", err)
	}

	result := &model.FitResult{
		ID:              core.FitID(core.NewID()),
		Spec:            spec,
		Draws:           draws,
		Summaries:       summaries,
		Effects:         effects,
		PointwiseLogLik: pointwiseLogLik(pooled, l, d),
		Observed:        append([]float64(nil), d.y...),
		Replicated:      replicate(pooled, l, d, ppcStream),
		AcceptRates:     acceptRates,
		Warnings:        diagnose(acceptRates, ctrl, summaries),
		Elapsed:         time.Since(start),
		FittedAt:        core.Now(),
	}

	for _, w := range result.Warnings {
		e.logger.Warn("%s: %s", spec.Name, w)
	}
	e.logger.Info("fitted %s in %s (%d retained draws)", spec.Name, result.Elapsed, draws.Len())

	return result, nil
}

// resolveControls fills defaults and rejects unusable sampler settings
func resolveControls(ctrl model.SamplerControls) (model.SamplerControls, error) {
	if ctrl == (model.SamplerControls{}) {
		ctrl = model.DefaultControls()
	}
	if ctrl.Chains < 1 {
		ctrl.Chains = 1
	}
	if ctrl.Cores < 1 {
		ctrl.Cores = runtime.NumCPU()
	}
	if ctrl.Cores > ctrl.Chains {
		ctrl.Cores = ctrl.Chains
	}
	if ctrl.MaxScaleDepth < 1 {
		ctrl.MaxScaleDepth = model.DefaultControls().MaxScaleDepth
	}
	if ctrl.TargetAccept <= 0 || ctrl.TargetAccept >= 1 {
		return ctrl, errors.EngineError(fmt.Sprintf(
			"target_accept must be in (0, 1), got %.3f", ctrl.TargetAccept), nil)
	}
	if ctrl.Warmup < 0 || ctrl.Iterations <= ctrl.Warmup {
		return ctrl, errors.EngineError(fmt.Sprintf(
			"iterations (%d) must exceed warmup (%d)", ctrl.Iterations, ctrl.Warmup), nil)
	}
	return ctrl, nil
}

// initialValues starts the intercept near the observed mean rate and
// everything else at neutral values
func initialValues(l layout, d *design) []float64 {
	init := make([]float64, l.dim())

	meanY := stat.Mean(d.y, nil)
	meanOffset := stat.Mean(d.offset, nil)
	init[l.b0()] = math.Log(meanY+0.5) - meanOffset

	logHalf := math.Log(0.5)
	if l.hasIntercepts() {
		init[l.logSigmaU()] = logHalf
	}
	if l.hasSlopes() {
		init[l.logSigmaW()] = logHalf
	}
	// NB shape starts at 1 (log 0), which runChain's zero value already is
	return init
}

// exportedParam maps one sampler parameter to a reported coefficient
type exportedParam struct {
	name      string
	idx       int
	transform func(float64) float64
}

func identity(v float64) float64 { return v }

func exportedParams(l layout) []exportedParam {
	params := []exportedParam{
		{name: model.CoefIntercept, idx: l.b0(), transform: identity},
		{name: model.CoefCondition, idx: l.b1(), transform: identity},
	}
	if l.hasIntercepts() {
		params = append(params, exportedParam{name: model.CoefSDIntercept, idx: l.logSigmaU(), transform: math.Exp})
	}
	if l.hasSlopes() {
		params = append(params, exportedParam{name: model.CoefSDSlope, idx: l.logSigmaW(), transform: math.Exp})
	}
	if l.hasShape() {
		params = append(params, exportedParam{name: model.CoefShape, idx: l.logShape(), transform: math.Exp})
	}
	return params
}

func poolDraws(chainDraws [][][]float64) [][]float64 {
	var pooled [][]float64
	for _, chain := range chainDraws {
		pooled = append(pooled, chain...)
	}
	return pooled
}

func summarize(name string, series []float64, perChain [][]float64) (model.CoefficientSummary, error) {
	estimate, err := mstats.Mean(series)
	if err != nil {
		return model.CoefficientSummary{}, err
	}
	sd, err := mstats.StandardDeviationSample(series)
	if err != nil {
		return model.CoefficientSummary{}, err
	}
	lower, err := mstats.PercentileNearestRank(series, 2.5)
	if err != nil {
		return model.CoefficientSummary{}, err
	}
	upper, err := mstats.PercentileNearestRank(series, 97.5)
	if err != nil {
		return model.CoefficientSummary{}, err
	}
	return model.CoefficientSummary{
		Name:     name,
		Estimate: estimate,
		EstError: sd,
		Lower:    lower,
		Upper:    upper,
		RHat:     splitRHat(perChain),
		ESS:      effectiveSize(perChain),
	}, nil
}

// conditionalEffects summarizes model-predicted counts per condition level
// at the reference duration, using population-level terms only. Columns keep
// the engine's raw double-underscore names; the inspector renames them.
func conditionalEffects(pooled [][]float64, l layout, spec model.Spec, d *design) ([]model.ConditionalEffect, error) {
	refOffset := 0.0
	if spec.Exposure != model.ExposureNone {
		refOffset = math.Log(d.refDur)
	}

	effects := make([]model.ConditionalEffect, 0, len(d.levels))
	for level, name := range d.levels {
		x := float64(level)
		mus := make([]float64, len(pooled))
		for s, theta := range pooled {
			mus[s] = math.Exp(theta[l.b0()] + theta[l.b1()]*x + refOffset)
		}
		estimate, err := mstats.Mean(mus)
		if err != nil {
			return nil, err
		}
		sd, err := mstats.StandardDeviationSample(mus)
		if err != nil {
			return nil, err
		}
		lo, err := mstats.PercentileNearestRank(mus, 2.5)
		if err != nil {
			return nil, err
		}
		hi, err := mstats.PercentileNearestRank(mus, 97.5)
		if err != nil {
			return nil, err
		}
		effects = append(effects, model.ConditionalEffect{
			Level: name,
			Columns: map[string]float64{
				model.RawColEstimate: estimate,
				model.RawColError:    sd,
				model.RawColLower:    lo,
				model.RawColUpper:    hi,
			},
		})
	}
	return effects, nil
}

func pointwiseLogLik(pooled [][]float64, l layout, d *design) [][]float64 {
	ll := make([][]float64, len(pooled))
	for s, theta := range pooled {
		row := make([]float64, len(d.y))
		for i := range d.y {
			row[i] = rowLogLik(theta, l, d, i)
		}
		ll[s] = row
	}
	return ll
}

// replicate draws posterior predictive datasets from a thinned subset of
// draws. Negative-binomial counts come from the Gamma-Poisson mixture.
func replicate(pooled [][]float64, l layout, d *design, rng *rand.Rand) [][]float64 {
	stride := len(pooled) / maxReplicates
	if stride < 1 {
		stride = 1
	}

	src := rand.NewSource(rng.Uint64())
	var reps [][]float64
	for s := 0; s < len(pooled); s += stride {
		theta := pooled[s]
		rep := make([]float64, len(d.y))
		for i := range d.y {
			mu := math.Exp(linearPredictor(theta, l, d, i))
			if l.family == model.FamilyNegBinomial {
				phi := math.Exp(theta[l.logShape()])
				lam := distuv.Gamma{Alpha: phi, Beta: phi / mu, Src: src}.Rand()
				rep[i] = distuv.Poisson{Lambda: lam, Src: src}.Rand()
			} else {
				rep[i] = distuv.Poisson{Lambda: mu, Src: src}.Rand()
			}
		}
		reps = append(reps, rep)
	}
	return reps
}

// diagnose surfaces sampler trouble the way divergence warnings would:
// acceptance far off target means the adaptation could not keep up, and a
// high R-hat means the chains disagree. Both are remedied by raising
// target_accept or running longer.
func diagnose(acceptRates []float64, ctrl model.SamplerControls, summaries []model.CoefficientSummary) []string {
	var warnings []string
	for c, rate := range acceptRates {
		if math.Abs(rate-ctrl.TargetAccept) > 0.15 {
			warnings = append(warnings, fmt.Sprintf(
				"chain %d acceptance rate %.2f is far from target %.2f; consider raising target_accept or warmup",
				c, rate, ctrl.TargetAccept))
		}
	}
	for _, s := range summaries {
		if !math.IsNaN(s.RHat) && s.RHat > 1.05 {
			warnings = append(warnings, fmt.Sprintf(
				"%s has R-hat %.3f (> 1.05); chains have not converged", s.Name, s.RHat))
		}
	}
	return warnings
}
