package model

import (
	"fmt"
	"sort"
	"time"

	"gesturelab/domain/core"
	"gesturelab/internal/errors"
)

// Coefficient names the engine emits. Random-effect standard deviations and
// the dispersion parameter appear only when the spec includes them.
const (
	CoefIntercept   = "b_Intercept"
	CoefCondition   = "b_contextprofessor"
	CoefSDIntercept = "sd_participant__Intercept"
	CoefSDSlope     = "sd_participant__contextprofessor"
	CoefShape       = "shape"
)

// Draws holds posterior draws keyed by coefficient name.
// Every slice has one value per retained (post-warmup) draw across all chains.
type Draws map[string][]float64

// Coefficient returns the posterior draws for a named coefficient
func (d Draws) Coefficient(name string) ([]float64, error) {
	samples, ok := d[name]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("coefficient %q", name))
	}
	return samples, nil
}

// Names returns the coefficient names in sorted order
func (d Draws) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of retained draws
func (d Draws) Len() int {
	for _, samples := range d {
		return len(samples)
	}
	return 0
}

// CoefficientSummary is a point and interval summary for one coefficient
type CoefficientSummary struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"` // posterior mean
	EstError float64 `json:"est_error"`
	Lower    float64 `json:"lower"` // 2.5% quantile
	Upper    float64 `json:"upper"` // 97.5% quantile
	RHat     float64 `json:"rhat"`
	ESS      float64 `json:"ess"`
}

// Raw conditional-effect column names as the engine emits them. The trailing
// double underscore marks internally computed columns, as opposed to columns
// carried over from the data.
const (
	RawColEstimate = "estimate__"
	RawColError    = "se__"
	RawColLower    = "lower__"
	RawColUpper    = "upper__"
)

// renamedColumns is the fixed bijection from engine-native column names to
// the plain names downstream code and charts use.
var renamedColumns = map[string]string{
	RawColEstimate: "estimate",
	RawColError:    "se",
	RawColLower:    "lower",
	RawColUpper:    "upper",
}

// RenameEffectColumns maps an effect row's engine-native columns to plain
// names. Unrecognized columns and collisions are errors rather than silent
// drops: the rename must stay a bijection.
func RenameEffectColumns(cols map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(cols))
	for raw, value := range cols {
		plain, ok := renamedColumns[raw]
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("unrecognized effect column %q", raw))
		}
		if _, dup := out[plain]; dup {
			return nil, errors.InvalidInput(fmt.Sprintf("effect column collision on %q", plain))
		}
		out[plain] = value
	}
	return out, nil
}

// ConditionalEffect is the model-predicted response at one condition level,
// evaluated at the reference trial duration. Columns carry the engine's raw
// double-underscore names until renamed by the inspector.
type ConditionalEffect struct {
	Level   string             `json:"level"`
	Columns map[string]float64 `json:"columns"`
}

// FitResult is the opaque product of one engine fit. Code outside the engine
// only ever reads from it.
type FitResult struct {
	ID   core.FitID `json:"id"`
	Spec Spec       `json:"spec"`

	Draws     Draws                `json:"-"`
	Summaries []CoefficientSummary `json:"summaries"`
	Effects   []ConditionalEffect  `json:"effects"`

	// PointwiseLogLik[s][i] is the log-likelihood of observation i under draw s
	PointwiseLogLik [][]float64 `json:"-"`

	// Observed counts and replicated counts from the posterior predictive,
	// kept for predictive checks. Replicated[r][i] is replicate r's count
	// for observation i.
	Observed   []float64   `json:"-"`
	Replicated [][]float64 `json:"-"`

	AcceptRates []float64      `json:"accept_rates"` // one per chain
	Warnings    []string       `json:"warnings,omitempty"`
	Elapsed     time.Duration  `json:"elapsed"`
	FittedAt    core.Timestamp `json:"fitted_at"`
}

// Summary returns the summary row for a named coefficient
func (f *FitResult) Summary(name string) (CoefficientSummary, error) {
	for _, s := range f.Summaries {
		if s.Name == name {
			return s, nil
		}
	}
	return CoefficientSummary{}, errors.NotFound(fmt.Sprintf("summary for coefficient %q", name))
}

// HypothesisResult reports a linear-combination hypothesis evaluated over
// the posterior draws. Delta is expression minus the hypothesized value.
type HypothesisResult struct {
	Expression    string  `json:"expression"`
	Value         float64 `json:"value"`    // hypothesized value
	Estimate      float64 `json:"estimate"` // posterior mean of the expression
	Lower         float64 `json:"lower"`    // 2.5% quantile of the expression
	Upper         float64 `json:"upper"`    // 97.5% quantile of the expression
	PosteriorProb float64 `json:"posterior_prob"` // P(expression > value)
}
