package mcmc

import (
	"fmt"
	"math"

	"gesturelab/domain/core"
	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
	"gesturelab/internal/errors"
)

// design is the numeric form of a dataset under one model spec: response,
// condition indicator, log-exposure term, and participant grouping.
type design struct {
	y      []float64 // gesture counts
	x      []float64 // 1 when the row's condition is the non-baseline level
	offset []float64 // log exposure added to the linear predictor, zeros when unused
	part   []int     // participant index per row
	nPart  int
	refDur float64  // mean duration; conditional effects are evaluated here
	levels []string // condition levels, baseline first
}

// buildDesign validates the spec/data combination and produces the design.
// Exposure handling is family-specific: the logged-duration offset belongs to
// Poisson models, the rate denominator to negative-binomial models. Either
// way duration multiplies the expected count; the two flags are kept apart
// because they mirror distinct formula syntax.
func buildDesign(spec model.Spec, data *gesture.Dataset) (*design, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	switch spec.Family {
	case model.FamilyPoisson, model.FamilyNegBinomial:
	default:
		return nil, errors.EngineError(fmt.Sprintf("unknown family %q", spec.Family), nil)
	}

	switch spec.Exposure {
	case model.ExposureNone:
	case model.ExposureLogOffset:
		if spec.Family != model.FamilyPoisson {
			return nil, errors.EngineError("offset(log(dur)) requires a Poisson model", nil)
		}
	case model.ExposureRate:
		if spec.Family != model.FamilyNegBinomial {
			return nil, errors.EngineError("rate(dur) requires a negative-binomial model", nil)
		}
	default:
		return nil, errors.EngineError(fmt.Sprintf("unknown exposure %q", spec.Exposure), nil)
	}

	conditions := data.Conditions()
	if len(conditions) != 2 {
		return nil, errors.EngineError(fmt.Sprintf(
			"condition must have exactly 2 levels, got %d", len(conditions)), nil)
	}
	baseline := conditions[0]

	if spec.Random != model.RandomNone {
		if err := data.ValidatePairing(); err != nil {
			return nil, errors.EngineError("random effects require the paired design", err)
		}
	}

	partIndex := make(map[core.ParticipantID]int)
	d := &design{
		y:      make([]float64, data.Len()),
		x:      make([]float64, data.Len()),
		offset: make([]float64, data.Len()),
		part:   make([]int, data.Len()),
		levels: []string{string(conditions[0]), string(conditions[1])},
	}

	durSum := 0.0
	for i, row := range data.Rows {
		d.y[i] = float64(row.Gestures)
		if row.Condition != baseline {
			d.x[i] = 1
		}
		if spec.Exposure != model.ExposureNone {
			d.offset[i] = math.Log(row.DurationSec)
		}
		idx, ok := partIndex[row.Participant]
		if !ok {
			idx = len(partIndex)
			partIndex[row.Participant] = idx
		}
		d.part[i] = idx
		durSum += row.DurationSec
	}
	d.nPart = len(partIndex)
	d.refDur = durSum / float64(data.Len())

	return d, nil
}

// layout maps the sampler's flat parameter vector onto model terms.
// Order: b0, b1, participant intercepts, participant slopes, log sigma
// terms, log shape. Scale parameters are sampled on the log scale.
type layout struct {
	nPart  int
	random model.RandomStructure
	family model.Family
}

func newLayout(spec model.Spec, d *design) layout {
	return layout{nPart: d.nPart, random: spec.Random, family: spec.Family}
}

func (l layout) hasIntercepts() bool {
	return l.random == model.RandomIntercept || l.random == model.RandomInterceptSlope
}

func (l layout) hasSlopes() bool {
	return l.random == model.RandomInterceptSlope
}

func (l layout) hasShape() bool {
	return l.family == model.FamilyNegBinomial
}

func (l layout) b0() int { return 0 }
func (l layout) b1() int { return 1 }

func (l layout) u(j int) int { return 2 + j }

func (l layout) w(j int) int { return 2 + l.nPart + j }

func (l layout) logSigmaU() int {
	base := 2
	if l.hasIntercepts() {
		base += l.nPart
	}
	if l.hasSlopes() {
		base += l.nPart
	}
	return base
}

func (l layout) logSigmaW() int { return l.logSigmaU() + 1 }

func (l layout) logShape() int {
	idx := l.logSigmaU() // first position after the random effects
	if l.hasIntercepts() {
		idx++
	}
	if l.hasSlopes() {
		idx++
	}
	return idx
}

func (l layout) dim() int {
	dim := 2
	if l.hasIntercepts() {
		dim += l.nPart + 1
	}
	if l.hasSlopes() {
		dim += l.nPart + 1
	}
	if l.hasShape() {
		dim++
	}
	return dim
}
