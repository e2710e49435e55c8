package model

import (
	"fmt"
	"strings"
)

// Family identifies the response distribution of a count regression
type Family string

const (
	FamilyPoisson     Family = "poisson"
	FamilyNegBinomial Family = "negbinomial"
)

// RandomStructure describes the per-participant random effect terms
type RandomStructure string

const (
	RandomNone           RandomStructure = "none"
	RandomIntercept      RandomStructure = "intercept"       // (1 | participant)
	RandomInterceptSlope RandomStructure = "intercept_slope" // (1 + context | participant)
)

// Exposure describes how trial duration enters the model
type Exposure string

const (
	ExposureNone      Exposure = "none"
	ExposureLogOffset Exposure = "log_offset" // offset(log(dur)), Poisson models
	ExposureRate      Exposure = "rate"       // rate denominator, negative-binomial models
)

// Prior describes the prior placed on the condition slope coefficient.
// A zero SlopeSD leaves the engine's default diffuse prior in place.
type Prior struct {
	SlopeSD float64 `json:"slope_sd,omitempty"`
}

// SamplerControls tunes the MCMC run
type SamplerControls struct {
	TargetAccept  float64 `json:"target_accept"`   // adaptation target for the acceptance rate
	MaxScaleDepth int     `json:"max_scale_depth"` // cap on warmup proposal-scale doublings/halvings
	Warmup        int     `json:"warmup"`          // warmup iterations per chain (discarded)
	Iterations    int     `json:"iterations"`      // total iterations per chain, including warmup
	Chains        int     `json:"chains"`
	Cores         int     `json:"cores"`           // parallel chain workers; 0 means one per chain
	Seed          uint64  `json:"seed"`
}

// DefaultControls returns the sampler settings used when a spec leaves them unset
func DefaultControls() SamplerControls {
	return SamplerControls{
		TargetAccept:  0.8,
		MaxScaleDepth: 10,
		Warmup:        1000,
		Iterations:    2000,
		Chains:        4,
		Seed:          1041,
	}
}

// Spec is a complete model specification handed to the fitting engine.
// Specs are built, consumed by one Fit call, and discarded.
type Spec struct {
	Name     string          `json:"name"`
	Family   Family          `json:"family"`
	Random   RandomStructure `json:"random"`
	Exposure Exposure        `json:"exposure"`
	Prior    Prior           `json:"prior"`
	Controls SamplerControls `json:"controls"`
}

// NewSpec builds a spec with default sampler controls
func NewSpec(name string, family Family, random RandomStructure, exposure Exposure) Spec {
	return Spec{
		Name:     name,
		Family:   family,
		Random:   random,
		Exposure: exposure,
		Controls: DefaultControls(),
	}
}

// Formula renders the spec in conventional formula notation for logs and reports
func (s Spec) Formula() string {
	var b strings.Builder
	b.WriteString("gestures")
	if s.Exposure == ExposureRate {
		b.WriteString(" | rate(dur)")
	}
	b.WriteString(" ~ context")
	if s.Exposure == ExposureLogOffset {
		b.WriteString(" + offset(log(dur))")
	}
	switch s.Random {
	case RandomIntercept:
		b.WriteString(" + (1 | participant)")
	case RandomInterceptSlope:
		b.WriteString(" + (1 + context | participant)")
	}
	return b.String()
}

// String includes the family tag alongside the formula
func (s Spec) String() string {
	return fmt.Sprintf("%s [%s]", s.Formula(), s.Family)
}
