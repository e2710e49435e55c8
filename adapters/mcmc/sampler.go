package mcmc

import (
	"context"
	"math"

	"golang.org/x/exp/rand"

	"gesturelab/domain/model"
	"gesturelab/internal/errors"
)

const (
	initialScale = 0.1
	adaptWindow  = 50
)

// runChain runs one adaptive random-walk Metropolis chain and returns the
// retained (post-warmup) draws plus the post-warmup acceptance rate.
//
// Proposals are component-wise Gaussian steps. During warmup each
// component's step size adapts toward the target acceptance rate; the
// MaxScaleDepth control caps how far a scale can drift from its initial
// value (in doublings), which bounds the adaptation the way a tree-depth
// cap bounds trajectory growth in gradient-based samplers.
func runChain(ctx context.Context, lp func([]float64) float64, init []float64, ctrl model.SamplerControls, rng *rand.Rand) ([][]float64, float64, error) {
	dim := len(init)
	theta := make([]float64, dim)
	copy(theta, init)

	scales := make([]float64, dim)
	for j := range scales {
		scales[j] = initialScale
	}
	minScale := initialScale * math.Pow(2, -float64(ctrl.MaxScaleDepth))
	maxScale := initialScale * math.Pow(2, float64(ctrl.MaxScaleDepth))

	current := lp(theta)
	if math.IsInf(current, -1) {
		return nil, 0, errors.New(errors.CodeEngineError, "initial parameter values have zero posterior density")
	}

	retained := ctrl.Iterations - ctrl.Warmup
	draws := make([][]float64, 0, retained)

	windowAccepts := make([]int, dim)
	windowTotal := 0
	var postAccepts, postTotal int

	for iter := 0; iter < ctrl.Iterations; iter++ {
		if iter%100 == 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			default:
			}
		}

		for j := 0; j < dim; j++ {
			proposal := theta[j]
			theta[j] += scales[j] * rng.NormFloat64()
			candidate := lp(theta)
			if math.Log(rng.Float64()) < candidate-current {
				current = candidate
				windowAccepts[j]++
				if iter >= ctrl.Warmup {
					postAccepts++
				}
			} else {
				theta[j] = proposal
			}
			if iter >= ctrl.Warmup {
				postTotal++
			}
		}
		windowTotal++

		// Warmup adaptation: nudge each scale toward the target rate
		if iter < ctrl.Warmup && windowTotal == adaptWindow {
			for j := 0; j < dim; j++ {
				rate := float64(windowAccepts[j]) / float64(adaptWindow)
				scales[j] *= math.Exp(rate - ctrl.TargetAccept)
				if scales[j] < minScale {
					scales[j] = minScale
				}
				if scales[j] > maxScale {
					scales[j] = maxScale
				}
				windowAccepts[j] = 0
			}
			windowTotal = 0
		}

		if iter >= ctrl.Warmup {
			draw := make([]float64, dim)
			copy(draw, theta)
			draws = append(draws, draw)
		}
	}

	acceptRate := 0.0
	if postTotal > 0 {
		acceptRate = float64(postAccepts) / float64(postTotal)
	}
	return draws, acceptRate, nil
}
