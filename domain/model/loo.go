package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"gesturelab/internal/errors"
)

// LooResult holds leave-one-out cross-validation estimates for one fit.
// ELPD is the expected log pointwise predictive density; larger is better.
type LooResult struct {
	Name       string    `json:"name"`
	ELPD       float64   `json:"elpd"`
	SE         float64   `json:"se"`
	Pointwise  []float64 `json:"-"`
	Stabilized int       `json:"stabilized"` // observations whose importance weights were truncated
}

// LooComparison reports the ELPD difference between two fits. Positive
// ELPDDiff favors the first model.
type LooComparison struct {
	A        LooResult `json:"a"`
	B        LooResult `json:"b"`
	ELPDDiff float64   `json:"elpd_diff"`
	SEDiff   float64   `json:"se_diff"`
	Favored  string    `json:"favored"`
}

// Loo computes leave-one-out cross-validation via importance sampling on the
// pointwise log-likelihood matrix. Extreme importance ratios are truncated at
// mean(r) * S^(3/4) and the truncated weights rescaled to preserve the mean,
// which stabilizes observations the plain estimator handles badly.
func Loo(fit *FitResult) (LooResult, error) {
	ll := fit.PointwiseLogLik
	if len(ll) == 0 || len(ll[0]) == 0 {
		return LooResult{}, errors.InvalidInput("fit carries no pointwise log-likelihood")
	}

	nDraws := len(ll)
	nObs := len(ll[0])
	pointwise := make([]float64, nObs)
	stabilized := 0

	ratios := make([]float64, nDraws)
	for i := 0; i < nObs; i++ {
		// Importance ratios r_s = 1/p(y_i|theta_s), worked in log space
		// around the max for stability.
		maxNegLL := math.Inf(-1)
		for s := 0; s < nDraws; s++ {
			if -ll[s][i] > maxNegLL {
				maxNegLL = -ll[s][i]
			}
		}
		sum := 0.0
		for s := 0; s < nDraws; s++ {
			ratios[s] = math.Exp(-ll[s][i] - maxNegLL)
			sum += ratios[s]
		}
		mean := sum / float64(nDraws)

		// Truncate heavy-tail ratios and rescale to match the original mean
		bound := mean * math.Pow(float64(nDraws), 0.75)
		truncated := false
		truncSum := 0.0
		for s := 0; s < nDraws; s++ {
			if ratios[s] > bound {
				ratios[s] = bound
				truncated = true
			}
			truncSum += ratios[s]
		}
		if truncated {
			stabilized++
			scale := sum / truncSum
			for s := 0; s < nDraws; s++ {
				ratios[s] *= scale
			}
			truncSum = sum
		}

		// elpd_i = -log(mean importance ratio), undoing the log-space shift
		pointwise[i] = -(math.Log(truncSum/float64(nDraws)) + maxNegLL)
	}

	elpd := 0.0
	for _, v := range pointwise {
		elpd += v
	}
	se := math.Sqrt(float64(nObs) * sampleVariance(pointwise))

	return LooResult{
		Name:       fit.Spec.Name,
		ELPD:       elpd,
		SE:         se,
		Pointwise:  pointwise,
		Stabilized: stabilized,
	}, nil
}

// Compare runs LOO on two fits of the same data and reports the ELPD
// difference with its standard error.
func Compare(a, b *FitResult) (LooComparison, error) {
	looA, err := Loo(a)
	if err != nil {
		return LooComparison{}, errors.Wrapf(err, "loo for %s", a.Spec.Name)
	}
	looB, err := Loo(b)
	if err != nil {
		return LooComparison{}, errors.Wrapf(err, "loo for %s", b.Spec.Name)
	}
	if len(looA.Pointwise) != len(looB.Pointwise) {
		return LooComparison{}, errors.InvalidInput(fmt.Sprintf(
			"fits cover different observation counts: %d vs %d",
			len(looA.Pointwise), len(looB.Pointwise)))
	}

	diffs := make([]float64, len(looA.Pointwise))
	for i := range diffs {
		diffs[i] = looA.Pointwise[i] - looB.Pointwise[i]
	}

	favored := looA.Name
	if looB.ELPD > looA.ELPD {
		favored = looB.Name
	}

	return LooComparison{
		A:        looA,
		B:        looB,
		ELPDDiff: looA.ELPD - looB.ELPD,
		SEDiff:   math.Sqrt(float64(len(diffs)) * sampleVariance(diffs)),
		Favored:  favored,
	}, nil
}

// sampleVariance is zero for a single observation, where the unbiased
// estimator is undefined
func sampleVariance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}
