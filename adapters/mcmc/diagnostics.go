package mcmc

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// splitRHat computes the split-chain potential scale reduction factor for
// one parameter. Each chain is split in half so within-chain drift shows up
// as between-sequence variance. Values near 1 indicate the chains mixed.
func splitRHat(chains [][]float64) float64 {
	var sequences [][]float64
	for _, chain := range chains {
		if len(chain) < 4 {
			return math.NaN()
		}
		half := len(chain) / 2
		sequences = append(sequences, chain[:half], chain[half:half*2])
	}

	m := float64(len(sequences))
	n := float64(len(sequences[0]))

	means := make([]float64, len(sequences))
	variances := make([]float64, len(sequences))
	grand := 0.0
	for i, seq := range sequences {
		means[i], variances[i] = stat.MeanVariance(seq, nil)
		grand += means[i]
	}
	grand /= m

	w := 0.0
	for _, v := range variances {
		w += v
	}
	w /= m

	b := 0.0
	for _, mu := range means {
		diff := mu - grand
		b += diff * diff
	}
	b *= n / (m - 1)

	if w == 0 {
		return 1
	}
	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}

// effectiveSize estimates the effective sample size across chains using the
// initial positive autocorrelation sequence on the pooled draws.
func effectiveSize(chains [][]float64) float64 {
	var pooled []float64
	for _, chain := range chains {
		pooled = append(pooled, chain...)
	}
	n := len(pooled)
	if n < 4 {
		return float64(n)
	}

	mu, v := stat.MeanVariance(pooled, nil)
	if v == 0 {
		return float64(n)
	}

	sumRho := 0.0
	for lag := 1; lag < n/2; lag++ {
		rho := autocovariance(pooled, mu, lag) / v
		if rho < 0.05 {
			break
		}
		sumRho += rho
	}

	ess := float64(n) / (1 + 2*sumRho)
	if ess > float64(n) {
		ess = float64(n)
	}
	return ess
}

// autocovariance accumulates the lagged cross terms directly; there is no
// lagged-moment helper in the stats libraries.
func autocovariance(data []float64, mu float64, lag int) float64 {
	sum := 0.0
	for i := 0; i+lag < len(data); i++ {
		sum += (data[i] - mu) * (data[i+lag] - mu)
	}
	return sum / float64(len(data))
}
