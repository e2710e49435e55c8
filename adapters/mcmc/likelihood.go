package mcmc

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gesturelab/domain/model"
)

const (
	defaultCoefSD = 10.0 // diffuse prior sd for regression coefficients
	scaleSD       = 2.0  // half-normal prior sd for random-effect scales
	shapeSD       = 5.0  // half-normal prior sd for the NB shape
	ln2           = 0.6931471805599453
)

// negBinomLogPMF is the log pmf of a negative binomial with mean mu and
// shape phi (variance mu + mu^2/phi). Same mean/dispersion parameterization
// as the Gamma-Poisson mixture used for predictive draws.
func negBinomLogPMF(y, mu, phi float64) float64 {
	if mu <= 0 || phi <= 0 {
		return math.Inf(-1)
	}
	lg, _ := math.Lgamma(y + phi)
	lgPhi, _ := math.Lgamma(phi)
	lgY, _ := math.Lgamma(y + 1)
	return lg - lgPhi - lgY +
		phi*math.Log(phi/(phi+mu)) +
		y*math.Log(mu/(phi+mu))
}

// poissonLogPMF delegates to gonum's Poisson distribution
func poissonLogPMF(y, mu float64) float64 {
	if mu <= 0 {
		return math.Inf(-1)
	}
	return distuv.Poisson{Lambda: mu}.LogProb(y)
}

// linearPredictor computes eta for one row under one parameter vector
func linearPredictor(theta []float64, l layout, d *design, i int) float64 {
	eta := theta[l.b0()] + theta[l.b1()]*d.x[i] + d.offset[i]
	if l.hasIntercepts() {
		eta += theta[l.u(d.part[i])]
	}
	if l.hasSlopes() {
		eta += theta[l.w(d.part[i])] * d.x[i]
	}
	return eta
}

// rowLogLik is the log-likelihood of observation i under theta
func rowLogLik(theta []float64, l layout, d *design, i int) float64 {
	mu := math.Exp(linearPredictor(theta, l, d, i))
	if l.family == model.FamilyNegBinomial {
		return negBinomLogPMF(d.y[i], mu, math.Exp(theta[l.logShape()]))
	}
	return poissonLogPMF(d.y[i], mu)
}

// logPosterior builds the unnormalized log posterior for a spec over a design.
// Scale parameters are sampled on the log scale, so their half-normal priors
// carry the log-scale Jacobian term.
func logPosterior(spec model.Spec, l layout, d *design) func(theta []float64) float64 {
	slopeSD := spec.Prior.SlopeSD
	if slopeSD <= 0 {
		slopeSD = defaultCoefSD
	}
	interceptPrior := distuv.Normal{Mu: 0, Sigma: defaultCoefSD}
	slopePrior := distuv.Normal{Mu: 0, Sigma: slopeSD}
	scalePrior := distuv.Normal{Mu: 0, Sigma: scaleSD}
	shapePrior := distuv.Normal{Mu: 0, Sigma: shapeSD}

	return func(theta []float64) float64 {
		lp := interceptPrior.LogProb(theta[l.b0()])
		lp += slopePrior.LogProb(theta[l.b1()])

		if l.hasIntercepts() {
			logSigma := theta[l.logSigmaU()]
			sigma := math.Exp(logSigma)
			lp += scalePrior.LogProb(sigma) + ln2 + logSigma
			re := distuv.Normal{Mu: 0, Sigma: sigma}
			for j := 0; j < l.nPart; j++ {
				lp += re.LogProb(theta[l.u(j)])
			}
		}
		if l.hasSlopes() {
			logSigma := theta[l.logSigmaW()]
			sigma := math.Exp(logSigma)
			lp += scalePrior.LogProb(sigma) + ln2 + logSigma
			re := distuv.Normal{Mu: 0, Sigma: sigma}
			for j := 0; j < l.nPart; j++ {
				lp += re.LogProb(theta[l.w(j)])
			}
		}
		if l.hasShape() {
			logShape := theta[l.logShape()]
			shape := math.Exp(logShape)
			lp += shapePrior.LogProb(shape) + ln2 + logShape
		}

		for i := range d.y {
			lp += rowLogLik(theta, l, d, i)
		}

		if math.IsNaN(lp) {
			return math.Inf(-1)
		}
		return lp
	}
}
