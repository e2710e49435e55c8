package plot

import (
	"fmt"
	"image/color"
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"gesturelab/domain/model"
	"gesturelab/internal"
	"gesturelab/internal/errors"
)

var (
	observedColor  = color.RGBA{R: 40, G: 40, B: 120, A: 255}
	replicateColor = color.RGBA{R: 200, G: 120, B: 60, A: 255}
	intervalColor  = color.RGBA{R: 200, G: 120, B: 60, A: 120}
)

// Renderer implements ports.ChartRenderer with gonum/plot, persisting each
// chart as a static PNG
type Renderer struct {
	logger *internal.Logger
}

// NewRenderer creates a chart renderer
func NewRenderer(logger *internal.Logger) *Renderer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Renderer{logger: logger}
}

// effectPoints adapts renamed conditional effects to gonum/plot's XYer and
// YErrorer interfaces
type effectPoints struct {
	estimates []float64
	lows      []float64 // distance below the estimate
	highs     []float64 // distance above the estimate
}

func (e effectPoints) Len() int                    { return len(e.estimates) }
func (e effectPoints) XY(i int) (float64, float64) { return float64(i), e.estimates[i] }
func (e effectPoints) YError(i int) (float64, float64) {
	return e.lows[i], e.highs[i]
}

// ConditionalEffects draws a point-with-error-bar chart of model-predicted
// values per condition level. Effects must carry plain (renamed) columns.
func (r *Renderer) ConditionalEffects(effects []model.ConditionalEffect, title, path string) error {
	if len(effects) == 0 {
		return errors.InvalidInput("no conditional effects to plot")
	}

	pts := effectPoints{}
	var levels []string
	for _, eff := range effects {
		estimate, ok := eff.Columns["estimate"]
		if !ok {
			return errors.InvalidInput(fmt.Sprintf(
				"effect for level %q is missing the estimate column; rename columns first", eff.Level))
		}
		lower := eff.Columns["lower"]
		upper := eff.Columns["upper"]
		pts.estimates = append(pts.estimates, estimate)
		pts.lows = append(pts.lows, estimate-lower)
		pts.highs = append(pts.highs, upper-estimate)
		levels = append(levels, eff.Level)
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "predicted gestures"
	p.NominalX(levels...)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "building effects scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(4)
	scatter.GlyphStyle.Color = observedColor

	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return errors.Wrap(err, "building effects error bars")
	}
	bars.LineStyle.Color = observedColor

	p.Add(scatter, bars)
	return r.save(p, path)
}

// Density draws a gaussian kernel density chart for posterior samples
func (r *Renderer) Density(samples []float64, title, path string) error {
	if len(samples) < 2 {
		return errors.InvalidInput("need at least 2 samples for a density chart")
	}

	grid, density := gaussianKDE(samples, 200)
	line := make(plotter.XYs, len(grid))
	for i := range grid {
		line[i].X = grid[i]
		line[i].Y = density[i]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "value"
	p.Y.Label.Text = "density"

	l, err := plotter.NewLine(line)
	if err != nil {
		return errors.Wrap(err, "building density line")
	}
	l.LineStyle.Width = vg.Points(1.5)
	l.LineStyle.Color = observedColor

	p.Add(l)
	return r.save(p, path)
}

// PredictiveOverlay draws the observed count frequencies against the spread
// of frequencies in replicated datasets from the posterior predictive
func (r *Renderer) PredictiveOverlay(observed []float64, replicated [][]float64, title, path string) error {
	if len(observed) == 0 || len(replicated) == 0 {
		return errors.InvalidInput("predictive overlay needs observed and replicated counts")
	}

	maxCount := 0
	for _, v := range observed {
		if int(v) > maxCount {
			maxCount = int(v)
		}
	}
	for _, rep := range replicated {
		for _, v := range rep {
			if int(v) > maxCount {
				maxCount = int(v)
			}
		}
	}
	bins := maxCount + 1

	obsFreq := binFrequencies(observed, bins)
	repFreqs := make([][]float64, len(replicated))
	for ri, rep := range replicated {
		repFreqs[ri] = binFrequencies(rep, bins)
	}
	repMean, repLow, repHigh, err := replicateBands(repFreqs, bins)
	if err != nil {
		return errors.Wrap(err, "summarizing replicate frequencies")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "gesture count"
	p.Y.Label.Text = "relative frequency"

	obsLine, err := plotter.NewLine(toXYs(obsFreq))
	if err != nil {
		return errors.Wrap(err, "building observed line")
	}
	obsLine.LineStyle.Width = vg.Points(2)
	obsLine.LineStyle.Color = observedColor

	meanLine, err := plotter.NewLine(toXYs(repMean))
	if err != nil {
		return errors.Wrap(err, "building replicate mean line")
	}
	meanLine.LineStyle.Width = vg.Points(1.5)
	meanLine.LineStyle.Color = replicateColor

	lowLine, err := plotter.NewLine(toXYs(repLow))
	if err != nil {
		return errors.Wrap(err, "building replicate lower line")
	}
	lowLine.LineStyle.Color = intervalColor
	lowLine.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}

	highLine, err := plotter.NewLine(toXYs(repHigh))
	if err != nil {
		return errors.Wrap(err, "building replicate upper line")
	}
	highLine.LineStyle.Color = intervalColor
	highLine.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}

	p.Add(obsLine, meanLine, lowLine, highLine)
	p.Legend.Add("observed", obsLine)
	p.Legend.Add("replicated mean", meanLine)
	p.Legend.Add("replicated 95%", lowLine)
	p.Legend.Top = true

	return r.save(p, path)
}

func (r *Renderer) save(p *plot.Plot, path string) error {
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving chart to %s", path)
	}
	r.logger.Info("wrote chart %s", path)
	return nil
}

// gaussianKDE evaluates a gaussian kernel density estimate on a regular grid
// with Silverman's rule-of-thumb bandwidth
func gaussianKDE(samples []float64, gridSize int) (grid, density []float64) {
	n := float64(len(samples))
	sd := stat.StdDev(samples, nil)
	h := 1.06 * sd * math.Pow(n, -0.2)
	if h <= 0 {
		h = 1e-3
	}

	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	lo -= 3 * h
	hi += 3 * h

	grid = make([]float64, gridSize)
	density = make([]float64, gridSize)
	step := (hi - lo) / float64(gridSize-1)
	norm := 1.0 / (n * h * math.Sqrt(2*math.Pi))
	for i := 0; i < gridSize; i++ {
		x := lo + float64(i)*step
		grid[i] = x
		sum := 0.0
		for _, v := range samples {
			z := (x - v) / h
			sum += math.Exp(-0.5 * z * z)
		}
		density[i] = norm * sum
	}
	return grid, density
}

func binFrequencies(counts []float64, bins int) []float64 {
	freq := make([]float64, bins)
	for _, v := range counts {
		b := int(v)
		if b >= 0 && b < bins {
			freq[b]++
		}
	}
	for b := range freq {
		freq[b] /= float64(len(counts))
	}
	return freq
}

func toXYs(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i].X = float64(i)
		xys[i].Y = v
	}
	return xys
}

// replicateBands summarizes per-bin replicate frequencies into their mean
// and 95% band
func replicateBands(repFreqs [][]float64, bins int) (repMean, repLow, repHigh []float64, err error) {
	repMean = make([]float64, bins)
	repLow = make([]float64, bins)
	repHigh = make([]float64, bins)
	perBin := make([]float64, len(repFreqs))
	for b := 0; b < bins; b++ {
		for ri := range repFreqs {
			perBin[ri] = repFreqs[ri][b]
		}
		repMean[b] = stat.Mean(perBin, nil)
		if repLow[b], err = mstats.PercentileNearestRank(perBin, 2.5); err != nil {
			return nil, nil, nil, err
		}
		if repHigh[b], err = mstats.PercentileNearestRank(perBin, 97.5); err != nil {
			return nil, nil, nil, err
		}
	}
	return repMean, repLow, repHigh, nil
}
