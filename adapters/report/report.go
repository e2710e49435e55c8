package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gesturelab/app"
	"gesturelab/domain/model"
	"gesturelab/internal"
	"gesturelab/internal/errors"
)

// Analysis bundles everything one walkthrough produced
type Analysis struct {
	DatasetSource string
	Descriptives  []app.ConditionSummary
	Fits          []*model.FitResult
	Effects       []model.ConditionalEffect // renamed columns
	Hypotheses    []model.HypothesisResult
	Comparison    *model.LooComparison
}

// Writer renders a full analysis as a markdown walkthrough and an HTML page
type Writer struct {
	logger *internal.Logger
}

// NewWriter creates a report writer
func NewWriter(logger *internal.Logger) *Writer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Writer{logger: logger}
}

// Write renders the analysis into report.md and report.html under outDir
func (w *Writer) Write(a Analysis, outDir string) error {
	md := w.render(a)

	mdPath := filepath.Join(outDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", mdPath)
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Gesture count analysis",
		Flags: html.CommonFlags | html.CompletePage,
	})
	page := markdown.Render(doc, renderer)

	htmlPath := filepath.Join(outDir, "report.html")
	if err := os.WriteFile(htmlPath, page, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", htmlPath)
	}

	w.logger.Info("wrote report %s and %s", mdPath, htmlPath)
	return nil
}

func (w *Writer) render(a Analysis) string {
	var b strings.Builder

	b.WriteString("# Gesture count analysis\n\n")
	fmt.Fprintf(&b, "Dataset: `%s`\n\n", a.DatasetSource)

	if len(a.Descriptives) > 0 {
		b.WriteString("## Descriptive summary\n\n")
		b.WriteString("| condition | n | mean gestures | mean rate (per s) |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, row := range a.Descriptives {
			fmt.Fprintf(&b, "| %s | %d | %.2f | %.4f |\n", row.Condition, row.N, row.MeanCount, row.MeanRate)
		}
		b.WriteString("\nRates are averaged per row (average of ratios); the models below instead carry duration as an exposure term.\n\n")
	}

	for _, fit := range a.Fits {
		fmt.Fprintf(&b, "## Model: %s\n\n", fit.Spec.Name)
		fmt.Fprintf(&b, "Formula: `%s`, family `%s`.\n\n", fit.Spec.Formula(), fit.Spec.Family)
		b.WriteString("| coefficient | estimate | est. error | 2.5% | 97.5% | R-hat | ESS |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, s := range fit.Summaries {
			fmt.Fprintf(&b, "| %s | %.3f | %.3f | %.3f | %.3f | %.3f | %.0f |\n",
				s.Name, s.Estimate, s.EstError, s.Lower, s.Upper, s.RHat, s.ESS)
		}
		b.WriteString("\n")
		for _, warning := range fit.Warnings {
			fmt.Fprintf(&b, "> warning: %s\n", warning)
		}
		b.WriteString("\n")
	}

	if len(a.Effects) > 0 {
		b.WriteString("## Conditional effects\n\n")
		b.WriteString("| level | estimate | lower | upper |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, eff := range a.Effects {
			fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f |\n",
				eff.Level, eff.Columns["estimate"], eff.Columns["lower"], eff.Columns["upper"])
		}
		b.WriteString("\n")
	}

	if len(a.Hypotheses) > 0 {
		b.WriteString("## Hypotheses\n\n")
		for _, h := range a.Hypotheses {
			fmt.Fprintf(&b, "- `%s = %.3f`: estimate %.3f [%.3f, %.3f], P(> %.3f) = %.3f\n",
				h.Expression, h.Value, h.Estimate, h.Lower, h.Upper, h.Value, h.PosteriorProb)
		}
		b.WriteString("\n")
	}

	if a.Comparison != nil {
		b.WriteString("## Model comparison (LOO-CV)\n\n")
		fmt.Fprintf(&b, "- %s: elpd %.2f (se %.2f)\n", a.Comparison.A.Name, a.Comparison.A.ELPD, a.Comparison.A.SE)
		fmt.Fprintf(&b, "- %s: elpd %.2f (se %.2f)\n", a.Comparison.B.Name, a.Comparison.B.ELPD, a.Comparison.B.SE)
		fmt.Fprintf(&b, "\nFavored: **%s** (elpd diff %.2f, se %.2f)\n",
			a.Comparison.Favored, a.Comparison.ELPDDiff, a.Comparison.SEDiff)
	}

	return b.String()
}
