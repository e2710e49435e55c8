package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesturelab/app"
	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
)

func sampleAnalysis() Analysis {
	return Analysis{
		DatasetSource: "gestures.csv",
		Descriptives: []app.ConditionSummary{
			{Condition: gesture.ConditionFriend, N: 2, MeanCount: 3.5, MeanRate: 0.0583},
			{Condition: gesture.ConditionProfessor, N: 2, MeanCount: 2.0, MeanRate: 0.0333},
		},
		Fits: []*model.FitResult{
			{
				Spec: model.NewSpec("m_poisson", model.FamilyPoisson, model.RandomIntercept, model.ExposureLogOffset),
				Summaries: []model.CoefficientSummary{
					{Name: model.CoefIntercept, Estimate: -2.8, EstError: 0.2, Lower: -3.2, Upper: -2.4, RHat: 1.001, ESS: 1200},
					{Name: model.CoefCondition, Estimate: -0.45, EstError: 0.15, Lower: -0.75, Upper: -0.15, RHat: 1.002, ESS: 980},
				},
				Warnings: []string{"chain 1 acceptance rate 0.55 is far from target 0.80; consider raising target_accept or warmup"},
			},
		},
		Effects: []model.ConditionalEffect{
			{Level: "friend", Columns: map[string]float64{"estimate": 3.4, "lower": 2.5, "upper": 4.4}},
			{Level: "professor", Columns: map[string]float64{"estimate": 2.1, "lower": 1.4, "upper": 2.9}},
		},
		Hypotheses: []model.HypothesisResult{
			{Expression: "exp(b_Intercept + b_contextprofessor)", Value: 1.0 / 60.0, Estimate: 0.04, Lower: 0.03, Upper: 0.05, PosteriorProb: 0.97},
		},
		Comparison: &model.LooComparison{
			A:        model.LooResult{Name: "m_poisson", ELPD: -120.4, SE: 8.2},
			B:        model.LooResult{Name: "m_negbinomial", ELPD: -115.1, SE: 7.9},
			ELPDDiff: -5.3,
			SEDiff:   2.1,
			Favored:  "m_negbinomial",
		},
	}
}

func TestWriter_WritesMarkdownAndHTML(t *testing.T) {
	outDir := t.TempDir()

	require.NoError(t, NewWriter(nil).Write(sampleAnalysis(), outDir))

	md, err := os.ReadFile(filepath.Join(outDir, "report.md"))
	require.NoError(t, err)
	text := string(md)

	assert.Contains(t, text, "# Gesture count analysis")
	assert.Contains(t, text, "gestures.csv")
	assert.Contains(t, text, "| friend | 2 | 3.50 | 0.0583 |")
	assert.Contains(t, text, "## Model: m_poisson")
	assert.Contains(t, text, "b_contextprofessor")
	assert.Contains(t, text, "> warning:")
	assert.Contains(t, text, "## Conditional effects")
	assert.Contains(t, text, "## Hypotheses")
	assert.Contains(t, text, "## Model comparison (LOO-CV)")
	assert.Contains(t, text, "Favored: **m_negbinomial**")

	page, err := os.ReadFile(filepath.Join(outDir, "report.html"))
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "<html>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "m_negbinomial")
}

func TestWriter_SkipsEmptySections(t *testing.T) {
	outDir := t.TempDir()

	require.NoError(t, NewWriter(nil).Write(Analysis{DatasetSource: "x.csv"}, outDir))

	md, err := os.ReadFile(filepath.Join(outDir, "report.md"))
	require.NoError(t, err)
	text := string(md)

	assert.NotContains(t, text, "## Descriptive summary")
	assert.NotContains(t, text, "## Hypotheses")
	assert.NotContains(t, text, "## Model comparison")
}

func TestWriter_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")
	err := NewWriter(nil).Write(sampleAnalysis(), missing)
	require.Error(t, err)
}
