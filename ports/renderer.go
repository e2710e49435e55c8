package ports

import (
	"gesturelab/domain/model"
)

// ChartRenderer turns extracted summaries into static chart files
type ChartRenderer interface {
	// ConditionalEffects draws a point-with-error-bar chart of
	// model-predicted values per condition level. Effects must carry plain
	// (renamed) column names.
	ConditionalEffects(effects []model.ConditionalEffect, title, path string) error

	// Density draws a posterior density chart for one coefficient's draws
	Density(samples []float64, title, path string) error

	// PredictiveOverlay draws observed counts against replicated counts
	// from the posterior predictive
	PredictiveOverlay(observed []float64, replicated [][]float64, title, path string) error
}
