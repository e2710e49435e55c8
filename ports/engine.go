package ports

import (
	"context"

	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
)

// FitEngine fits a model specification to a dataset.
// Implementations own every sampling concern (chains, adaptation,
// parallelism); callers treat the returned FitResult as read-only and
// surface engine errors as-is.
type FitEngine interface {
	Fit(ctx context.Context, spec model.Spec, data *gesture.Dataset) (*model.FitResult, error)
}
