package app

import (
	mstats "github.com/montanaflynn/stats"

	"gesturelab/domain/gesture"
	"gesturelab/internal"
	"gesturelab/internal/errors"
)

// DescriptiveService computes grouped summaries of a gesture dataset
type DescriptiveService struct {
	logger *internal.Logger
}

// NewDescriptiveService creates a descriptive summarizer
func NewDescriptiveService(logger *internal.Logger) *DescriptiveService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DescriptiveService{logger: logger}
}

// ConditionSummary is one row of the grouped summary table
type ConditionSummary struct {
	Condition gesture.Condition `json:"condition"`
	N         int               `json:"n"`
	MeanCount float64           `json:"mean_count"`
	MeanRate  float64           `json:"mean_rate"` // gestures per second
}

// Summarize groups rows by condition and reports the mean gesture count and
// the mean row-wise rate per group. The rate is computed per row before
// averaging: an average of ratios, not a ratio of averages. The regression
// models handle duration differently (as a logged offset or rate
// denominator); the contrast between the two treatments is intentional.
func (s *DescriptiveService) Summarize(ds *gesture.Dataset) ([]ConditionSummary, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	var summaries []ConditionSummary
	for _, condition := range ds.Conditions() {
		rows := ds.ByCondition(condition)

		counts := make([]float64, len(rows))
		rates := make([]float64, len(rows))
		for i, row := range rows {
			counts[i] = float64(row.Gestures)
			rate, err := row.Rate()
			if err != nil {
				return nil, err
			}
			rates[i] = rate
		}

		meanCount, err := mstats.Mean(counts)
		if err != nil {
			return nil, errors.Wrapf(err, "mean count for condition %s", condition)
		}
		meanRate, err := mstats.Mean(rates)
		if err != nil {
			return nil, errors.Wrapf(err, "mean rate for condition %s", condition)
		}

		summaries = append(summaries, ConditionSummary{
			Condition: condition,
			N:         len(rows),
			MeanCount: meanCount,
			MeanRate:  meanRate,
		})
	}

	s.logger.Debug("summarized %d rows into %d condition groups", ds.Len(), len(summaries))
	return summaries, nil
}
