package gesture

import (
	"fmt"

	"gesturelab/domain/core"
	"gesturelab/internal/errors"
)

// Condition is the experimental context a trial was recorded in
type Condition string

const (
	ConditionFriend    Condition = "friend"
	ConditionProfessor Condition = "professor"
)

// Observation is one trial: one participant gesturing in one condition.
// INVARIANTS:
// - DurationSec always present and > 0
// - Gestures always present and >= 0
type Observation struct {
	Participant core.ParticipantID `json:"participant"`
	Condition   Condition          `json:"context"`
	DurationSec float64            `json:"dur"`
	Language    string             `json:"language"`
	Gender      string             `json:"gender"`
	Gestures    int                `json:"gestures"`
}

// Rate returns the row-wise gesture rate (gestures per second).
// The rate is undefined for non-positive durations.
func (o Observation) Rate() (float64, error) {
	if o.DurationSec <= 0 {
		return 0, errors.ValidationError(fmt.Sprintf(
			"rate undefined for participant %s: duration %.3f is not positive",
			o.Participant, o.DurationSec))
	}
	return float64(o.Gestures) / o.DurationSec, nil
}

// Dataset is the loaded observation table. Rows are read-only after loading.
type Dataset struct {
	Source string        `json:"source,omitempty"` // file the rows came from
	Rows   []Observation `json:"rows"`
}

// Len returns the number of observation rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Conditions returns the distinct condition levels in first-seen order
func (d *Dataset) Conditions() []Condition {
	seen := make(map[Condition]bool)
	var levels []Condition
	for _, row := range d.Rows {
		if !seen[row.Condition] {
			seen[row.Condition] = true
			levels = append(levels, row.Condition)
		}
	}
	return levels
}

// ByCondition returns the rows observed under a single condition level
func (d *Dataset) ByCondition(c Condition) []Observation {
	var rows []Observation
	for _, row := range d.Rows {
		if row.Condition == c {
			rows = append(rows, row)
		}
	}
	return rows
}

// Participants returns the distinct participant IDs in first-seen order
func (d *Dataset) Participants() []core.ParticipantID {
	seen := make(map[core.ParticipantID]bool)
	var ids []core.ParticipantID
	for _, row := range d.Rows {
		if !seen[row.Participant] {
			seen[row.Participant] = true
			ids = append(ids, row.Participant)
		}
	}
	return ids
}

// ValidatePairing checks the repeated-measures design invariant: every
// participant appears on exactly two rows, one per condition level.
func (d *Dataset) ValidatePairing() error {
	byParticipant := make(map[core.ParticipantID][]Condition)
	for _, row := range d.Rows {
		byParticipant[row.Participant] = append(byParticipant[row.Participant], row.Condition)
	}

	for id, conditions := range byParticipant {
		if len(conditions) != 2 {
			return errors.ValidationError(fmt.Sprintf(
				"participant %s has %d rows, paired design requires exactly 2", id, len(conditions)))
		}
		if conditions[0] == conditions[1] {
			return errors.ValidationError(fmt.Sprintf(
				"participant %s was observed twice under condition %q", id, conditions[0]))
		}
	}
	return nil
}

// Validate checks row-level invariants (positive durations, non-negative counts)
func (d *Dataset) Validate() error {
	if d.Len() == 0 {
		return errors.ValidationError("dataset has no rows")
	}
	for i, row := range d.Rows {
		if row.DurationSec <= 0 {
			return errors.ValidationError(fmt.Sprintf("row %d: duration must be positive, got %.3f", i, row.DurationSec))
		}
		if row.Gestures < 0 {
			return errors.ValidationError(fmt.Sprintf("row %d: gesture count must be non-negative, got %d", i, row.Gestures))
		}
		if row.Participant == "" {
			return errors.ValidationError(fmt.Sprintf("row %d: participant ID is empty", i))
		}
	}
	return nil
}
