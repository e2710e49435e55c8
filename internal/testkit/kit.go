package testkit

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"gesturelab/domain/core"
	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
)

// ReferenceDataset returns the fixed two-participant table used as the
// worked example: group count means are 3.5 (friend) and 2.0 (professor),
// rate means 0.0583 and 0.0333.
func ReferenceDataset() *gesture.Dataset {
	return &gesture.Dataset{
		Source: "reference",
		Rows: []gesture.Observation{
			{Participant: "P1", Condition: gesture.ConditionFriend, DurationSec: 60, Language: "dutch", Gender: "F", Gestures: 5},
			{Participant: "P1", Condition: gesture.ConditionProfessor, DurationSec: 60, Language: "dutch", Gender: "F", Gestures: 3},
			{Participant: "P2", Condition: gesture.ConditionFriend, DurationSec: 60, Language: "dutch", Gender: "M", Gestures: 2},
			{Participant: "P2", Condition: gesture.ConditionProfessor, DurationSec: 60, Language: "dutch", Gender: "M", Gestures: 1},
		},
	}
}

// SyntheticPaired fabricates a deterministic paired dataset with a known
// generative structure: per-participant baseline rates, a negative condition
// effect on the log scale, and counts drawn from the requested family.
// Negative-binomial counts come from the Gamma-Poisson mixture.
func SyntheticPaired(nParticipants int, family model.Family, seed uint64) *gesture.Dataset {
	const (
		baseLogRate  = -2.5 // ~0.08 gestures per second with a friend
		conditionEff = -0.4 // professors suppress gesturing
		interceptSD  = 0.3
		nbShape      = 2.0
		minDur       = 20.0
		durRange     = 60.0
	)

	rng := rand.New(rand.NewSource(seed))
	normal := distuv.Normal{Mu: 0, Sigma: interceptSD, Src: rng}

	languages := []string{"dutch", "german", "english"}
	genders := []string{"F", "M"}

	ds := &gesture.Dataset{Source: "synthetic"}
	for p := 0; p < nParticipants; p++ {
		id := core.ParticipantID(fmt.Sprintf("P%02d", p+1))
		intercept := normal.Rand()
		language := languages[p%len(languages)]
		gender := genders[p%len(genders)]

		for _, condition := range []gesture.Condition{gesture.ConditionFriend, gesture.ConditionProfessor} {
			dur := minDur + durRange*rng.Float64()
			eta := baseLogRate + intercept
			if condition == gesture.ConditionProfessor {
				eta += conditionEff
			}
			mu := math.Exp(eta) * dur

			var count float64
			if family == model.FamilyNegBinomial {
				lam := distuv.Gamma{Alpha: nbShape, Beta: nbShape / mu, Src: rng}.Rand()
				count = distuv.Poisson{Lambda: lam, Src: rng}.Rand()
			} else {
				count = distuv.Poisson{Lambda: mu, Src: rng}.Rand()
			}

			ds.Rows = append(ds.Rows, gesture.Observation{
				Participant: id,
				Condition:   condition,
				DurationSec: dur,
				Language:    language,
				Gender:      gender,
				Gestures:    int(count),
			})
		}
	}
	return ds
}
