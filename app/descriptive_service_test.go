package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesturelab/domain/gesture"
	"gesturelab/internal/testkit"
)

func TestDescriptiveService_ReferenceDataset(t *testing.T) {
	svc := NewDescriptiveService(nil)

	summaries, err := svc.Summarize(testkit.ReferenceDataset())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	friend := summaries[0]
	assert.Equal(t, gesture.ConditionFriend, friend.Condition)
	assert.Equal(t, 2, friend.N)
	assert.InDelta(t, 3.5, friend.MeanCount, 1e-9)
	assert.InDelta(t, 0.0583, friend.MeanRate, 1e-4)

	professor := summaries[1]
	assert.Equal(t, gesture.ConditionProfessor, professor.Condition)
	assert.Equal(t, 2, professor.N)
	assert.InDelta(t, 2.0, professor.MeanCount, 1e-9)
	assert.InDelta(t, 0.0333, professor.MeanRate, 1e-4)
}

func TestDescriptiveService_GroupOrderFollowsFirstSeen(t *testing.T) {
	ds := &gesture.Dataset{Rows: []gesture.Observation{
		{Participant: "P1", Condition: gesture.ConditionProfessor, DurationSec: 40, Gestures: 2},
		{Participant: "P1", Condition: gesture.ConditionFriend, DurationSec: 40, Gestures: 4},
	}}

	summaries, err := NewDescriptiveService(nil).Summarize(ds)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, gesture.ConditionProfessor, summaries[0].Condition)
	assert.Equal(t, gesture.ConditionFriend, summaries[1].Condition)
}

func TestDescriptiveService_RejectsInvalidData(t *testing.T) {
	_, err := NewDescriptiveService(nil).Summarize(&gesture.Dataset{})
	require.Error(t, err)
}
