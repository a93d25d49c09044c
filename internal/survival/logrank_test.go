package survival

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survsim/domain/study"
	"survsim/internal/errors"
)

func TestLogRank_MatchesHandComputation(t *testing.T) {
	// placebo dies at 1 and 2, treatment at 3 and 4:
	//   t=1: O1=1  E1=2/4    V=3/12
	//   t=2: O1=1  E1=1/3    V=2/9
	//   t=3: O1=0  E1=0      V=0
	//   t=4: one subject left, no information
	obs := []study.Observation{
		{SubjectID: "p1", Group: study.GroupPlacebo, Time: 1, Event: study.StatusEvent},
		{SubjectID: "p2", Group: study.GroupPlacebo, Time: 2, Event: study.StatusEvent},
		{SubjectID: "t1", Group: study.GroupTreatment, Time: 3, Event: study.StatusEvent},
		{SubjectID: "t2", Group: study.GroupTreatment, Time: 4, Event: study.StatusEvent},
	}
	got, err := LogRank(handDataset(obs))
	require.NoError(t, err)

	assert.InDelta(t, 2.0, got.Observed, 1e-12)
	assert.InDelta(t, 5.0/6.0, got.Expected, 1e-12)
	assert.InDelta(t, 2.88235, got.ChiSquare, 1e-4)
	assert.Equal(t, 1, got.DF)
	assert.InDelta(t, 0.0896, got.PValue, 2e-3)
}

func TestLogRank_DetectsGeneratingEffect(t *testing.T) {
	cfg := study.DefaultConfig()
	for _, cond := range cfg.Conditions {
		t.Run(cond.Label.String(), func(t *testing.T) {
			ds, _, _ := simulate(t, false, cond, 42)
			got, err := LogRank(ds)
			require.NoError(t, err)
			assert.Less(t, got.PValue, 0.01,
				"the generating treatment effect at n=500 should be unmistakable")
			assert.Positive(t, got.ChiSquare)
		})
	}
}

func TestLogRank_RequiresEventsInBothGroups(t *testing.T) {
	obs := []study.Observation{
		{SubjectID: "p1", Group: study.GroupPlacebo, Time: 1, Event: study.StatusEvent},
		{SubjectID: "p2", Group: study.GroupPlacebo, Time: 2, Event: study.StatusEvent},
		{SubjectID: "t1", Group: study.GroupTreatment, Time: 3, Event: study.StatusCensored},
	}
	_, err := LogRank(handDataset(obs))
	require.Error(t, err)
	assert.Equal(t, errors.CodeDegenerateSample, errors.GetCode(err))
}
