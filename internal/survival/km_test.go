package survival

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survsim/domain/study"
	"survsim/internal/errors"
)

func TestKaplanMeier_MatchesHandComputation(t *testing.T) {
	obs := []study.Observation{
		{SubjectID: "p1", Group: study.GroupPlacebo, Time: 1, Event: study.StatusEvent},
		{SubjectID: "p2", Group: study.GroupPlacebo, Time: 2, Event: study.StatusEvent},
		{SubjectID: "p3", Group: study.GroupPlacebo, Time: 3, Event: study.StatusCensored},
		{SubjectID: "p4", Group: study.GroupPlacebo, Time: 4, Event: study.StatusEvent},
		{SubjectID: "p5", Group: study.GroupPlacebo, Time: 5, Event: study.StatusCensored},
		// a second arm confirms the group filter
		{SubjectID: "t1", Group: study.GroupTreatment, Time: 6, Event: study.StatusEvent},
	}
	curve, err := KaplanMeier(handDataset(obs), study.GroupPlacebo)
	require.NoError(t, err)

	assert.Equal(t, "placebo", curve.Group)
	assert.Equal(t, 5, curve.N)
	assert.Equal(t, 3, curve.Events)
	require.Len(t, curve.Points, 5)

	wantSurv := []float64{0.8, 0.6, 0.6, 0.3, 0.3}
	wantAtRisk := []int{5, 4, 3, 2, 1}
	wantEvents := []int{1, 1, 0, 1, 0}
	wantCensored := []int{0, 0, 1, 0, 1}
	for i, p := range curve.Points {
		assert.Equal(t, float64(i+1), p.Time)
		assert.InDelta(t, wantSurv[i], p.Survival, 1e-12)
		assert.Equal(t, wantAtRisk[i], p.AtRisk)
		assert.Equal(t, wantEvents[i], p.Events)
		assert.Equal(t, wantCensored[i], p.Censored)
	}

	assert.InDelta(t, 1.0, curve.SurvivalAt(0.5), 1e-12)
	assert.InDelta(t, 0.6, curve.SurvivalAt(3.5), 1e-12)
	assert.InDelta(t, 0.3, curve.SurvivalAt(100), 1e-12)
}

func TestKaplanMeier_StepFunctionProperties(t *testing.T) {
	ds, _, _ := simulate(t, false, study.CensoringCondition{Label: "moderate", Mean: 120, SD: 40}, 42)
	for _, group := range []study.Group{study.GroupPlacebo, study.GroupTreatment} {
		curve, err := KaplanMeier(ds, group)
		require.NoError(t, err)
		require.NotEmpty(t, curve.Points)

		prevSurv := 1.0
		prevTime := 0.0
		for _, p := range curve.Points {
			assert.Greater(t, p.Time, prevTime, "points are in strictly ascending time order")
			assert.LessOrEqual(t, p.Survival, prevSurv, "the estimate never increases")
			assert.GreaterOrEqual(t, p.Survival, 0.0)
			assert.LessOrEqual(t, p.Lower, p.Survival)
			assert.GreaterOrEqual(t, p.Upper, p.Survival)
			assert.GreaterOrEqual(t, p.Lower, 0.0)
			assert.LessOrEqual(t, p.Upper, 1.0)
			prevSurv = p.Survival
			prevTime = p.Time
		}
	}
}

func TestKaplanMeier_TreatmentSurvivesLonger(t *testing.T) {
	// the generating treatment effect prolongs survival, so the treatment
	// curve should sit above the placebo curve at the horizon midpoint
	ds, cfg, _ := simulate(t, false, study.CensoringCondition{Label: "none", SkipRandom: true}, 42)
	placebo, err := KaplanMeier(ds, study.GroupPlacebo)
	require.NoError(t, err)
	treatment, err := KaplanMeier(ds, study.GroupTreatment)
	require.NoError(t, err)

	mid := cfg.HorizonDays / 2
	assert.Greater(t, treatment.SurvivalAt(mid), placebo.SurvivalAt(mid))
}

func TestKaplanMeier_RejectsDegenerateGroups(t *testing.T) {
	empty := handDataset([]study.Observation{
		{SubjectID: "t1", Group: study.GroupTreatment, Time: 6, Event: study.StatusEvent},
	})
	_, err := KaplanMeier(empty, study.GroupPlacebo)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDegenerateSample, errors.GetCode(err))

	whollyCensored := handDataset([]study.Observation{
		{SubjectID: "p1", Group: study.GroupPlacebo, Time: 4, Event: study.StatusCensored},
		{SubjectID: "p2", Group: study.GroupPlacebo, Time: 9, Event: study.StatusCensored},
	})
	_, err = KaplanMeier(whollyCensored, study.GroupPlacebo)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDegenerateSample, errors.GetCode(err))
}
