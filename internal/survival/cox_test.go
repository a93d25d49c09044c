package survival

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survsim/domain/study"
	"survsim/internal/errors"
)

func TestFitCox_RecoversGeneratingCoefficient(t *testing.T) {
	cfg := study.DefaultConfig()
	for _, cond := range cfg.Conditions {
		t.Run(cond.Label.String(), func(t *testing.T) {
			ds, cfg, design := simulate(t, false, cond, 42)
			got, err := FitCox(ds, covNamesFor(false))
			require.NoError(t, err)

			trueCoef := cfg.TrueCoxCoefs(design)[0]
			require.Len(t, got.Coefs, 1)
			assert.Negative(t, got.Coefs[0])
			assert.InDelta(t, trueCoef, got.Coefs[0], 2*got.SEs[0],
				"estimate should land within sampling error of the generating value")

			assert.Positive(t, got.SEs[0])
			assert.Less(t, got.PValues[0], 0.05, "the generating treatment effect is large enough to detect")
			assert.InDelta(t, math.Exp(got.Coefs[0]), got.HazardRatios[0], 1e-12)
			assert.Less(t, got.HRLower[0], got.HazardRatios[0])
			assert.Greater(t, got.HRUpper[0], got.HazardRatios[0])
			assert.Equal(t, "breslow", got.TieMethod)
			assert.Positive(t, got.Iterations)
			assert.Equal(t, ds.EventCount(), got.Events)
			assert.Equal(t, ds.Size(), got.N)
		})
	}
}

func TestFitCox_TwoCovariateDesign(t *testing.T) {
	cfg := study.DefaultConfig()
	ds, cfg, design := simulate(t, true, cfg.Conditions[0], 42)
	got, err := FitCox(ds, covNamesFor(true))
	require.NoError(t, err)

	trueCoefs := cfg.TrueCoxCoefs(design)
	require.Len(t, got.Coefs, 2)
	for i := range got.Coefs {
		assert.Negative(t, got.Coefs[i])
		assert.InDelta(t, trueCoefs[i], got.Coefs[i], 3*got.SEs[i])
	}
	require.Len(t, got.Covariance, 2)
	assert.InDelta(t, got.SEs[0]*got.SEs[0], got.Covariance[0][0], 1e-12)
	assert.Equal(t, got.Covariance[0][1], got.Covariance[1][0])
}

func TestFitCox_NullEffectStaysNearZero(t *testing.T) {
	cfg := study.DefaultConfig()
	cfg.BetaTreatment = 0
	ds, _, _ := simulate2(t, cfg, false, cfg.Conditions[0], 7)
	got, err := FitCox(ds, covNamesFor(false))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got.Coefs[0], 3*got.SEs[0])
}

func TestFitCox_RejectsDegenerateDatasets(t *testing.T) {
	tests := []struct {
		name string
		obs  []study.Observation
	}{
		{"empty", nil},
		{"all censored", []study.Observation{
			{SubjectID: "a", Group: study.GroupPlacebo, Time: 10, Event: study.StatusCensored},
			{SubjectID: "b", Group: study.GroupTreatment, Time: 20, Event: study.StatusCensored},
		}},
		{"placebo wholly censored", []study.Observation{
			{SubjectID: "a", Group: study.GroupPlacebo, Time: 10, Event: study.StatusCensored},
			{SubjectID: "b", Group: study.GroupTreatment, Time: 20, Event: study.StatusEvent},
			{SubjectID: "c", Group: study.GroupTreatment, Time: 30, Event: study.StatusEvent},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FitCox(handDataset(tc.obs), covNamesFor(false))
			require.Error(t, err)
			assert.Equal(t, errors.CodeDegenerateSample, errors.GetCode(err))
		})
	}
}

func TestFitCox_RejectsZeroVarianceCovariate(t *testing.T) {
	obs := []study.Observation{
		{SubjectID: "a", Group: study.GroupPlacebo, Covariates: []float64{5}, Time: 10, Event: study.StatusEvent},
		{SubjectID: "b", Group: study.GroupPlacebo, Covariates: []float64{5}, Time: 15, Event: study.StatusEvent},
		{SubjectID: "c", Group: study.GroupTreatment, Covariates: []float64{5}, Time: 20, Event: study.StatusEvent},
		{SubjectID: "d", Group: study.GroupTreatment, Covariates: []float64{5}, Time: 25, Event: study.StatusEvent},
	}
	_, err := FitCox(handDataset(obs), covNamesFor(true))
	require.Error(t, err)
	assert.Equal(t, errors.CodeDegenerateSample, errors.GetCode(err))
}

func TestFitCox_RejectsCovNameMismatch(t *testing.T) {
	ds, _, _ := simulate(t, false, study.CensoringCondition{Label: "none", SkipRandom: true}, 42)
	_, err := FitCox(ds, []string{"treatment", "extra"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParameter, errors.GetCode(err))
}
