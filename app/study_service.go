package app

import (
	"context"
	"time"

	"survsim/domain/core"
	"survsim/domain/study"
	"survsim/internal"
	"survsim/internal/censoring"
	"survsim/internal/errors"
	"survsim/internal/sampler"
	"survsim/internal/survival"
	"survsim/ports"
)

// StudyService orchestrates one full run of the censoring study: for every
// design and censoring condition it generates, censors, fits and diagnoses,
// collecting the per-condition comparison rows. A failure in one condition is
// recorded on its summary and never aborts the other conditions.
type StudyService struct {
	rngPort ports.RNGPort
	logger  *internal.Logger
}

// RunRequest defines the inputs of a deterministic study run
type RunRequest struct {
	Config    study.Config
	RunID     core.RunID // optional, generated if empty
	Transform survival.TimeTransform
}

// NewStudyService creates a study service
func NewStudyService(rngPort ports.RNGPort, logger *internal.Logger) *StudyService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &StudyService{rngPort: rngPort, logger: logger}
}

// Run executes the full study. Invalid generating parameters fail fast,
// before any sampling; everything downstream is isolated per condition.
func (s *StudyService) Run(ctx context.Context, req RunRequest) (*study.Result, error) {
	startTime := time.Now()

	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidParameter(err.Error()), "study rejected")
	}

	runID := req.RunID
	if runID == "" {
		runID = core.RunID(core.NewID())
	}
	transform := req.Transform
	if transform == "" {
		transform = survival.TransformRank
	}

	engine, err := censoring.NewEngine(cfg.HorizonDays)
	if err != nil {
		return nil, err
	}

	result := &study.Result{
		RunID:     runID,
		Config:    cfg,
		StartedAt: core.Now(),
	}

	for _, design := range cfg.Designs {
		cohortRNG, err := s.rngPort.SeededStream(ctx, "cohort/"+design.Key.String(), cfg.Seed)
		if err != nil {
			return nil, err
		}
		cohort, err := sampler.NewGenerator(cfg, design, cohortRNG).Cohort(runID)
		if err != nil {
			return nil, err
		}
		covNames := covariateNames(design)
		s.logger.Info("generated cohort: design=%s n=%d", design.Key, cohort.Size())

		result.Validations = append(result.Validations, s.validateSampler(ctx, engine, cohort, design, covNames))

		for _, cond := range cfg.Conditions {
			summary := s.runCondition(ctx, engine, cohort, cfg, design, cond, covNames, transform)
			if summary.Failed() {
				s.logger.Warn("condition aborted: design=%s condition=%s err=%s", design.Key, cond.Label, summary.Err)
			} else {
				s.logger.Info("condition done: design=%s condition=%s censored=%.1f%% events=%d",
					design.Key, cond.Label, 100*summary.CensoredFraction, summary.Events)
			}
			result.Conditions = append(result.Conditions, summary)
		}
	}

	result.RuntimeMs = time.Since(startTime).Milliseconds()
	return result, nil
}

// validateSampler fits the Weibull AFT model on the horizon-only view of the
// cohort to confirm the generator's parameters are recoverable.
func (s *StudyService) validateSampler(ctx context.Context, engine *censoring.Engine, cohort *study.Cohort, design study.Design, covNames []string) study.DesignValidation {
	v := study.DesignValidation{Design: design.Key}

	uncensored := study.CensoringCondition{Label: "aft-validation", SkipRandom: true}
	// no random draws happen with SkipRandom set, so any stream works
	ds, err := engine.Apply(nil, cohort, uncensored)
	if err != nil {
		v.Err = err.Error()
		return v
	}
	aft, err := survival.FitWeibullAFT(ds, covNames)
	if err != nil {
		v.Err = err.Error()
		return v
	}
	v.AFT = aft
	s.logger.Debug("aft validation: design=%s intercept=%.3f shape=%.3f", design.Key, aft.Intercept, aft.Shape())
	return v
}

// runCondition executes the generate-derived pipeline for one censoring arm.
// Errors are folded into the returned summary, keeping conditions isolated.
func (s *StudyService) runCondition(ctx context.Context, engine *censoring.Engine, cohort *study.Cohort,
	cfg study.Config, design study.Design, cond study.CensoringCondition, covNames []string,
	transform survival.TimeTransform) study.ConditionSummary {

	summary := study.ConditionSummary{
		Design:        design.Key,
		Condition:     cond.Label,
		CensoringMean: cond.Mean,
	}

	censRNG, err := s.rngPort.SeededStream(ctx, "censoring/"+design.Key.String()+"/"+cond.Label.String(), cfg.Seed)
	if err != nil {
		summary.Err = err.Error()
		return summary
	}
	ds, err := engine.Apply(censRNG, cohort, cond)
	if err != nil {
		summary.Err = err.Error()
		return summary
	}
	rep := censoring.Report(ds)
	summary.CensoredFraction = rep.CensoredFraction
	summary.Events = rep.Events
	summary.MedianObserved = rep.MedianObserved
	summary.MaxObserved = rep.MaxObserved

	for _, group := range []study.Group{study.GroupPlacebo, study.GroupTreatment} {
		curve, err := survival.KaplanMeier(ds, group)
		if err != nil {
			summary.Err = err.Error()
			return summary
		}
		summary.Curves = append(summary.Curves, *curve)
	}

	coxFit, err := survival.FitCox(ds, covNames)
	if err != nil {
		summary.Err = err.Error()
		return summary
	}
	summary.Cox = coxFit

	logRank, err := survival.LogRank(ds)
	if err != nil {
		summary.Err = err.Error()
		return summary
	}
	summary.LogRank = logRank

	phTest, err := survival.PHTest(ds, coxFit, transform)
	if err != nil {
		summary.Err = err.Error()
		return summary
	}
	summary.PHTest = phTest

	trueCoefs := cfg.TrueCoxCoefs(design)
	for i, name := range covNames {
		summary.Coefficients = append(summary.Coefficients, study.CoefficientSummary{
			CovName:     name,
			TrueValue:   trueCoefs[i],
			Estimate:    coxFit.Coefs[i],
			SE:          coxFit.SEs[i],
			Bias:        coxFit.Coefs[i] - trueCoefs[i],
			HazardRatio: coxFit.HazardRatios[i],
			HRLower:     coxFit.HRLower[i],
			HRUpper:     coxFit.HRUpper[i],
			PValue:      coxFit.PValues[i],
		})
	}
	return summary
}

func covariateNames(design study.Design) []string {
	if design.WithCovariate {
		return []string{"treatment", "cigarettes_per_day"}
	}
	return []string{"treatment"}
}
