package study

import (
	"survsim/domain/core"
	"survsim/domain/fit"
)

// CoefficientSummary compares one fitted Cox coefficient against its true
// generating value under a single censoring condition.
type CoefficientSummary struct {
	CovName     string  `json:"covariate"`
	TrueValue   float64 `json:"true_value"`
	Estimate    float64 `json:"estimate"`
	SE          float64 `json:"standard_error"`
	Bias        float64 `json:"bias"`
	HazardRatio float64 `json:"hazard_ratio"`
	HRLower     float64 `json:"hr_ci_lower"`
	HRUpper     float64 `json:"hr_ci_upper"`
	PValue      float64 `json:"p_value"`
}

// ConditionSummary is the collected output for one censoring condition within
// one design. Err is set when this condition's pipeline failed; other
// conditions are unaffected.
type ConditionSummary struct {
	Design           core.DesignKey       `json:"design"`
	Condition        core.ConditionKey    `json:"condition"`
	CensoringMean    Days                 `json:"censoring_mean"`
	CensoredFraction float64              `json:"realized_censored_fraction"`
	Events           int                  `json:"events"`
	MedianObserved   float64              `json:"median_observed_time"`
	MaxObserved      float64              `json:"max_observed_time"`
	Coefficients     []CoefficientSummary `json:"coefficients,omitempty"`
	Cox              *fit.CoxFit          `json:"cox,omitempty"`
	Curves           []fit.KMCurve        `json:"km_curves,omitempty"`
	LogRank          *fit.LogRankResult   `json:"log_rank,omitempty"`
	PHTest           *fit.PHTestResult    `json:"ph_test,omitempty"`
	Err              string               `json:"error,omitempty"`
}

// Failed reports whether this condition's pipeline aborted
func (s ConditionSummary) Failed() bool {
	return s.Err != ""
}

// DesignValidation holds the Weibull AFT fit used to verify that the sampler
// recovers its generating parameters for one design.
type DesignValidation struct {
	Design core.DesignKey `json:"design"`
	AFT    *fit.AFTFit    `json:"aft"`
	Err    string         `json:"error,omitempty"`
}

// Result is the complete output of one study run across all designs and
// censoring conditions.
type Result struct {
	RunID       core.RunID         `json:"run_id"`
	Config      Config             `json:"config"`
	Validations []DesignValidation `json:"aft_validations,omitempty"`
	Conditions  []ConditionSummary `json:"conditions"`
	RuntimeMs   int64              `json:"runtime_ms"`
	StartedAt   core.Timestamp     `json:"started_at"`
}

// FailedConditions returns the summaries whose pipelines aborted
func (r Result) FailedConditions() []ConditionSummary {
	var failed []ConditionSummary
	for _, c := range r.Conditions {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}
