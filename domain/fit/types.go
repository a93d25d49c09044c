// Package fit defines the immutable result records produced by the model
// fitting layer. Fits carry no optimizer state; once constructed they are
// read-only artifacts consumed by the diagnostics and reporting layers.
package fit

// CoxFit is the result of a Cox proportional-hazards partial-likelihood fit
type CoxFit struct {
	CovNames      []string    `json:"covariate_names"`
	Coefs         []float64   `json:"coefficients"`
	SEs           []float64   `json:"standard_errors"`
	ZStats        []float64   `json:"z_statistics"`
	PValues       []float64   `json:"p_values"`
	HazardRatios  []float64   `json:"hazard_ratios"`
	HRLower       []float64   `json:"hr_ci_lower"`
	HRUpper       []float64   `json:"hr_ci_upper"`
	Covariance    [][]float64 `json:"covariance"`
	LogPartialLik float64     `json:"log_partial_likelihood"`
	Events        int         `json:"events"`
	N             int         `json:"n"`
	Iterations    int         `json:"iterations"`
	TieMethod     string      `json:"tie_method"`
}

// AFTFit is the result of a Weibull accelerated-failure-time maximum
// likelihood fit. Scale is the AFT sigma; 1/Scale recovers the Weibull shape.
type AFTFit struct {
	CovNames   []string  `json:"covariate_names"`
	Intercept  float64   `json:"intercept"`
	Coefs      []float64 `json:"coefficients"`
	Scale      float64   `json:"scale"`
	SEs        []float64 `json:"standard_errors"` // intercept, coefs..., log(scale)
	LogLik     float64   `json:"log_likelihood"`
	Events     int       `json:"events"`
	N          int       `json:"n"`
	Iterations int       `json:"iterations"`
}

// Shape returns the implied Weibull shape parameter
func (f AFTFit) Shape() float64 {
	return 1 / f.Scale
}

// KMPoint is one step of a Kaplan-Meier survival curve, with the at-risk and
// censored counts needed for risk-table rendering.
type KMPoint struct {
	Time     float64 `json:"time"`
	Survival float64 `json:"survival"`
	Lower    float64 `json:"ci_lower"`
	Upper    float64 `json:"ci_upper"`
	AtRisk   int     `json:"at_risk"`
	Events   int     `json:"events"`
	Censored int     `json:"censored"`
}

// KMCurve is the nonparametric survival-function estimate for one group
type KMCurve struct {
	Group  string    `json:"group"`
	Points []KMPoint `json:"points"`
	N      int       `json:"n"`
	Events int       `json:"events"`
}

// SurvivalAt returns the step-function estimate at time t
func (c KMCurve) SurvivalAt(t float64) float64 {
	s := 1.0
	for _, p := range c.Points {
		if p.Time > t {
			break
		}
		s = p.Survival
	}
	return s
}

// LogRankResult is the two-group test of equal survival distributions
type LogRankResult struct {
	ChiSquare float64 `json:"chi_square"`
	DF        int     `json:"df"`
	PValue    float64 `json:"p_value"`
	Observed  float64 `json:"observed_events_group1"`
	Expected  float64 `json:"expected_events_group1"`
}

// PHCovariateTest is the proportional-hazards check for one covariate
type PHCovariateTest struct {
	CovName   string  `json:"covariate"`
	ChiSquare float64 `json:"chi_square"`
	DF        int     `json:"df"`
	PValue    float64 `json:"p_value"`
}

// PHTestResult is the Schoenfeld-residual proportional-hazards diagnostic.
// Non-rejection (p above the usual thresholds) supports the PH assumption.
type PHTestResult struct {
	Transform  string            `json:"time_transform"`
	PerCov     []PHCovariateTest `json:"per_covariate"`
	GlobalChi  float64           `json:"global_chi_square"`
	GlobalDF   int               `json:"global_df"`
	GlobalP    float64           `json:"global_p_value"`
	EventCount int               `json:"events"`
}
