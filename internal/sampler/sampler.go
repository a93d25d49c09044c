// Package sampler draws the latent quantities of the simulation: Weibull
// event times and left-truncated normal covariates. All draws go through an
// explicit *rand.Rand handle; there is no package-level RNG state, so two
// generators built from the same seed produce identical cohorts.
package sampler

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"survsim/domain/core"
	"survsim/domain/study"
	"survsim/internal/errors"
)

// WeibullTime draws one event time from Weibull(shape, scale) by inverse-CDF
// sampling, so the draw consumes exactly one uniform from the stream.
func WeibullTime(rng *rand.Rand, shape, scale float64) (float64, error) {
	if shape <= 0 {
		return 0, errors.InvalidParameterf("weibull shape must be positive, got %g", shape)
	}
	if scale <= 0 || math.IsInf(scale, 1) || math.IsNaN(scale) {
		return 0, errors.InvalidParameterf("weibull scale must be positive and finite, got %g", scale)
	}
	dist := distuv.Weibull{K: shape, Lambda: scale}
	u := rng.Float64()
	if u == 0 {
		// Quantile(0) is 0, outside the Weibull support
		u = math.SmallestNonzeroFloat64
	}
	return dist.Quantile(u), nil
}

// TruncatedNormal draws from Normal(mean, sd) left-truncated at lower, by
// mapping a uniform into the truncated region of the CDF. Only values >= lower
// are ever produced.
func TruncatedNormal(rng *rand.Rand, mean, sd, lower float64) (float64, error) {
	if sd <= 0 {
		return 0, errors.InvalidParameterf("truncated normal sd must be positive, got %g", sd)
	}
	dist := distuv.Normal{Mu: mean, Sigma: sd}
	pLower := dist.CDF(lower)
	p := pLower + rng.Float64()*(1-pLower)
	if p >= 1 {
		// Quantile(1) is +Inf; clamp just inside the upper tail
		p = math.Nextafter(1, 0)
	}
	x := dist.Quantile(p)
	if x < lower {
		x = lower
	}
	return x, nil
}

// Generator produces cohorts for one design under a fixed configuration and
// RNG handle.
type Generator struct {
	cfg    study.Config
	design study.Design
	rng    *rand.Rand
}

// NewGenerator creates a cohort generator. The caller owns the RNG handle and
// its seeding.
func NewGenerator(cfg study.Config, design study.Design, rng *rand.Rand) *Generator {
	return &Generator{cfg: cfg, design: design, rng: rng}
}

// Cohort draws covariates and latent event times for every subject. Subjects
// are assigned to arms deterministically (first half placebo, second half
// treatment) so the randomization never competes with the seed for draws.
// The latent event time follows Weibull(shape, exp(beta0 + sum(beta_i z_i))).
func (g *Generator) Cohort(runID core.RunID) (*study.Cohort, error) {
	if err := g.cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidParameter(err.Error()), "cohort generation rejected")
	}

	subjects := make([]study.Subject, g.cfg.N)
	for i := 0; i < g.cfg.N; i++ {
		group := study.GroupPlacebo
		if i >= g.cfg.N/2 {
			group = study.GroupTreatment
		}

		var covs []float64
		eta := g.cfg.ScaleBase + g.cfg.BetaTreatment*group.Indicator()
		if g.design.WithCovariate {
			cig, err := TruncatedNormal(g.rng, g.cfg.CovariateMean, g.cfg.CovariateSD, 0)
			if err != nil {
				return nil, err
			}
			covs = []float64{cig}
			eta += g.cfg.BetaCovariate * cig
		}

		latent, err := WeibullTime(g.rng, g.cfg.Shape, math.Exp(eta))
		if err != nil {
			return nil, errors.Wrapf(err, "subject %d", i)
		}

		subjects[i] = study.Subject{
			ID:            core.SubjectID(fmt.Sprintf("subject_%04d", i+1)),
			Group:         group,
			Covariates:    covs,
			LatentTime:    latent,
			CensoringTime: math.Inf(1), // drawn per condition by the censoring engine
		}
	}

	return &study.Cohort{
		RunID:    runID,
		Design:   g.design.Key,
		Subjects: subjects,
		Created:  core.Now(),
	}, nil
}
