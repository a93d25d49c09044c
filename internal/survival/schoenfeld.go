package survival

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"survsim/domain/fit"
	"survsim/domain/study"
	"survsim/internal/errors"
)

// TimeTransform selects the transform of event time that the scaled
// Schoenfeld residuals are regressed against.
type TimeTransform string

const (
	TransformIdentity TimeTransform = "identity"
	TransformRank     TimeTransform = "rank"
)

// schoenfeldResiduals collects, per event in ascending time order, the
// residual x_i - xbar(R(t_i)) evaluated at beta.
func (d *coxData) schoenfeldResiduals(beta []float64) (times []float64, resids [][]float64) {
	n := len(d.times)
	p := d.p

	s0 := 0.0
	s1 := make([]float64, p)

	// reverse sweep mirrors the likelihood scan; events are prepended so the
	// returned slices end up in ascending time order
	i := n - 1
	for i >= 0 {
		t := d.times[d.order[i]]
		j := i
		for j >= 0 && d.times[d.order[j]] == t {
			idx := d.order[j]
			w := math.Exp(dot(d.x[idx], beta))
			s0 += w
			for a := 0; a < p; a++ {
				s1[a] += w * d.x[idx][a]
			}
			j--
		}
		var block [][]float64
		var blockTimes []float64
		for k := i; k > j; k-- {
			idx := d.order[k]
			if d.events[idx] == 1 {
				r := make([]float64, p)
				for a := 0; a < p; a++ {
					r[a] = d.x[idx][a] - s1[a]/s0
				}
				block = append(block, r)
				blockTimes = append(blockTimes, t)
			}
		}
		resids = append(block, resids...)
		times = append(blockTimes, times...)
		i = j
	}
	return times, resids
}

// PHTest runs the Schoenfeld-residual score test of the proportional-hazards
// assumption for a fitted Cox model: per covariate and globally, it checks for
// a trend of the residuals against the chosen time transform. The null
// hypothesis is proportional hazards, so non-rejection supports the model.
func PHTest(ds *study.Dataset, coxFit *fit.CoxFit, transform TimeTransform) (*fit.PHTestResult, error) {
	if coxFit == nil {
		return nil, errors.InvalidParameter("ph test requires a fitted cox model")
	}
	data := newCoxData(ds)
	p := data.p
	if p != len(coxFit.Coefs) {
		return nil, errors.InvalidParameterf("dataset has %d covariates but fit has %d coefficients", p, len(coxFit.Coefs))
	}

	times, resids := data.schoenfeldResiduals(coxFit.Coefs)
	d := len(resids)
	if d < 3 {
		return nil, errors.DegenerateSamplef("condition %q: only %d events, too few for the proportional-hazards test", ds.Condition, d)
	}

	// transform of time, centered
	g := make([]float64, d)
	for i := range g {
		switch transform {
		case TransformRank:
			g[i] = float64(i + 1)
		default:
			g[i] = times[i]
		}
	}
	gbar := 0.0
	for _, v := range g {
		gbar += v
	}
	gbar /= float64(d)
	denom := 0.0
	for i := range g {
		g[i] -= gbar
		denom += g[i] * g[i]
	}
	if denom == 0 {
		return nil, errors.DegenerateSamplef("condition %q: all events share one time, transform is constant", ds.Condition)
	}

	// z_k = sum over events of (g_i - gbar) * s_ik
	z := make([]float64, p)
	for i := range resids {
		for a := 0; a < p; a++ {
			z[a] += g[i] * resids[i][a]
		}
	}

	// total observed information at beta-hat
	_, _, info := data.scan(coxFit.Coefs, true)

	chi1 := distuv.ChiSquared{K: 1}
	out := &fit.PHTestResult{
		Transform:  string(transform),
		EventCount: d,
	}
	for a := 0; a < p; a++ {
		stat := float64(d) * z[a] * z[a] / (info.At(a, a) * denom)
		out.PerCov = append(out.PerCov, fit.PHCovariateTest{
			CovName:   coxFit.CovNames[a],
			ChiSquare: stat,
			DF:        1,
			PValue:    1 - chi1.CDF(stat),
		})
	}

	// global statistic: d * z' I^{-1} z / denom on p degrees of freedom
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, errors.NonConvergence("proportional-hazards test (singular information)", 0, maxAbs(z))
	}
	solved := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(solved, mat.NewVecDense(p, z)); err != nil {
		return nil, errors.NonConvergence("proportional-hazards test", 0, maxAbs(z))
	}
	global := 0.0
	for a := 0; a < p; a++ {
		global += z[a] * solved.AtVec(a)
	}
	global *= float64(d) / denom

	chip := distuv.ChiSquared{K: float64(p)}
	out.GlobalChi = global
	out.GlobalDF = p
	out.GlobalP = 1 - chip.CDF(global)
	return out, nil
}
