package survival

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"survsim/domain/fit"
	"survsim/domain/study"
	"survsim/internal/errors"
)

// KaplanMeier computes the product-limit survival estimate for one group of a
// derived dataset, with Greenwood variances and complementary log-log
// pointwise confidence bands. Every distinct observed time appears as a point
// so risk tables can be rendered, including censoring-only times where the
// estimate does not drop.
func KaplanMeier(ds *study.Dataset, group study.Group) (*fit.KMCurve, error) {
	type obs struct {
		time  float64
		event int
	}
	var rows []obs
	for _, o := range ds.Observations {
		if o.Group == group {
			rows = append(rows, obs{time: o.Time, event: int(o.Event)})
		}
	}
	if len(rows) == 0 {
		return nil, errors.DegenerateSamplef("condition %q: group %q has no subjects", ds.Condition, group)
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].time < rows[b].time })

	z975 := distuv.UnitNormal.Quantile(0.975)
	curve := &fit.KMCurve{Group: string(group), N: len(rows)}

	surv := 1.0
	varSum := 0.0 // running Greenwood sum d/(n(n-d))
	i := 0
	for i < len(rows) {
		t := rows[i].time
		atRisk := len(rows) - i
		d, c := 0, 0
		for i < len(rows) && rows[i].time == t {
			if rows[i].event == 1 {
				d++
			} else {
				c++
			}
			i++
		}
		if d > 0 {
			surv *= 1 - float64(d)/float64(atRisk)
			if atRisk > d {
				varSum += float64(d) / (float64(atRisk) * float64(atRisk-d))
			}
		}

		lower, upper := cloglogBand(surv, varSum, z975)
		curve.Points = append(curve.Points, fit.KMPoint{
			Time:     t,
			Survival: surv,
			Lower:    lower,
			Upper:    upper,
			AtRisk:   atRisk,
			Events:   d,
			Censored: c,
		})
		curve.Events += d
	}
	if curve.Events == 0 {
		return nil, errors.DegenerateSamplef("condition %q: group %q is wholly censored", ds.Condition, group)
	}
	return curve, nil
}

// cloglogBand computes the log(-log) transformed pointwise confidence bounds,
// which stay inside (0, 1) by construction.
func cloglogBand(surv, varSum, z float64) (lower, upper float64) {
	if surv <= 0 {
		return 0, 0
	}
	if surv >= 1 || varSum == 0 {
		return surv, surv
	}
	logS := math.Log(surv)
	se := math.Sqrt(varSum) / math.Abs(logS)
	lower = math.Pow(surv, math.Exp(z*se))
	upper = math.Pow(surv, math.Exp(-z*se))
	return lower, upper
}
