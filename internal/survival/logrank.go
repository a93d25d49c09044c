package survival

import (
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"survsim/domain/fit"
	"survsim/domain/study"
	"survsim/internal/errors"
)

// LogRank tests equality of the placebo and treatment survival distributions.
// The statistic is the usual (O-E)^2/V form with hypergeometric variances
// accumulated over distinct event times, referred to a chi-square on 1 df.
func LogRank(ds *study.Dataset) (*fit.LogRankResult, error) {
	placeboEvents, treatmentEvents := ds.GroupEventCounts()
	if placeboEvents == 0 || treatmentEvents == 0 {
		return nil, errors.DegenerateSamplef("condition %q: log-rank requires events in both groups (placebo=%d, treatment=%d)",
			ds.Condition, placeboEvents, treatmentEvents)
	}

	n := ds.Size()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return ds.Observations[order[a]].Time < ds.Observations[order[b]].Time
	})

	// at-risk counts shrink as the sweep advances through sorted times
	atRisk1 := 0 // placebo
	atRisk2 := 0
	for _, o := range ds.Observations {
		if o.Group == study.GroupTreatment {
			atRisk2++
		} else {
			atRisk1++
		}
	}

	observed1 := 0.0
	expected1 := 0.0
	variance := 0.0

	i := 0
	for i < n {
		t := ds.Observations[order[i]].Time
		d, d1 := 0, 0
		removed1, removed2 := 0, 0
		for i < n && ds.Observations[order[i]].Time == t {
			o := ds.Observations[order[i]]
			if o.Event == study.StatusEvent {
				d++
				if o.Group == study.GroupPlacebo {
					d1++
				}
			}
			if o.Group == study.GroupPlacebo {
				removed1++
			} else {
				removed2++
			}
			i++
		}
		total := atRisk1 + atRisk2
		if d > 0 && total > 1 {
			n1 := float64(atRisk1)
			n2 := float64(atRisk2)
			nt := float64(total)
			dt := float64(d)
			observed1 += float64(d1)
			expected1 += dt * n1 / nt
			variance += dt * (n1 / nt) * (n2 / nt) * (nt - dt) / (nt - 1)
		}
		atRisk1 -= removed1
		atRisk2 -= removed2
	}

	if variance <= 0 {
		return nil, errors.DegenerateSamplef("condition %q: log-rank variance is zero", ds.Condition)
	}

	diff := observed1 - expected1
	chi := diff * diff / variance
	chiDist := distuv.ChiSquared{K: 1}
	return &fit.LogRankResult{
		ChiSquare: chi,
		DF:        1,
		PValue:    1 - chiDist.CDF(chi),
		Observed:  observed1,
		Expected:  expected1,
	}, nil
}
