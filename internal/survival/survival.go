// Package survival implements the model fitting layer of the study: Weibull
// accelerated-failure-time fits for data-generation verification, Cox
// proportional-hazards fits by partial likelihood for the study endpoints,
// Kaplan-Meier estimators, the log-rank test, and the Schoenfeld-residual
// proportional-hazards diagnostic.
//
// Every fit returns an immutable result record from domain/fit. Degenerate
// inputs (no events, an all-censored group, a zero-variance covariate) are
// rejected before any optimizer runs, and optimizer failures surface as
// non-convergence errors carrying the iteration count and final gradient norm.
package survival

import (
	"math"

	"survsim/domain/study"
	"survsim/internal/errors"
)

func dot(x, b []float64) float64 {
	s := 0.0
	for i := range b {
		s += x[i] * b[i]
	}
	return s
}

func sampleVariance(col []float64) float64 {
	if len(col) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range col {
		mean += v
	}
	mean /= float64(len(col))
	ss := 0.0
	for _, v := range col {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(col)-1)
}

// checkRegressable rejects datasets the optimizers must never see
func checkRegressable(ds *study.Dataset, x [][]float64, covNames []string) error {
	if ds.Size() == 0 {
		return errors.DegenerateSample("dataset is empty")
	}
	if ds.EventCount() == 0 {
		return errors.DegenerateSamplef("condition %q: no events observed, all %d subjects censored", ds.Condition, ds.Size())
	}
	placebo, treatment := ds.GroupEventCounts()
	if placebo == 0 {
		return errors.DegenerateSamplef("condition %q: placebo group is wholly censored", ds.Condition)
	}
	if treatment == 0 {
		return errors.DegenerateSamplef("condition %q: treatment group is wholly censored", ds.Condition)
	}
	for j := range covNames {
		col := make([]float64, len(x))
		for i := range x {
			col[i] = x[i][j]
		}
		if sampleVariance(col) == 0 {
			return errors.DegenerateSamplef("condition %q: covariate %q has zero variance", ds.Condition, covNames[j])
		}
	}
	return nil
}

// maxAbs returns the infinity norm of a vector
func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
