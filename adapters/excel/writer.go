// Package excel renders a completed study run to a workbook: the
// cross-condition comparison table, realized censoring fractions, and the
// survival-curve plot data with at-risk counts for risk tables.
package excel

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"survsim/domain/study"
	"survsim/internal/errors"
)

const (
	comparisonSheet = "comparison"
	censoringSheet  = "censoring"
	curvesSheet     = "curves"
	validationSheet = "aft_validation"
)

// WriterConfig configures the workbook writer
type WriterConfig struct {
	Dir string
}

// Writer renders study results to xlsx workbooks
type Writer struct {
	cfg WriterConfig
}

// NewWriter creates a workbook writer
func NewWriter(cfg WriterConfig) *Writer {
	return &Writer{cfg: cfg}
}

// Write renders the result and returns the workbook path
func (w *Writer) Write(result *study.Result) (string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return "", errors.ReportError("could not create report directory", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeComparison(f, result); err != nil {
		return "", err
	}
	if err := w.writeCensoring(f, result); err != nil {
		return "", err
	}
	if err := w.writeCurves(f, result); err != nil {
		return "", err
	}
	if err := w.writeValidation(f, result); err != nil {
		return "", err
	}
	// drop the default sheet created by excelize
	if idx, err := f.GetSheetIndex(comparisonSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", errors.ReportError("could not drop default sheet", err)
	}

	path := filepath.Join(w.cfg.Dir, fmt.Sprintf("survsim_%s.xlsx", result.RunID))
	if err := f.SaveAs(path); err != nil {
		return "", errors.ReportError("could not save workbook", err)
	}
	return path, nil
}

func (w *Writer) writeComparison(f *excelize.File, result *study.Result) error {
	if _, err := f.NewSheet(comparisonSheet); err != nil {
		return errors.ReportError("could not create comparison sheet", err)
	}
	headers := []interface{}{
		"design", "condition", "censoring_mean", "censored_fraction", "events",
		"covariate", "true_coef", "estimate", "se", "bias",
		"hazard_ratio", "hr_ci_lower", "hr_ci_upper", "p_value",
		"logrank_p", "ph_global_p", "error",
	}
	if err := f.SetSheetRow(comparisonSheet, "A1", &headers); err != nil {
		return errors.ReportError("could not write comparison header", err)
	}

	row := 2
	for _, cond := range result.Conditions {
		if cond.Failed() {
			vals := []interface{}{
				cond.Design.String(), cond.Condition.String(), meanLabel(cond.CensoringMean),
				cond.CensoredFraction, cond.Events,
				"", "", "", "", "", "", "", "", "", "", "", cond.Err,
			}
			if err := f.SetSheetRow(comparisonSheet, fmt.Sprintf("A%d", row), &vals); err != nil {
				return errors.ReportError("could not write comparison row", err)
			}
			row++
			continue
		}
		for _, coef := range cond.Coefficients {
			vals := []interface{}{
				cond.Design.String(), cond.Condition.String(), meanLabel(cond.CensoringMean),
				cond.CensoredFraction, cond.Events,
				coef.CovName, coef.TrueValue, coef.Estimate, coef.SE, coef.Bias,
				coef.HazardRatio, coef.HRLower, coef.HRUpper, coef.PValue,
				cond.LogRank.PValue, cond.PHTest.GlobalP, "",
			}
			if err := f.SetSheetRow(comparisonSheet, fmt.Sprintf("A%d", row), &vals); err != nil {
				return errors.ReportError("could not write comparison row", err)
			}
			row++
		}
	}
	return nil
}

func (w *Writer) writeCensoring(f *excelize.File, result *study.Result) error {
	if _, err := f.NewSheet(censoringSheet); err != nil {
		return errors.ReportError("could not create censoring sheet", err)
	}
	headers := []interface{}{
		"design", "condition", "censoring_mean", "n", "events",
		"censored_fraction", "median_observed_time", "max_observed_time",
	}
	if err := f.SetSheetRow(censoringSheet, "A1", &headers); err != nil {
		return errors.ReportError("could not write censoring header", err)
	}
	for i, cond := range result.Conditions {
		n := 0
		if !cond.Failed() {
			n = result.Config.N
		}
		vals := []interface{}{
			cond.Design.String(), cond.Condition.String(), meanLabel(cond.CensoringMean),
			n, cond.Events, cond.CensoredFraction,
			cond.MedianObserved, cond.MaxObserved,
		}
		if err := f.SetSheetRow(censoringSheet, fmt.Sprintf("A%d", i+2), &vals); err != nil {
			return errors.ReportError("could not write censoring row", err)
		}
	}
	return nil
}

func (w *Writer) writeCurves(f *excelize.File, result *study.Result) error {
	if _, err := f.NewSheet(curvesSheet); err != nil {
		return errors.ReportError("could not create curves sheet", err)
	}
	headers := []interface{}{
		"design", "condition", "group", "time", "survival",
		"ci_lower", "ci_upper", "at_risk", "events", "censored",
	}
	if err := f.SetSheetRow(curvesSheet, "A1", &headers); err != nil {
		return errors.ReportError("could not write curves header", err)
	}
	row := 2
	for _, cond := range result.Conditions {
		for _, curve := range cond.Curves {
			for _, p := range curve.Points {
				vals := []interface{}{
					cond.Design.String(), cond.Condition.String(), curve.Group,
					p.Time, p.Survival, p.Lower, p.Upper, p.AtRisk, p.Events, p.Censored,
				}
				if err := f.SetSheetRow(curvesSheet, fmt.Sprintf("A%d", row), &vals); err != nil {
					return errors.ReportError("could not write curve row", err)
				}
				row++
			}
		}
	}
	return nil
}

func (w *Writer) writeValidation(f *excelize.File, result *study.Result) error {
	if _, err := f.NewSheet(validationSheet); err != nil {
		return errors.ReportError("could not create validation sheet", err)
	}
	headers := []interface{}{"design", "intercept", "scale", "implied_shape", "log_likelihood", "iterations", "error"}
	if err := f.SetSheetRow(validationSheet, "A1", &headers); err != nil {
		return errors.ReportError("could not write validation header", err)
	}
	for i, v := range result.Validations {
		vals := []interface{}{v.Design.String(), "", "", "", "", "", v.Err}
		if v.AFT != nil {
			vals = []interface{}{
				v.Design.String(), v.AFT.Intercept, v.AFT.Scale, v.AFT.Shape(),
				v.AFT.LogLik, v.AFT.Iterations, "",
			}
		}
		if err := f.SetSheetRow(validationSheet, fmt.Sprintf("A%d", i+2), &vals); err != nil {
			return errors.ReportError("could not write validation row", err)
		}
	}
	return nil
}

func meanLabel(mean study.Days) interface{} {
	if math.IsInf(float64(mean), 1) {
		return "inf"
	}
	return float64(mean)
}
