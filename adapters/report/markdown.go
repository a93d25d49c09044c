// Package report renders a study run to a markdown summary and an HTML
// version of the same document.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"survsim/domain/study"
	"survsim/internal/errors"
)

// WriterConfig configures the markdown report writer
type WriterConfig struct {
	Dir string
}

// Writer renders study results to markdown and HTML
type Writer struct {
	cfg WriterConfig
}

// NewWriter creates a report writer
func NewWriter(cfg WriterConfig) *Writer {
	return &Writer{cfg: cfg}
}

// Write renders the result and returns the markdown path. The HTML rendering
// is written next to it.
func (w *Writer) Write(result *study.Result) (string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return "", errors.ReportError("could not create report directory", err)
	}

	md := w.render(result)
	mdPath := filepath.Join(w.cfg.Dir, fmt.Sprintf("survsim_%s.md", result.RunID))
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return "", errors.ReportError("could not write markdown report", err)
	}

	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage})
	rendered := markdown.ToHTML([]byte(md), p, renderer)
	htmlPath := filepath.Join(w.cfg.Dir, fmt.Sprintf("survsim_%s.html", result.RunID))
	if err := os.WriteFile(htmlPath, rendered, 0o644); err != nil {
		return "", errors.ReportError("could not write html report", err)
	}
	return mdPath, nil
}

func (w *Writer) render(result *study.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Censoring study run %s\n\n", result.RunID)
	fmt.Fprintf(&b, "n=%d, shape=%g, scale_base=%g, beta_treatment=%g, horizon=%g days, seed=%d, runtime=%dms\n\n",
		result.Config.N, result.Config.Shape, result.Config.ScaleBase,
		result.Config.BetaTreatment, result.Config.HorizonDays, result.Config.Seed, result.RuntimeMs)

	b.WriteString("## Sampler verification (Weibull AFT)\n\n")
	b.WriteString("| design | intercept | scale | implied shape | error |\n")
	b.WriteString("|--------|-----------|-------|---------------|-------|\n")
	for _, v := range result.Validations {
		if v.AFT != nil {
			fmt.Fprintf(&b, "| %s | %.3f | %.3f | %.3f | |\n", v.Design, v.AFT.Intercept, v.AFT.Scale, v.AFT.Shape())
		} else {
			fmt.Fprintf(&b, "| %s | | | | %s |\n", v.Design, v.Err)
		}
	}

	b.WriteString("\n## Coefficient estimates by censoring level\n\n")
	b.WriteString("| design | condition | censored | covariate | true | estimate | SE | HR | 95% CI | p | log-rank p | PH global p |\n")
	b.WriteString("|--------|-----------|----------|-----------|------|----------|----|----|--------|---|------------|-------------|\n")
	for _, cond := range result.Conditions {
		if cond.Failed() {
			fmt.Fprintf(&b, "| %s | %s | %.1f%% | failed: %s | | | | | | | | |\n",
				cond.Design, cond.Condition, 100*cond.CensoredFraction, cond.Err)
			continue
		}
		for _, coef := range cond.Coefficients {
			fmt.Fprintf(&b, "| %s | %s | %.1f%% | %s | %.3f | %.3f | %.3f | %.3f | (%.3f, %.3f) | %s | %s | %s |\n",
				cond.Design, cond.Condition, 100*cond.CensoredFraction,
				coef.CovName, coef.TrueValue, coef.Estimate, coef.SE,
				coef.HazardRatio, coef.HRLower, coef.HRUpper,
				fmtP(coef.PValue), fmtP(cond.LogRank.PValue), fmtP(cond.PHTest.GlobalP))
		}
	}

	b.WriteString("\n## Realized censoring fractions\n\n")
	b.WriteString("| design | condition | censoring mean | events | censored fraction |\n")
	b.WriteString("|--------|-----------|----------------|--------|-------------------|\n")
	for _, cond := range result.Conditions {
		mean := "inf"
		if !math.IsInf(float64(cond.CensoringMean), 1) {
			mean = fmt.Sprintf("%g", float64(cond.CensoringMean))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %.1f%% |\n",
			cond.Design, cond.Condition, mean, cond.Events, 100*cond.CensoredFraction)
	}

	return b.String()
}

func fmtP(p float64) string {
	if p < 0.001 {
		return "<0.001"
	}
	return fmt.Sprintf("%.3f", p)
}
