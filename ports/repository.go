package ports

import (
	"context"

	"survsim/domain/study"
)

// ResultRepository archives study results outside the core pipeline. The core
// persists nothing itself; implementations live in the reporting layer.
type ResultRepository interface {
	// SaveResult stores the per-condition summaries of a completed run
	SaveResult(ctx context.Context, result *study.Result) error
}

// ReportWriter renders a completed study result to a durable artifact
// (workbook, markdown, HTML).
type ReportWriter interface {
	// Write renders the result and returns the path of the artifact produced
	Write(result *study.Result) (string, error)
}
