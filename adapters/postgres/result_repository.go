// Package postgres archives completed study runs. The core pipeline persists
// nothing; this adapter only runs when an archive database is configured.
package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"survsim/domain/study"
	"survsim/internal/errors"
	"survsim/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS study_runs (
	id         TEXT PRIMARY KEY,
	config     JSONB NOT NULL,
	runtime_ms BIGINT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS condition_summaries (
	run_id            TEXT NOT NULL REFERENCES study_runs(id),
	design            TEXT NOT NULL,
	condition         TEXT NOT NULL,
	censored_fraction DOUBLE PRECISION NOT NULL,
	events            INTEGER NOT NULL,
	summary           JSONB NOT NULL,
	error             TEXT,
	PRIMARY KEY (run_id, design, condition)
);`

// ResultRepositoryImpl implements ports.ResultRepository for PostgreSQL
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

// Connect opens the archive database and ensures its schema exists
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.DatabaseError("could not connect to archive database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.DatabaseError("could not ensure archive schema", err)
	}
	return db, nil
}

// SaveResult stores a completed run and its per-condition summaries
func (r *ResultRepositoryImpl) SaveResult(ctx context.Context, result *study.Result) error {
	cfg, err := json.Marshal(result.Config)
	if err != nil {
		return errors.DatabaseError("could not encode study configuration", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("could not begin archive transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO study_runs (id, config, runtime_ms, started_at)
		VALUES ($1, $2, $3, $4)
	`, result.RunID.String(), cfg, result.RuntimeMs, result.StartedAt.Time())
	if err != nil {
		return errors.DatabaseError("could not insert study run", err)
	}

	for _, cond := range result.Conditions {
		summary, err := json.Marshal(cond)
		if err != nil {
			return errors.DatabaseError("could not encode condition summary", err)
		}
		var condErr interface{}
		if cond.Failed() {
			condErr = cond.Err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO condition_summaries (run_id, design, condition, censored_fraction, events, summary, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, result.RunID.String(), cond.Design.String(), cond.Condition.String(),
			cond.CensoredFraction, cond.Events, summary, condErr)
		if err != nil {
			return errors.DatabaseError("could not insert condition summary", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("could not commit archive transaction", err)
	}
	return nil
}
