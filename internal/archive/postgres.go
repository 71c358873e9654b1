package archive

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS update_runs (
	run_id         UUID PRIMARY KEY,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	verdict        TEXT NOT NULL,
	gate_decision  TEXT NOT NULL,
	gate_errors    INTEGER NOT NULL DEFAULT 0,
	gate_warnings  INTEGER NOT NULL DEFAULT 0,
	applied        BOOLEAN NOT NULL DEFAULT FALSE,
	change_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
	report         JSONB,
	error          TEXT NOT NULL DEFAULT ''
)`

// Postgres archives runs in a Postgres table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and ensures the schema.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create database pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to create update_runs table")
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	report, err := encodeReport(rec.Report)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO update_runs
		(run_id, started_at, finished_at, verdict, gate_decision, gate_errors, gate_warnings, applied, change_percent, report, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			verdict = EXCLUDED.verdict,
			gate_decision = EXCLUDED.gate_decision,
			gate_errors = EXCLUDED.gate_errors,
			gate_warnings = EXCLUDED.gate_warnings,
			applied = EXCLUDED.applied,
			change_percent = EXCLUDED.change_percent,
			report = EXCLUDED.report,
			error = EXCLUDED.error`,
		rec.RunID, rec.StartedAt, rec.FinishedAt, rec.Verdict, rec.GateDecision,
		rec.GateErrors, rec.GateWarnings, rec.Applied, rec.ChangePercent, string(report), rec.Error)
	if err != nil {
		return errors.Wrap(err, "failed to insert update run")
	}
	return nil
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT run_id, started_at, finished_at, verdict, gate_decision,
		gate_errors, gate_warnings, applied, change_percent, report, error
		FROM update_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query update runs")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var report []byte
		if err := rows.Scan(&rec.RunID, &rec.StartedAt, &rec.FinishedAt, &rec.Verdict, &rec.GateDecision,
			&rec.GateErrors, &rec.GateWarnings, &rec.Applied, &rec.ChangePercent, &report, &rec.Error); err != nil {
			return nil, errors.Wrap(err, "failed to scan update run")
		}
		if rec.Report, err = decodeReport(report); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
