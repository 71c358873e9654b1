package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS update_runs (
	run_id         TEXT PRIMARY KEY,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL,
	verdict        TEXT NOT NULL,
	gate_decision  TEXT NOT NULL,
	gate_errors    INTEGER NOT NULL DEFAULT 0,
	gate_warnings  INTEGER NOT NULL DEFAULT 0,
	applied        INTEGER NOT NULL DEFAULT 0,
	change_percent REAL NOT NULL DEFAULT 0,
	report         BLOB,
	error          TEXT NOT NULL DEFAULT ''
)`

// SQLite archives runs in a local database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "taxrates.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create update_runs table")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(ctx context.Context, rec Record) error {
	report, err := encodeReport(rec.Report)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO update_runs
		(run_id, started_at, finished_at, verdict, gate_decision, gate_errors, gate_warnings, applied, change_percent, report, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID.String(), rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.Verdict, rec.GateDecision, rec.GateErrors, rec.GateWarnings, rec.Applied, rec.ChangePercent, report, rec.Error)
	if err != nil {
		return errors.Wrap(err, "insert update run")
	}
	return nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, started_at, finished_at, verdict, gate_decision,
		gate_errors, gate_warnings, applied, change_percent, report, error
		FROM update_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select update runs")
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			rec               Record
			runID             string
			started, finished string
			report            []byte
		)
		if err := rows.Scan(&runID, &started, &finished, &rec.Verdict, &rec.GateDecision,
			&rec.GateErrors, &rec.GateWarnings, &rec.Applied, &rec.ChangePercent, &report, &rec.Error); err != nil {
			return nil, errors.Wrap(err, "scan update run")
		}
		if rec.RunID, err = uuid.Parse(runID); err != nil {
			return nil, errors.Wrap(err, "parse run id")
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, errors.Wrap(err, "parse started_at")
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, errors.Wrap(err, "parse finished_at")
		}
		if rec.Report, err = decodeReport(report); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
