package archive

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taxrates/taxrates-api/internal/types/business"
)

// Driver names accepted by Open.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Record is the archived outcome of one update pipeline run.
type Record struct {
	RunID         uuid.UUID            `json:"runId"`
	StartedAt     time.Time            `json:"startedAt"`
	FinishedAt    time.Time            `json:"finishedAt"`
	Verdict       string               `json:"verdict"`
	GateDecision  string               `json:"gateDecision"`
	GateErrors    int                  `json:"gateErrors"`
	GateWarnings  int                  `json:"gateWarnings"`
	Applied       bool                 `json:"applied"`
	ChangePercent float64              `json:"changePercent"`
	Report        *business.DiffReport `json:"report,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// Archive persists pipeline run records.
type Archive interface {
	Save(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) Save(context.Context, Record) error            { return nil }
func (Nop) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                  { return nil }
