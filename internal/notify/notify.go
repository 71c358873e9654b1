package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notification announces a pipeline run that needs a human.
type Notification struct {
	RunID             uuid.UUID `json:"runId"`
	Timestamp         time.Time `json:"timestamp"`
	Verdict           string    `json:"verdict"`
	GateDecision      string    `json:"gateDecision"`
	Summary           string    `json:"summary"`
	ChangePercent     float64   `json:"changePercent"`
	StructuralChanges []string  `json:"structuralChanges,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Noop drops every notification.
type Noop struct{}

func (Noop) Notify(context.Context, Notification) error { return nil }

// Multi fans a notification out to several notifiers. Every notifier is
// tried; the joined error reports all failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
