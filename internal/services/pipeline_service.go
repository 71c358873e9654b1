package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/archive"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"github.com/taxrates/taxrates-api/internal/notify"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// Pipeline run outcomes
const (
	OutcomeApplied     = "applied"
	OutcomeNoChanges   = "no-changes"
	OutcomeNeedsReview = "needs-review"
	OutcomeFailed      = "failed"
)

// PipelineResult is the outcome of one update run.
type PipelineResult struct {
	RunID      uuid.UUID               `json:"runId"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt"`
	Outcome    string                  `json:"outcome"`
	Scrape     *business.ScrapeSummary `json:"scrape,omitempty"`
	Report     *business.DiffReport    `json:"report,omitempty"`
	Verdict    Verdict                 `json:"verdict"`
	Gate       *GateResult             `json:"gate,omitempty"`
	Apply      *ApplyResult            `json:"apply,omitempty"`
}

// ExitCode maps the outcome to the update command's exit code.
func (r *PipelineResult) ExitCode() int {
	switch r.Outcome {
	case OutcomeFailed:
		return 1
	case OutcomeNeedsReview:
		return 2
	default:
		return 0
	}
}

// PipelineService runs scrape, diff, gate and apply in sequence.
type PipelineService struct {
	scrape   *ScrapeService
	diff     *DiffService
	gate     *GateService
	apply    *ApplyService
	archive  archive.Archive
	notifier notify.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *zap.Logger
}

// PipelineOption customizes a PipelineService.
type PipelineOption func(*PipelineService)

// WithArchive persists every run.
func WithArchive(a archive.Archive) PipelineOption {
	return func(s *PipelineService) {
		s.archive = a
	}
}

// WithNotifier announces runs that need a human.
func WithNotifier(n notify.Notifier) PipelineOption {
	return func(s *PipelineService) {
		s.notifier = n
	}
}

// WithPipelineMetrics records run outcomes and durations.
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(s *PipelineService) {
		s.metrics = m
	}
}

// NewPipelineService creates the update pipeline.
func NewPipelineService(scrape *ScrapeService, diff *DiffService, gate *GateService, apply *ApplyService, opts ...PipelineOption) *PipelineService {
	s := &PipelineService{
		scrape:   scrape,
		diff:     diff,
		gate:     gate,
		apply:    apply,
		archive:  archive.Nop{},
		notifier: notify.Noop{},
		now:      time.Now,
		logger:   logger.Log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one update. Apply only runs when the report is auto-deployable
// and the gate passes. Stage errors are returned after the failed run has
// been archived and announced.
func (s *PipelineService) Run(ctx context.Context) (*PipelineResult, error) {
	result := &PipelineResult{RunID: uuid.New(), StartedAt: s.now().UTC()}
	log := s.logger.With(logger.RunID(result.RunID))
	log.Info("Update run started")

	runErr := s.run(ctx, result, log)
	result.FinishedAt = s.now().UTC()
	if runErr != nil {
		result.Outcome = OutcomeFailed
		log.Error("Update run failed", zap.Error(runErr))
	}

	s.record(ctx, result, runErr, log)
	log.Info("Update run finished", zap.String("outcome", result.Outcome))
	return result, runErr
}

func (s *PipelineService) run(ctx context.Context, result *PipelineResult, log *zap.Logger) error {
	summary, err := s.scrape.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "scrape")
	}
	result.Scrape = summary

	report, verdict, err := s.diff.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "diff")
	}
	result.Report = report
	result.Verdict = verdict

	gate, err := s.gate.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "gate")
	}
	result.Gate = gate

	switch {
	case gate.Decision == GateFail:
		result.Outcome = OutcomeFailed
	case verdict == VerdictNeedsReview || gate.Decision == GateNeedsReview:
		result.Outcome = OutcomeNeedsReview
	case verdict == VerdictNoChanges:
		result.Outcome = OutcomeNoChanges
	default:
		applied, err := s.apply.Run(ctx)
		if err != nil {
			return errors.Wrap(err, "apply")
		}
		result.Apply = applied
		result.Outcome = OutcomeApplied
		log.Info("Staged changes applied", zap.Int("files", len(applied.Applied)))
	}
	return nil
}

// record archives the run, updates metrics and notifies when needed. These
// side effects never change the run's outcome.
func (s *PipelineService) record(ctx context.Context, result *PipelineResult, runErr error, log *zap.Logger) {
	rec := archive.Record{
		RunID:      result.RunID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Verdict:    result.Outcome,
		Applied:    result.Outcome == OutcomeApplied,
		Report:     result.Report,
	}
	if result.Report != nil {
		rec.ChangePercent = result.Report.ChangePercent
	}
	if result.Gate != nil {
		rec.GateDecision = result.Gate.Decision.String()
		rec.GateErrors = result.Gate.Errors
		rec.GateWarnings = result.Gate.Warnings
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := s.archive.Save(ctx, rec); err != nil {
		log.Error("Failed to archive update run", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.PipelineRuns.WithLabelValues(result.Outcome).Inc()
		s.metrics.PipelineDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
		if result.Report != nil {
			s.metrics.ChangePercent.Set(result.Report.ChangePercent)
		}
		if result.Gate != nil {
			s.metrics.GateDecisions.WithLabelValues(result.Gate.Decision.String()).Inc()
		}
	}

	if result.Outcome != OutcomeNeedsReview && result.Outcome != OutcomeFailed {
		return
	}
	n := notify.Notification{
		RunID:         result.RunID,
		Timestamp:     result.FinishedAt,
		Verdict:       result.Outcome,
		GateDecision:  rec.GateDecision,
		ChangePercent: rec.ChangePercent,
		Error:         rec.Error,
	}
	if result.Report != nil {
		n.Summary = result.Report.Summary
		n.StructuralChanges = result.Report.StructuralChanges
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		log.Error("Failed to send update notification", zap.Error(err))
	}
}
