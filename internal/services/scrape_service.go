package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"github.com/taxrates/taxrates-api/internal/scraper"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// ScrapeService runs every registered scraper and stages the results.
type ScrapeService struct {
	registry  scraper.Registry
	committed store.Store
	staging   store.Store
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *zap.Logger
}

// ScrapeServiceOption customizes a ScrapeService.
type ScrapeServiceOption func(*ScrapeService)

// WithScrapeMetrics counts scrape outcomes.
func WithScrapeMetrics(m *metrics.Metrics) ScrapeServiceOption {
	return func(s *ScrapeService) {
		s.metrics = m
	}
}

// WithScrapeClock replaces the summary timestamp source.
func WithScrapeClock(now func() time.Time) ScrapeServiceOption {
	return func(s *ScrapeService) {
		s.now = now
	}
}

// NewScrapeService creates a scrape service.
func NewScrapeService(registry scraper.Registry, committed, staging store.Store, opts ...ScrapeServiceOption) *ScrapeService {
	s := &ScrapeService{
		registry:  registry,
		committed: committed,
		staging:   staging,
		now:       time.Now,
		logger:    logger.Log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scrapes the registered states one at a time, in sorted order. Results
// are staged; states without a working scraper get their committed file
// copied forward so the diff sees no change for them. A scraper failure is
// recorded in the summary and never aborts the batch.
func (s *ScrapeService) Run(ctx context.Context) (*business.ScrapeSummary, error) {
	if err := s.clearStaging(ctx); err != nil {
		return nil, err
	}

	states := s.registry.States()
	s.logger.Info("Starting scrape", zap.Int("scrapers", len(states)))

	summary := &business.ScrapeSummary{
		Timestamp:   s.now().UTC(),
		Results:     make([]business.ScrapeOutcome, 0, len(states)),
		ScrapersRun: len(states),
	}
	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome := s.scrapeState(ctx, state)
		summary.Results = append(summary.Results, outcome)
		if s.metrics != nil {
			s.metrics.ScrapeResults.WithLabelValues(outcome.State, outcome.Status).Inc()
		}
	}

	if err := s.copyForward(ctx); err != nil {
		return nil, err
	}

	staged, err := s.countStaged(ctx)
	if err != nil {
		return nil, err
	}
	summary.TotalStaged = staged

	b, err := dataset.EncodeJSON(summary)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode scrape summary")
	}
	if err := s.staging.Put(ctx, constants.ScrapeSummaryKey, b); err != nil {
		return nil, errors.Wrap(err, "failed to write scrape summary")
	}

	s.logger.Info("Scrape finished",
		zap.Int("ok", countStatus(summary, constants.ScrapeStatusOK)),
		zap.Int("skipped", countStatus(summary, constants.ScrapeStatusSkipped)),
		zap.Int("errors", countStatus(summary, constants.ScrapeStatusError)),
		zap.Int("staged", summary.TotalStaged))
	return summary, nil
}

func (s *ScrapeService) scrapeState(ctx context.Context, state string) (outcome business.ScrapeOutcome) {
	outcome.State = state
	defer func() {
		if r := recover(); r != nil {
			outcome = business.ScrapeOutcome{State: state, Status: constants.ScrapeStatusError, Error: fmt.Sprint(r)}
			s.logger.Error("Scraper panicked", logger.State(state), zap.Any("panic", r))
		}
	}()

	sc, _ := s.registry.Get(state)
	result := sc.Scrape(ctx)
	if result.Data == nil {
		s.logger.Warn("Scrape skipped", logger.State(state), zap.String("reason", result.Error))
		return business.ScrapeOutcome{State: state, Status: constants.ScrapeStatusSkipped, Error: result.Error}
	}

	b, err := dataset.Encode(result.Data)
	if err == nil {
		err = s.staging.Put(ctx, constants.DatasetKey(state), b)
	}
	if err != nil {
		s.logger.Error("Failed to stage scraped dataset", logger.State(state), zap.Error(err))
		return business.ScrapeOutcome{State: state, Status: constants.ScrapeStatusError, Error: err.Error()}
	}

	s.logger.Info("Scraped state",
		logger.State(state),
		zap.Int("jurisdictions", len(result.Data.Jurisdictions)))
	return business.ScrapeOutcome{State: state, Status: constants.ScrapeStatusOK}
}

// copyForward stages the committed file of every state without a working
// scraper.
func (s *ScrapeService) copyForward(ctx context.Context) error {
	files, err := stagedFiles(ctx, s.committed)
	if err != nil {
		return err
	}
	for _, f := range files {
		if s.registry.Implemented(f.State) {
			continue
		}
		b, err := s.committed.Get(ctx, f.Key)
		if err != nil {
			return errors.Wrapf(err, "failed to read committed %s", f.Key)
		}
		if err := s.staging.Put(ctx, f.Key, b); err != nil {
			return errors.Wrapf(err, "failed to stage %s", f.Key)
		}
	}
	return nil
}

// clearStaging removes the datasets and report left by a previous run.
func (s *ScrapeService) clearStaging(ctx context.Context) error {
	files, err := stagedFiles(ctx, s.staging)
	if err != nil {
		return err
	}
	keys := []string{constants.DiffReportKey}
	for _, f := range files {
		keys = append(keys, f.Key)
	}
	for _, key := range keys {
		if _, err := s.staging.Delete(ctx, key); err != nil {
			return errors.Wrapf(err, "failed to clear staged %s", key)
		}
	}
	return nil
}

func (s *ScrapeService) countStaged(ctx context.Context) (int, error) {
	keys, err := s.staging.List(ctx, "")
	if err != nil {
		return 0, errors.Wrap(err, "failed to list staged files")
	}
	n := 0
	for _, key := range keys {
		if strings.HasSuffix(key, ".json") && !strings.Contains(key, "/") &&
			key != constants.DiffReportKey && key != constants.ScrapeSummaryKey {
			n++
		}
	}
	return n, nil
}

func countStatus(summary *business.ScrapeSummary, status string) int {
	n := 0
	for _, r := range summary.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}
