package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// maxChangelogRateChanges caps the rate changes itemized per changelog entry.
const maxChangelogRateChanges = 20

// ApplyResult lists what an apply run did.
type ApplyResult struct {
	Applied          []string `json:"applied"`
	Unchanged        []string `json:"unchanged"`
	ChangelogUpdated bool     `json:"changelogUpdated"`
	// Skipped explains a run that applied nothing by policy.
	Skipped string `json:"skipped,omitempty"`
}

// ApplyService promotes staged datasets to the committed store when the diff
// report allows it.
type ApplyService struct {
	committed    store.Store
	staging      store.Store
	changelog    store.Store
	changelogKey string
	now          func() time.Time
	logger       *zap.Logger
}

// NewApplyService creates an apply service. The changelog lives under
// changelogKey in the changelog store.
func NewApplyService(committed, staging, changelog store.Store, changelogKey string) *ApplyService {
	return &ApplyService{
		committed:    committed,
		staging:      staging,
		changelog:    changelog,
		changelogKey: changelogKey,
		now:          time.Now,
		logger:       logger.Log,
	}
}

// WithClock replaces the changelog date source.
func (s *ApplyService) WithClock(now func() time.Time) *ApplyService {
	s.now = now
	return s
}

// Run applies the staged batch. Files identical to the committed version are
// left alone. The changelog is written once, after every file.
func (s *ApplyService) Run(ctx context.Context) (*ApplyResult, error) {
	report, err := readReport(ctx, s.staging)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{Applied: []string{}, Unchanged: []string{}}
	if !report.AutoDeployable {
		result.Skipped = "changes are not auto-deployable"
		s.logger.Info("Changes are not auto-deployable, skipping apply")
		return result, nil
	}
	if report.ChangedJurisdictions == 0 {
		result.Skipped = "no changes to apply"
		s.logger.Info("No changes to apply")
		return result, nil
	}

	files, err := stagedFiles(ctx, s.staging)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		staged, err := s.staging.Get(ctx, f.Key)
		if err != nil {
			return result, errors.Wrapf(err, "failed to read staged %s", f.Key)
		}
		current, err := readOptional(ctx, s.committed, f.Key)
		if err != nil {
			return result, err
		}
		if current != nil && bytes.Equal(staged, current) {
			result.Unchanged = append(result.Unchanged, f.Key)
			continue
		}
		if err := s.committed.Put(ctx, f.Key, staged); err != nil {
			return result, errors.Wrapf(err, "failed to apply %s", f.Key)
		}
		result.Applied = append(result.Applied, f.Key)
		s.logger.Info("Applied staged dataset", zap.String("state", f.State), zap.String("key", f.Key))
	}

	if err := s.updateChangelog(ctx, report); err != nil {
		return result, err
	}
	result.ChangelogUpdated = true

	s.logger.Info("Apply finished",
		zap.Int("applied", len(result.Applied)),
		zap.Int("unchanged", len(result.Unchanged)))
	return result, nil
}

func (s *ApplyService) updateChangelog(ctx context.Context, report *business.DiffReport) error {
	existing, err := readOptional(ctx, s.changelog, s.changelogKey)
	if err != nil {
		return err
	}
	entry := ChangelogEntry(report, s.now())
	updated := InsertChangelogEntry(existing, entry)
	if err := s.changelog.Put(ctx, s.changelogKey, updated); err != nil {
		return errors.Wrap(err, "failed to write changelog")
	}
	return nil
}

// ChangelogEntry renders the changelog section of an applied report.
func ChangelogEntry(report *business.DiffReport, date time.Time) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "## [auto-update] %s\n\n", date.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "- **%d** jurisdictions updated (%s%% of total)\n",
		report.ChangedJurisdictions, formatPercentValue(report.ChangePercent))

	if n := len(report.RateChanges); n > 0 {
		b.WriteString("- Rate changes:\n")
		for _, c := range report.RateChanges[:min(n, maxChangelogRateChanges)] {
			fmt.Fprintf(&b, "  - %s %s: %.2f%% → %.2f%%\n", c.State, c.Location, c.OldRate*100, c.NewRate*100)
		}
		if n > maxChangelogRateChanges {
			fmt.Fprintf(&b, "  - ... and %d more\n", n-maxChangelogRateChanges)
		}
	}
	if n := len(report.NewJurisdictions); n > 0 {
		fmt.Fprintf(&b, "- **%d** new jurisdictions added\n", n)
	}
	if n := len(report.RemovedJurisdictions); n > 0 {
		fmt.Fprintf(&b, "- **%d** jurisdictions removed\n", n)
	}
	return b.String()
}

// InsertChangelogEntry places entry right after the first line of the
// changelog, appends it when there is no line break, and starts a new
// changelog when existing is nil.
func InsertChangelogEntry(existing []byte, entry string) []byte {
	if existing == nil {
		return []byte("# Changelog\n" + entry)
	}
	text := string(existing)
	idx := strings.IndexByte(text, '\n')
	if idx < 0 {
		return []byte(text + entry)
	}
	return []byte(text[:idx+1] + entry + text[idx+1:])
}

// formatPercentValue prints a percentage the way a JSON number prints:
// 9.09, 5, 0.5.
func formatPercentValue(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
