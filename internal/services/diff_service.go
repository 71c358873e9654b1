package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/helpers"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// Verdict is the classification of a diff report.
type Verdict int

const (
	VerdictNoChanges Verdict = iota
	VerdictAutoDeployable
	VerdictNeedsReview
)

func (v Verdict) String() string {
	switch v {
	case VerdictAutoDeployable:
		return "auto-deployable"
	case VerdictNeedsReview:
		return "needs-review"
	default:
		return "no-changes"
	}
}

// ExitCode maps the verdict to the diff stage's process exit code.
func (v Verdict) ExitCode() int {
	if v == VerdictNeedsReview {
		return 2
	}
	return 0
}

// VerdictOf classifies a report.
func VerdictOf(r *business.DiffReport) Verdict {
	switch {
	case r.NeedsReview:
		return VerdictNeedsReview
	case r.AutoDeployable:
		return VerdictAutoDeployable
	default:
		return VerdictNoChanges
	}
}

// DiffService compares every staged dataset with its committed version and
// produces one report for the whole batch.
type DiffService struct {
	committed store.Store
	staging   store.Store
	policy    config.Policy
	now       func() time.Time
	logger    *zap.Logger
}

// NewDiffService creates a diff service.
func NewDiffService(committed, staging store.Store, policy config.Policy) *DiffService {
	return &DiffService{
		committed: committed,
		staging:   staging,
		policy:    policy,
		now:       time.Now,
		logger:    logger.Log,
	}
}

// WithClock replaces the report timestamp source.
func (s *DiffService) WithClock(now func() time.Time) *DiffService {
	s.now = now
	return s
}

type stateDiff struct {
	changes    []business.RateChange
	added      []string
	removed    []string
	structural []string
}

// BuildReport diffs the staged batch without writing anything.
func (s *DiffService) BuildReport(ctx context.Context) (*business.DiffReport, error) {
	files, err := stagedFiles(ctx, s.staging)
	if err != nil {
		return nil, err
	}

	report := &business.DiffReport{
		Timestamp:            s.now().UTC(),
		NewJurisdictions:     []string{},
		RemovedJurisdictions: []string{},
		RateChanges:          []business.RateChange{},
		StructuralChanges:    []string{},
	}

	for _, f := range files {
		oldData, err := s.load(ctx, s.committed, f)
		if err != nil {
			return nil, err
		}
		newData, err := s.load(ctx, s.staging, f)
		if err != nil {
			return nil, err
		}

		switch {
		case oldData != nil:
			report.TotalJurisdictions += len(oldData.Jurisdictions)
		case newData != nil:
			report.TotalJurisdictions += len(newData.Jurisdictions)
		}

		d := s.diffState(f.State, oldData, newData)
		report.RateChanges = append(report.RateChanges, d.changes...)
		report.NewJurisdictions = append(report.NewJurisdictions, d.added...)
		report.RemovedJurisdictions = append(report.RemovedJurisdictions, d.removed...)
		report.StructuralChanges = append(report.StructuralChanges, d.structural...)
	}

	s.classify(report)
	return report, nil
}

// Run builds the report, writes it to the staging area and returns its
// verdict.
func (s *DiffService) Run(ctx context.Context) (*business.DiffReport, Verdict, error) {
	report, err := s.BuildReport(ctx)
	if err != nil {
		return nil, VerdictNoChanges, err
	}

	b, err := dataset.EncodeJSON(report)
	if err != nil {
		return nil, VerdictNoChanges, errors.Wrap(err, "failed to encode diff report")
	}
	if err := s.staging.Put(ctx, constants.DiffReportKey, b); err != nil {
		return nil, VerdictNoChanges, errors.Wrap(err, "failed to write diff report")
	}

	verdict := VerdictOf(report)
	s.logger.Info("Diff report written",
		zap.Int("changed", report.ChangedJurisdictions),
		zap.Float64("change_percent", report.ChangePercent),
		zap.String("verdict", verdict.String()))
	return report, verdict, nil
}

// load reads and decodes a dataset. A missing or unreadable file counts as
// absent so that it surfaces as a structural change.
func (s *DiffService) load(ctx context.Context, st store.Store, f stagedFile) (*business.Dataset, error) {
	b, err := readOptional(ctx, st, f.Key)
	if err != nil {
		return nil, err
	}
	ds, err := decodeOptional(b)
	if err != nil {
		s.logger.Warn("Treating undecodable dataset as absent",
			zap.String("state", f.State),
			zap.String("driver", string(st.Driver())),
			zap.Error(err))
		return nil, nil
	}
	return ds, nil
}

func jurisdictionKey(j business.Jurisdiction) string {
	return j.Location + "|" + j.County + "|" + j.Type
}

// indexJurisdictions keys records by their exact triple. A repeated key keeps
// its first position and its last value.
func indexJurisdictions(list []business.Jurisdiction) ([]string, map[string]business.Jurisdiction) {
	keys := make([]string, 0, len(list))
	byKey := make(map[string]business.Jurisdiction, len(list))
	for _, j := range list {
		key := jurisdictionKey(j)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = j
	}
	return keys, byKey
}

func (s *DiffService) diffState(state string, oldData, newData *business.Dataset) stateDiff {
	var d stateDiff
	if oldData == nil || newData == nil {
		if newData != nil {
			d.structural = append(d.structural, fmt.Sprintf("%s: entirely new state data file", state))
		}
		if oldData != nil {
			d.structural = append(d.structural, fmt.Sprintf("%s: state data file removed", state))
		}
		return d
	}

	if oldData.Metadata.Source != newData.Metadata.Source {
		d.structural = append(d.structural, fmt.Sprintf("%s: data source changed from %q to %q",
			state, oldData.Metadata.Source, newData.Metadata.Source))
	}

	oldKeys, oldByKey := indexJurisdictions(oldData.Jurisdictions)
	newKeys, newByKey := indexJurisdictions(newData.Jurisdictions)

	for _, key := range newKeys {
		j := newByKey[key]
		old, ok := oldByKey[key]
		switch {
		case !ok:
			d.added = append(d.added, fmt.Sprintf("%s: %s (%s)", state, j.Location, j.County))
		case old.Rate != j.Rate:
			d.changes = append(d.changes, business.RateChange{
				State:    state,
				Location: j.Location,
				County:   j.County,
				OldRate:  old.Rate,
				NewRate:  j.Rate,
				Diff:     j.Rate - old.Rate,
			})
		}
	}
	for _, key := range oldKeys {
		if _, ok := newByKey[key]; !ok {
			j := oldByKey[key]
			d.removed = append(d.removed, fmt.Sprintf("%s: %s (%s)", state, j.Location, j.County))
		}
	}

	oldCount, newCount := len(oldData.Jurisdictions), len(newData.Jurisdictions)
	if swing := abs(newCount - oldCount); swing > s.policy.StructuralCountSwing {
		d.structural = append(d.structural, fmt.Sprintf("%s: jurisdiction count changed by %d (%d → %d)",
			state, swing, oldCount, newCount))
	}
	return d
}

// classify fills the aggregate fields of a report.
func (s *DiffService) classify(r *business.DiffReport) {
	changed := len(r.RateChanges) + len(r.NewJurisdictions) + len(r.RemovedJurisdictions)
	var changePercent float64
	if r.TotalJurisdictions > 0 {
		changePercent = float64(changed) / float64(r.TotalJurisdictions) * 100
	}

	largeJump := false
	for _, c := range r.RateChanges {
		if math.Abs(c.Diff) > s.policy.MaxRateJump {
			largeJump = true
			break
		}
	}

	r.ChangedJurisdictions = changed
	r.ChangePercent = helpers.Round(changePercent, 2)
	r.NeedsReview = changePercent > s.policy.ReviewChangePercent ||
		len(r.StructuralChanges) > 0 ||
		largeJump ||
		len(r.RemovedJurisdictions) > s.policy.MaxRemovals
	r.AutoDeployable = changed > 0 && !r.NeedsReview

	switch {
	case changed == 0 && !r.NeedsReview:
		r.Summary = "No changes detected."
	case r.NeedsReview:
		r.Summary = fmt.Sprintf("%d jurisdictions changed (%.2f%%). NEEDS REVIEW", changed, changePercent)
	default:
		r.Summary = fmt.Sprintf("%d jurisdictions changed (%.2f%%). Auto-deployable", changed, changePercent)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
