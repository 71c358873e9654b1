package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/validation"
)

// GateDecision is the pre-commit gate's verdict. Its value is the gate's
// process exit code.
type GateDecision int

const (
	GatePass        GateDecision = 0
	GateFail        GateDecision = 1
	GateNeedsReview GateDecision = 2
)

func (d GateDecision) String() string {
	switch d {
	case GateFail:
		return "fail"
	case GateNeedsReview:
		return "needs-review"
	default:
		return "pass"
	}
}

// ExitCode returns the process exit code of the decision.
func (d GateDecision) ExitCode() int {
	return int(d)
}

// StateGateResult holds the findings for one staged state.
type StateGateResult struct {
	State         string             `json:"state"`
	Dataset       validation.Result  `json:"dataset"`
	Diff          *validation.Result `json:"diff,omitempty"`
	OldCount      int                `json:"oldCount"`
	NewCount      int                `json:"newCount"`
	ChangePercent float64            `json:"changePercent"`
	NewState      bool               `json:"newState"`
}

// GateResult is the outcome of a gate run.
type GateResult struct {
	States        []StateGateResult `json:"states"`
	Errors        int               `json:"errors"`
	Warnings      int               `json:"warnings"`
	ImpactPercent float64           `json:"impactPercent"`
	Decision      GateDecision      `json:"decision"`
}

// GateService re-validates every staged dataset before it may be committed.
// It never relies on the diff report.
type GateService struct {
	committed store.Store
	staging   store.Store
	validator *validation.Validator
	logger    *zap.Logger
}

// NewGateService creates a gate service.
func NewGateService(committed, staging store.Store, validator *validation.Validator) *GateService {
	return &GateService{
		committed: committed,
		staging:   staging,
		validator: validator,
		logger:    logger.Log,
	}
}

// Run validates the staging area. An empty staging area passes.
func (s *GateService) Run(ctx context.Context) (*GateResult, error) {
	files, err := stagedFiles(ctx, s.staging)
	if err != nil {
		return nil, err
	}

	result := &GateResult{States: []StateGateResult{}}
	var affected, total int

	for _, f := range files {
		sr, err := s.checkState(ctx, f)
		if err != nil {
			return nil, err
		}

		result.Errors += len(sr.Dataset.Errors)
		result.Warnings += len(sr.Dataset.Warnings)
		if sr.Diff != nil {
			result.Errors += len(sr.Diff.Errors)
			result.Warnings += len(sr.Diff.Warnings)
		}
		if !sr.NewState {
			affected += abs(sr.NewCount - sr.OldCount)
			total += sr.OldCount
			if sr.ChangePercent > s.validator.Policy().ReviewChangePercent {
				result.Warnings++
				s.logger.Warn("Large change detected, manual review required",
					logger.State(sr.State),
					zap.Float64("change_percent", sr.ChangePercent))
			}
		}
		result.States = append(result.States, sr)
	}

	if total > 0 {
		result.ImpactPercent = float64(affected) / float64(total) * 100
	}
	result.Decision = s.decide(result)

	s.logger.Info("Pre-commit validation finished",
		zap.Int("files", len(files)),
		zap.Int("errors", result.Errors),
		zap.Int("warnings", result.Warnings),
		zap.Float64("impact_percent", result.ImpactPercent),
		zap.String("decision", result.Decision.String()))
	return result, nil
}

func (s *GateService) decide(r *GateResult) GateDecision {
	policy := s.validator.Policy()
	switch {
	case r.Errors > 0:
		s.logger.Error("Validation failed, do not commit: possible data corruption or attack")
		return GateFail
	case r.ImpactPercent > policy.ReviewChangePercent:
		return GateNeedsReview
	case r.Warnings > policy.GateWarningLimit:
		return GateNeedsReview
	default:
		return GatePass
	}
}

func (s *GateService) checkState(ctx context.Context, f stagedFile) (StateGateResult, error) {
	sr := StateGateResult{State: f.State}

	stagedBytes, err := readOptional(ctx, s.staging, f.Key)
	if err != nil {
		return sr, err
	}
	raw, err := dataset.DecodeRaw(stagedBytes)
	if err != nil {
		sr.Dataset = validation.Result{Errors: []string{"Invalid JSON: " + err.Error()}, Warnings: []string{}}
		return sr, nil
	}
	sr.Dataset = s.validator.ValidateDataset(raw, f.State)
	sr.NewCount = rawCount(raw.Jurisdictions)

	committedBytes, err := readOptional(ctx, s.committed, f.Key)
	if err != nil {
		return sr, err
	}
	if committedBytes == nil {
		sr.NewState = true
		return sr, nil
	}

	oldData, oldErr := dataset.Decode(committedBytes)
	newData, newErr := dataset.Decode(stagedBytes)
	if oldErr != nil || newErr != nil {
		msg := "Cannot compare with committed data"
		if newErr != nil {
			msg += ": " + newErr.Error()
		} else {
			msg += ": " + oldErr.Error()
		}
		sr.Diff = &validation.Result{Errors: []string{msg}, Warnings: []string{}}
		return sr, nil
	}

	diff := s.validator.ValidateDiff(oldData, newData, f.State)
	sr.Diff = &diff
	sr.OldCount = len(oldData.Jurisdictions)
	sr.ChangePercent = validation.CountChangePercent(sr.OldCount, sr.NewCount)
	return sr, nil
}
