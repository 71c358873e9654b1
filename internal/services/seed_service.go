package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/store"
)

// SeedResult lists the state files a seed run wrote and left alone.
type SeedResult struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

// SeedService writes state-level datasets generated from the state profiles.
type SeedService struct {
	committed store.Store
	profiles  dataset.Profiles
	now       func() time.Time
	logger    *zap.Logger
}

// NewSeedService creates a SeedService writing into committed.
func NewSeedService(committed store.Store, profiles dataset.Profiles) *SeedService {
	return &SeedService{
		committed: committed,
		profiles:  profiles,
		now:       time.Now,
		logger:    logger.Log,
	}
}

// WithClock replaces the clock used for the lastUpdated date.
func (s *SeedService) WithClock(now func() time.Time) *SeedService {
	s.now = now
	return s
}

// Run seeds the given states, or every profiled state when none are given.
// Existing files are kept unless overwrite is set.
func (s *SeedService) Run(ctx context.Context, states []string, effectiveDate string, overwrite bool) (*SeedResult, error) {
	if len(states) == 0 {
		states = s.profiles.Codes()
	}
	today := s.now().UTC().Format(time.DateOnly)
	if effectiveDate == "" {
		effectiveDate = today
	}

	result := &SeedResult{Written: []string{}, Skipped: []string{}}
	for _, state := range states {
		profile, ok := s.profiles.Get(state)
		if !ok {
			return nil, errors.Errorf("unknown state %q", state)
		}
		key := constants.DatasetKey(profile.Code)

		if !overwrite {
			exists, err := store.Exists(ctx, s.committed, key)
			if err != nil {
				return nil, err
			}
			if exists {
				result.Skipped = append(result.Skipped, key)
				continue
			}
		}

		b, err := dataset.Encode(dataset.StateDataset(profile, effectiveDate, today))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s", key)
		}
		if err := s.committed.Put(ctx, key, b); err != nil {
			return nil, errors.Wrapf(err, "failed to write %s", key)
		}
		s.logger.Info("Seeded state dataset",
			zap.String("state", strings.ToUpper(profile.Code)),
			zap.String("rate", dataset.FormatRatePercent(profile.BaseRate)),
		)
		result.Written = append(result.Written, key)
	}
	return result, nil
}
