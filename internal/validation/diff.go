package validation

import (
	"fmt"
	"math"

	"github.com/taxrates/taxrates-api/internal/types/business"
)

// ValidateDiff compares a committed dataset with its replacement and flags
// swings that suggest corruption: count volatility, a changed source and
// mass removals of distinct locations. With either side missing there is nothing to compare.
func (v *Validator) ValidateDiff(oldData, newData *business.Dataset, state string) Result {
	var errs, warnings []string
	if oldData == nil || newData == nil {
		return newResult(errs, warnings)
	}

	oldCount := len(oldData.Jurisdictions)
	newCount := len(newData.Jurisdictions)
	change := CountChangePercent(oldCount, newCount)
	switch {
	case change > v.policy.DiffCountErrorPercent:
		errs = append(errs, fmt.Sprintf("Large jurisdiction count change: %d → %d (%.1f%% change) - possible data corruption",
			oldCount, newCount, change))
	case change > v.policy.DiffCountWarnPercent:
		warnings = append(warnings, fmt.Sprintf("Significant jurisdiction count change: %d → %d (%.1f%% change)",
			oldCount, newCount, change))
	}

	if oldData.Metadata.Source != newData.Metadata.Source {
		warnings = append(warnings, fmt.Sprintf("Data source changed: %q → %q",
			oldData.Metadata.Source, newData.Metadata.Source))
	}

	current := make(map[string]struct{}, newCount)
	for _, j := range newData.Jurisdictions {
		current[j.Location] = struct{}{}
	}
	gone := make(map[string]struct{})
	for _, j := range oldData.Jurisdictions {
		if _, ok := current[j.Location]; !ok {
			gone[j.Location] = struct{}{}
		}
	}
	removed := len(gone)
	switch {
	case removed > v.policy.MassRemovalError:
		errs = append(errs, fmt.Sprintf("Mass jurisdiction removal: %d jurisdictions removed (possible data corruption)", removed))
	case removed > v.policy.MassRemovalWarn:
		warnings = append(warnings, fmt.Sprintf("Many jurisdictions removed: %d", removed))
	}

	return newResult(errs, warnings)
}

// CountChangePercent is |new-old|/old as a percentage, or 0 when there was
// nothing committed.
func CountChangePercent(oldCount, newCount int) float64 {
	if oldCount == 0 {
		return 0
	}
	return math.Abs(float64(newCount-oldCount)) * 100 / float64(oldCount)
}
