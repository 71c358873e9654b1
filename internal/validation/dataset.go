package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/taxrates/taxrates-api/internal/types/business"
)

const (
	maxListedDuplicates = 10
	maxListedInvalid    = 10
	maxListedOutliers   = 5
)

// ValidateDataset checks a whole state dataset: structure, plausible size,
// duplicate keys, every record, and statistical outliers. A dataset without
// a jurisdictions array is rejected without further checks.
func (v *Validator) ValidateDataset(ds business.RawDataset, state string) Result {
	var errs, warnings []string

	if ds.Metadata == nil {
		errs = append(errs, "Missing metadata object")
	}

	records, ok := decodeRecords(ds.Jurisdictions)
	if !ok {
		errs = append(errs, "Missing or invalid jurisdictions array")
		return newResult(errs, warnings)
	}

	count := len(records)
	if minCount := v.policy.MinJurisdictions(state); count < minCount {
		errs = append(errs, fmt.Sprintf("Too few jurisdictions: %d (expected at least %d)", count, minCount))
	}
	if count > v.policy.MaxJurisdictions {
		errs = append(errs, fmt.Sprintf("Too many jurisdictions: %d (max %d) - possible DoS attack", count, v.policy.MaxJurisdictions))
	}

	if ds.Metadata != nil && ds.Metadata.JurisdictionCount != count {
		warnings = append(warnings, fmt.Sprintf("Metadata count mismatch: metadata says %d, but array has %d",
			ds.Metadata.JurisdictionCount, count))
	}

	if dups := duplicateKeys(records); len(dups) > 0 {
		msg := "Duplicate jurisdictions found: " + strings.Join(dups[:min(len(dups), maxListedDuplicates)], ", ")
		if len(dups) > maxListedDuplicates {
			msg += fmt.Sprintf(" and %d more", len(dups)-maxListedDuplicates)
		}
		errs = append(errs, msg)
	}

	invalid := 0
	for _, rec := range records {
		if rec == nil {
			invalid++
			if invalid <= maxListedInvalid {
				errs = append(errs, "Invalid jurisdiction: record is not an object")
			}
			continue
		}
		result := v.ValidateJurisdiction(rec, state)
		if !result.Valid {
			invalid++
			if invalid <= maxListedInvalid {
				location, _ := stringField(rec, "location")
				errs = append(errs, fmt.Sprintf("Invalid jurisdiction %q: %s", location, strings.Join(result.Errors, ", ")))
			}
		}
		warnings = append(warnings, result.Warnings...)
	}
	if invalid > maxListedInvalid {
		errs = append(errs, fmt.Sprintf("... and %d more invalid jurisdictions", invalid-maxListedInvalid))
	}

	warnings = append(warnings, v.outlierWarnings(records)...)

	return newResult(errs, warnings)
}

// decodeRecords splits the jurisdictions array into records. Elements that
// are not JSON objects decode to nil so they can be reported individually.
func decodeRecords(raw json.RawMessage) ([]business.RawJurisdiction, bool) {
	if isNull(raw) {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}

	records := make([]business.RawJurisdiction, len(elems))
	for i, elem := range elems {
		var rec business.RawJurisdiction
		if err := json.Unmarshal(elem, &rec); err == nil && rec != nil {
			records[i] = rec
		}
	}
	return records, true
}

func duplicateKeys(records []business.RawJurisdiction) []string {
	seen := make(map[string]struct{}, len(records))
	var dups []string
	for _, rec := range records {
		if rec == nil {
			continue
		}
		location, _ := stringField(rec, "location")
		county, _ := stringField(rec, "county")
		typ, _ := stringField(rec, "type")
		key := strings.ToLower(location + "|" + county + "|" + typ)
		if _, ok := seen[key]; ok {
			dups = append(dups, fmt.Sprintf("%s (%s)", location, county))
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

type ratedLocation struct {
	location string
	rate     float64
}

// outlierWarnings flags rates further than OutlierSigma population standard
// deviations from the mean of all parseable rates.
func (v *Validator) outlierWarnings(records []business.RawJurisdiction) []string {
	var rated []ratedLocation
	for _, rec := range records {
		if rec == nil || !present(rec, "rate") {
			continue
		}
		rate, errMsg := rateField(rec)
		if errMsg != "" {
			continue
		}
		location, _ := stringField(rec, "location")
		rated = append(rated, ratedLocation{location: location, rate: rate})
	}
	if len(rated) == 0 {
		return nil
	}

	var sum float64
	for _, r := range rated {
		sum += r.rate
	}
	mean := sum / float64(len(rated))

	var variance float64
	for _, r := range rated {
		variance += (r.rate - mean) * (r.rate - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(rated)))

	var outliers []ratedLocation
	for _, r := range rated {
		if math.Abs(r.rate-mean) > v.policy.OutlierSigma*stdDev {
			outliers = append(outliers, r)
		}
	}
	if len(outliers) == 0 {
		return nil
	}

	warnings := []string{fmt.Sprintf("%d statistical outliers detected (rates >%gσ from mean)", len(outliers), v.policy.OutlierSigma)}
	for _, o := range outliers[:min(len(outliers), maxListedOutliers)] {
		warnings = append(warnings, fmt.Sprintf("  • %s: %.2f%% (mean: %.2f%%)", o.location, o.rate*100, mean*100))
	}
	return warnings
}
