package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/helpers"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

const (
	maxLocationLength = 200
	maxCountyLength   = 100
	maxNotesLength    = 500
)

// Validator checks jurisdiction records, datasets and dataset diffs against
// a Policy. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	policy     config.Policy
	validTypes map[string]struct{}
}

// NewValidator creates a validator enforcing the given policy.
func NewValidator(policy config.Policy) *Validator {
	types := make(map[string]struct{}, len(constants.ValidJurisdictionTypes))
	for _, t := range constants.ValidJurisdictionTypes {
		types[t] = struct{}{}
	}
	return &Validator{policy: policy, validTypes: types}
}

// Policy returns the thresholds this validator enforces.
func (v *Validator) Policy() config.Policy {
	return v.policy
}

// ValidateJurisdiction checks a single record. Every check runs; the result
// lists all findings rather than stopping at the first.
func (v *Validator) ValidateJurisdiction(rec business.RawJurisdiction, state string) Result {
	var errs, warnings []string

	location, locationOK := stringField(rec, "location")
	if !locationOK || strings.TrimSpace(location) == "" {
		errs = append(errs, "Missing or invalid location field")
	}
	county, countyOK := stringField(rec, "county")
	if !countyOK || strings.TrimSpace(county) == "" {
		errs = append(errs, "Missing or invalid county field")
	}
	if !present(rec, "rate") {
		errs = append(errs, "Missing rate field")
	}

	if n := utf8.RuneCountInString(location); n > maxLocationLength {
		errs = append(errs, fmt.Sprintf("Location field too long: %d chars (max %d)", n, maxLocationLength))
	}
	if n := utf8.RuneCountInString(county); n > maxCountyLength {
		errs = append(errs, fmt.Sprintf("County field too long: %d chars (max %d)", n, maxCountyLength))
	}
	if notes, ok := stringField(rec, "notes"); ok {
		if n := utf8.RuneCountInString(notes); n > maxNotesLength {
			warnings = append(warnings, fmt.Sprintf("Notes field very long: %d chars", n))
		}
	}

	for _, field := range scannedFields {
		value, ok := stringField(rec, field)
		if !ok || value == "" {
			continue
		}
		for _, p := range injectionPatterns {
			if p.re.MatchString(value) {
				errs = append(errs, fmt.Sprintf("SECURITY: %s detected in %s: %q", p.name, field, value))
			}
		}
		for _, p := range unicodePatterns {
			if p.re.MatchString(value) {
				warnings = append(warnings, fmt.Sprintf("Suspicious Unicode (%s) in %s", p.name, field))
			}
		}
	}

	if present(rec, "rate") {
		rate, rateErr := rateField(rec)
		switch {
		case rateErr != "":
			errs = append(errs, rateErr)
		case rate < 0:
			errs = append(errs, fmt.Sprintf("Rate below minimum: %.2f%% (min 0%%)", rate*100))
		case rate > v.policy.MaxRate:
			errs = append(errs, fmt.Sprintf("Rate exceeds maximum: %.2f%% (max %s)", rate*100, percentLabel(v.policy.MaxRate)))
		case rate > v.policy.WarnRate:
			warnings = append(warnings, fmt.Sprintf("Unusually high rate: %.2f%% (expected <%s)", rate*100, percentLabel(v.policy.WarnRate)))
		}

		if rateErr == "" {
			if percent, ok := stringField(rec, "ratePercent"); ok && percent != "" {
				if expected := dataset.FormatRatePercent(rate); percent != expected {
					warnings = append(warnings, fmt.Sprintf("ratePercent %q does not match rate (expected %q)", percent, expected))
				}
			}
		}
	}

	if t, ok := stringField(rec, "type"); ok && t != "" {
		if _, known := v.validTypes[t]; !known {
			warnings = append(warnings, fmt.Sprintf("Unusual jurisdiction type: %q (expected: %s)",
				t, strings.Join(constants.ValidJurisdictionTypes, ", ")))
		}
	}

	return newResult(errs, warnings)
}

// present reports whether a field exists and is not JSON null.
func present(rec business.RawJurisdiction, name string) bool {
	raw, ok := rec[name]
	return ok && !isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// stringField decodes a field that must be a JSON string.
func stringField(rec business.RawJurisdiction, name string) (string, bool) {
	raw, ok := rec[name]
	if !ok || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// rateField coerces the rate to a finite number. Numeric strings are
// accepted the way a spreadsheet export would carry them.
func rateField(rec business.RawJurisdiction) (float64, string) {
	raw := rec["rate"]

	var rate float64
	if err := json.Unmarshal(raw, &rate); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Sprintf("Invalid rate (not a number): %q", string(raw))
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(parsed) {
			return 0, fmt.Sprintf("Invalid rate (not a number): %q", s)
		}
		rate = parsed
	}

	if math.IsInf(rate, 0) {
		return 0, fmt.Sprintf("Invalid rate (Infinity or -Infinity): %q", string(raw))
	}
	return rate, ""
}

// percentLabel renders a policy bound like "20%".
func percentLabel(rate float64) string {
	return strconv.FormatFloat(helpers.Round(rate*100, 4), 'f', -1, 64) + "%"
}
