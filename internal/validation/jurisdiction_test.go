package validation_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/types/business"
	"github.com/taxrates/taxrates-api/internal/validation"
)

func record(t *testing.T, fields map[string]interface{}) business.RawJurisdiction {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	rec := business.RawJurisdiction{}
	require.NoError(t, json.Unmarshal(b, &rec))
	return rec
}

func validFields() map[string]interface{} {
	return map[string]interface{}{
		"location":    "Sacramento",
		"type":        "City",
		"county":      "Sacramento",
		"rate":        0.0875,
		"ratePercent": "8.75%",
		"districtTax": 0.015,
		"notes":       nil,
	}
}

func withField(name string, value interface{}) map[string]interface{} {
	fields := validFields()
	fields[name] = value
	return fields
}

func TestValidateJurisdiction_ValidRecord(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	result := v.ValidateJurisdiction(record(t, validFields()), "CA")

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateJurisdiction_RequiredFields(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	tests := []struct {
		name    string
		drop    string
		set     interface{}
		wantErr string
	}{
		{name: "missing location", drop: "location", wantErr: "Missing or invalid location field"},
		{name: "empty location", drop: "", set: map[string]interface{}{"location": "  "}, wantErr: "Missing or invalid location field"},
		{name: "numeric county", drop: "", set: map[string]interface{}{"county": 12}, wantErr: "Missing or invalid county field"},
		{name: "missing rate", drop: "rate", wantErr: "Missing rate field"},
		{name: "null rate", drop: "", set: map[string]interface{}{"rate": nil}, wantErr: "Missing rate field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			if tt.drop != "" {
				delete(fields, tt.drop)
			}
			if overrides, ok := tt.set.(map[string]interface{}); ok {
				for k, val := range overrides {
					fields[k] = val
				}
			}

			result := v.ValidateJurisdiction(record(t, fields), "CA")

			assert.False(t, result.Valid)
			assert.Contains(t, result.Errors, tt.wantErr)
		})
	}
}

func TestValidateJurisdiction_InjectionPatterns(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	tests := []struct {
		field   string
		payload string
		pattern string
	}{
		{"location", "<script>alert(1)</script>", "Script tag"},
		{"location", "javascript:void(0)", "JavaScript protocol"},
		{"location", "<img src=x onerror=alert(1)>", "onerror handler"},
		{"location", "<svg/onload=alert(1)>", "onload handler"},
		{"notes", "<iframe src=x>", "iframe tag"},
		{"notes", "<embed src=x>", "embed tag"},
		{"location", "x; DROP TABLE rates", "SQL DROP"},
		{"county", "DELETE FROM rates", "SQL DELETE"},
		{"notes", "INSERT INTO rates VALUES (1)", "SQL INSERT"},
		{"notes", "UPDATE rates SET rate = 0", "SQL UPDATE"},
		{"location", "Sacramento; --", "SQL comment"},
		{"county", "x' OR '1'='1", "SQL OR bypass"},
		{"location", "../../secret", "Path traversal"},
		{"notes", "see /etc/passwd", "Unix system path"},
		{"notes", "C:\\Windows\\System32", "Windows system path"},
		{"location", "=HYPERLINK(\"x\")", "CSV formula injection"},
		{"notes", "total @SUM(A1:A9) here", "Excel SUM function"},
		{"notes", "x=cmd|' /C calc'!A0", "Excel command execution"},
		{"notes", "run `whoami` now", "Backtick command"},
		{"county", "Sac $(whoami)", "Command substitution"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			result := v.ValidateJurisdiction(record(t, withField(tt.field, tt.payload)), "CA")

			require.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "SECURITY: "+tt.pattern+" detected in "+tt.field)
		})
	}
}

func TestValidateJurisdiction_ScriptTagNamesValue(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	result := v.ValidateJurisdiction(record(t, withField("location", "<script>alert(1)</script>")), "CA")

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Script tag")
	assert.Contains(t, result.Errors[0], "<script>alert(1)</script>")
}

func TestValidateJurisdiction_Rate(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	tests := []struct {
		name        string
		rate        interface{}
		valid       bool
		errContains string
		warnContain string
	}{
		{name: "zero is valid", rate: 0, valid: true},
		{name: "numeric string coerces", rate: "0.0875", valid: true},
		{name: "negative", rate: -0.01, errContains: "Rate below minimum"},
		{name: "above ceiling", rate: 0.25, errContains: "Rate exceeds maximum: 25.00% (max 20%)"},
		{name: "exactly ceiling", rate: 0.20, valid: true, warnContain: "Unusually high rate"},
		{name: "unusually high", rate: 0.16, valid: true, warnContain: "Unusually high rate: 16.00% (expected <15%)"},
		{name: "not a number", rate: "abc", errContains: "Invalid rate (not a number)"},
		{name: "NaN string", rate: "NaN", errContains: "Invalid rate (not a number)"},
		{name: "infinity string", rate: "Infinity", errContains: "Infinity"},
		{name: "hex string", rate: "0x5F5E100", errContains: "Invalid rate (not a number)"},
		{name: "boolean", rate: true, errContains: "Invalid rate (not a number)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := withField("rate", tt.rate)
			delete(fields, "ratePercent")

			result := v.ValidateJurisdiction(record(t, fields), "CA")

			assert.Equal(t, tt.valid, result.Valid, result.Errors)
			if tt.errContains != "" {
				require.NotEmpty(t, result.Errors)
				assert.Contains(t, strings.Join(result.Errors, "\n"), tt.errContains)
			}
			if tt.warnContain != "" {
				assert.Contains(t, strings.Join(result.Warnings, "\n"), tt.warnContain)
			}
		})
	}
}

func TestValidateJurisdiction_ConfigurableCeiling(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.MaxRate = 0.30
	policy.WarnRate = 0.25
	v := validation.NewValidator(policy)

	fields := withField("rate", 0.22)
	delete(fields, "ratePercent")
	result := v.ValidateJurisdiction(record(t, fields), "CA")

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidateJurisdiction_Lengths(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	result := v.ValidateJurisdiction(record(t, withField("location", strings.Repeat("a", 201))), "CA")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Location field too long: 201 chars (max 200)")

	result = v.ValidateJurisdiction(record(t, withField("county", strings.Repeat("b", 101))), "CA")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "County field too long: 101 chars (max 100)")

	result = v.ValidateJurisdiction(record(t, withField("notes", strings.Repeat("c", 501))), "CA")
	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, "Notes field very long: 501 chars")
}

func TestValidateJurisdiction_WarningsOnly(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	t.Run("unknown type", func(t *testing.T) {
		result := v.ValidateJurisdiction(record(t, withField("type", "Borough")), "CA")
		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], `Unusual jurisdiction type: "Borough"`)
	})

	t.Run("zero width space", func(t *testing.T) {
		result := v.ValidateJurisdiction(record(t, withField("location", "Sacra\u200Bmento")), "CA")
		assert.True(t, result.Valid)
		assert.Contains(t, result.Warnings, "Suspicious Unicode (zero-width character) in location")
	})

	t.Run("null byte", func(t *testing.T) {
		result := v.ValidateJurisdiction(record(t, withField("county", "Sacramento\x00")), "CA")
		assert.True(t, result.Valid)
		assert.Contains(t, result.Warnings, "Suspicious Unicode (null byte) in county")
	})

	t.Run("stale ratePercent", func(t *testing.T) {
		result := v.ValidateJurisdiction(record(t, withField("ratePercent", "8.80%")), "CA")
		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], `expected "8.75%"`)
	})

	t.Run("diacritics are fine", func(t *testing.T) {
		result := v.ValidateJurisdiction(record(t, withField("location", "Cañon City")), "CA")
		assert.True(t, result.Valid)
		assert.Empty(t, result.Warnings)
	})
}
