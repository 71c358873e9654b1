package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Policy holds every tunable threshold of the validation and deployment
// pipeline. The defaults reproduce the published review rules.
type Policy struct {
	MaxRate      float64 `yaml:"max_rate" validate:"gt=0,lte=1"`
	WarnRate     float64 `yaml:"warn_rate" validate:"gt=0,ltefield=MaxRate"`
	OutlierSigma float64 `yaml:"outlier_sigma" validate:"gt=0"`

	MinFullCoverage    int      `yaml:"min_full_coverage" validate:"gte=1"`
	MinStateOnly       int      `yaml:"min_state_only" validate:"gte=0"`
	MaxJurisdictions   int      `yaml:"max_jurisdictions" validate:"gtefield=MinFullCoverage"`
	FullyScrapedStates []string `yaml:"fully_scraped_states"`

	DiffCountErrorPercent float64 `yaml:"diff_count_error_percent" validate:"gtfield=DiffCountWarnPercent"`
	DiffCountWarnPercent  float64 `yaml:"diff_count_warn_percent" validate:"gt=0"`
	MassRemovalError      int     `yaml:"mass_removal_error" validate:"gtfield=MassRemovalWarn"`
	MassRemovalWarn       int     `yaml:"mass_removal_warn" validate:"gte=0"`

	ReviewChangePercent  float64 `yaml:"review_change_percent" validate:"gt=0"`
	MaxRateJump          float64 `yaml:"max_rate_jump" validate:"gt=0"`
	MaxRemovals          int     `yaml:"max_removals" validate:"gte=0"`
	StructuralCountSwing int     `yaml:"structural_count_swing" validate:"gte=0"`
	GateWarningLimit     int     `yaml:"gate_warning_limit" validate:"gte=0"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxRate:      0.20,
		WarnRate:     0.15,
		OutlierSigma: 3,

		MinFullCoverage:    50,
		MinStateOnly:       1,
		MaxJurisdictions:   5000,
		FullyScrapedStates: []string{"ca"},

		DiffCountErrorPercent: 20,
		DiffCountWarnPercent:  10,
		MassRemovalError:      50,
		MassRemovalWarn:       20,

		ReviewChangePercent:  5,
		MaxRateJump:          0.03,
		MaxRemovals:          10,
		StructuralCountSwing: 20,
		GateWarningLimit:     10,
	}
}

// IsFullyScraped reports whether a state is expected to carry full
// sub-state coverage.
func (p Policy) IsFullyScraped(state string) bool {
	for _, s := range p.FullyScrapedStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

// MinJurisdictions is the smallest plausible dataset size for a state.
func (p Policy) MinJurisdictions(state string) int {
	if p.IsFullyScraped(state) {
		return p.MinFullCoverage
	}
	return p.MinStateOnly
}

// Sources lists the candidate download URLs of each scraper, tried in order.
type Sources struct {
	States map[string]SourceSet `yaml:"states"`
}

// SourceSet is the candidate list of one state.
type SourceSet struct {
	URLs []string `yaml:"urls" validate:"dive,url"`
	// QuarterlyPattern is formatted with the first month of the current
	// quarter and the two-digit year, e.g. "salestaxrates%d-1-%02d.csv".
	QuarterlyPattern string `yaml:"quarterly_pattern"`
}

// DefaultSources returns the published CDTFA export locations.
func DefaultSources() Sources {
	return Sources{States: map[string]SourceSet{
		"CA": {
			URLs: []string{
				"https://www.cdtfa.ca.gov/dataportal/dataset/e8cdaca5-36ea-4b2d-a4e3-c5fb7d302dc3/resource/32431b15-be25-451b-b37c-c5e6f7e22c9a/download/salestaxrates1-1-26.csv",
			},
			QuarterlyPattern: "https://www.cdtfa.ca.gov/dataportal/dataset/e8cdaca5-36ea-4b2d-a4e3-c5fb7d302dc3/resource/32431b15-be25-451b-b37c-c5e6f7e22c9a/download/salestaxrates%d-1-%02d.csv",
		},
	}}
}

// For returns the candidate set of a state.
func (s Sources) For(state string) SourceSet {
	return s.States[strings.ToUpper(state)]
}

// policyFile is the on-disk layout of POLICY_FILE. Both sections are optional.
type policyFile struct {
	Policy  Policy               `yaml:"policy"`
	Sources map[string]SourceSet `yaml:"sources"`
}

// LoadPolicy layers an optional YAML file over the defaults. An empty path
// returns the defaults unchanged.
func LoadPolicy(path string) (Policy, Sources, error) {
	policy := DefaultPolicy()
	sources := DefaultSources()
	if path == "" {
		return policy, sources, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return policy, sources, errors.Wrapf(err, "failed to read policy file %s", path)
	}
	return ParsePolicy(b)
}

// ParsePolicy decodes a policy document over the defaults and validates it.
func ParsePolicy(b []byte) (Policy, Sources, error) {
	policy := DefaultPolicy()
	sources := DefaultSources()

	file := policyFile{Policy: policy}
	if err := yaml.Unmarshal(b, &file); err != nil {
		return policy, sources, errors.Wrap(err, "failed to parse policy file")
	}
	policy = file.Policy
	for state, set := range file.Sources {
		sources.States[strings.ToUpper(state)] = set
	}

	v := validator.New()
	if err := v.Struct(policy); err != nil {
		return policy, sources, errors.Wrap(err, "invalid policy")
	}
	for state, set := range sources.States {
		if err := v.Struct(set); err != nil {
			return policy, sources, errors.Wrapf(err, "invalid sources for %s", state)
		}
	}
	return policy, sources, nil
}
