package dataset

import (
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// SeedVersion is the dataset version written for generated state-level files.
const SeedVersion = "0.4.0"

// StateDataset builds a single-record dataset carrying only a state's base
// rate, for states without a local-rate source.
func StateDataset(p StateProfile, effectiveDate, lastUpdated string) *business.Dataset {
	var notes *string
	if p.Notes != "" {
		n := p.Notes
		notes = &n
	}
	records := []business.Jurisdiction{{
		Location:    p.Name,
		Type:        constants.TypeState,
		County:      constants.TypeState,
		Rate:        p.BaseRate,
		RatePercent: FormatRatePercent(p.BaseRate),
		Notes:       notes,
	}}
	return &business.Dataset{
		Metadata: business.Metadata{
			EffectiveDate:     effectiveDate,
			Source:            p.Source,
			LastUpdated:       lastUpdated,
			JurisdictionCount: len(records),
			Version:           SeedVersion,
		},
		Jurisdictions: records,
		Lookup:        BuildLookup(records),
	}
}
