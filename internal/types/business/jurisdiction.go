package business

import "encoding/json"

// Jurisdiction is one taxable location record in a state dataset.
type Jurisdiction struct {
	Location    string  `json:"location"`
	Type        string  `json:"type"`
	County      string  `json:"county"`
	Rate        float64 `json:"rate"`
	RatePercent string  `json:"ratePercent"`
	DistrictTax float64 `json:"districtTax"`
	Notes       *string `json:"notes"`
}

// Raw re-encodes the jurisdiction into its undecoded form so it can be run
// through the same checks as records read from untrusted files.
func (j Jurisdiction) Raw() RawJurisdiction {
	raw := RawJurisdiction{}
	b, err := json.Marshal(j)
	if err != nil {
		return raw
	}
	_ = json.Unmarshal(b, &raw)
	return raw
}

// RawJurisdiction is a jurisdiction record exactly as it was decoded from
// JSON. Field presence and field types are only checked by the validators.
type RawJurisdiction map[string]json.RawMessage

// Metadata describes the provenance of a state dataset.
type Metadata struct {
	EffectiveDate     string `json:"effectiveDate"`
	Source            string `json:"source"`
	LastUpdated       string `json:"lastUpdated"`
	JurisdictionCount int    `json:"jurisdictionCount"`
	Version           string `json:"version"`
}

// Lookup holds the case-folded indexes derived from a dataset's jurisdictions.
type Lookup struct {
	ByCity   map[string]Jurisdiction `json:"byCity"`
	ByCounty map[string]Jurisdiction `json:"byCounty"`
	ByState  map[string]Jurisdiction `json:"byState"`
}

// Dataset is the per-state reference data file.
type Dataset struct {
	Metadata      Metadata       `json:"metadata"`
	Jurisdictions []Jurisdiction `json:"jurisdictions"`
	Lookup        Lookup         `json:"lookup"`
}

// Raw converts a typed dataset into the undecoded form used by the validators.
func (d *Dataset) Raw() RawDataset {
	meta := d.Metadata
	records := make([]RawJurisdiction, 0, len(d.Jurisdictions))
	for _, j := range d.Jurisdictions {
		records = append(records, j.Raw())
	}
	b, _ := json.Marshal(records)
	return RawDataset{Metadata: &meta, Jurisdictions: b}
}

// RawDataset is a dataset file decoded only as far as its top-level shape.
type RawDataset struct {
	Metadata      *Metadata       `json:"metadata"`
	Jurisdictions json.RawMessage `json:"jurisdictions"`
}
