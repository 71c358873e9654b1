package business

import "time"

// RateChange is a jurisdiction whose combined rate differs between the
// committed and staged datasets.
type RateChange struct {
	State    string  `json:"state"`
	Location string  `json:"location"`
	County   string  `json:"county"`
	OldRate  float64 `json:"oldRate"`
	NewRate  float64 `json:"newRate"`
	Diff     float64 `json:"diff"`
}

// DiffReport summarizes every change in a staged batch and whether the batch
// can be applied without human review.
type DiffReport struct {
	Timestamp            time.Time    `json:"timestamp"`
	TotalJurisdictions   int          `json:"totalJurisdictions"`
	ChangedJurisdictions int          `json:"changedJurisdictions"`
	ChangePercent        float64      `json:"changePercent"`
	NewJurisdictions     []string     `json:"newJurisdictions"`
	RemovedJurisdictions []string     `json:"removedJurisdictions"`
	RateChanges          []RateChange `json:"rateChanges"`
	StructuralChanges    []string     `json:"structuralChanges"`
	NeedsReview          bool         `json:"needsReview"`
	AutoDeployable       bool         `json:"autoDeployable"`
	Summary              string       `json:"summary"`
}

// ScrapeOutcome is the result of one state's scrape.
type ScrapeOutcome struct {
	State  string `json:"state"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ScrapeSummary is written next to the staged files after a scrape run.
type ScrapeSummary struct {
	Timestamp   time.Time       `json:"timestamp"`
	Results     []ScrapeOutcome `json:"results"`
	ScrapersRun int             `json:"scrapersRun"`
	TotalStaged int             `json:"totalStaged"`
}
