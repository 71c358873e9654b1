package constants

import "strings"

// Store keys shared by the pipeline stages
const (
	DatasetSuffix      = "-tax-rates.json"
	ZipRatesPrefix     = "zip-rates/"
	ZipRatesSuffix     = "-zip-rates.json"
	DiffReportKey      = "diff-report.json"
	ScrapeSummaryKey   = "scrape-summary.json"
	DefaultChangelog   = "CHANGELOG.md"
	UnsupportedSource  = "taxrates-us"
	UnsupportedPercent = "0.00%"
	NotApplicable      = "N/A"
)

// Service identity reported by the API
const (
	ServiceName    = "taxrates-us API"
	ServiceVersion = "0.3.0"
)

// Jurisdiction types
const (
	TypeState          = "State"
	TypeCity           = "City"
	TypeCounty         = "County"
	TypeUnincorporated = "Unincorporated Area"
	TypeDistrict       = "District"
	TypeSpecial        = "Special"
	TypeTransit        = "Transit District"
)

// ValidJurisdictionTypes lists every recognized jurisdiction type.
var ValidJurisdictionTypes = []string{
	TypeState,
	TypeCity,
	TypeCounty,
	TypeDistrict,
	TypeSpecial,
	TypeUnincorporated,
	TypeTransit,
}

// Lookup methods reported by the rate resolver
const (
	LookupCity         = "city"
	LookupCounty       = "county"
	LookupZip          = "zip"
	LookupStateDefault = "state-default"
)

// Scrape outcome statuses
const (
	ScrapeStatusOK      = "ok"
	ScrapeStatusSkipped = "skipped"
	ScrapeStatusError   = "error"
)

// DatasetKey returns the store key of a state's dataset file.
func DatasetKey(state string) string {
	return strings.ToLower(state) + DatasetSuffix
}

// ZipRatesKey returns the store key of a state's ZIP-rate file.
func ZipRatesKey(state string) string {
	return ZipRatesPrefix + strings.ToLower(state) + ZipRatesSuffix
}
