package dataset

import (
	"sort"
	"strings"
)

// StateProfile carries the statutory base rate of a state and how that base
// splits between the state and a uniform local share.
type StateProfile struct {
	Code       string
	Name       string
	BaseRate   float64
	StateShare float64
	LocalShare float64
	Source     string
	Notes      string
}

// Profiles is an immutable set of state profiles keyed by upper-case code.
type Profiles struct {
	byCode map[string]StateProfile
}

var baseProfiles = []StateProfile{
	{Code: "AL", Name: "Alabama", BaseRate: 0.04, StateShare: 0.04, Source: "Alabama Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 9% additional tax."},
	{Code: "AK", Name: "Alaska", BaseRate: 0, StateShare: 0, Source: "Alaska Department of Revenue", Notes: "No state sales tax. Some local jurisdictions impose local sales taxes up to 9.5%."},
	{Code: "AZ", Name: "Arizona", BaseRate: 0.056, StateShare: 0.056, Source: "Arizona Department of Revenue", Notes: "State Transaction Privilege Tax (TPT) base rate. Local jurisdictions may add additional tax."},
	{Code: "AR", Name: "Arkansas", BaseRate: 0.065, StateShare: 0.065, Source: "Arkansas Department of Finance and Administration", Notes: "State base rate. Local jurisdictions may add up to 6.125% additional tax."},
	{Code: "CA", Name: "California", BaseRate: 0.0725, StateShare: 0.06, LocalShare: 0.0125, Source: "California Department of Tax and Fee Administration (CDTFA)", Notes: "State base rate of 6% plus a uniform 1.25% local rate. District taxes may apply."},
	{Code: "CO", Name: "Colorado", BaseRate: 0.029, StateShare: 0.029, Source: "Colorado Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 8.3% additional tax."},
	{Code: "CT", Name: "Connecticut", BaseRate: 0.0635, StateShare: 0.0635, Source: "Connecticut Department of Revenue Services", Notes: "State rate. Reduced rates apply to certain items. Limited local tax authority."},
	{Code: "DE", Name: "Delaware", BaseRate: 0, StateShare: 0, Source: "Delaware Division of Revenue", Notes: "No sales tax. Delaware imposes a gross receipts tax on businesses instead."},
	{Code: "DC", Name: "District of Columbia", BaseRate: 0.06, StateShare: 0.06, Source: "DC Office of Tax and Revenue", Notes: "Standard sales tax rate. No additional local rates."},
	{Code: "FL", Name: "Florida", BaseRate: 0.06, StateShare: 0.06, Source: "Florida Department of Revenue", Notes: "State base rate. Counties may add a discretionary sales surtax."},
	{Code: "GA", Name: "Georgia", BaseRate: 0.04, StateShare: 0.04, Source: "Georgia Department of Revenue", Notes: "State base rate. Local jurisdictions add 1% to 5% additional tax."},
	{Code: "HI", Name: "Hawaii", BaseRate: 0.04, StateShare: 0.04, Source: "Hawaii Department of Taxation", Notes: "General Excise Tax (GET) rate. County surcharges may add up to 0.5%."},
	{Code: "ID", Name: "Idaho", BaseRate: 0.06, StateShare: 0.06, Source: "Idaho State Tax Commission", Notes: "State base rate. Local jurisdictions may add up to 3% additional tax."},
	{Code: "IL", Name: "Illinois", BaseRate: 0.0625, StateShare: 0.0625, Source: "Illinois Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 5.75% additional tax."},
	{Code: "IN", Name: "Indiana", BaseRate: 0.07, StateShare: 0.07, Source: "Indiana Department of Revenue", Notes: "State rate. No additional local sales taxes."},
	{Code: "IA", Name: "Iowa", BaseRate: 0.06, StateShare: 0.06, Source: "Iowa Department of Revenue", Notes: "State base rate. Local option sales tax of up to 2% may apply."},
	{Code: "KS", Name: "Kansas", BaseRate: 0.065, StateShare: 0.065, Source: "Kansas Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 5.625% additional tax."},
	{Code: "KY", Name: "Kentucky", BaseRate: 0.06, StateShare: 0.06, Source: "Kentucky Department of Revenue", Notes: "State rate. No additional local sales taxes."},
	{Code: "LA", Name: "Louisiana", BaseRate: 0.05, StateShare: 0.05, Source: "Louisiana Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 8.5% additional tax."},
	{Code: "ME", Name: "Maine", BaseRate: 0.055, StateShare: 0.055, Source: "Maine Revenue Services", Notes: "State rate. No additional local sales taxes."},
	{Code: "MD", Name: "Maryland", BaseRate: 0.06, StateShare: 0.06, Source: "Maryland Comptroller of the Treasury", Notes: "State rate. No additional local sales taxes."},
	{Code: "MA", Name: "Massachusetts", BaseRate: 0.0625, StateShare: 0.0625, Source: "Massachusetts Department of Revenue", Notes: "State rate. No additional local sales taxes."},
	{Code: "MI", Name: "Michigan", BaseRate: 0.06, StateShare: 0.06, Source: "Michigan Department of Treasury", Notes: "State rate. No additional local sales taxes."},
	{Code: "MN", Name: "Minnesota", BaseRate: 0.06875, StateShare: 0.06875, Source: "Minnesota Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 3% additional tax."},
	{Code: "MS", Name: "Mississippi", BaseRate: 0.07, StateShare: 0.07, Source: "Mississippi Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 1% additional tax."},
	{Code: "MO", Name: "Missouri", BaseRate: 0.04225, StateShare: 0.04225, Source: "Missouri Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 8.013% additional tax."},
	{Code: "MT", Name: "Montana", BaseRate: 0, StateShare: 0, Source: "Montana Department of Revenue", Notes: "No sales tax. Montana has no state or local general sales tax."},
	{Code: "NE", Name: "Nebraska", BaseRate: 0.055, StateShare: 0.055, Source: "Nebraska Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 7% additional tax."},
	{Code: "NV", Name: "Nevada", BaseRate: 0.0685, StateShare: 0.0685, Source: "Nevada Department of Taxation", Notes: "State base rate. Counties may add local option taxes."},
	{Code: "NH", Name: "New Hampshire", BaseRate: 0, StateShare: 0, Source: "New Hampshire Department of Revenue Administration", Notes: "No sales tax. New Hampshire has no state or local general sales tax."},
	{Code: "NJ", Name: "New Jersey", BaseRate: 0.06625, StateShare: 0.06625, Source: "New Jersey Division of Taxation", Notes: "State rate. Urban Enterprise Zones have reduced rate of 3.3125%. No other local taxes."},
	{Code: "NM", Name: "New Mexico", BaseRate: 0.04875, StateShare: 0.04875, Source: "New Mexico Taxation and Revenue Department", Notes: "Gross Receipts Tax state rate. Local jurisdictions may add up to 7.75% additional tax."},
	{Code: "NY", Name: "New York", BaseRate: 0.04, StateShare: 0.04, Source: "New York State Department of Taxation and Finance", Notes: "State base rate. Counties and cities add local rates; MCTD surcharge applies in the NYC area."},
	{Code: "NC", Name: "North Carolina", BaseRate: 0.0475, StateShare: 0.0475, Source: "North Carolina Department of Revenue", Notes: "State base rate. Local jurisdictions add 2% to 4.25% additional tax."},
	{Code: "ND", Name: "North Dakota", BaseRate: 0.05, StateShare: 0.05, Source: "North Dakota Office of State Tax Commissioner", Notes: "State base rate. Local jurisdictions may add up to 3.5% additional tax."},
	{Code: "OH", Name: "Ohio", BaseRate: 0.0575, StateShare: 0.0575, Source: "Ohio Department of Taxation", Notes: "State base rate. County sales taxes add 0% to 2.5% additional tax."},
	{Code: "OK", Name: "Oklahoma", BaseRate: 0.045, StateShare: 0.045, Source: "Oklahoma Tax Commission", Notes: "State base rate. Local jurisdictions may add up to 7% additional tax."},
	{Code: "OR", Name: "Oregon", BaseRate: 0, StateShare: 0, Source: "Oregon Department of Revenue", Notes: "No sales tax."},
	{Code: "PA", Name: "Pennsylvania", BaseRate: 0.06, StateShare: 0.06, Source: "Pennsylvania Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 2% additional tax (Philadelphia 2%, Allegheny County 1%)."},
	{Code: "RI", Name: "Rhode Island", BaseRate: 0.07, StateShare: 0.07, Source: "Rhode Island Division of Taxation", Notes: "State rate. No additional local sales taxes."},
	{Code: "SC", Name: "South Carolina", BaseRate: 0.06, StateShare: 0.06, Source: "South Carolina Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 3% additional tax."},
	{Code: "SD", Name: "South Dakota", BaseRate: 0.042, StateShare: 0.042, Source: "South Dakota Department of Revenue", Notes: "State base rate. Local jurisdictions may add additional tax."},
	{Code: "TN", Name: "Tennessee", BaseRate: 0.07, StateShare: 0.07, Source: "Tennessee Department of Revenue", Notes: "State base rate. Local jurisdictions add 1.5% to 2.75% additional tax."},
	{Code: "TX", Name: "Texas", BaseRate: 0.0625, StateShare: 0.0625, Source: "Texas Comptroller of Public Accounts", Notes: "State base rate. Local jurisdictions may add up to 2% additional tax."},
	{Code: "UT", Name: "Utah", BaseRate: 0.0485, StateShare: 0.0485, Source: "Utah State Tax Commission", Notes: "State base rate. Local jurisdictions add 1% to 7.5% additional tax."},
	{Code: "VT", Name: "Vermont", BaseRate: 0.06, StateShare: 0.06, Source: "Vermont Department of Taxes", Notes: "State base rate. Local jurisdictions may add up to 1% additional tax."},
	{Code: "VA", Name: "Virginia", BaseRate: 0.043, StateShare: 0.043, Source: "Virginia Department of Taxation", Notes: "State base rate (4.3% state general + local minimum). Local jurisdictions add 1% to 2.7% additional tax."},
	{Code: "WA", Name: "Washington", BaseRate: 0.065, StateShare: 0.065, Source: "Washington State Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 4.1% additional tax."},
	{Code: "WV", Name: "West Virginia", BaseRate: 0.06, StateShare: 0.06, Source: "West Virginia State Tax Department", Notes: "State base rate. Local jurisdictions may add up to 1% additional tax."},
	{Code: "WI", Name: "Wisconsin", BaseRate: 0.05, StateShare: 0.05, Source: "Wisconsin Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 1.75% additional tax."},
	{Code: "WY", Name: "Wyoming", BaseRate: 0.04, StateShare: 0.04, Source: "Wyoming Department of Revenue", Notes: "State base rate. Local jurisdictions may add up to 4% additional tax."},
}

// DefaultProfiles returns the profiles of the 50 states and DC.
func DefaultProfiles() Profiles {
	return NewProfiles(baseProfiles...)
}

// NewProfiles builds a profile set from the given entries.
func NewProfiles(entries ...StateProfile) Profiles {
	byCode := make(map[string]StateProfile, len(entries))
	for _, p := range entries {
		byCode[strings.ToUpper(p.Code)] = p
	}
	return Profiles{byCode: byCode}
}

// Get returns the profile for a state code.
func (p Profiles) Get(code string) (StateProfile, bool) {
	profile, ok := p.byCode[strings.ToUpper(code)]
	return profile, ok
}

// Codes returns every profiled state code in sorted order.
func (p Profiles) Codes() []string {
	codes := make([]string, 0, len(p.byCode))
	for code := range p.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of profiles.
func (p Profiles) Len() int {
	return len(p.byCode)
}
