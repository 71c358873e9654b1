package responses

// RateComponents breaks a combined rate into its levels of government.
type RateComponents struct {
	State    float64 `json:"state"`
	County   float64 `json:"county"`
	City     float64 `json:"city"`
	District float64 `json:"district"`
}

// Sum returns the total of all components.
func (c RateComponents) Sum() float64 {
	return c.State + c.County + c.City + c.District
}

// RateResponse is the result of a rate lookup. Unsupported lookups are
// reported with Supported=false and a Reason rather than as errors.
type RateResponse struct {
	Rate          float64        `json:"rate"`
	Percentage    string         `json:"percentage"`
	Jurisdiction  string         `json:"jurisdiction"`
	State         string         `json:"state"`
	County        string         `json:"county,omitempty"`
	Components    RateComponents `json:"components"`
	Source        string         `json:"source"`
	EffectiveDate string         `json:"effectiveDate"`
	Supported     bool           `json:"supported"`
	Reason        string         `json:"reason,omitempty"`
	LookupMethod  string         `json:"lookupMethod,omitempty"`
}

// StateSummary describes one supported state.
type StateSummary struct {
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	BaseRate          float64 `json:"baseRate"`
	JurisdictionCount int     `json:"jurisdictionCount"`
	HasLocalRates     bool    `json:"hasLocalRates"`
	HasZipRates       bool    `json:"hasZipRates"`
	EffectiveDate     string  `json:"effectiveDate"`
	Source            string  `json:"source"`
}

// StatesResponse lists supported states.
type StatesResponse struct {
	States []StateSummary `json:"states"`
	Count  int            `json:"count"`
}

// MetadataResponse is a dataset's metadata plus the supported state list.
type MetadataResponse struct {
	State             string   `json:"state"`
	EffectiveDate     string   `json:"effectiveDate"`
	Source            string   `json:"source"`
	LastUpdated       string   `json:"lastUpdated"`
	JurisdictionCount int      `json:"jurisdictionCount"`
	Version           string   `json:"version"`
	SupportedStates   []string `json:"supportedStates"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Example string `json:"example,omitempty"`
}

// ServiceInfoResponse describes the API.
type ServiceInfoResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status     string `json:"status"`
	States     int    `json:"states"`
	LoadedAt   string `json:"loadedAt,omitempty"`
	Generation uint64 `json:"generation"`
}

// RateLimitResponse is returned with 429 Too Many Requests.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}
