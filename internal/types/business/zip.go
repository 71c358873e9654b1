package business

// ZipRateEntry is the compact per-ZIP rate record. Component rates are
// omitted when zero.
type ZipRateEntry struct {
	R  float64  `json:"r"`
	N  string   `json:"n"`
	S  *float64 `json:"s,omitempty"`
	Co *float64 `json:"co,omitempty"`
	Ci *float64 `json:"ci,omitempty"`
	Sp *float64 `json:"sp,omitempty"`
}

// ZipRateTable maps a 5-digit ZIP to its rate entry.
type ZipRateTable map[string]ZipRateEntry
