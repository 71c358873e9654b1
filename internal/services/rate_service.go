package services

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taxrates/taxrates-api/internal/catalog"
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/helpers"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"github.com/taxrates/taxrates-api/internal/types/api/requests"
	"github.com/taxrates/taxrates-api/internal/types/api/responses"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// RateService resolves combined sales tax rates against the published
// catalog. Each call reads a single catalog generation.
type RateService struct {
	catalog   *catalog.Holder
	profiles  dataset.Profiles
	zipPrefix dataset.ZipPrefixTable
	metrics   *metrics.Metrics
	logger    *zap.Logger
	title     cases.Caser
}

// RateServiceOption customizes a RateService.
type RateServiceOption func(*RateService)

// WithRateMetrics counts lookups by method.
func WithRateMetrics(m *metrics.Metrics) RateServiceOption {
	return func(s *RateService) {
		s.metrics = m
	}
}

// NewRateService creates a rate resolver.
func NewRateService(holder *catalog.Holder, profiles dataset.Profiles, zipPrefix dataset.ZipPrefixTable, opts ...RateServiceOption) *RateService {
	s := &RateService{
		catalog:   holder,
		profiles:  profiles,
		zipPrefix: zipPrefix,
		logger:    logger.Log,
		title:     cases.Title(language.AmericanEnglish),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve finds the rate for a location. Precedence: city, then ZIP table,
// then county, then the state default. A miss at one step falls through to
// the next. Lookups that cannot be answered return Supported=false.
func (s *RateService) Resolve(req requests.RateRequest) responses.RateResponse {
	resp := s.resolve(req)
	if s.metrics != nil {
		s.metrics.RecordLookup(resp.LookupMethod, resp.Supported)
	}
	return resp
}

func (s *RateService) resolve(req requests.RateRequest) responses.RateResponse {
	state := strings.ToUpper(strings.TrimSpace(req.State))
	city := strings.TrimSpace(req.City)
	county := strings.TrimSpace(req.County)
	rawZip := strings.TrimSpace(req.Zip)
	zip := dataset.NormalizeZip(rawZip)

	if state == "" && rawZip == "" {
		return unsupported("", "Either a state or a ZIP code is required.")
	}
	if state == "" {
		detected, ok := s.zipPrefix.StateFor(zip)
		if !ok {
			return unsupported("", fmt.Sprintf("Could not determine state from ZIP code %s.", rawZip))
		}
		state = detected
	}

	cat := s.catalog.Current()
	ds, ok := cat.Dataset(state)
	if !ok {
		return unsupported(state, fmt.Sprintf("No tax data for %s. Supported states: %s.", state, strings.Join(cat.States(), ", ")))
	}
	profile := s.profile(state)

	if city != "" {
		if j, method, ok := findCity(ds, city); ok {
			return s.fromRecord(ds, profile, state, j, method)
		}
		s.logger.Debug("City not found, falling through", zap.String("state", state), zap.String("city", city))
	}

	if zip != "" {
		if table, ok := cat.ZipRates(state); ok {
			if entry, ok := table[zip]; ok {
				return s.fromZip(ds, state, zip, entry)
			}
		}
	}

	if county != "" {
		if j, ok := findCounty(ds, county); ok {
			return s.fromRecord(ds, profile, state, j, constants.LookupCounty)
		}
	}

	return s.stateDefault(ds, profile, state)
}

// profile returns the state's profile, or a zero-base profile for states
// that have data but no statutory entry.
func (s *RateService) profile(state string) dataset.StateProfile {
	if p, ok := s.profiles.Get(state); ok {
		return p
	}
	return dataset.StateProfile{Code: state, Name: state}
}

// findCity tries the city index, then the county index with and without a
// " county" suffix. The method names the index that matched.
func findCity(ds *business.Dataset, name string) (business.Jurisdiction, string, bool) {
	key := helpers.NormalizeKey(name)
	if j, ok := ds.Lookup.ByCity[key]; ok {
		return j, constants.LookupCity, true
	}
	if j, ok := findCounty(ds, name); ok {
		return j, constants.LookupCounty, true
	}
	return business.Jurisdiction{}, "", false
}

func findCounty(ds *business.Dataset, name string) (business.Jurisdiction, bool) {
	key := helpers.NormalizeKey(name)
	if j, ok := ds.Lookup.ByCounty[key]; ok {
		return j, true
	}
	if !strings.HasSuffix(key, " county") {
		if j, ok := ds.Lookup.ByCounty[key+" county"]; ok {
			return j, true
		}
	}
	return business.Jurisdiction{}, false
}

func (s *RateService) fromRecord(ds *business.Dataset, profile dataset.StateProfile, state string, j business.Jurisdiction, method string) responses.RateResponse {
	resp := supported(ds, state, j.Rate, j.Location, method)
	if j.Type != constants.TypeState {
		resp.County = j.County
	}
	resp.Components = s.components(ds, profile, j)
	return resp
}

// components splits a record's rate. The state and uniform local shares come
// from the profile; anything above the base is district tax, except that a
// city keeps whatever exceeds its county's district tax.
func (s *RateService) components(ds *business.Dataset, profile dataset.StateProfile, j business.Jurisdiction) responses.RateComponents {
	if len(ds.Jurisdictions) <= 1 {
		return responses.RateComponents{State: j.Rate}
	}

	rate := j.Rate
	if rate < profile.BaseRate {
		stateShare := math.Min(rate, profile.StateShare)
		return roundComponents(responses.RateComponents{
			State:  stateShare,
			County: math.Max(0, rate-stateShare),
		})
	}

	c := responses.RateComponents{State: profile.StateShare, County: profile.LocalShare}
	remainder := rate - profile.StateShare - profile.LocalShare
	if j.Type == constants.TypeCity {
		if countyRec, ok := findCounty(ds, j.County); ok {
			c.District = math.Min(dataset.DistrictTax(countyRec.Rate, profile.BaseRate), remainder)
		}
		c.City = remainder - c.District
	} else {
		c.District = remainder
	}
	return roundComponents(c)
}

func (s *RateService) fromZip(ds *business.Dataset, state, zip string, e business.ZipRateEntry) responses.RateResponse {
	name := s.title.String(strings.ToLower(e.N))
	if name == "" {
		name = "ZIP " + zip
	}
	resp := supported(ds, state, e.R, name, constants.LookupZip)

	c := responses.RateComponents{
		State:    value(e.S),
		County:   value(e.Co),
		City:     value(e.Ci),
		District: value(e.Sp),
	}
	c.District += e.R - c.Sum()
	resp.Components = roundComponents(c)
	return resp
}

func (s *RateService) stateDefault(ds *business.Dataset, profile dataset.StateProfile, state string) responses.RateResponse {
	if j, ok := stateRecord(ds, profile); ok {
		return s.fromRecord(ds, profile, state, j, constants.LookupStateDefault)
	}

	resp := supported(ds, state, profile.BaseRate, profile.Name+" (State Base Rate)", constants.LookupStateDefault)
	resp.Components = roundComponents(responses.RateComponents{
		State:  profile.StateShare,
		County: profile.BaseRate - profile.StateShare,
	})
	return resp
}

// stateRecord picks the dataset's State record, preferring the one named
// after the state.
func stateRecord(ds *business.Dataset, profile dataset.StateProfile) (business.Jurisdiction, bool) {
	if j, ok := ds.Lookup.ByState[helpers.NormalizeKey(profile.Name)]; ok {
		return j, true
	}
	for _, j := range ds.Jurisdictions {
		if j.Type == constants.TypeState {
			return j, true
		}
	}
	return business.Jurisdiction{}, false
}

func supported(ds *business.Dataset, state string, rate float64, jurisdiction, method string) responses.RateResponse {
	return responses.RateResponse{
		Rate:          rate,
		Percentage:    dataset.FormatRatePercent(rate),
		Jurisdiction:  jurisdiction,
		State:         state,
		Source:        ds.Metadata.Source,
		EffectiveDate: ds.Metadata.EffectiveDate,
		Supported:     true,
		LookupMethod:  method,
	}
}

func unsupported(state, reason string) responses.RateResponse {
	return responses.RateResponse{
		Rate:          0,
		Percentage:    constants.UnsupportedPercent,
		Jurisdiction:  constants.NotApplicable,
		State:         state,
		Source:        constants.UnsupportedSource,
		EffectiveDate: constants.NotApplicable,
		Supported:     false,
		Reason:        reason,
	}
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func roundComponents(c responses.RateComponents) responses.RateComponents {
	return responses.RateComponents{
		State:    helpers.Round(c.State, 6),
		County:   helpers.Round(c.County, 6),
		City:     helpers.Round(c.City, 6),
		District: helpers.Round(c.District, 6),
	}
}

// SupportedStates lists the states with committed data.
func (s *RateService) SupportedStates() []string {
	return s.catalog.Current().States()
}

// States summarizes every supported state.
func (s *RateService) States() responses.StatesResponse {
	cat := s.catalog.Current()
	states := cat.States()
	out := responses.StatesResponse{States: make([]responses.StateSummary, 0, len(states)), Count: len(states)}
	for _, code := range states {
		ds, _ := cat.Dataset(code)
		_, hasZip := cat.ZipRates(code)
		profile := s.profile(code)
		out.States = append(out.States, responses.StateSummary{
			Code:              code,
			Name:              profile.Name,
			BaseRate:          profile.BaseRate,
			JurisdictionCount: len(ds.Jurisdictions),
			HasLocalRates:     len(ds.Jurisdictions) > 1,
			HasZipRates:       hasZip,
			EffectiveDate:     ds.Metadata.EffectiveDate,
			Source:            ds.Metadata.Source,
		})
	}
	return out
}

// Metadata returns a state's dataset metadata.
func (s *RateService) Metadata(state string) (responses.MetadataResponse, bool) {
	cat := s.catalog.Current()
	ds, ok := cat.Dataset(state)
	if !ok {
		return responses.MetadataResponse{}, false
	}
	return responses.MetadataResponse{
		State:             strings.ToUpper(state),
		EffectiveDate:     ds.Metadata.EffectiveDate,
		Source:            ds.Metadata.Source,
		LastUpdated:       ds.Metadata.LastUpdated,
		JurisdictionCount: len(ds.Jurisdictions),
		Version:           ds.Metadata.Version,
		SupportedStates:   cat.States(),
	}, true
}

// Jurisdictions returns a copy of a state's records; empty for unknown states.
func (s *RateService) Jurisdictions(state string) []business.Jurisdiction {
	ds, ok := s.catalog.Current().Dataset(state)
	if !ok {
		return []business.Jurisdiction{}
	}
	return append([]business.Jurisdiction(nil), ds.Jurisdictions...)
}

// LookupZip resolves a rate from a ZIP code alone.
func (s *RateService) LookupZip(zip string) responses.RateResponse {
	return s.Resolve(requests.RateRequest{Zip: zip})
}
