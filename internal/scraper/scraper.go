package scraper

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/types/business"
	"github.com/taxrates/taxrates-api/internal/validation"
)

// ErrNotImplemented is reported by placeholder scrapers.
var ErrNotImplemented = errors.New("scraper not implemented")

// Fetcher downloads a source document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Scraper fetches one state's official source and normalizes it into a
// dataset. Failures are reported in Result.Error, never returned.
type Scraper interface {
	State() string
	Scrape(ctx context.Context) Result
}

// Result is the outcome of one scrape. Data is nil whenever Error is set.
type Result struct {
	State string
	Data  *business.Dataset
	Error string
}

// implementer is satisfied by scrapers that can report they are placeholders.
type implementer interface {
	Implemented() bool
}

// Registry maps state codes to scrapers. It is immutable once built.
type Registry struct {
	byState map[string]Scraper
}

// NewRegistry builds a registry. A later scraper for the same state replaces
// an earlier one.
func NewRegistry(scrapers ...Scraper) Registry {
	byState := make(map[string]Scraper, len(scrapers))
	for _, s := range scrapers {
		byState[strings.ToUpper(s.State())] = s
	}
	return Registry{byState: byState}
}

// DefaultRegistry registers the California CDTFA adapter and the placeholder
// scrapers of the states whose sources are not wired yet.
func DefaultRegistry(fetcher Fetcher, validator *validation.Validator, sources config.Sources) Registry {
	return NewRegistry(
		NewCDTFA(fetcher, validator, sources.For("CA")),
		NewStub("NY"),
		NewStub("TX"),
		NewStub("WA"),
		NewStub("FL"),
	)
}

// Get returns the scraper registered for a state.
func (r Registry) Get(state string) (Scraper, bool) {
	s, ok := r.byState[strings.ToUpper(state)]
	return s, ok
}

// Implemented reports whether a state has a working scraper.
func (r Registry) Implemented(state string) bool {
	s, ok := r.Get(state)
	if !ok {
		return false
	}
	if impl, ok := s.(implementer); ok {
		return impl.Implemented()
	}
	return true
}

// States returns every registered state code in sorted order.
func (r Registry) States() []string {
	states := make([]string, 0, len(r.byState))
	for state := range r.byState {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// Len returns the number of registered scrapers.
func (r Registry) Len() int {
	return len(r.byState)
}
