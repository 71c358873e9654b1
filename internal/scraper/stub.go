package scraper

import (
	"context"
	"strings"
)

// Stub is a registered placeholder for a state whose source has not been
// wired. The pipeline carries that state's committed data forward.
type Stub struct {
	state string
}

// NewStub returns a placeholder scraper for state.
func NewStub(state string) *Stub {
	return &Stub{state: strings.ToUpper(state)}
}

func (s *Stub) State() string { return s.state }

func (s *Stub) Implemented() bool { return false }

func (s *Stub) Scrape(ctx context.Context) Result {
	return Result{State: s.state, Error: ErrNotImplemented.Error()}
}
