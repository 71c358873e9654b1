package scraper

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/types/business"
	"github.com/taxrates/taxrates-api/internal/validation"
)

const (
	cdtfaSource  = "California Department of Tax and Fee Administration (CDTFA)"
	cdtfaVersion = "0.1.0"

	// minSourceBytes rejects error pages and truncated downloads.
	minSourceBytes = 1000
)

// CDTFA scrapes the California rate export published by the CDTFA.
type CDTFA struct {
	fetcher   Fetcher
	validator *validation.Validator
	sources   config.SourceSet
	baseRate  float64
	now       func() time.Time
}

// CDTFAOption customizes the adapter.
type CDTFAOption func(*CDTFA)

// WithClock overrides the time source used for metadata dates and the
// quarterly URL.
func WithClock(now func() time.Time) CDTFAOption {
	return func(c *CDTFA) {
		c.now = now
	}
}

// NewCDTFA creates the California adapter.
func NewCDTFA(fetcher Fetcher, validator *validation.Validator, sources config.SourceSet, opts ...CDTFAOption) *CDTFA {
	c := &CDTFA{
		fetcher:   fetcher,
		validator: validator,
		sources:   sources,
		baseRate:  0.0725,
		now:       time.Now,
	}
	if profile, ok := dataset.DefaultProfiles().Get("CA"); ok {
		c.baseRate = profile.BaseRate
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CDTFA) State() string { return "CA" }

// CandidateURLs lists the download locations in the order they are tried.
func (c *CDTFA) CandidateURLs() []string {
	urls := append([]string(nil), c.sources.URLs...)
	if c.sources.QuarterlyPattern != "" {
		now := c.now()
		quarter := (int(now.Month())-1)/3 + 1
		urls = append(urls, fmt.Sprintf(c.sources.QuarterlyPattern, quarter*3-2, now.Year()%100))
	}
	return urls
}

// Scrape downloads the first usable export, keeps every row that passes the
// jurisdiction checks and fails closed if the assembled dataset is invalid.
func (c *CDTFA) Scrape(ctx context.Context) Result {
	log := logger.ForState(c.State())

	rows, err := c.download(ctx, log)
	if err != nil {
		return Result{State: c.State(), Error: err.Error()}
	}

	jurisdictions := make([]business.Jurisdiction, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		if r["Location"] == "" || r["Rate"] == "" {
			continue
		}
		j, errs := c.normalize(r)
		if len(errs) == 0 {
			check := c.validator.ValidateJurisdiction(j.Raw(), c.State())
			errs = check.Errors
			for _, w := range check.Warnings {
				log.Warn("Jurisdiction warning", zap.String("location", j.Location), zap.String("warning", w))
			}
		}
		if len(errs) > 0 {
			dropped++
			log.Error("Invalid jurisdiction dropped",
				zap.String("location", r["Location"]),
				zap.Strings("errors", errs))
			continue
		}
		jurisdictions = append(jurisdictions, j)
	}

	now := c.now()
	ds := &business.Dataset{
		Metadata: business.Metadata{
			EffectiveDate:     now.Format("2006-01") + "-01",
			Source:            cdtfaSource,
			LastUpdated:       now.Format("2006-01-02"),
			JurisdictionCount: len(jurisdictions),
			Version:           cdtfaVersion,
		},
		Jurisdictions: jurisdictions,
	}
	ds.Lookup = dataset.BuildLookup(jurisdictions)

	final := c.validator.ValidateDataset(ds.Raw(), c.State())
	for _, w := range final.Warnings {
		log.Warn("Dataset warning", zap.String("warning", w))
	}
	if !final.Valid {
		log.Error("Dataset validation failed", zap.Strings("errors", final.Errors))
		return Result{State: c.State(), Error: "Dataset validation failed"}
	}

	log.Info("Scraped jurisdictions",
		zap.Int("accepted", len(jurisdictions)),
		zap.Int("dropped", dropped))
	return Result{State: c.State(), Data: ds}
}

// download tries each candidate URL in order and returns the rows of the
// first substantial, parseable export.
func (c *CDTFA) download(ctx context.Context, log *zap.Logger) ([]row, error) {
	for _, url := range c.CandidateURLs() {
		body, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			log.Warn("Candidate source failed", zap.String("url", url), zap.Error(err))
			continue
		}
		if len(body) <= minSourceBytes {
			log.Warn("Candidate source too small", zap.String("url", url), zap.Int("bytes", len(body)))
			continue
		}
		rows, err := parseCSV(body, "Location", "Rate")
		if err != nil {
			log.Warn("Candidate source unparseable", zap.String("url", url), zap.Error(err))
			continue
		}
		log.Info("Downloaded source", zap.String("url", url), zap.Int("rows", len(rows)))
		return rows, nil
	}
	return nil, fmt.Errorf("could not download CDTFA CSV from any known URL")
}

func (c *CDTFA) normalize(r row) (business.Jurisdiction, []string) {
	rate, err := strconv.ParseFloat(r["Rate"], 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return business.Jurisdiction{}, []string{fmt.Sprintf("Invalid rate (not a number): %q", r["Rate"])}
	}

	county := r["County"]
	if county == "" {
		county = "Unknown"
	}
	var notes *string
	if n := strings.TrimSpace(r["Notes"]); n != "" {
		notes = &n
	}

	return business.Jurisdiction{
		Location:    r["Location"],
		Type:        dataset.JurisdictionType(r["Location"], r["Type"]),
		County:      county,
		Rate:        rate,
		RatePercent: dataset.FormatRatePercent(rate),
		DistrictTax: dataset.DistrictTax(rate, c.baseRate),
		Notes:       notes,
	}, nil
}
