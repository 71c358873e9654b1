package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// Catalog is an immutable snapshot of every committed state dataset and ZIP
// table. Readers may share it freely; a reload builds a new Catalog.
type Catalog struct {
	datasets   map[string]*business.Dataset
	zipRates   map[string]business.ZipRateTable
	loadedAt   time.Time
	generation uint64
}

// New builds a catalog from decoded data, keyed by state code in any case.
func New(datasets map[string]*business.Dataset, zipRates map[string]business.ZipRateTable) *Catalog {
	c := &Catalog{
		datasets: make(map[string]*business.Dataset, len(datasets)),
		zipRates: make(map[string]business.ZipRateTable, len(zipRates)),
		loadedAt: time.Now().UTC(),
	}
	for state, ds := range datasets {
		c.datasets[strings.ToUpper(state)] = ds
	}
	for state, table := range zipRates {
		c.zipRates[strings.ToUpper(state)] = table
	}
	return c
}

// Load reads every dataset and ZIP-rate file from s.
func Load(ctx context.Context, s store.Store) (*Catalog, error) {
	keys, err := s.List(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list committed data")
	}

	datasets := make(map[string]*business.Dataset)
	zipRates := make(map[string]business.ZipRateTable)
	for _, key := range keys {
		switch {
		case strings.HasPrefix(key, constants.ZipRatesPrefix) && strings.HasSuffix(key, constants.ZipRatesSuffix):
			state := strings.TrimSuffix(strings.TrimPrefix(key, constants.ZipRatesPrefix), constants.ZipRatesSuffix)
			b, err := s.Get(ctx, key)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s", key)
			}
			table, err := dataset.DecodeZipRates(b)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s", key)
			}
			zipRates[state] = table
		case StateFromKey(key) != "":
			b, err := s.Get(ctx, key)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s", key)
			}
			ds, err := dataset.Decode(b)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s", key)
			}
			datasets[StateFromKey(key)] = ds
		}
	}
	return New(datasets, zipRates), nil
}

// StateFromKey returns the upper-case state code of a top-level dataset key,
// or "" when key is not a dataset file.
func StateFromKey(key string) string {
	if strings.Contains(key, "/") {
		return ""
	}
	state, ok := strings.CutSuffix(key, constants.DatasetSuffix)
	if !ok || state == "" {
		return ""
	}
	return strings.ToUpper(state)
}

// Dataset returns the dataset of a state.
func (c *Catalog) Dataset(state string) (*business.Dataset, bool) {
	ds, ok := c.datasets[strings.ToUpper(state)]
	return ds, ok
}

// ZipRates returns the ZIP table of a state.
func (c *Catalog) ZipRates(state string) (business.ZipRateTable, bool) {
	table, ok := c.zipRates[strings.ToUpper(state)]
	return table, ok
}

// States lists the states with a dataset, sorted.
func (c *Catalog) States() []string {
	states := make([]string, 0, len(c.datasets))
	for state := range c.datasets {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// Len is the number of states with a dataset.
func (c *Catalog) Len() int {
	return len(c.datasets)
}

// LoadedAt is when the snapshot was built.
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

// Generation is the reload counter assigned by a Holder. Zero for catalogs
// built outside one.
func (c *Catalog) Generation() uint64 {
	return c.generation
}
