package ziprates

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/helpers"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// Tables holds one ZIP table per upper-case state code.
type Tables map[string]business.ZipRateTable

// columns maps the Avalara ZIP5 header to field positions; -1 when absent.
type columns struct {
	state, zip, name, combined, stateRate, county, city, special int
}

func findColumns(header []string) columns {
	cols := columns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, h := range header {
		switch name := strings.ToLower(strings.Trim(strings.TrimSpace(h), `"`)); {
		case name == "state":
			cols.state = i
		case strings.Contains(name, "zip") && cols.zip < 0:
			cols.zip = i
		case name == "taxregionname":
			cols.name = i
		case name == "estimatedcombinedrate":
			cols.combined = i
		case name == "staterate":
			cols.stateRate = i
		case name == "estimatedcountyrate":
			cols.county = i
		case name == "estimatedcityrate":
			cols.city = i
		case name == "estimatedspecialrate":
			cols.special = i
		}
	}
	return cols
}

// Parse reads an Avalara ZIP5 rate export. Rows without a State column value
// are assigned to defaultState. When a ZIP appears more than once the entry
// with the highest combined rate wins.
func Parse(r io.Reader, defaultState string) (Tables, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return Tables{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read zip rate header")
	}
	cols := findColumns(header)
	if cols.zip < 0 || cols.combined < 0 {
		return nil, errors.Errorf("zip rate csv missing required columns, header: %v", header)
	}

	tables := Tables{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read zip rate record")
		}

		zip := field(record, cols.zip)
		if zip == "" || len(zip) > 5 {
			continue
		}
		zip = strings.Repeat("0", 5-len(zip)) + zip

		state := strings.ToUpper(field(record, cols.state))
		if state == "" {
			state = strings.ToUpper(defaultState)
		}
		if state == "" {
			continue
		}

		entry := business.ZipRateEntry{
			R:  rate(record, cols.combined),
			N:  strings.ToUpper(field(record, cols.name)),
			S:  component(record, cols.stateRate),
			Co: component(record, cols.county),
			Ci: component(record, cols.city),
			Sp: component(record, cols.special),
		}

		table, ok := tables[state]
		if !ok {
			table = business.ZipRateTable{}
			tables[state] = table
		}
		if existing, ok := table[zip]; !ok || existing.R < entry.R {
			table[zip] = entry
		}
	}
	return tables, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.Trim(strings.TrimSpace(record[idx]), `"`)
}

// rate parses a rate rounded to five decimals. Unparseable values are zero.
func rate(record []string, idx int) float64 {
	v, err := strconv.ParseFloat(field(record, idx), 64)
	if err != nil {
		return 0
	}
	return helpers.Round(v, 5)
}

// component is a rate that is omitted from the entry when zero.
func component(record []string, idx int) *float64 {
	v := rate(record, idx)
	if v == 0 {
		return nil
	}
	return &v
}

// Import writes one ZIP-rate file per state and returns the states written
// with their ZIP counts.
func Import(ctx context.Context, s store.Store, tables Tables) (map[string]int, error) {
	states := make([]string, 0, len(tables))
	for state := range tables {
		states = append(states, state)
	}
	sort.Strings(states)

	written := make(map[string]int, len(tables))
	for _, state := range states {
		table := tables[state]
		if len(table) == 0 {
			continue
		}
		b, err := dataset.EncodeJSON(table)
		if err != nil {
			return written, err
		}
		if err := s.Put(ctx, constants.ZipRatesKey(state), b); err != nil {
			return written, errors.Wrapf(err, "failed to write zip rates for %s", state)
		}
		written[state] = len(table)
	}
	return written, nil
}
