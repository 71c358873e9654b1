package dataset

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// Decode parses a dataset file and rebuilds its lookup indexes from the
// jurisdiction list, ignoring whatever lookup the file carried.
func Decode(b []byte) (*business.Dataset, error) {
	var ds business.Dataset
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, errors.Wrap(err, "failed to decode dataset")
	}
	ds.Lookup = BuildLookup(ds.Jurisdictions)
	return &ds, nil
}

// DecodeRaw parses a dataset file only as far as its top-level shape.
func DecodeRaw(b []byte) (business.RawDataset, error) {
	var raw business.RawDataset
	if err := json.Unmarshal(b, &raw); err != nil {
		return raw, errors.Wrap(err, "failed to decode dataset")
	}
	return raw, nil
}

// Encode serializes a dataset with freshly derived lookup indexes.
func Encode(ds *business.Dataset) ([]byte, error) {
	out := *ds
	out.Lookup = BuildLookup(ds.Jurisdictions)
	if out.Jurisdictions == nil {
		out.Jurisdictions = []business.Jurisdiction{}
	}
	return marshalIndent(out)
}

// DecodeZipRates parses a per-state ZIP-rate file.
func DecodeZipRates(b []byte) (business.ZipRateTable, error) {
	table := business.ZipRateTable{}
	if err := json.Unmarshal(b, &table); err != nil {
		return nil, errors.Wrap(err, "failed to decode zip rates")
	}
	return table, nil
}

// EncodeJSON writes any pipeline artifact in the repository's JSON style.
func EncodeJSON(v interface{}) ([]byte, error) {
	return marshalIndent(v)
}

func marshalIndent(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "failed to encode json")
	}
	return buf.Bytes(), nil
}
