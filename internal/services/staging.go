package services

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/taxrates/taxrates-api/internal/catalog"
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

// ErrReportMissing is returned when a stage needs the diff report and none
// has been written.
var ErrReportMissing = errors.New("no diff report found, run diff first")

// stagedFile is one staged dataset key and its state code.
type stagedFile struct {
	State string
	Key   string
}

// stagedFiles lists the dataset files in a store, sorted by key.
func stagedFiles(ctx context.Context, s store.Store) ([]stagedFile, error) {
	keys, err := s.List(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list staged files")
	}
	sort.Strings(keys)

	var files []stagedFile
	for _, key := range keys {
		if state := catalog.StateFromKey(key); state != "" {
			files = append(files, stagedFile{State: state, Key: key})
		}
	}
	return files, nil
}

// readOptional returns the bytes under key, or nil when it does not exist.
func readOptional(ctx context.Context, s store.Store, key string) ([]byte, error) {
	b, err := s.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", key)
	}
	return b, nil
}

// decodeOptional decodes a dataset, treating nil input as absent.
func decodeOptional(b []byte) (*business.Dataset, error) {
	if b == nil {
		return nil, nil
	}
	return dataset.Decode(b)
}

// rawCount is the length of a raw jurisdictions array, 0 when it is not one.
func rawCount(raw json.RawMessage) int {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return 0
	}
	return len(elems)
}

// readReport loads the diff report from the staging store.
func readReport(ctx context.Context, s store.Store) (*business.DiffReport, error) {
	b, err := s.Get(ctx, constants.DiffReportKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrReportMissing
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read diff report")
	}
	var report business.DiffReport
	if err := json.Unmarshal(b, &report); err != nil {
		return nil, errors.Wrap(err, "failed to decode diff report")
	}
	return &report, nil
}
