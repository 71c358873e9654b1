package archive

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/taxrates/taxrates-api/internal/types/business"
)

func encodeReport(report *business.DiffReport) ([]byte, error) {
	if report == nil {
		return []byte("null"), nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode report")
	}
	return b, nil
}

func decodeReport(b []byte) (*business.DiffReport, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var report business.DiffReport
	if err := json.Unmarshal(b, &report); err != nil {
		return nil, errors.Wrap(err, "failed to decode archived report")
	}
	return &report, nil
}
