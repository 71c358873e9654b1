package scraper

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// row is one CSV record keyed by trimmed header name.
type row map[string]string

// parseCSV reads a header-first CSV export. Quoted fields may contain commas;
// short rows are padded with empty values.
func parseCSV(content []byte, required ...string) ([]row, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}
	for i, h := range header {
		header[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}
	for _, name := range required {
		if !contains(header, name) {
			return nil, errors.Errorf("csv missing required column %q", name)
		}
	}

	var rows []row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read csv record")
		}
		rec := make(row, len(header))
		for i, h := range header {
			if i < len(record) {
				rec[h] = strings.TrimSpace(record[i])
			} else {
				rec[h] = ""
			}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
