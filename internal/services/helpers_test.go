package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

const cdtfaSource = "California Department of Tax and Fee Administration (CDTFA)"

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func clock() time.Time {
	return fixedNow
}

func cityRecords(n int, rate float64) []business.Jurisdiction {
	out := make([]business.Jurisdiction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, jurisdiction(fmt.Sprintf("City %d", i), constants.TypeCity, "Sacramento", rate))
	}
	return out
}

func putDataset(t *testing.T, s store.Store, state string, ds *business.Dataset) {
	t.Helper()
	b, err := dataset.Encode(ds)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), constants.DatasetKey(state), b))
}

func withRate(records []business.Jurisdiction, i int, rate float64) []business.Jurisdiction {
	out := append([]business.Jurisdiction(nil), records...)
	out[i].Rate = rate
	out[i].RatePercent = dataset.FormatRatePercent(rate)
	out[i].DistrictTax = dataset.DistrictTax(rate, 0.0725)
	return out
}

// withRates sets the rate of the first n records.
func withRates(records []business.Jurisdiction, n int, rate float64) []business.Jurisdiction {
	out := append([]business.Jurisdiction(nil), records...)
	for i := 0; i < n; i++ {
		out[i].Rate = rate
		out[i].RatePercent = dataset.FormatRatePercent(rate)
		out[i].DistrictTax = dataset.DistrictTax(rate, 0.0725)
	}
	return out
}
