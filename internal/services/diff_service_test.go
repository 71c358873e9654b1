package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/mocks"
	"github.com/taxrates/taxrates-api/internal/services"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

func TestDiffService_Run(t *testing.T) {
	ctx := context.Background()
	base := cityRecords(100, 0.0875)

	tests := []struct {
		name        string
		setup       func(t *testing.T, committed, staging store.Store)
		wantVerdict services.Verdict
		check       func(t *testing.T, r *business.DiffReport)
	}{
		{
			name:        "empty staging area",
			setup:       func(t *testing.T, committed, staging store.Store) {},
			wantVerdict: services.VerdictNoChanges,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, "No changes detected.", r.Summary)
				assert.Zero(t, r.TotalJurisdictions)
				assert.NotNil(t, r.RateChanges)
			},
		},
		{
			name: "identical staged copy",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, base...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, base...))
			},
			wantVerdict: services.VerdictNoChanges,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, 100, r.TotalJurisdictions)
				assert.Zero(t, r.ChangedJurisdictions)
				assert.False(t, r.NeedsReview)
				assert.False(t, r.AutoDeployable)
				assert.Equal(t, "No changes detected.", r.Summary)
			},
		},
		{
			name: "small rate changes are auto-deployable",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, base...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, withRate(withRate(base, 3, 0.09), 7, 0.0925)...))
			},
			wantVerdict: services.VerdictAutoDeployable,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, 2, r.ChangedJurisdictions)
				assert.Equal(t, 2.0, r.ChangePercent)
				assert.True(t, r.AutoDeployable)
				assert.Equal(t, "2 jurisdictions changed (2.00%). Auto-deployable", r.Summary)
				require.Len(t, r.RateChanges, 2)
				assert.Equal(t, business.RateChange{
					State: "CA", Location: "City 3", County: "Sacramento",
					OldRate: 0.0875, NewRate: 0.09, Diff: 0.09 - 0.0875,
				}, r.RateChanges[0])
			},
		},
		{
			name: "exactly five percent changed is auto-deployable",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, base...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, withRates(base, 5, 0.09)...))
			},
			wantVerdict: services.VerdictAutoDeployable,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, 5, r.ChangedJurisdictions)
				assert.Equal(t, 5.0, r.ChangePercent)
				assert.False(t, r.NeedsReview)
				assert.True(t, r.AutoDeployable)
			},
		},
		{
			name: "just above five percent changed needs review",
			setup: func(t *testing.T, committed, staging store.Store) {
				old := cityRecords(10000, 0.0875)
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, old...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, withRates(old, 501, 0.09)...))
			},
			wantVerdict: services.VerdictNeedsReview,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, 501, r.ChangedJurisdictions)
				assert.Equal(t, 5.01, r.ChangePercent)
				assert.Empty(t, r.StructuralChanges)
				assert.True(t, r.NeedsReview)
				assert.False(t, r.AutoDeployable)
			},
		},
		{
			name: "additions measured against the committed count",
			setup: func(t *testing.T, committed, staging store.Store) {
				old := cityRecords(550, 0.0875)
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, old...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(600, 0.0875)...))
			},
			wantVerdict: services.VerdictNeedsReview,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, 550, r.TotalJurisdictions)
				assert.Equal(t, 50, r.ChangedJurisdictions)
				assert.Equal(t, 9.09, r.ChangePercent)
				assert.Len(t, r.NewJurisdictions, 50)
				assert.Equal(t, "CA: City 550 (Sacramento)", r.NewJurisdictions[0])
				assert.Contains(t, r.StructuralChanges, "CA: jurisdiction count changed by 50 (550 → 600)")
				assert.Equal(t, "50 jurisdictions changed (9.09%). NEEDS REVIEW", r.Summary)
			},
		},
		{
			name: "single large rate jump",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, base...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, withRate(base, 0, 0.12)...))
			},
			wantVerdict: services.VerdictNeedsReview,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, 1, r.ChangedJurisdictions)
				assert.True(t, r.NeedsReview)
				assert.Empty(t, r.StructuralChanges)
			},
		},
		{
			name: "more than ten removals",
			setup: func(t *testing.T, committed, staging store.Store) {
				old := cityRecords(300, 0.0875)
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, old...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, old[11:]...))
			},
			wantVerdict: services.VerdictNeedsReview,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Len(t, r.RemovedJurisdictions, 11)
				assert.Equal(t, "CA: City 0 (Sacramento)", r.RemovedJurisdictions[0])
				assert.Equal(t, 3.67, r.ChangePercent)
				assert.Empty(t, r.StructuralChanges)
			},
		},
		{
			name: "brand-new state file",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, staging, "tx", buildDataset("Texas Comptroller of Public Accounts",
					jurisdiction("Texas", constants.TypeState, "Texas", 0.0625)))
			},
			wantVerdict: services.VerdictNeedsReview,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, []string{"TX: entirely new state data file"}, r.StructuralChanges)
				assert.Equal(t, 1, r.TotalJurisdictions)
				assert.False(t, r.AutoDeployable)
				assert.Equal(t, "0 jurisdictions changed (0.00%). NEEDS REVIEW", r.Summary)
			},
		},
		{
			name: "source change",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, base...))
				putDataset(t, staging, "ca", buildDataset("Somebody Else", base...))
			},
			wantVerdict: services.VerdictNeedsReview,
			check: func(t *testing.T, r *business.DiffReport) {
				require.Len(t, r.StructuralChanges, 1)
				assert.Contains(t, r.StructuralChanges[0], `CA: data source changed from "California Department`)
			},
		},
		{
			name: "undecodable staged file",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, base...))
				require.NoError(t, staging.Put(context.Background(), "ca-tax-rates.json", []byte("{not json")))
			},
			wantVerdict: services.VerdictNeedsReview,
			check: func(t *testing.T, r *business.DiffReport) {
				assert.Equal(t, []string{"CA: state data file removed"}, r.StructuralChanges)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			committed, staging := store.NewMemory(), store.NewMemory()
			tt.setup(t, committed, staging)
			svc := services.NewDiffService(committed, staging, config.DefaultPolicy()).WithClock(clock)

			report, verdict, err := svc.Run(ctx)

			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, verdict)
			assert.Equal(t, fixedNow, report.Timestamp)
			tt.check(t, report)

			b, err := staging.Get(ctx, constants.DiffReportKey)
			require.NoError(t, err)
			var written business.DiffReport
			require.NoError(t, json.Unmarshal(b, &written))
			assert.Equal(t, report.Summary, written.Summary)
			assert.Equal(t, report.ChangedJurisdictions, written.ChangedJurisdictions)
		})
	}
}

func TestDiffService_BuildReportDoesNotWrite(t *testing.T) {
	staging := store.NewMemory()
	putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(60, 0.0875)...))
	svc := services.NewDiffService(store.NewMemory(), staging, config.DefaultPolicy())

	_, err := svc.BuildReport(context.Background())

	require.NoError(t, err)
	ok, err := store.Exists(context.Background(), staging, constants.DiffReportKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiffService_StoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("list failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		staging := mocks.NewMockStore(ctrl)
		staging.EXPECT().List(gomock.Any(), "").Return(nil, errors.New("bucket unavailable"))

		_, _, err := services.NewDiffService(store.NewMemory(), staging, config.DefaultPolicy()).Run(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket unavailable")
	})

	t.Run("committed read failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		committed := mocks.NewMockStore(ctrl)
		committed.EXPECT().Get(gomock.Any(), "ca-tax-rates.json").Return(nil, errors.New("permission denied"))

		staging := store.NewMemory()
		putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(60, 0.0875)...))

		_, err := services.NewDiffService(committed, staging, config.DefaultPolicy()).BuildReport(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read ca-tax-rates.json")
	})

	t.Run("report write failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		staging := mocks.NewMockStore(ctrl)
		staging.EXPECT().List(gomock.Any(), "").Return([]string{}, nil)
		staging.EXPECT().Put(gomock.Any(), constants.DiffReportKey, gomock.Any()).Return(errors.New("read-only"))

		_, _, err := services.NewDiffService(store.NewMemory(), staging, config.DefaultPolicy()).Run(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write diff report")
	})
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, 0, services.VerdictNoChanges.ExitCode())
	assert.Equal(t, 0, services.VerdictAutoDeployable.ExitCode())
	assert.Equal(t, 2, services.VerdictNeedsReview.ExitCode())
	assert.Equal(t, "needs-review", services.VerdictNeedsReview.String())
	assert.Equal(t, services.VerdictAutoDeployable, services.VerdictOf(&business.DiffReport{AutoDeployable: true}))
}
