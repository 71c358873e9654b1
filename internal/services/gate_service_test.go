package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/mocks"
	"github.com/taxrates/taxrates-api/internal/services"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/validation"
)

func TestGateService_Run(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		setup        func(t *testing.T, committed, staging store.Store)
		wantDecision services.GateDecision
		check        func(t *testing.T, r *services.GateResult)
	}{
		{
			name:         "empty staging area passes",
			setup:        func(t *testing.T, committed, staging store.Store) {},
			wantDecision: services.GatePass,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Empty(t, r.States)
				assert.Zero(t, r.ImpactPercent)
			},
		},
		{
			name: "small growth passes",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, cityRecords(100, 0.0875)...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(104, 0.0875)...))
			},
			wantDecision: services.GatePass,
			check: func(t *testing.T, r *services.GateResult) {
				require.Len(t, r.States, 1)
				assert.Equal(t, 100, r.States[0].OldCount)
				assert.Equal(t, 104, r.States[0].NewCount)
				assert.InDelta(t, 4.0, r.ImpactPercent, 1e-9)
				assert.Zero(t, r.Warnings)
			},
		},
		{
			name: "injected record fails closed",
			setup: func(t *testing.T, committed, staging store.Store) {
				records := cityRecords(60, 0.0875)
				records[10].Location = "<script>alert(1)</script>"
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, records...))
			},
			wantDecision: services.GateFail,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Equal(t, 1, r.Errors)
				assert.Contains(t, strings.Join(r.States[0].Dataset.Errors, "\n"), "Script tag")
			},
		},
		{
			name: "impact of exactly five percent passes",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, cityRecords(100, 0.0875)...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(105, 0.0875)...))
			},
			wantDecision: services.GatePass,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Equal(t, 5.0, r.ImpactPercent)
				assert.Zero(t, r.Warnings)
			},
		},
		{
			name: "impact just above five percent needs review",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, cityRecords(4000, 0.0875)...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(4200, 0.0875)...))
				putDataset(t, committed, "ny", buildDataset("NY", cityRecords(3000, 0.08)...))
				putDataset(t, staging, "ny", buildDataset("NY", cityRecords(3150, 0.08)...))
				putDataset(t, committed, "wa", buildDataset("WA", cityRecords(3000, 0.09)...))
				putDataset(t, staging, "wa", buildDataset("WA", cityRecords(3151, 0.09)...))
			},
			wantDecision: services.GateNeedsReview,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Zero(t, r.Errors)
				assert.InDelta(t, 5.01, r.ImpactPercent, 1e-9)
				assert.Equal(t, 1, r.Warnings, "only WA moved by more than five percent")
			},
		},
		{
			name: "impact above five percent needs review",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, cityRecords(100, 0.0875)...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(106, 0.0875)...))
			},
			wantDecision: services.GateNeedsReview,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Zero(t, r.Errors)
				assert.Equal(t, 1, r.Warnings)
				assert.InDelta(t, 6.0, r.ImpactPercent, 1e-9)
			},
		},
		{
			name: "errors outrank impact",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, cityRecords(100, 0.0875)...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(130, 0.0875)...))
			},
			wantDecision: services.GateFail,
			check: func(t *testing.T, r *services.GateResult) {
				require.NotNil(t, r.States[0].Diff)
				assert.Contains(t, r.States[0].Diff.Errors[0], "Large jurisdiction count change")
			},
		},
		{
			name: "warning volume needs review",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, staging, "tx", buildDataset("Texas Comptroller of Public Accounts", cityRecords(11, 0.16)...))
			},
			wantDecision: services.GateNeedsReview,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Zero(t, r.Errors)
				assert.Equal(t, 11, r.Warnings)
				assert.True(t, r.States[0].NewState)
				assert.Nil(t, r.States[0].Diff)
			},
		},
		{
			name: "ten warnings still pass",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, staging, "tx", buildDataset("Texas Comptroller of Public Accounts", cityRecords(10, 0.16)...))
			},
			wantDecision: services.GatePass,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Equal(t, 10, r.Warnings)
			},
		},
		{
			name: "malformed staged file fails",
			setup: func(t *testing.T, committed, staging store.Store) {
				require.NoError(t, staging.Put(context.Background(), "ca-tax-rates.json", []byte("[1,2")))
			},
			wantDecision: services.GateFail,
			check: func(t *testing.T, r *services.GateResult) {
				assert.Equal(t, 1, r.Errors)
				assert.True(t, strings.HasPrefix(r.States[0].Dataset.Errors[0], "Invalid JSON"))
			},
		},
		{
			name: "impact is pooled across states",
			setup: func(t *testing.T, committed, staging store.Store) {
				putDataset(t, committed, "ca", buildDataset(cdtfaSource, cityRecords(200, 0.0875)...))
				putDataset(t, staging, "ca", buildDataset(cdtfaSource, cityRecords(208, 0.0875)...))
				putDataset(t, committed, "ny", buildDataset("NY", cityRecords(20, 0.08)...))
				putDataset(t, staging, "ny", buildDataset("NY", cityRecords(22, 0.08)...))
			},
			wantDecision: services.GatePass,
			check: func(t *testing.T, r *services.GateResult) {
				assert.InDelta(t, 10.0/220*100, r.ImpactPercent, 1e-9)
				assert.Equal(t, 1, r.Warnings, "NY changed by 10%")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			committed, staging := store.NewMemory(), store.NewMemory()
			tt.setup(t, committed, staging)
			svc := services.NewGateService(committed, staging, validation.NewValidator(config.DefaultPolicy()))

			result, err := svc.Run(ctx)

			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, result.Decision)
			tt.check(t, result)
		})
	}
}

func TestGateService_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	staging := mocks.NewMockStore(ctrl)
	staging.EXPECT().List(gomock.Any(), "").Return([]string{"ca-tax-rates.json", constants.DiffReportKey}, nil)
	staging.EXPECT().Get(gomock.Any(), "ca-tax-rates.json").Return(nil, errors.New("connection reset"))

	svc := services.NewGateService(store.NewMemory(), staging, validation.NewValidator(config.DefaultPolicy()))
	_, err := svc.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGateDecision(t *testing.T) {
	assert.Equal(t, 0, services.GatePass.ExitCode())
	assert.Equal(t, 1, services.GateFail.ExitCode())
	assert.Equal(t, 2, services.GateNeedsReview.ExitCode())
	assert.Equal(t, "fail", services.GateFail.String())
}
