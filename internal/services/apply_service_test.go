package services_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/dataset"
	"github.com/taxrates/taxrates-api/internal/services"
	"github.com/taxrates/taxrates-api/internal/store"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

func putReport(t *testing.T, s store.Store, r *business.DiffReport) {
	t.Helper()
	b, err := dataset.EncodeJSON(r)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), constants.DiffReportKey, b))
}

func deployableReport() *business.DiffReport {
	return &business.DiffReport{
		ChangedJurisdictions: 2,
		ChangePercent:        2,
		RateChanges: []business.RateChange{
			{State: "CA", Location: "City 3", County: "Sacramento", OldRate: 0.0875, NewRate: 0.09, Diff: 0.0025},
			{State: "CA", Location: "City 7", County: "Sacramento", OldRate: 0.0875, NewRate: 0.0925, Diff: 0.005},
		},
		NewJurisdictions:     []string{},
		RemovedJurisdictions: []string{},
		StructuralChanges:    []string{},
		AutoDeployable:       true,
		Summary:              "2 jurisdictions changed (2.00%). Auto-deployable",
	}
}

type applyFixture struct {
	committed, staging, changelog store.Store
	svc                           *services.ApplyService
}

func newApplyFixture(t *testing.T) applyFixture {
	t.Helper()
	f := applyFixture{committed: store.NewMemory(), staging: store.NewMemory(), changelog: store.NewMemory()}
	f.svc = services.NewApplyService(f.committed, f.staging, f.changelog, constants.DefaultChangelog).WithClock(clock)
	return f
}

func TestApplyService_Run(t *testing.T) {
	ctx := context.Background()
	base := cityRecords(100, 0.0875)

	t.Run("missing report", func(t *testing.T) {
		f := newApplyFixture(t)

		_, err := f.svc.Run(ctx)

		assert.ErrorIs(t, err, services.ErrReportMissing)
	})

	t.Run("not auto-deployable is a no-op", func(t *testing.T) {
		f := newApplyFixture(t)
		report := deployableReport()
		report.AutoDeployable = false
		report.NeedsReview = true
		putReport(t, f.staging, report)
		putDataset(t, f.staging, "ca", buildDataset(cdtfaSource, base...))

		result, err := f.svc.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, "changes are not auto-deployable", result.Skipped)
		assert.Empty(t, result.Applied)
		keys, err := f.committed.List(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, keys)
		ok, err := store.Exists(ctx, f.changelog, constants.DefaultChangelog)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero changes is a no-op", func(t *testing.T) {
		f := newApplyFixture(t)
		report := deployableReport()
		report.ChangedJurisdictions = 0
		putReport(t, f.staging, report)

		result, err := f.svc.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, "no changes to apply", result.Skipped)
		assert.False(t, result.ChangelogUpdated)
	})

	t.Run("applies changed files and skips identical ones", func(t *testing.T) {
		f := newApplyFixture(t)
		putReport(t, f.staging, deployableReport())

		tx := buildDataset("Texas Comptroller of Public Accounts", jurisdiction("Texas", constants.TypeState, "Texas", 0.0625))
		putDataset(t, f.committed, "tx", tx)
		putDataset(t, f.staging, "tx", tx)
		putDataset(t, f.committed, "ca", buildDataset(cdtfaSource, base...))
		staged := buildDataset(cdtfaSource, withRate(withRate(base, 3, 0.09), 7, 0.0925)...)
		putDataset(t, f.staging, "ca", staged)

		result, err := f.svc.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{"ca-tax-rates.json"}, result.Applied)
		assert.Equal(t, []string{"tx-tax-rates.json"}, result.Unchanged)
		assert.True(t, result.ChangelogUpdated)

		committedCA, err := f.committed.Get(ctx, "ca-tax-rates.json")
		require.NoError(t, err)
		stagedCA, err := f.staging.Get(ctx, "ca-tax-rates.json")
		require.NoError(t, err)
		assert.Equal(t, stagedCA, committedCA)

		changelog, err := f.changelog.Get(ctx, constants.DefaultChangelog)
		require.NoError(t, err)
		assert.Equal(t, "# Changelog\n"+
			"\n"+
			"## [auto-update] 2026-10-15\n"+
			"\n"+
			"- **2** jurisdictions updated (2% of total)\n"+
			"- Rate changes:\n"+
			"  - CA City 3: 8.75% → 9.00%\n"+
			"  - CA City 7: 8.75% → 9.25%\n", string(changelog))
	})

	t.Run("new state file is applied", func(t *testing.T) {
		f := newApplyFixture(t)
		putReport(t, f.staging, deployableReport())
		putDataset(t, f.staging, "wa", buildDataset("WA DOR", cityRecords(3, 0.09)...))

		result, err := f.svc.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{"wa-tax-rates.json"}, result.Applied)
	})

	t.Run("entry goes after the first heading", func(t *testing.T) {
		f := newApplyFixture(t)
		putReport(t, f.staging, deployableReport())
		require.NoError(t, f.changelog.Put(ctx, constants.DefaultChangelog, []byte("# Changelog\n\n## 1.0.0\n\n- Initial release\n")))

		_, err := f.svc.Run(ctx)

		require.NoError(t, err)
		changelog, err := f.changelog.Get(ctx, constants.DefaultChangelog)
		require.NoError(t, err)
		text := string(changelog)
		assert.True(t, strings.HasPrefix(text, "# Changelog\n\n## [auto-update] 2026-10-15\n"))
		assert.Less(t, strings.Index(text, "[auto-update]"), strings.Index(text, "## 1.0.0"))
		assert.True(t, strings.HasSuffix(text, "## 1.0.0\n\n- Initial release\n"))
	})
}

func TestChangelogEntry(t *testing.T) {
	report := &business.DiffReport{
		ChangedJurisdictions: 33,
		ChangePercent:        4.71,
		NewJurisdictions:     []string{"CA: A (X)", "CA: B (X)", "CA: C (X)"},
		RemovedJurisdictions: []string{"CA: D (X)"},
	}
	for i := 0; i < 25; i++ {
		report.RateChanges = append(report.RateChanges, business.RateChange{
			State: "CA", Location: fmt.Sprintf("City %d", i), OldRate: 0.0875, NewRate: 0.09375,
		})
	}

	entry := services.ChangelogEntry(report, fixedNow)

	assert.Contains(t, entry, "- **33** jurisdictions updated (4.71% of total)\n")
	assert.Contains(t, entry, "  - CA City 19: 8.75% → 9.38%\n")
	assert.NotContains(t, entry, "City 20:")
	assert.Contains(t, entry, "  - ... and 5 more\n")
	assert.Contains(t, entry, "- **3** new jurisdictions added\n")
	assert.True(t, strings.HasSuffix(entry, "- **1** jurisdictions removed\n"))
}

func TestInsertChangelogEntry(t *testing.T) {
	entry := "\n## [auto-update] 2026-10-15\n"

	assert.Equal(t, "# Changelog\n"+entry, string(services.InsertChangelogEntry(nil, entry)))
	assert.Equal(t, "# Changelog"+entry, string(services.InsertChangelogEntry([]byte("# Changelog"), entry)))
	assert.Equal(t, "# Log\n"+entry+"rest\n", string(services.InsertChangelogEntry([]byte("# Log\nrest\n"), entry)))
	assert.Equal(t, "\n"+entry+"", string(services.InsertChangelogEntry([]byte("\n"), entry)))
}
