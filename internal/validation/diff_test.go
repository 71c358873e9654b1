package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/validation"
)

func TestValidateDiff(t *testing.T) {
	v := validation.NewValidator(config.DefaultPolicy())

	t.Run("missing side is valid", func(t *testing.T) {
		result := v.ValidateDiff(nil, newDataset(cities(10, 0.0875)), "ca")
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
		assert.Empty(t, result.Warnings)

		result = v.ValidateDiff(newDataset(cities(10, 0.0875)), nil, "ca")
		assert.True(t, result.Valid)
	})

	t.Run("identical datasets", func(t *testing.T) {
		ds := newDataset(cities(100, 0.0875))
		result := v.ValidateDiff(ds, ds, "ca")
		assert.True(t, result.Valid)
		assert.Empty(t, result.Warnings)
	})

	t.Run("count swing above twenty percent", func(t *testing.T) {
		result := v.ValidateDiff(newDataset(cities(100, 0.0875)), newDataset(cities(125, 0.0875)), "ca")
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors[0], "Large jurisdiction count change: 100 → 125 (25.0% change)")
	})

	t.Run("count swing above ten percent", func(t *testing.T) {
		result := v.ValidateDiff(newDataset(cities(100, 0.0875)), newDataset(cities(115, 0.0875)), "ca")
		assert.True(t, result.Valid)
		assert.Contains(t, result.Warnings, "Significant jurisdiction count change: 100 → 115 (15.0% change)")
	})

	t.Run("source change", func(t *testing.T) {
		next := newDataset(cities(100, 0.0875))
		next.Metadata.Source = "Someone Else"

		result := v.ValidateDiff(newDataset(cities(100, 0.0875)), next, "ca")

		assert.True(t, result.Valid)
		assert.Len(t, result.Warnings, 1)
		assert.True(t, strings.HasPrefix(result.Warnings[0], "Data source changed"))
	})

	t.Run("many removals", func(t *testing.T) {
		old := newDataset(cities(200, 0.0875))
		renamed := cities(200, 0.0875)
		for i := 0; i < 21; i++ {
			renamed[i].Location = renamed[i].Location + " Renamed"
		}

		result := v.ValidateDiff(old, newDataset(renamed), "ca")

		assert.True(t, result.Valid)
		assert.Contains(t, result.Warnings, "Many jurisdictions removed: 21")
	})

	t.Run("removals count distinct locations", func(t *testing.T) {
		ghosts := cities(25, 0.0875)
		for i := range ghosts {
			ghosts[i].Location = "Ghost Town"
		}
		old := newDataset(append(cities(200, 0.0875), ghosts...))

		result := v.ValidateDiff(old, newDataset(cities(200, 0.0875)), "ca")

		assert.True(t, result.Valid)
		for _, w := range result.Warnings {
			assert.NotContains(t, w, "removed")
		}
	})

	t.Run("empty committed dataset", func(t *testing.T) {
		result := v.ValidateDiff(newDataset(nil), newDataset(cities(60, 0.0875)), "ca")

		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
		assert.Empty(t, result.Warnings)
	})

	t.Run("mass removal", func(t *testing.T) {
		renamed := cities(200, 0.0875)
		for i := 0; i < 51; i++ {
			renamed[i].Location = renamed[i].Location + " Renamed"
		}

		result := v.ValidateDiff(newDataset(cities(200, 0.0875)), newDataset(renamed), "ca")

		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "Mass jurisdiction removal: 51 jurisdictions removed (possible data corruption)")
	})
}

func TestCountChangePercent(t *testing.T) {
	assert.Equal(t, 0.0, validation.CountChangePercent(0, 0))
	assert.Equal(t, 0.0, validation.CountChangePercent(0, 5))
	assert.InDelta(t, 9.0909, validation.CountChangePercent(550, 600), 1e-3)
	assert.Equal(t, 5.0, validation.CountChangePercent(100, 95))
}
