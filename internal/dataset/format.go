package dataset

import (
	"fmt"
	"math"

	"github.com/taxrates/taxrates-api/internal/helpers"
)

// FormatRatePercent renders a decimal rate as a percentage string with two
// decimals, or three when the third decimal is significant: 0.09375 is
// "9.375%", 0.0875 is "8.75%".
func FormatRatePercent(rate float64) string {
	pct := rate * 100
	two := helpers.Round(pct, 2)
	three := helpers.Round(pct, 3)
	if math.Abs(three-two) > 1e-4 {
		return fmt.Sprintf("%.3f%%", three)
	}
	return fmt.Sprintf("%.2f%%", two)
}

// DistrictTax is the portion of rate above the state base rate, rounded to
// four decimals and never negative.
func DistrictTax(rate, stateBase float64) float64 {
	return math.Max(0, helpers.Round(rate-stateBase, 4))
}
