// Package drift provides pure logic helpers for category breakdowns and the
// drift percentage.
package drift

import (
	"fmt"
	"math"

	"github.com/dshills/steve/internal/schema"
)

// Breakdown counts results by category. Every category is present, with
// explicit zero counts.
func Breakdown(results []schema.AlignmentResult) map[schema.Category]int {
	b := make(map[schema.Category]int, len(schema.Categories))
	for _, c := range schema.Categories {
		b[c] = 0
	}
	for _, r := range results {
		b[r.Category]++
	}
	return b
}

// Percentage returns (drift + distraction) / total × 100, or 0 when total is 0.
func Percentage(b map[schema.Category]int) float64 {
	total := 0
	for _, n := range b {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(b[schema.CategoryDrift]+b[schema.CategoryDistraction]) / float64(total) * 100
}

// ValidateBreakdown returns error messages for a breakdown that does not agree
// with total or with the stored drift percentage.
func ValidateBreakdown(b map[schema.Category]int, total int, pct float64) []string {
	var errs []string
	sum := 0
	for _, c := range schema.Categories {
		n, ok := b[c]
		if !ok {
			errs = append(errs, fmt.Sprintf("category %q is missing", c))
		}
		if n < 0 {
			errs = append(errs, fmt.Sprintf("category %q has negative count %d", c, n))
		}
		sum += n
	}
	for c := range b {
		if !known(c) {
			errs = append(errs, fmt.Sprintf("category %q is not valid", c))
		}
	}
	if sum != total {
		errs = append(errs, fmt.Sprintf("breakdown sums to %d, total is %d", sum, total))
	}
	if want := Percentage(b); math.Abs(want-pct) > 1e-9 {
		errs = append(errs, fmt.Sprintf("drift percentage %.4f does not match breakdown (%.4f)", pct, want))
	}
	return errs
}

// CountDrifting returns the number of results in the two lowest tiers.
func CountDrifting(results []schema.AlignmentResult) int {
	n := 0
	for _, r := range results {
		if r.Category.Drifting() {
			n++
		}
	}
	return n
}

func known(c schema.Category) bool {
	for _, k := range schema.Categories {
		if c == k {
			return true
		}
	}
	return false
}
