package drift

import (
	"testing"

	"github.com/dshills/steve/internal/schema"
)

func results(cats ...schema.Category) []schema.AlignmentResult {
	out := make([]schema.AlignmentResult, len(cats))
	for i, c := range cats {
		out[i] = schema.AlignmentResult{Category: c}
	}
	return out
}

func repeat(c schema.Category, n int) []schema.Category {
	out := make([]schema.Category, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestBreakdown_AllCategoriesPresent(t *testing.T) {
	b := Breakdown(nil)
	if len(b) != 4 {
		t.Fatalf("len(Breakdown(nil)) = %d, want 4", len(b))
	}
	for _, c := range schema.Categories {
		if n, ok := b[c]; !ok || n != 0 {
			t.Errorf("b[%q] = %d, %v; want explicit 0", c, n, ok)
		}
	}
}

func TestPercentage_SprintOfTen(t *testing.T) {
	var cats []schema.Category
	cats = append(cats, repeat(schema.CategoryDistraction, 6)...)
	cats = append(cats, repeat(schema.CategoryDrift, 2)...)
	cats = append(cats, schema.CategoryStrategicEnabler, schema.CategoryCoreValue)

	rs := results(cats...)
	b := Breakdown(rs)
	if got := Percentage(b); got != 80.0 {
		t.Errorf("Percentage = %v, want 80", got)
	}
	if got := CountDrifting(rs); got != 8 {
		t.Errorf("CountDrifting = %d, want 8", got)
	}
	if errs := ValidateBreakdown(b, 10, 80.0); len(errs) != 0 {
		t.Errorf("ValidateBreakdown: %v", errs)
	}
}

func TestPercentage_Empty(t *testing.T) {
	if got := Percentage(Breakdown(nil)); got != 0 {
		t.Errorf("Percentage(empty) = %v, want 0", got)
	}
}

func TestValidateBreakdown_Errors(t *testing.T) {
	cases := []struct {
		name  string
		b     map[schema.Category]int
		total int
		pct   float64
	}{
		{"missing category", map[schema.Category]int{schema.CategoryCoreValue: 1, schema.CategoryDrift: 0, schema.CategoryDistraction: 0}, 1, 0},
		{"wrong total", Breakdown(results(schema.CategoryCoreValue)), 2, 0},
		{"wrong percentage", Breakdown(results(schema.CategoryDrift)), 1, 50},
		{"unknown category", map[schema.Category]int{
			schema.CategoryCoreValue: 0, schema.CategoryStrategicEnabler: 0,
			schema.CategoryDrift: 0, schema.CategoryDistraction: 0, "bogus": 0,
		}, 0, 0},
	}
	for _, c := range cases {
		if errs := ValidateBreakdown(c.b, c.total, c.pct); len(errs) == 0 {
			t.Errorf("%s: expected errors", c.name)
		}
	}
}
