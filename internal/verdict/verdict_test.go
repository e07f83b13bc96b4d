package verdict

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/schema"
	"github.com/dshills/steve/internal/scorer"
)

var th = schema.Thresholds{CoreValue: 80, StrategicEnabler: 60, Drift: 40}

func TestCategorize(t *testing.T) {
	cases := []struct {
		score float64
		want  schema.Category
	}{
		{0, schema.CategoryDistraction},
		{39.99, schema.CategoryDistraction},
		{40, schema.CategoryDrift},
		{59.9, schema.CategoryDrift},
		{60, schema.CategoryStrategicEnabler}, // inclusive lower bound
		{65, schema.CategoryStrategicEnabler},
		{79.999, schema.CategoryStrategicEnabler},
		{80, schema.CategoryCoreValue},
		{100, schema.CategoryCoreValue},
		{-20, schema.CategoryDistraction}, // clamped to 0
		{250, schema.CategoryCoreValue},   // clamped to 100
		{math.NaN(), schema.CategoryDistraction},
		{math.Inf(-1), schema.CategoryDistraction},
	}
	for _, c := range cases {
		if got := Categorize(c.score, th); got != c.want {
			t.Errorf("Categorize(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestCategorize_Monotonic(t *testing.T) {
	prev := -1
	for s := -10.0; s <= 110; s += 0.5 {
		o := Ordinal(Categorize(s, th))
		if o < prev {
			t.Fatalf("Categorize not monotonic at %v: ordinal %d after %d", s, o, prev)
		}
		prev = o
	}
}

func TestOrdinal(t *testing.T) {
	// schema.Categories runs high to low; ordinals must strictly descend.
	for i := 1; i < len(schema.Categories); i++ {
		hi, lo := schema.Categories[i-1], schema.Categories[i]
		if Ordinal(hi) <= Ordinal(lo) {
			t.Errorf("Ordinal(%q)=%d <= Ordinal(%q)=%d", hi, Ordinal(hi), lo, Ordinal(lo))
		}
	}
	if Ordinal("bogus") != -1 {
		t.Errorf("Ordinal(bogus) = %d, want -1", Ordinal("bogus"))
	}
}

func TestNewResult_DerivesCategory(t *testing.T) {
	r := NewResult("T-1", 65, th, nil)
	if r.Category != schema.CategoryStrategicEnabler {
		t.Errorf("Category = %q, want strategic_enabler", r.Category)
	}
	if r.MatchedPrinciples == nil {
		t.Error("MatchedPrinciples should be empty, not nil")
	}
	r = NewResult("T-2", 140, th, []string{"A"})
	if r.AlignmentScore != 100 || r.Category != schema.CategoryCoreValue {
		t.Errorf("NewResult(140) = %v/%q, want 100/core_value", r.AlignmentScore, r.Category)
	}
}

func TestValidate(t *testing.T) {
	good := NewResult("T-1", 45, th, nil)
	if err := Validate(good, th); err != nil {
		t.Errorf("Validate(good) = %v", err)
	}

	bad := good
	bad.Category = schema.CategoryCoreValue
	err := Validate(bad, th)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Validate(bad) = %v, want *ValidationError", err)
	}
	if ve.Want != schema.CategoryDrift || ve.Got != schema.CategoryCoreValue {
		t.Errorf("ValidationError = %+v", ve)
	}
	if !strings.Contains(err.Error(), "inconsistent") {
		t.Errorf("Error() = %q", err.Error())
	}

	outOfRange := schema.AlignmentResult{TicketKey: "T-3", AlignmentScore: 120, Category: schema.CategoryCoreValue}
	if err := Validate(outOfRange, th); err == nil {
		t.Error("Validate(score 120) = nil, want error")
	}
}

func TestReconcile(t *testing.T) {
	bad := schema.AlignmentResult{TicketKey: "T-1", AlignmentScore: 10, Category: schema.CategoryCoreValue}
	got, changed := Reconcile(bad, th)
	if !changed || got.Category != schema.CategoryDistraction {
		t.Errorf("Reconcile = %q changed=%v, want distraction/true", got.Category, changed)
	}

	good := NewResult("T-2", 85, th, nil)
	if _, changed := Reconcile(good, th); changed {
		t.Error("Reconcile(good) reported a change")
	}

	nan := schema.AlignmentResult{TicketKey: "T-3", AlignmentScore: math.NaN(), Category: schema.CategoryDrift}
	got, _ = Reconcile(nan, th)
	if got.AlignmentScore != 0 || got.Category != schema.CategoryDistraction {
		t.Errorf("Reconcile(NaN) = %v/%q", got.AlignmentScore, got.Category)
	}
}

func TestEvaluate(t *testing.T) {
	cat := catalog.Default()
	s := scorer.NewKeyword(cat)
	tickets := []schema.Ticket{
		{Key: "T-1", Summary: "Agent orchestration pipeline for developers", Description: "Expose a public API and SDK"},
		{Key: "T-2", Summary: "Change button colour"},
		{Key: "T-3"},
	}
	for _, tk := range tickets {
		r := Evaluate(tk, s, cat)
		if err := Validate(r, cat.Thresholds); err != nil {
			t.Errorf("Evaluate(%s) invalid: %v", tk.Key, err)
		}
		if r.Rationale == "" {
			t.Errorf("Evaluate(%s) has empty rationale", tk.Key)
		}
		if r.TicketType == "" {
			t.Errorf("Evaluate(%s) has empty ticket type", tk.Key)
		}
		if len(r.MatchedPrinciples) > 0 && !strings.Contains(r.Rationale, r.MatchedPrinciples[0]) {
			t.Errorf("Evaluate(%s) rationale %q does not name %q", tk.Key, r.Rationale, r.MatchedPrinciples[0])
		}
	}
	if r := Evaluate(tickets[2], s, cat); r.AlignmentScore != 0 || r.Category != schema.CategoryDistraction {
		t.Errorf("empty ticket = %v/%q, want 0/distraction", r.AlignmentScore, r.Category)
	}
}
