// Package verdict provides deterministic local logic for categorizing scores
// and constructing alignment results. No LLM calls are made here.
package verdict

import (
	"fmt"
	"math"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/rationale"
	"github.com/dshills/steve/internal/schema"
	"github.com/dshills/steve/internal/scorer"
)

// Categorize maps a score onto a category. Scores are clamped to [0, 100]
// first, so the function is total. Lower bounds are inclusive.
func Categorize(score float64, th schema.Thresholds) schema.Category {
	s := scorer.Clamp(score)
	switch {
	case s >= th.CoreValue:
		return schema.CategoryCoreValue
	case s >= th.StrategicEnabler:
		return schema.CategoryStrategicEnabler
	case s >= th.Drift:
		return schema.CategoryDrift
	default:
		return schema.CategoryDistraction
	}
}

// Ordinal returns the rank of a category, used to compare tiers.
// distraction=0, drift=1, strategic_enabler=2, core_value=3; unknown is -1.
func Ordinal(c schema.Category) int {
	switch c {
	case schema.CategoryDistraction:
		return 0
	case schema.CategoryDrift:
		return 1
	case schema.CategoryStrategicEnabler:
		return 2
	case schema.CategoryCoreValue:
		return 3
	default:
		return -1
	}
}

// NewResult builds an AlignmentResult whose category is derived from score.
// There is no way to supply the category independently.
func NewResult(key string, score float64, th schema.Thresholds, matched []string) schema.AlignmentResult {
	s := scorer.Clamp(score)
	if matched == nil {
		matched = []string{}
	}
	return schema.AlignmentResult{
		TicketKey:         key,
		AlignmentScore:    s,
		Category:          Categorize(s, th),
		MatchedPrinciples: matched,
	}
}

// ValidationError reports a result whose score or category breaks the
// derivation rule.
type ValidationError struct {
	TicketKey string
	Score     float64
	Got       schema.Category
	Want      schema.Category
}

func (e *ValidationError) Error() string {
	if e.Got == e.Want {
		return fmt.Sprintf("verdict: %s: score %v outside [0, 100]", e.TicketKey, e.Score)
	}
	return fmt.Sprintf("verdict: %s: category %q inconsistent with score %v (want %q)",
		e.TicketKey, e.Got, e.Score, e.Want)
}

// Validate checks that r.AlignmentScore is in range and r.Category equals
// Categorize(r.AlignmentScore, th).
func Validate(r schema.AlignmentResult, th schema.Thresholds) error {
	want := Categorize(r.AlignmentScore, th)
	inRange := !math.IsNaN(r.AlignmentScore) && r.AlignmentScore >= 0 && r.AlignmentScore <= scorer.MaxScore
	if inRange && r.Category == want {
		return nil
	}
	return &ValidationError{TicketKey: r.TicketKey, Score: r.AlignmentScore, Got: r.Category, Want: want}
}

// Reconcile returns r with its score clamped and its category recomputed.
// The second return value reports whether anything changed.
func Reconcile(r schema.AlignmentResult, th schema.Thresholds) (schema.AlignmentResult, bool) {
	if Validate(r, th) == nil {
		return r, false
	}
	r.AlignmentScore = scorer.Clamp(r.AlignmentScore)
	r.Category = Categorize(r.AlignmentScore, th)
	return r, true
}

// Evaluate scores one ticket and returns its complete result, rationale
// included.
func Evaluate(t schema.Ticket, s scorer.Scorer, cat *catalog.Catalog) schema.AlignmentResult {
	sc := s.Score(t)
	r := NewResult(t.Key, sc.Raw, cat.Thresholds, sc.Matched)
	r.Details = sc.Details

	typ := rationale.InferType(t.Summary + " " + t.Description)
	r.TicketType = string(typ)
	r.Rationale = rationale.Generate(rationale.Input{
		Score:    r.AlignmentScore,
		Category: r.Category,
		Matched:  r.MatchedPrinciples,
		Type:     typ,
		Fallback: cat.HighestWeight().Name,
	})
	return r
}
