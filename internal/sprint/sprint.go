// Package sprint folds per-ticket alignment results into a SprintSummary.
// Aggregate is the single synchronization point of a run: it needs every
// result before it computes anything.
package sprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/steve/internal/coverage"
	"github.com/dshills/steve/internal/drift"
	"github.com/dshills/steve/internal/schema"
)

// Options tune aggregation. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	OverIndexFraction  float64 `yaml:"over_index_fraction"`
	MinMatches         int     `yaml:"min_matches"`
	SliceSize          int     `yaml:"slice_size"`
	MaxRecommendations int     `yaml:"max_recommendations"`

	// Recommendation rule thresholds.
	HighDriftPercent float64 `yaml:"high_drift_percent"`
	DistractionLimit int     `yaml:"distraction_limit"`
	LowDriftPercent  float64 `yaml:"low_drift_percent"`
	LargeSprint      int     `yaml:"large_sprint"`
}

// DefaultOptions returns the standard aggregation settings.
func DefaultOptions() Options {
	return Options{
		OverIndexFraction:  0.4,
		MinMatches:         2,
		SliceSize:          5,
		MaxRecommendations: 7,
		HighDriftPercent:   40,
		DistractionLimit:   3,
		LowDriftPercent:    20,
		LargeSprint:        20,
	}
}

// Validate reports option values that would make aggregation meaningless.
func (o Options) Validate() error {
	switch {
	case o.OverIndexFraction < 0 || o.OverIndexFraction > 1:
		return fmt.Errorf("sprint: over_index_fraction %v must be within [0, 1]", o.OverIndexFraction)
	case o.MinMatches < 0:
		return fmt.Errorf("sprint: min_matches %d must not be negative", o.MinMatches)
	case o.SliceSize < 0:
		return fmt.Errorf("sprint: slice_size %d must not be negative", o.SliceSize)
	case o.MaxRecommendations < 0:
		return fmt.Errorf("sprint: max_recommendations %d must not be negative", o.MaxRecommendations)
	}
	return nil
}

// Aggregate computes the corpus-level summary. tickets supplies summaries for
// the ranked lists and may be nil; totals come from results alone.
func Aggregate(tickets []schema.Ticket, results []schema.AlignmentResult, principles []schema.Principle, opts Options) schema.SprintSummary {
	total := len(results)
	breakdown := drift.Breakdown(results)

	avg := 0.0
	if total > 0 {
		sum := 0.0
		for _, r := range results {
			sum += r.AlignmentScore
		}
		avg = sum / float64(total)
	}

	counts := coverage.MatchCounts(results, principles)
	over := coverage.OverIndexed(counts, total, opts.OverIndexFraction)
	neglected := coverage.Neglected(counts, principles, opts.MinMatches)
	pct := drift.Percentage(breakdown)

	summaries := make(map[string]string, len(tickets))
	for _, t := range tickets {
		summaries[t.Key] = t.Summary
	}
	top, bottom := Rank(results, summaries, opts.SliceSize)

	return schema.SprintSummary{
		TotalTickets:          total,
		AlignmentBreakdown:    breakdown,
		AverageAlignmentScore: avg,
		DriftPercentage:       pct,
		PrincipleMatchCounts:  counts,
		OverIndexedAreas:      over,
		NeglectedPrinciples:   neglected,
		Recommendations:       Recommend(breakdown, pct, over, neglected, opts),
		TopAlignedTickets:     top,
		BottomAlignedTickets:  bottom,
	}
}

// Rank returns the n highest results (descending) and the n lowest
// (ascending). Ties break by key. The lists may share entries when there are
// fewer than 2n results.
func Rank(results []schema.AlignmentResult, summaries map[string]string, n int) (top, bottom []schema.TicketScore) {
	sorted := make([]schema.AlignmentResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AlignmentScore != sorted[j].AlignmentScore {
			return sorted[i].AlignmentScore > sorted[j].AlignmentScore
		}
		return sorted[i].TicketKey < sorted[j].TicketKey
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	if n < 0 {
		n = 0
	}
	entry := func(r schema.AlignmentResult) schema.TicketScore {
		return schema.TicketScore{Key: r.TicketKey, Summary: summaries[r.TicketKey], Score: r.AlignmentScore, Category: r.Category}
	}

	top = make([]schema.TicketScore, 0, n)
	for _, r := range sorted[:n] {
		top = append(top, entry(r))
	}

	asc := make([]schema.AlignmentResult, len(sorted))
	copy(asc, sorted)
	sort.SliceStable(asc, func(i, j int) bool {
		if asc[i].AlignmentScore != asc[j].AlignmentScore {
			return asc[i].AlignmentScore < asc[j].AlignmentScore
		}
		return asc[i].TicketKey < asc[j].TicketKey
	})
	bottom = make([]schema.TicketScore, 0, n)
	for _, r := range asc[:n] {
		bottom = append(bottom, entry(r))
	}
	return top, bottom
}

// Recommend applies the recommendation rules in a fixed order. Each rule adds
// at most one line; the list is truncated to opts.MaxRecommendations.
func Recommend(breakdown map[schema.Category]int, driftPct float64, over, neglected []string, opts Options) []string {
	recs := []string{}
	total := 0
	for _, n := range breakdown {
		total += n
	}

	if driftPct > opts.HighDriftPercent {
		recs = append(recs, fmt.Sprintf("⚠️ High drift detected (%.0f%%). Review sprint planning process.", driftPct))
	}
	if n := breakdown[schema.CategoryDistraction]; n > opts.DistractionLimit {
		recs = append(recs, fmt.Sprintf("📵 %d distraction tickets. Consider deprioritizing or removing.", n))
	}
	if len(neglected) > 0 {
		focus := neglected
		if len(focus) > 2 {
			focus = focus[:2]
		}
		recs = append(recs, "🎯 Focus needed on: "+strings.Join(focus, ", "))
	}
	if len(over) > 0 {
		recs = append(recs, fmt.Sprintf("⚖️ Rebalance from %s to other strategic areas", over[0]))
	}
	if total > 0 && driftPct < opts.LowDriftPercent {
		recs = append(recs, "✅ Strong strategic alignment. Keep up the focused execution!")
	}
	if breakdown[schema.CategoryStrategicEnabler] > breakdown[schema.CategoryCoreValue] {
		recs = append(recs, "🚀 Consider promoting key enablers to core value initiatives")
	}
	if total > opts.LargeSprint {
		recs = append(recs, "📊 Large sprint scope. Consider focusing on fewer, higher-impact items")
	}

	if len(recs) > opts.MaxRecommendations {
		recs = recs[:opts.MaxRecommendations]
	}
	return recs
}

// Verify checks a summary's internal consistency and returns one message per
// broken property.
func Verify(s schema.SprintSummary, opts Options) []string {
	errs := drift.ValidateBreakdown(s.AlignmentBreakdown, s.TotalTickets, s.DriftPercentage)
	if len(s.Recommendations) > opts.MaxRecommendations {
		errs = append(errs, fmt.Sprintf("%d recommendations exceed maximum %d", len(s.Recommendations), opts.MaxRecommendations))
	}
	want := opts.SliceSize
	if s.TotalTickets < want {
		want = s.TotalTickets
	}
	if len(s.TopAlignedTickets) != want || len(s.BottomAlignedTickets) != want {
		errs = append(errs, fmt.Sprintf("ranked lists have %d/%d entries, want %d",
			len(s.TopAlignedTickets), len(s.BottomAlignedTickets), want))
	}
	for i := 1; i < len(s.TopAlignedTickets); i++ {
		if s.TopAlignedTickets[i].Score > s.TopAlignedTickets[i-1].Score {
			errs = append(errs, "top_aligned_tickets is not sorted descending")
			break
		}
	}
	for i := 1; i < len(s.BottomAlignedTickets); i++ {
		if s.BottomAlignedTickets[i].Score < s.BottomAlignedTickets[i-1].Score {
			errs = append(errs, "bottom_aligned_tickets is not sorted ascending")
			break
		}
	}
	return errs
}
