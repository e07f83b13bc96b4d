package sprint

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/steve/internal/schema"
	"github.com/dshills/steve/internal/verdict"
)

var th = schema.Thresholds{CoreValue: 80, StrategicEnabler: 60, Drift: 40}

var principles = []schema.Principle{
	{Name: "Builder-First", Weight: 1.5},
	{Name: "Agent-Native", Weight: 1.4},
	{Name: "Integration", Weight: 1.2},
}

func result(key string, score float64, matched ...string) schema.AlignmentResult {
	return verdict.NewResult(key, score, th, matched)
}

// tenTicketSprint: 6 distraction, 2 drift, 1 enabler, 1 core.
func tenTicketSprint() []schema.AlignmentResult {
	return []schema.AlignmentResult{
		result("T-01", 10), result("T-02", 12), result("T-03", 0),
		result("T-04", 5), result("T-05", 30, "Builder-First"), result("T-06", 20, "Builder-First"),
		result("T-07", 45, "Builder-First"), result("T-08", 50, "Builder-First"),
		result("T-09", 65, "Builder-First", "Integration"),
		result("T-10", 95, "Agent-Native", "Integration"),
	}
}

func TestAggregate_SprintOfTen(t *testing.T) {
	rs := tenTicketSprint()
	s := Aggregate(nil, rs, principles, DefaultOptions())

	assert.Equal(t, 10, s.TotalTickets)
	assert.Equal(t, 80.0, s.DriftPercentage)
	assert.InDelta(t, 33.2, s.AverageAlignmentScore, 1e-9)
	assert.Equal(t, map[schema.Category]int{
		schema.CategoryCoreValue:        1,
		schema.CategoryStrategicEnabler: 1,
		schema.CategoryDrift:            2,
		schema.CategoryDistraction:      6,
	}, s.AlignmentBreakdown)

	// Builder-First in 5 of 10 tickets: 50% > 40%.
	assert.Equal(t, []string{"Builder-First"}, s.OverIndexedAreas)
	// Agent-Native matched once (< 2); Integration twice.
	assert.Equal(t, []string{"Agent-Native"}, s.NeglectedPrinciples)

	assert.Empty(t, Verify(s, DefaultOptions()))
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, nil, principles, DefaultOptions())
	assert.Equal(t, 0, s.TotalTickets)
	assert.Equal(t, 0.0, s.AverageAlignmentScore)
	assert.Equal(t, 0.0, s.DriftPercentage)
	assert.Len(t, s.AlignmentBreakdown, 4)
	assert.Empty(t, s.TopAlignedTickets)
	assert.Empty(t, s.BottomAlignedTickets)
	assert.Equal(t, []string{"Builder-First", "Agent-Native", "Integration"}, s.NeglectedPrinciples)
	assert.NotContains(t, strings.Join(s.Recommendations, "\n"), "Strong strategic alignment")
	assert.Empty(t, Verify(s, DefaultOptions()))
}

func TestAggregate_NeverMatchedIsNeglected(t *testing.T) {
	rs := []schema.AlignmentResult{result("A-1", 90, "Builder-First"), result("A-2", 85, "Builder-First")}
	s := Aggregate(nil, rs, principles, DefaultOptions())
	assert.Contains(t, s.NeglectedPrinciples, "Integration")
	assert.Contains(t, s.NeglectedPrinciples, "Agent-Native")
	assert.NotContains(t, s.NeglectedPrinciples, "Builder-First")
}

func TestRank(t *testing.T) {
	rs := []schema.AlignmentResult{
		result("C", 50), result("A", 70), result("B", 70), result("D", 10),
	}
	top, bottom := Rank(rs, map[string]string{"A": "alpha"}, 3)

	keys := func(ts []schema.TicketScore) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.Key)
		}
		return out
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, keys(top)); diff != "" {
		t.Errorf("top keys (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"D", "C", "A"}, keys(bottom)); diff != "" {
		t.Errorf("bottom keys (-want +got):\n%s", diff)
	}
	assert.Equal(t, "alpha", top[0].Summary)
	assert.Equal(t, schema.CategoryStrategicEnabler, top[0].Category)
}

func TestRank_OverlapOnSmallSprint(t *testing.T) {
	top, bottom := Rank([]schema.AlignmentResult{result("X", 50), result("Y", 60)}, nil, 5)
	require.Len(t, top, 2)
	require.Len(t, bottom, 2)
	assert.Equal(t, "Y", top[0].Key)
	assert.Equal(t, "X", bottom[0].Key)
}

func TestRank_DoesNotReorderInput(t *testing.T) {
	rs := []schema.AlignmentResult{result("B", 10), result("A", 90)}
	Rank(rs, nil, 1)
	assert.Equal(t, "B", rs[0].TicketKey)
}

func TestRecommend_RuleOrder(t *testing.T) {
	breakdown := map[schema.Category]int{
		schema.CategoryCoreValue:        1,
		schema.CategoryStrategicEnabler: 3,
		schema.CategoryDrift:            8,
		schema.CategoryDistraction:      10,
	}
	opts := DefaultOptions()
	opts.MaxRecommendations = 10
	recs := Recommend(breakdown, 81.8, []string{"Builder-First"}, []string{"A", "B", "C"}, opts)

	prefixes := []string{"⚠️ High drift", "📵 10 distraction", "🎯 Focus needed on: A, B", "⚖️ Rebalance from Builder-First", "🚀 Consider promoting", "📊 Large sprint"}
	require.Len(t, recs, len(prefixes))
	for i, p := range prefixes {
		assert.True(t, strings.HasPrefix(recs[i], p), "recs[%d] = %q, want prefix %q", i, recs[i], p)
	}
	assert.NotContains(t, recs[2], "C")
}

func TestRecommend_LowDrift(t *testing.T) {
	breakdown := map[schema.Category]int{schema.CategoryCoreValue: 9, schema.CategoryDistraction: 1}
	recs := Recommend(breakdown, 10, nil, nil, DefaultOptions())
	assert.Equal(t, []string{"✅ Strong strategic alignment. Keep up the focused execution!"}, recs)
}

func TestRecommend_Truncated(t *testing.T) {
	breakdown := map[schema.Category]int{schema.CategoryStrategicEnabler: 5, schema.CategoryDistraction: 30}
	for max := 0; max <= 7; max++ {
		opts := DefaultOptions()
		opts.MaxRecommendations = max
		recs := Recommend(breakdown, 85, []string{"x"}, []string{"y"}, opts)
		assert.LessOrEqual(t, len(recs), max, fmt.Sprintf("max=%d", max))
	}
}

func TestVerify_DetectsBrokenSummary(t *testing.T) {
	s := Aggregate(nil, tenTicketSprint(), principles, DefaultOptions())
	s.DriftPercentage = 10
	s.TopAlignedTickets[0], s.TopAlignedTickets[1] = s.TopAlignedTickets[1], s.TopAlignedTickets[0]
	errs := Verify(s, DefaultOptions())
	assert.Len(t, errs, 2)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
	bad := DefaultOptions()
	bad.OverIndexFraction = 2
	assert.Error(t, bad.Validate())
	bad = DefaultOptions()
	bad.SliceSize = -1
	assert.Error(t, bad.Validate())
}
