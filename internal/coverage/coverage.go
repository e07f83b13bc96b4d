// Package coverage measures how often each principle is matched across a set
// of alignment results.
package coverage

import (
	"sort"

	"github.com/dshills/steve/internal/schema"
)

// MatchCounts returns, for every catalog principle, how many results list it
// as matched. Every name in principles is present, zero counts included.
// A principle named twice in one result counts once for that result.
func MatchCounts(results []schema.AlignmentResult, principles []schema.Principle) map[string]int {
	counts := make(map[string]int, len(principles))
	for _, p := range principles {
		counts[p.Name] = 0
	}
	for _, r := range results {
		seen := map[string]bool{}
		for _, name := range r.MatchedPrinciples {
			if seen[name] {
				continue
			}
			seen[name] = true
			if _, ok := counts[name]; ok {
				counts[name]++
			}
		}
	}
	return counts
}

// OverIndexed returns principles whose match fraction (count / total) is
// strictly greater than fraction, most frequent first; ties break by name.
func OverIndexed(counts map[string]int, total int, fraction float64) []string {
	out := []string{}
	if total <= 0 {
		return out
	}
	for name, n := range counts {
		if float64(n)/float64(total) > fraction {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Neglected returns, in catalog order, every principle never matched or
// matched fewer than minMatches times. Each name appears once.
func Neglected(counts map[string]int, principles []schema.Principle, minMatches int) []string {
	out := []string{}
	for _, p := range principles {
		n := counts[p.Name]
		if n == 0 || n < minMatches {
			out = append(out, p.Name)
		}
	}
	return out
}

// Share returns the fraction of total for each principle count, 0 when total is 0.
func Share(counts map[string]int, total int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	for name, n := range counts {
		if total > 0 {
			out[name] = float64(n) / float64(total)
		} else {
			out[name] = 0
		}
	}
	return out
}
