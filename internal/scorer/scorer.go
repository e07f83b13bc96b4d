// Package scorer computes a ticket's raw alignment score against the
// principle catalog. Scorers hold only the read-only catalog, so one value may
// be shared by any number of goroutines.
package scorer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/schema"
)

// Point values per contribution, each multiplied by the principle weight.
const (
	KeywordPoints     = 25.0
	MultiMatchBonus   = 20.0
	DescriptionPoints = 15.0
	HighValuePoints   = 10.0

	MaxScore = 100.0

	// minDescriptionTokenLen excludes short filler words from description overlap.
	minDescriptionTokenLen = 3
)

// Method names accepted by New.
const (
	MethodKeyword = "keyword"
	MethodTFIDF   = "tfidf"
)

// Score is the outcome of scoring one ticket.
type Score struct {
	Raw     float64
	Matched []string
	Details []schema.PrincipleDetail
}

// Scorer scores tickets against a catalog.
type Scorer interface {
	Score(t schema.Ticket) Score
	Method() string
}

// New returns the scorer for method; "" selects the keyword scorer.
func New(method string, cat *catalog.Catalog) (Scorer, error) {
	switch strings.ToLower(method) {
	case "", MethodKeyword:
		return NewKeyword(cat), nil
	case MethodTFIDF:
		return NewTFIDF(cat), nil
	default:
		return nil, fmt.Errorf("scorer: unknown method %q (available: keyword, tfidf)", method)
	}
}

// MatchText is the lowercase concatenation of summary and description.
func MatchText(t schema.Ticket) string {
	return strings.ToLower(t.Summary + " " + t.Description)
}

// Keyword is the canonical keyword/description-overlap scorer.
type Keyword struct {
	cat *catalog.Catalog
}

// NewKeyword returns a keyword scorer over cat.
func NewKeyword(cat *catalog.Catalog) *Keyword {
	return &Keyword{cat: cat}
}

func (k *Keyword) Method() string { return MethodKeyword }

// Score judges the ticket by its single strongest principle: the raw score is
// the maximum per-principle score, plus the catalog baseline, clamped to [0, 100].
func (k *Keyword) Score(t schema.Ticket) Score {
	text := MatchText(t)
	var out Score
	best := 0.0
	for _, p := range k.cat.Principles {
		d := ScorePrinciple(p, text)
		if d.Score > k.cat.MatchThreshold {
			d.Matched = true
			out.Matched = append(out.Matched, p.Name)
		}
		if d.Score > best {
			best = d.Score
		}
		out.Details = append(out.Details, d)
	}
	out.Raw = Clamp(best + k.cat.Baseline)
	return out
}

// ScorePrinciple scores lowercase match text against a single principle.
// Matched is left unset; the caller applies its match threshold.
func ScorePrinciple(p schema.Principle, text string) schema.PrincipleDetail {
	d := schema.PrincipleDetail{Principle: p.Name}
	score := 0.0

	seen := make(map[string]bool, len(p.Keywords))
	for _, kw := range p.Keywords {
		kw = strings.ToLower(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		if strings.Contains(text, kw) {
			d.KeywordMatches = append(d.KeywordMatches, kw)
			score += KeywordPoints * p.Weight
		}
	}
	if len(d.KeywordMatches) > 1 {
		score += MultiMatchBonus * p.Weight
	}

	for _, tok := range strings.Fields(strings.ToLower(p.Description)) {
		if utf8.RuneCountInString(tok) > minDescriptionTokenLen && strings.Contains(text, tok) {
			d.DescriptionMatches++
		}
	}
	score += DescriptionPoints * p.Weight * float64(d.DescriptionMatches)

	hv := make(map[string]bool, len(p.HighValueKeywords))
	for _, kw := range p.HighValueKeywords {
		kw = strings.ToLower(kw)
		if kw == "" || hv[kw] {
			continue
		}
		hv[kw] = true
		if strings.Contains(text, kw) {
			d.HighValueMatches = append(d.HighValueMatches, kw)
			score += HighValuePoints * p.Weight
		}
	}

	d.Score = Clamp(score)
	return d
}

// Clamp bounds s to [0, MaxScore].
func Clamp(s float64) float64 {
	if s != s || s < 0 { // NaN or negative
		return 0
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}
