package scorer

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/schema"
)

func testCatalog(principles ...schema.Principle) *catalog.Catalog {
	return &catalog.Catalog{
		Principles:     principles,
		Thresholds:     schema.Thresholds{CoreValue: 80, StrategicEnabler: 60, Drift: 40},
		MatchThreshold: catalog.DefaultMatchThreshold,
	}
}

var builderFirst = schema.Principle{
	Name:     "Builder-First",
	Keywords: []string{"builder", "developer", "api"},
	Weight:   1.5,
}

func TestKeyword_TwoMatchesCapped(t *testing.T) {
	s := NewKeyword(testCatalog(builderFirst))
	got := s.Score(schema.Ticket{Key: "T-1", Summary: "Add CrewAI tutorial generator for builders via the public API"})

	// 2×25×1.5 + 20×1.5 = 105, capped at 100.
	if got.Raw != 100 {
		t.Errorf("Raw = %v, want 100", got.Raw)
	}
	if !reflect.DeepEqual(got.Matched, []string{"Builder-First"}) {
		t.Errorf("Matched = %v, want [Builder-First]", got.Matched)
	}
	d := got.Details[0]
	if !reflect.DeepEqual(d.KeywordMatches, []string{"builder", "api"}) {
		t.Errorf("KeywordMatches = %v", d.KeywordMatches)
	}
}

func TestKeyword_Components(t *testing.T) {
	p := schema.Principle{
		Name:              "Reliability",
		Description:       "Ship fast and dependable software",
		Keywords:          []string{"latency", "uptime"},
		HighValueKeywords: []string{"critical", "critical", "customer"},
		Weight:            1.0,
	}
	cases := []struct {
		name    string
		summary string
		want    float64
	}{
		{"nothing", "Rename a variable", 0},
		{"one keyword", "Reduce latency", 25},
		{"two keywords plus bonus", "Reduce latency and improve uptime", 25 + 25 + 20},
		// "ship" (4 runes) and "dependable"; "fast" has 4 runes too, "and" is too short.
		{"description overlap", "ship a fast dependable build", 15 * 3},
		{"high value counted once", "critical critical bug", 10},
		{"high value distinct", "critical customer bug", 20},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := ScorePrinciple(p, strings.ToLower(c.summary))
			if d.Score != c.want {
				t.Errorf("ScorePrinciple(%q) = %v, want %v", c.summary, d.Score, c.want)
			}
		})
	}
}

func TestKeyword_WeightScalesEverything(t *testing.T) {
	p := schema.Principle{Name: "P", Keywords: []string{"alpha"}, Weight: 2}
	d := ScorePrinciple(p, "alpha")
	if d.Score != 50 {
		t.Errorf("Score = %v, want 50", d.Score)
	}
}

func TestKeyword_MaxNotSum(t *testing.T) {
	a := schema.Principle{Name: "A", Keywords: []string{"alpha"}, Weight: 1}
	b := schema.Principle{Name: "B", Keywords: []string{"beta"}, Weight: 1}
	got := NewKeyword(testCatalog(a, b)).Score(schema.Ticket{Summary: "alpha beta"})
	if got.Raw != 25 {
		t.Errorf("Raw = %v, want 25 (max over principles, not the 50 sum)", got.Raw)
	}
	if len(got.Matched) != 2 {
		t.Errorf("Matched = %v, want both principles", got.Matched)
	}
}

func TestKeyword_EmptyTextScoresZero(t *testing.T) {
	p := schema.Principle{Name: "P", Description: "Long descriptive words here", Keywords: []string{"x"}, Weight: 1}
	got := NewKeyword(testCatalog(p)).Score(schema.Ticket{Key: "T-0"})
	if got.Raw != 0 {
		t.Errorf("Raw = %v, want 0", got.Raw)
	}
	if len(got.Matched) != 0 {
		t.Errorf("Matched = %v, want none", got.Matched)
	}
}

func TestKeyword_NoKeywordPrinciple(t *testing.T) {
	p := schema.Principle{Name: "P", Description: "observability matters", Weight: 1}
	got := NewKeyword(testCatalog(p)).Score(schema.Ticket{Summary: "Improve observability"})
	if got.Raw != 15 {
		t.Errorf("Raw = %v, want 15 from description overlap only", got.Raw)
	}
}

func TestKeyword_MatchThresholdIsStrict(t *testing.T) {
	p := schema.Principle{Name: "P", HighValueKeywords: []string{"fix"}, Weight: 1}
	got := NewKeyword(testCatalog(p)).Score(schema.Ticket{Summary: "fix it"})
	if got.Raw != 10 {
		t.Fatalf("Raw = %v, want 10", got.Raw)
	}
	if len(got.Matched) != 0 {
		t.Errorf("score equal to the match threshold must not match; got %v", got.Matched)
	}
}

func TestKeyword_Baseline(t *testing.T) {
	cat := testCatalog(builderFirst)
	cat.Baseline = 15
	s := NewKeyword(cat)
	if got := s.Score(schema.Ticket{Summary: "unrelated"}).Raw; got != 15 {
		t.Errorf("baseline Raw = %v, want 15", got)
	}
	if got := s.Score(schema.Ticket{Summary: "builder developer api"}).Raw; got != 100 {
		t.Errorf("baseline Raw = %v, want capped 100", got)
	}
}

func TestKeyword_Idempotent(t *testing.T) {
	s := NewKeyword(catalog.Default())
	tk := schema.Ticket{Key: "T-9", Summary: "Agent orchestration pipeline", Description: "Automate workflow for developers"}
	first := s.Score(tk)
	second := s.Score(tk)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("scoring twice differs:\n%+v\n%+v", first, second)
	}
}

func TestKeyword_AllKeywordsOfHighestWeight(t *testing.T) {
	cat := catalog.Default()
	top := cat.HighestWeight()
	got := NewKeyword(cat).Score(schema.Ticket{Summary: strings.Join(top.Keywords, " ")})
	if got.Raw < cat.Thresholds.CoreValue {
		t.Errorf("Raw = %v, want >= core_value %v", got.Raw, cat.Thresholds.CoreValue)
	}
}

func TestKeyword_ScoreAlwaysInRange(t *testing.T) {
	s := NewKeyword(catalog.Default())
	texts := []string{
		"",
		"x",
		strings.Repeat("builder developer api agent orchestration performance security ", 50),
		"Émoji 🚀 and ünïcode",
	}
	for _, txt := range texts {
		got := s.Score(schema.Ticket{Summary: txt, Description: txt})
		if got.Raw < 0 || got.Raw > 100 {
			t.Errorf("Raw = %v out of [0,100] for %q", got.Raw, txt)
		}
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-5, 0}, {0, 0}, {42.5, 42.5}, {100, 100}, {250, 100}, {math.NaN(), 0}, {math.Inf(1), 100},
	}
	for _, c := range cases {
		if got := Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNew(t *testing.T) {
	cat := catalog.Default()
	for _, m := range []string{"", "keyword", "TFIDF"} {
		s, err := New(m, cat)
		if err != nil {
			t.Errorf("New(%q): %v", m, err)
			continue
		}
		if s.Method() == "" {
			t.Errorf("New(%q).Method() empty", m)
		}
	}
	if _, err := New("bm25", cat); err == nil {
		t.Error("New(bm25) expected error")
	}
}
