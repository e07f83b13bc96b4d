// Package rationale produces the human-readable explanation attached to every
// alignment result. Output is templated and deterministic.
package rationale

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dshills/steve/internal/schema"
)

// TicketType is a coarse classification sniffed from ticket text.
type TicketType string

const (
	TypeUIUX           TicketType = "UI/UX"
	TypeAgent          TicketType = "agent architecture"
	TypeInfrastructure TicketType = "infrastructure"
	TypeMarketing      TicketType = "marketing"
	TypeBugFix         TicketType = "bug fix"
	TypeFeature        TicketType = "feature"
	TypeDevelopment    TicketType = "development"
)

// typeRules are checked in order; the first rule with a matching word wins.
var typeRules = []struct {
	typ   TicketType
	words []string
}{
	{TypeUIUX, []string{"ui", "interface", "design", "ux", "frontend", "style", "css", "visual", "theme", "dark"}},
	{TypeAgent, []string{"agent", "agents", "ai", "automation", "pipeline", "orchestration", "llm"}},
	{TypeInfrastructure, []string{"api", "backend", "database", "infrastructure", "infra", "performance", "integration", "auth", "authentication"}},
	{TypeMarketing, []string{"marketing", "branding", "content", "campaign", "brand"}},
	{TypeBugFix, []string{"bug", "fix", "error", "issue", "problem", "critical", "crash"}},
	{TypeFeature, []string{"feature", "enhancement", "improvement", "implement", "add", "support"}},
}

// InferType classifies text by whole-word keyword sniffing.
func InferType(text string) TicketType {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	for _, rule := range typeRules {
		for _, w := range rule.words {
			if words[w] {
				return rule.typ
			}
		}
	}
	return TypeDevelopment
}

// Input is everything Generate needs.
type Input struct {
	Score    float64
	Category schema.Category
	Matched  []string
	Type     TicketType
	// Fallback is the principle suggested when nothing matched, typically the
	// highest-weight principle.
	Fallback string
}

// Generate returns a non-empty rationale whose tone follows the category.
// It names at least one matched principle when any matched.
func Generate(in Input) string {
	typ := in.Type
	if typ == "" {
		typ = TypeDevelopment
	}
	names := in.Matched
	var b strings.Builder

	switch in.Category {
	case schema.CategoryCoreValue:
		if len(names) > 0 {
			fmt.Fprintf(&b, "This ticket strongly aligns with %s, directly advancing core strategic objectives (score %.0f/100).",
				joinNames(names, 2), in.Score)
		} else {
			fmt.Fprintf(&b, "This ticket directly advances core strategic objectives (score %.0f/100).", in.Score)
		}
		fmt.Fprintf(&b, " As %s work it delivers immediate, measurable impact on the product vision.", article(typ))

	case schema.CategoryStrategicEnabler:
		if len(names) > 0 {
			fmt.Fprintf(&b, "This work supports %s and provides clear value toward our vision (score %.0f/100).", names[0], in.Score)
		} else {
			fmt.Fprintf(&b, "This work supports strategic goals and provides clear value toward our vision (score %.0f/100).", in.Score)
		}
		fmt.Fprintf(&b, " As %s work it enables stronger core value delivery rather than delivering it directly.", article(typ))

	case schema.CategoryDrift:
		if len(names) > 0 {
			fmt.Fprintf(&b, "This ticket only weakly connects to %s (score %.0f/100).", joinNames(names, 2), in.Score)
		} else {
			fmt.Fprintf(&b, "This ticket has some merit but only a weak connection to our principles (score %.0f/100).", in.Score)
		}
		fmt.Fprintf(&b, " The %s work lacks a clear value-creation path", typ)
		if in.Fallback != "" {
			fmt.Fprintf(&b, "; consider refocusing it on %s.", in.Fallback)
		} else {
			b.WriteString("; consider reframing it toward a strategic principle.")
		}

	default:
		fmt.Fprintf(&b, "This ticket lacks clear alignment with our strategic principles (score %.0f/100).", in.Score)
		if len(names) > 0 {
			fmt.Fprintf(&b, " Its touch on %s is too thin to justify the effort.", names[0])
		}
		fmt.Fprintf(&b, " This %s work may distract from more important priorities.", typ)
	}
	return b.String()
}

// joinNames joins up to max names with commas and "and".
func joinNames(names []string, max int) string {
	if len(names) > max {
		names = names[:max]
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

func article(t TicketType) string {
	s := string(t)
	switch {
	case t == TypeUIUX:
		return "a " + s
	case strings.IndexAny(s[:1], "aeiou") == 0:
		return "an " + s
	default:
		return "a " + s
	}
}
