// Package rewrite proposes reframings of drifting tickets toward a target
// principle. Text comes from an LLM when one is configured and from a
// deterministic template otherwise; the target principle and the improvement
// estimate are always computed locally.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/llm"
	"github.com/dshills/steve/internal/schema"
	"github.com/dshills/steve/internal/scorer"
)

// CommentPrefix opens every tracker comment the advisor produces.
const CommentPrefix = "STEVE Suggestion"

// Rewrite sources recorded on schema.TicketRewrite.Source.
const (
	SourceHeuristic = "heuristic"
	SourceLLM       = "llm"
)

// Advisor produces TicketRewrites. It is safe for concurrent use when its
// Generator is.
type Advisor struct {
	cat      *catalog.Catalog
	scorer   scorer.Scorer
	gen      llm.Generator
	addendum string
	log      *zap.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithGenerator enables LLM-written rewrites.
func WithGenerator(g llm.Generator) Option { return func(a *Advisor) { a.gen = g } }

// WithPromptAddendum appends review-mode guidance to the system prompt.
func WithPromptAddendum(s string) Option { return func(a *Advisor) { a.addendum = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(a *Advisor) { a.log = l } }

// New returns an Advisor. s rescores revised text; pass the run's scorer so
// the improvement is comparable with the original score.
func New(cat *catalog.Catalog, s scorer.Scorer, opts ...Option) *Advisor {
	a := &Advisor{cat: cat, scorer: s, log: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Eligible reports whether r's category calls for a rewrite.
func Eligible(r schema.AlignmentResult) bool {
	return r.Category.Drifting()
}

// Target picks the principle a rewrite should aim at: the first catalog
// principle present in r.MatchedPrinciples, else the highest-weight principle.
func (a *Advisor) Target(r schema.AlignmentResult) schema.Principle {
	matched := make(map[string]bool, len(r.MatchedPrinciples))
	for _, m := range r.MatchedPrinciples {
		matched[m] = true
	}
	for _, p := range a.cat.Principles {
		if matched[p.Name] {
			return p
		}
	}
	return a.cat.HighestWeight()
}

// Rewrite returns a proposal for t, or nil when r is not eligible. LLM
// failures fall back to the heuristic; only context cancellation is returned
// as an error.
func (a *Advisor) Rewrite(ctx context.Context, t schema.Ticket, r schema.AlignmentResult) (*schema.TicketRewrite, error) {
	if !Eligible(r) {
		return nil, nil
	}
	target := a.Target(r)

	summary, description := Heuristic(t, target)
	source := SourceHeuristic
	if a.gen != nil {
		s, d, err := a.generate(ctx, t, r, target)
		switch {
		case err == nil:
			summary, description, source = s, d, SourceLLM
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			a.log.Warn("llm rewrite failed; using heuristic",
				zap.String("ticket", t.Key), zap.Error(err))
		}
	}

	revised := t
	revised.Summary, revised.Description = summary, description
	improvement := a.scorer.Score(revised).Raw - r.AlignmentScore
	if improvement < 0 {
		improvement = 0
	}

	return &schema.TicketRewrite{
		OriginalKey:          t.Key,
		OriginalSummary:      t.Summary,
		RevisedSummary:       summary,
		RevisedDescription:   description,
		TargetedPrinciple:    target.Name,
		AlignmentImprovement: improvement,
		JiraComment:          Comment(target),
		Source:               source,
	}, nil
}

// RewriteAll rewrites every eligible result whose ticket is in tickets, in
// result order.
func (a *Advisor) RewriteAll(ctx context.Context, tickets []schema.Ticket, results []schema.AlignmentResult) ([]schema.TicketRewrite, error) {
	byKey := make(map[string]schema.Ticket, len(tickets))
	for _, t := range tickets {
		byKey[t.Key] = t
	}
	out := []schema.TicketRewrite{}
	for _, r := range results {
		t, ok := byKey[r.TicketKey]
		if !ok || !Eligible(r) {
			continue
		}
		rw, err := a.Rewrite(ctx, t, r)
		if err != nil {
			return out, err
		}
		if rw != nil {
			out = append(out, *rw)
		}
	}
	a.log.Info("rewrites generated", zap.Int("count", len(out)))
	return out, nil
}

// Heuristic reframes t toward p while keeping the original text intact.
func Heuristic(t schema.Ticket, p schema.Principle) (summary, description string) {
	base := strings.TrimRight(strings.TrimSpace(t.Summary), ".!?:;, ")
	if base == "" {
		base = "Rework ticket"
	}
	kw := p.Keywords
	switch {
	case len(kw) >= 2:
		summary = fmt.Sprintf("%s to advance %s (%s and %s)", base, p.Name, kw[0], kw[1])
	case len(kw) == 1:
		summary = fmt.Sprintf("%s to advance %s (%s)", base, p.Name, kw[0])
	default:
		summary = fmt.Sprintf("%s to advance %s", base, p.Name)
	}

	var b strings.Builder
	if d := strings.TrimSpace(t.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Strategic alignment: this work supports %s.", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, " %s.", strings.TrimRight(p.Description, "."))
	}
	if len(kw) > 0 {
		n := len(kw)
		if n > 3 {
			n = 3
		}
		fmt.Fprintf(&b, " Frame the outcome around %s.", strings.Join(kw[:n], ", "))
	}
	return summary, b.String()
}

// Comment is the tracker comment announcing a suggested realignment.
func Comment(p schema.Principle) string {
	focus := "its connection to " + p.Name
	if len(p.Keywords) > 0 {
		focus = p.Keywords[0]
	}
	return fmt.Sprintf("%s: This ticket could better align with our '%s' principle. Consider reframing to emphasize %s.",
		CommentPrefix, p.Name, focus)
}

type llmRewrite struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

var errEmptySummary = errors.New("rewrite: model returned no summary")

func (a *Advisor) generate(ctx context.Context, t schema.Ticket, r schema.AlignmentResult, p schema.Principle) (string, string, error) {
	var doc llmRewrite
	validate := func() []llm.ValidationError {
		if strings.TrimSpace(doc.Summary) == "" {
			return []llm.ValidationError{{Field: "summary", Message: "is required"}}
		}
		return nil
	}
	if err := llm.GenerateJSON(ctx, a.gen, a.systemPrompt(), userPrompt(t, r, p), &doc, validate); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(doc.Summary) == "" {
		return "", "", errEmptySummary
	}
	desc := strings.TrimSpace(doc.Description)
	if desc == "" {
		_, desc = Heuristic(t, p)
	}
	return strings.TrimSpace(doc.Summary), desc, nil
}

func (a *Advisor) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are STEVE's rewrite strategist. You reframe misaligned tickets so they connect to a strategic principle ")
	sb.WriteString("while preserving what the ticket actually asks for. The rewrite must read naturally, not forced.\n\n")
	if a.addendum != "" {
		sb.WriteString(a.addendum)
		sb.WriteString("\n\n")
	}
	sb.WriteString(`Output ONLY JSON: {"summary": "<revised summary>", "description": "<revised description>"}`)
	return sb.String()
}

func userPrompt(t schema.Ticket, r schema.AlignmentResult, p schema.Principle) string {
	var sb strings.Builder
	sb.WriteString("Current ticket:\n")
	fmt.Fprintf(&sb, "- Key: %s\n- Summary: %s\n- Description: %s\n", t.Key, t.Summary, t.Description)
	fmt.Fprintf(&sb, "- Current score: %.0f/100 (%s)\n\n", r.AlignmentScore, r.Category)
	fmt.Fprintf(&sb, "Target principle: %s\n- Description: %s\n- Keywords: %s\n\n",
		p.Name, p.Description, strings.Join(p.Keywords, ", "))
	sb.WriteString("Write a revised summary and description that preserve the core intent, clearly connect to the ")
	sb.WriteString("target principle, and use its keywords naturally.")
	return sb.String()
}
