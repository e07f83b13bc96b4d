// Package narrative writes the short executive briefing for a run, either from
// a fixed template or, when a Generator is configured, in the founder's voice.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/steve/internal/llm"
	"github.com/dshills/steve/internal/schema"
)

const (
	// Signature closes every briefing.
	Signature = "Are we building what matters?"
	// MaxChars bounds the formatted briefing, in runes.
	MaxChars = 2000

	slackHeader = "🎯 *Strategic Alignment Report* 🎯\n\n"
)

// Options tune the LLM-written briefing.
type Options struct {
	MaxWords  int
	Tone      string
	Signature string
	// Addendum is the review-mode guidance appended to the system prompt.
	Addendum string
}

// DefaultOptions returns the standard briefing settings.
func DefaultOptions() Options {
	return Options{
		MaxWords:  150,
		Tone:      "direct, visionary, impatient with busywork, generous with credit",
		Signature: Signature,
	}
}

// Writer produces executive summaries.
type Writer struct {
	gen  llm.Generator
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

// New returns a Writer. gen may be nil, in which case every briefing is
// templated.
func New(gen llm.Generator, opts Options, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	d := DefaultOptions()
	if opts.MaxWords <= 0 {
		opts.MaxWords = d.MaxWords
	}
	if opts.Tone == "" {
		opts.Tone = d.Tone
	}
	if opts.Signature == "" {
		opts.Signature = d.Signature
	}
	return &Writer{gen: gen, opts: opts, log: log, now: time.Now}
}

// Summarize returns the Slack-formatted briefing for s. Generator failures
// fall back to the template; only context cancellation is returned.
func (w *Writer) Summarize(ctx context.Context, s schema.SprintSummary) (schema.ExecutiveSummary, error) {
	body := Briefing(s)
	generated := false
	if w.gen != nil {
		text, err := w.gen.Generate(ctx, w.systemPrompt(), w.prompt(s))
		switch {
		case err != nil && ctx.Err() != nil:
			return schema.ExecutiveSummary{}, ctx.Err()
		case err != nil:
			w.log.Warn("llm briefing failed; using template", zap.Error(err))
		case strings.TrimSpace(text) == "":
			w.log.Debug("llm briefing empty; using template")
		default:
			body, generated = text, true
		}
	}
	return schema.ExecutiveSummary{
		Text:        FormatSlack(body, w.opts.Signature),
		Signature:   w.opts.Signature,
		Generated:   generated,
		GeneratedAt: w.now().UTC(),
	}, nil
}

// Briefing renders the templated summary body.
func Briefing(s schema.SprintSummary) string {
	var b strings.Builder
	b.WriteString(opening(s))

	core := s.AlignmentBreakdown[schema.CategoryCoreValue]
	enablers := s.AlignmentBreakdown[schema.CategoryStrategicEnabler]
	if core+enablers > 0 {
		fmt.Fprintf(&b, "\n\n**Working:** %d core value and %d strategic enabler tickets", core, enablers)
		if len(s.TopAlignedTickets) > 0 {
			top := s.TopAlignedTickets[0]
			fmt.Fprintf(&b, ", led by %s at %.0f/100", top.Key, top.Score)
		}
		b.WriteString(".")
	}

	var attention []string
	if n := s.AlignmentBreakdown[schema.CategoryDistraction]; n > 0 {
		attention = append(attention, fmt.Sprintf("%d distraction tickets", n))
	}
	if len(s.NeglectedPrinciples) > 0 {
		attention = append(attention, "neglected: "+strings.Join(s.NeglectedPrinciples, ", "))
	}
	if len(s.OverIndexedAreas) > 0 {
		attention = append(attention, "over-indexed: "+strings.Join(s.OverIndexedAreas, ", "))
	}
	if len(attention) > 0 {
		b.WriteString("\n\n**Needs attention:** ")
		b.WriteString(strings.Join(attention, "; "))
		b.WriteString(".")
	}

	if len(s.Recommendations) > 0 {
		b.WriteString("\n\n**Next:** ")
		b.WriteString(s.Recommendations[0])
	}
	return b.String()
}

func opening(s schema.SprintSummary) string {
	if s.TotalTickets == 0 {
		return "No tickets to review. An empty board is a decision too."
	}
	verdict := "Focus is holding."
	switch {
	case s.DriftPercentage > 60:
		verdict = "Most of this work is not moving the mission."
	case s.DriftPercentage > 40:
		verdict = "Too much of this sprint is drifting."
	case s.DriftPercentage >= 20:
		verdict = "Mostly on track, with some drift creeping in."
	}
	return fmt.Sprintf("%s %d tickets reviewed, average alignment %.0f/100, %.0f%% drift.",
		verdict, s.TotalTickets, s.AverageAlignmentScore, s.DriftPercentage)
}

// FormatSlack converts markdown bold to Slack bold, adds the report header,
// puts the signature on its own line and bounds the result to MaxChars runes.
func FormatSlack(body, signature string) string {
	body = strings.TrimSpace(strings.ReplaceAll(body, "**", "*"))
	body = strings.TrimSpace(strings.ReplaceAll(body, signature, ""))
	tail := "\n\n_" + signature + "_"

	room := MaxChars - utf8.RuneCountInString(slackHeader) - utf8.RuneCountInString(tail)
	if utf8.RuneCountInString(body) > room {
		r := []rune(body)
		body = strings.TrimSpace(string(r[:room-1])) + "…"
	}
	return slackHeader + body + tail
}

func (w *Writer) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are the founder's voice of the company: you turn sprint alignment data into a short, punchy executive message.\n")
	fmt.Fprintf(&sb, "Tone: %s.\n", w.opts.Tone)
	if w.opts.Addendum != "" {
		sb.WriteString(w.opts.Addendum)
		sb.WriteString("\n")
	}
	sb.WriteString("Reply with the message text only.")
	return sb.String()
}

func (w *Writer) prompt(s schema.SprintSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Transform this sprint analysis into a %d-word executive message.\n\n", w.opts.MaxWords)
	sb.WriteString("Data:\n")
	fmt.Fprintf(&sb, "- Total tickets: %d\n", s.TotalTickets)
	fmt.Fprintf(&sb, "- Average alignment: %.0f/100\n", s.AverageAlignmentScore)
	fmt.Fprintf(&sb, "- Drift percentage: %.0f%%\n", s.DriftPercentage)
	fmt.Fprintf(&sb, "- Core value tickets: %d\n", s.AlignmentBreakdown[schema.CategoryCoreValue])
	fmt.Fprintf(&sb, "- Distraction tickets: %d\n\n", s.AlignmentBreakdown[schema.CategoryDistraction])
	fmt.Fprintf(&sb, "Over-indexed: %s\n", orNone(s.OverIndexedAreas))
	fmt.Fprintf(&sb, "Neglected: %s\n\n", orNone(s.NeglectedPrinciples))
	sb.WriteString("Recommendations:\n")
	for _, r := range s.Recommendations {
		fmt.Fprintf(&sb, "- %s\n", r)
	}
	sb.WriteString("\nStructure: open with a sharp observation about strategic health, highlight what is working, ")
	fmt.Fprintf(&sb, "call out what needs immediate attention, and end with: %q", w.opts.Signature)
	return sb.String()
}

func orNone(xs []string) string {
	if len(xs) == 0 {
		return "None"
	}
	return strings.Join(xs, ", ")
}
