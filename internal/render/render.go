// Package render produces output from a fully assembled schema.Report.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/steve/internal/coverage"
	"github.com/dshills/steve/internal/schema"
	"github.com/dshills/steve/internal/sprint"
)

// Footer closes every tracker comment.
const Footer = "_Generated by STEVE — Strategic Ticket Evaluation & Vision Enforcer_"

const divider = "⸻"

// RenderJSON produces a pretty-printed JSON representation of the report.
func RenderJSON(report *schema.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces the run report: metadata, summary metrics, the full
// scorecard, per-ticket details, recommendations and rewrite suggestions.
// Every ticket key in the report appears in the output.
func RenderMarkdown(report *schema.Report) string {
	if report == nil {
		return ""
	}
	var sb strings.Builder
	s := report.Summary

	sb.WriteString("# STEVE Alignment Report\n\n")
	fmt.Fprintf(&sb, "**Generated:** %s  \n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "**Project:** %s  \n", report.Project)
	fmt.Fprintf(&sb, "**Mode:** %s  \n", report.Mode)
	fmt.Fprintf(&sb, "**Scoring:** %s  \n", report.ScoringMethod)
	fmt.Fprintf(&sb, "**Run:** %s\n", report.RunID)
	if report.DryRun || report.TestMode {
		var flags []string
		if report.TestMode {
			flags = append(flags, "test mode")
		}
		if report.DryRun {
			flags = append(flags, "dry run")
		}
		fmt.Fprintf(&sb, "\n_%s: no tracker writes were made._\n", strings.Join(flags, ", "))
	}
	sb.WriteString("\n")

	if report.Executive != nil && report.Executive.Text != "" {
		sb.WriteString("## Executive Summary\n\n")
		sb.WriteString(report.Executive.Text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Total tickets | %d |\n", s.TotalTickets)
	fmt.Fprintf(&sb, "| Average alignment | %.1f/100 |\n", s.AverageAlignmentScore)
	fmt.Fprintf(&sb, "| Drift | %.0f%% |\n", s.DriftPercentage)
	for _, c := range schema.Categories {
		fmt.Fprintf(&sb, "| %s | %d |\n", c.Title(), s.AlignmentBreakdown[c])
	}
	sb.WriteString("\n")

	if len(report.Results) > 0 {
		sb.WriteString("## Strategic Alignment Scorecard\n\n")
		sb.WriteString(Scorecard(report, len(report.Results)))
		sb.WriteString("\n")
	}

	if len(s.PrincipleMatchCounts) > 0 || len(s.OverIndexedAreas) > 0 || len(s.NeglectedPrinciples) > 0 {
		sb.WriteString("## Principle Coverage\n\n")
		coverageTable(&sb, s)
		if len(s.OverIndexedAreas) > 0 {
			fmt.Fprintf(&sb, "- **Over-indexed:** %s\n", strings.Join(s.OverIndexedAreas, ", "))
		}
		if len(s.NeglectedPrinciples) > 0 {
			fmt.Fprintf(&sb, "- **Neglected:** %s\n", strings.Join(s.NeglectedPrinciples, ", "))
		}
		sb.WriteString("\n")
	}

	if len(s.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, r := range s.Recommendations {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
		sb.WriteString("\n")
	}

	if len(report.Results) > 0 {
		sb.WriteString("## Ticket Details\n\n")
		for _, r := range report.Results {
			t, _ := report.TicketByKey(r.TicketKey)
			fmt.Fprintf(&sb, "### %s: %s\n\n", r.TicketKey, t.Summary)
			fmt.Fprintf(&sb, "**Score:** %.0f/100 (%s)  \n", r.AlignmentScore, r.Category.Title())
			fmt.Fprintf(&sb, "**Matched principles:** %s  \n", joinOrNone(r.MatchedPrinciples))
			if r.TicketType != "" {
				fmt.Fprintf(&sb, "**Type:** %s  \n", r.TicketType)
			}
			fmt.Fprintf(&sb, "\n%s\n\n", r.Rationale)
		}
	}

	if len(report.Rewrites) > 0 {
		sb.WriteString("## Rewrite Suggestions\n\n")
		for _, rw := range report.Rewrites {
			fmt.Fprintf(&sb, "<details>\n<summary><strong>%s</strong> → %s (+%.0f)</summary>\n\n",
				rw.OriginalKey, rw.TargetedPrinciple, rw.AlignmentImprovement)
			fmt.Fprintf(&sb, "**Original:** %s  \n", rw.OriginalSummary)
			fmt.Fprintf(&sb, "**Revised:** %s\n\n", rw.RevisedSummary)
			fmt.Fprintf(&sb, "%s\n\n", rw.RevisedDescription)
			fmt.Fprintf(&sb, "_Source: %s_\n\n", rw.Source)
			sb.WriteString("</details>\n\n")
		}
	}

	if len(report.Failures) > 0 {
		sb.WriteString("## Write-back Failures\n\n")
		sb.WriteString("| Ticket | Operation | Error |\n|---|---|---|\n")
		for _, f := range report.Failures {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", f.TicketKey, f.Operation, mdEscape(f.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Scorecard renders the n best-aligned tickets as a ranked table with a
// suggested action per row.
func Scorecard(report *schema.Report, n int) string {
	summaries := make(map[string]string, len(report.Tickets))
	for _, t := range report.Tickets {
		summaries[t.Key] = t.Summary
	}
	top, _ := sprint.Rank(report.Results, summaries, n)

	var sb strings.Builder
	sb.WriteString("| Rank | Score | Ticket | Category | Summary | Action |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for i, ts := range top {
		fmt.Fprintf(&sb, "| #%d | %s %.0f/100 | %s | %s | %s | %s |\n",
			i+1, marker(ts.Category), ts.Score, ts.Key, ts.Category.Title(),
			mdEscape(clip(ts.Summary, 40)), Action(ts.Category))
	}
	return sb.String()
}

// Action is the one-line triage suggestion for a category.
func Action(c schema.Category) string {
	switch c {
	case schema.CategoryCoreValue:
		return "✅ Keep prioritized"
	case schema.CategoryStrategicEnabler:
		return "📈 Consider promoting"
	case schema.CategoryDrift:
		return "⚠️ Needs realignment"
	default:
		return "❌ Consider removing"
	}
}

func marker(c schema.Category) string {
	switch c {
	case schema.CategoryCoreValue:
		return "🟢"
	case schema.CategoryStrategicEnabler:
		return "🟡"
	case schema.CategoryDrift:
		return "🟠"
	default:
		return "🔴"
	}
}

// Comment formats r as a tracker comment. rw may be nil.
func Comment(r schema.AlignmentResult, rw *schema.TicketRewrite) string {
	var sb strings.Builder
	sb.WriteString(divider + "\n\n")

	sb.WriteString("🎯 **Strategic Alignment Summary**\n")
	fmt.Fprintf(&sb, "**Score**: %.0f/100 — %s\n", r.AlignmentScore, r.Category.Title())
	fmt.Fprintf(&sb, "**Matched Principles**: %s\n", joinOrNone(r.MatchedPrinciples))
	sb.WriteString(scoreExplanation(r))
	sb.WriteString("\n\n" + divider + "\n\n")

	if r.Category.Drifting() {
		sb.WriteString("🧠 **Why This Doesn't Align**\n")
	} else {
		sb.WriteString("🧠 **Why This Aligns**\n")
	}
	sb.WriteString(expandRationale(r))
	sb.WriteString("\n\n" + divider + "\n\n")

	sb.WriteString("🧭 **Recommendation**\n")
	sb.WriteString(recommendation(r, rw))
	sb.WriteString("\n\n" + divider + "\n\n")
	sb.WriteString(Footer)
	return sb.String()
}

func scoreExplanation(r schema.AlignmentResult) string {
	matched := len(r.MatchedPrinciples) > 0
	switch r.Category {
	case schema.CategoryCoreValue:
		how := "through its core impact on our mission"
		if matched {
			how = "with strong keyword matches and direct principle alignment"
		}
		return "This ticket directly accelerates our core mission " + how + "."
	case schema.CategoryStrategicEnabler:
		how := "through supporting infrastructure"
		if matched {
			how = "with clear keyword presence"
		}
		return "This work supports strategic objectives " + how + ". It provides necessary enablement for core value delivery."
	case schema.CategoryDrift:
		return "The alignment with strategic principles is weak, showing limited keyword matches and unclear value creation."
	default:
		return "No meaningful alignment detected with our strategic principles and no clear connection to mission or value creation."
	}
}

func expandRationale(r schema.AlignmentResult) string {
	kind := r.TicketType
	if kind == "" {
		kind = "development"
	}
	var more string
	switch r.Category {
	case schema.CategoryCoreValue:
		more = fmt.Sprintf("This %s work represents a direct advancement of our core strategic objectives. "+
			"The impact on product vision is immediate and measurable.", kind)
	case schema.CategoryStrategicEnabler:
		more = fmt.Sprintf("While this %s work is not directly mission-critical, it provides necessary infrastructure "+
			"for future core value delivery.", kind)
	case schema.CategoryDrift:
		more = fmt.Sprintf("This %s work appears well-intentioned but lacks clear strategic connection. "+
			"Without reframing, it risks becoming a resource drain with limited strategic return.", kind)
	default:
		more = fmt.Sprintf("This %s work provides no identifiable connection to any strategic principle "+
			"and carries significant opportunity cost.", kind)
	}
	if r.Rationale == "" {
		return more
	}
	return r.Rationale + " " + more
}

func recommendation(r schema.AlignmentResult, rw *schema.TicketRewrite) string {
	switch r.Category {
	case schema.CategoryCoreValue:
		return "• ✅ **Action**: Prioritize and fast-track to execution\n" +
			"• 💡 **Rationale**: This creates foundational value with clear return in both product and strategic momentum"
	case schema.CategoryStrategicEnabler:
		return "• ✅ **Action**: Keep in roadmap and schedule soon\n" +
			"• 💡 **Rationale**: Enables stronger Core Value delivery down the line. Frame it internally as platform-enabling, not standalone"
	case schema.CategoryDrift:
		s := "• 🚧 **Action**: Reframe to improve strategic connection\n" +
			"• 💡 **Rationale**: Reframed toward a strategic principle, this could rise to Strategic Enabler\n"
		if rw != nil && rw.RevisedSummary != "" {
			return s + fmt.Sprintf("• ✏️ **Suggested Title**: %q", rw.RevisedSummary)
		}
		return s + "• ✏️ **Suggestion**: Reframe to emphasize a strategic principle"
	default:
		s := "• 🚫 **Action**: Deprioritize or archive\n" +
			"• 💡 **Rationale**: Completing this work would consume capacity with no return unless reframed toward strategic value\n"
		if rw != nil && rw.RevisedSummary != "" {
			return s + fmt.Sprintf("• ✏️ **Optional**: Consider reframing as %q to add strategic value", rw.RevisedSummary)
		}
		return s + "• ✏️ **Optional**: Reconsider whether this can serve a strategic principle; if not, discard"
	}
}

func joinOrNone(xs []string) string {
	if len(xs) == 0 {
		return "None"
	}
	return strings.Join(xs, ", ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

// coverageTable lists every principle's match count and share of tickets,
// most matched first.
func coverageTable(sb *strings.Builder, s schema.SprintSummary) {
	if len(s.PrincipleMatchCounts) == 0 {
		return
	}
	names := make([]string, 0, len(s.PrincipleMatchCounts))
	for name := range s.PrincipleMatchCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := s.PrincipleMatchCounts[names[i]], s.PrincipleMatchCounts[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	share := coverage.Share(s.PrincipleMatchCounts, s.TotalTickets)
	sb.WriteString("| Principle | Tickets | Share |\n|---|---|---|\n")
	for _, name := range names {
		fmt.Fprintf(sb, "| %s | %d | %.0f%% |\n", mdEscape(name), s.PrincipleMatchCounts[name], share[name]*100)
	}
	sb.WriteString("\n")
}
