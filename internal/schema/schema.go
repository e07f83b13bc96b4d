// Package schema defines all canonical data types for Steve's input and output.
package schema

import (
	"strings"
	"time"
)

// Category is one of the four alignment tiers, derived from a score.
type Category string

const (
	CategoryCoreValue        Category = "core_value"
	CategoryStrategicEnabler Category = "strategic_enabler"
	CategoryDrift            Category = "drift"
	CategoryDistraction      Category = "distraction"
)

// Categories lists every category from highest to lowest rank.
var Categories = []Category{
	CategoryCoreValue,
	CategoryStrategicEnabler,
	CategoryDrift,
	CategoryDistraction,
}

// Title returns the display form, e.g. "Strategic Enabler".
func (c Category) Title() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Drifting reports whether c is one of the two lowest tiers.
func (c Category) Drifting() bool {
	return c == CategoryDrift || c == CategoryDistraction
}

// ReviewMode selects which tickets a run fetches.
type ReviewMode string

const (
	ModeExecution  ReviewMode = "execution"
	ModeStrategy   ReviewMode = "strategy"
	ModeFullReview ReviewMode = "full_review"
)

// Principle is a named, weighted strategic dimension.
type Principle struct {
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description" json:"description"`
	Keywords          []string `yaml:"keywords" json:"keywords"`
	HighValueKeywords []string `yaml:"high_value_keywords,omitempty" json:"high_value_keywords,omitempty"`
	Weight            float64  `yaml:"weight" json:"weight"`
}

// Thresholds are the lower bounds of the three upper tiers.
// Distraction is everything below Drift.
type Thresholds struct {
	CoreValue        float64 `yaml:"core_value" json:"core_value"`
	StrategicEnabler float64 `yaml:"strategic_enabler" json:"strategic_enabler"`
	Drift            float64 `yaml:"drift" json:"drift"`
}

// Ticket is a unit of tracked work as supplied by the ticket source.
// Description is never nil downstream; absent descriptions are "".
type Ticket struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Sprint      string    `json:"sprint,omitempty"`
	StoryPoints *float64  `json:"story_points,omitempty"`
	EpicLink    string    `json:"epic_link,omitempty"`
	Created     time.Time `json:"created,omitempty"`
	Updated     time.Time `json:"updated,omitempty"`
}

// PrincipleDetail records how one principle contributed to a ticket's score.
type PrincipleDetail struct {
	Principle          string   `json:"principle"`
	Score              float64  `json:"score"`
	KeywordMatches     []string `json:"keyword_matches,omitempty"`
	DescriptionMatches int      `json:"description_matches"`
	HighValueMatches   []string `json:"high_value_matches,omitempty"`
	Similarity         float64  `json:"similarity,omitempty"`
	Matched            bool     `json:"matched"`
}

// AlignmentResult is the per-ticket outcome. Category is always derived from
// AlignmentScore; construct results with verdict.NewResult.
type AlignmentResult struct {
	TicketKey         string            `json:"ticket_key"`
	AlignmentScore    float64           `json:"alignment_score"`
	Category          Category          `json:"category"`
	Rationale         string            `json:"rationale"`
	MatchedPrinciples []string          `json:"matched_principles"`
	TicketType        string            `json:"ticket_type,omitempty"`
	Details           []PrincipleDetail `json:"details,omitempty"`
}

// TicketScore is a compact ranked entry used in top/bottom lists.
type TicketScore struct {
	Key      string   `json:"key"`
	Summary  string   `json:"summary,omitempty"`
	Score    float64  `json:"score"`
	Category Category `json:"category"`
}

// SprintSummary holds corpus-level statistics for one run.
type SprintSummary struct {
	TotalTickets          int              `json:"total_tickets"`
	AlignmentBreakdown    map[Category]int `json:"alignment_breakdown"`
	AverageAlignmentScore float64          `json:"average_alignment_score"`
	DriftPercentage       float64          `json:"drift_percentage"`
	PrincipleMatchCounts  map[string]int   `json:"principle_match_counts,omitempty"`
	OverIndexedAreas      []string         `json:"over_indexed_areas"`
	NeglectedPrinciples   []string         `json:"neglected_principles"`
	Recommendations       []string         `json:"recommendations"`
	TopAlignedTickets     []TicketScore    `json:"top_aligned_tickets"`
	BottomAlignedTickets  []TicketScore    `json:"bottom_aligned_tickets"`
}

// TicketRewrite is a proposed reframing of a drifting ticket.
type TicketRewrite struct {
	OriginalKey          string  `json:"original_key"`
	OriginalSummary      string  `json:"original_summary"`
	RevisedSummary       string  `json:"revised_summary"`
	RevisedDescription   string  `json:"revised_description"`
	TargetedPrinciple    string  `json:"targeted_principle"`
	AlignmentImprovement float64 `json:"alignment_improvement"`
	JiraComment          string  `json:"jira_comment"`
	Source               string  `json:"source"` // "heuristic" or "llm"
}

// ExecutiveSummary is the short leadership briefing for a run.
type ExecutiveSummary struct {
	Text        string    `json:"text"`
	Signature   string    `json:"signature"`
	Generated   bool      `json:"llm_generated"`
	GeneratedAt time.Time `json:"generated_at"`
}

// WriteBackFailure records one failed write to the ticket tracker.
type WriteBackFailure struct {
	TicketKey string `json:"ticket_key"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// ExportRecord records where a report was delivered.
type ExportRecord struct {
	Target string `json:"target"`
	URL    string `json:"url,omitempty"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report is the top-level output document of one analysis run.
type Report struct {
	Tool          string             `json:"tool"`
	Version       string             `json:"version"`
	RunID         string             `json:"run_id"`
	Project       string             `json:"project"`
	Mode          ReviewMode         `json:"mode"`
	ScoringMethod string             `json:"scoring_method"`
	DryRun        bool               `json:"dry_run"`
	TestMode      bool               `json:"test_mode"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Thresholds    Thresholds         `json:"thresholds"`
	Tickets       []Ticket           `json:"tickets"`
	Results       []AlignmentResult  `json:"results"`
	Summary       SprintSummary      `json:"summary"`
	Rewrites      []TicketRewrite    `json:"rewrites"`
	Executive     *ExecutiveSummary  `json:"executive_summary,omitempty"`
	Failures      []WriteBackFailure `json:"write_back_failures"`
	Exports       []ExportRecord     `json:"exports,omitempty"`
}

// TicketByKey returns the ticket with the given key.
func (r *Report) TicketByKey(key string) (Ticket, bool) {
	for _, t := range r.Tickets {
		if t.Key == key {
			return t, true
		}
	}
	return Ticket{}, false
}

// RewriteFor returns the rewrite suggested for key, if any.
func (r *Report) RewriteFor(key string) *TicketRewrite {
	for i := range r.Rewrites {
		if r.Rewrites[i].OriginalKey == key {
			return &r.Rewrites[i]
		}
	}
	return nil
}
