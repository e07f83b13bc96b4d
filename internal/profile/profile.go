// Package profile defines the review modes that select which tickets a run
// fetches and how LLM prompts are framed. Each mode carries a query template
// and a SystemPromptAddendum appended to narrative and rewrite prompts.
package profile

import (
	"fmt"
	"strings"

	"github.com/dshills/steve/internal/schema"
)

// Profile describes one review mode.
type Profile struct {
	Mode        schema.ReviewMode
	Description string
	// QueryTemplate is a JQL query with {project} as the only placeholder.
	QueryTemplate        string
	SystemPromptAddendum string
}

// Query renders the profile's query for project.
func (p Profile) Query(project string) string {
	return strings.ReplaceAll(p.QueryTemplate, "{project}", project)
}

// builtins is the registry of review modes keyed by name.
var builtins = map[schema.ReviewMode]Profile{
	schema.ModeExecution: {
		Mode:          schema.ModeExecution,
		Description:   "Current sprint; open tickets only.",
		QueryTemplate: "project = {project} AND sprint in openSprints() AND status != Done",
		SystemPromptAddendum: "You are reviewing the tickets in the active sprint. Focus on what the " +
			"team will ship in the next two weeks and call out work that should be pulled.",
	},
	schema.ModeStrategy: {
		Mode:          schema.ModeStrategy,
		Description:   "Epics only; roadmap-level review.",
		QueryTemplate: "project = {project} AND issuetype = Epic",
		SystemPromptAddendum: "You are reviewing epics, not individual tasks. Judge the roadmap as a " +
			"whole and name the strategic bets that are missing.",
	},
	schema.ModeFullReview: {
		Mode:          schema.ModeFullReview,
		Description:   "Every ticket in the project, most recently updated first.",
		QueryTemplate: "project = {project} ORDER BY updated DESC",
		SystemPromptAddendum: "You are reviewing the entire backlog. Look for long-running patterns of " +
			"drift and areas that have quietly accumulated effort.",
	},
}

// Modes lists the available review modes in display order.
var Modes = []schema.ReviewMode{schema.ModeExecution, schema.ModeStrategy, schema.ModeFullReview}

// Load returns the named review mode or an error if the name is unknown.
func Load(name string) (Profile, error) {
	p, ok := builtins[schema.ReviewMode(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		avail := make([]string, len(Modes))
		for i, m := range Modes {
			avail[i] = string(m)
		}
		return Profile{}, fmt.Errorf("profile: unknown review mode %q (available: %s)", name, strings.Join(avail, ", "))
	}
	return p, nil
}
