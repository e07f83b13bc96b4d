package tracker

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dshills/steve/internal/schema"
)

// Alignment is a recorded UpdateAlignment call.
type Alignment struct {
	Score    float64
	Category schema.Category
}

// Synthetic serves a fixed ticket set and records writes in memory. It is safe
// for concurrent use.
type Synthetic struct {
	tickets []schema.Ticket
	// Fail, when set, is consulted before every write; a non-nil return
	// fails that write.
	Fail func(key, op string) error

	mu       sync.Mutex
	comments map[string][]string
	labels   map[string][]string
	fields   map[string]Alignment
}

// NewSynthetic returns a source serving tickets, or the built-in test tickets
// when tickets is nil.
func NewSynthetic(tickets []schema.Ticket) *Synthetic {
	if tickets == nil {
		tickets = TestTickets(time.Now())
	}
	return &Synthetic{
		tickets:  tickets,
		comments: map[string][]string{},
		labels:   map[string][]string{},
		fields:   map[string]Alignment{},
	}
}

// TestTickets returns the five tickets used in test mode.
func TestTickets(now time.Time) []schema.Ticket {
	mk := func(key, summary, desc, status, priority string, labels ...string) schema.Ticket {
		return schema.Ticket{
			Key: key, Summary: summary, Description: desc, Status: status, Priority: priority,
			Labels: labels, Created: now, Updated: now,
		}
	}
	return []schema.Ticket{
		mk("TEST-1", "Add dark mode to improve user experience",
			"Users have requested a dark mode option for better visibility", "In Progress", "High", "ui", "enhancement"),
		mk("TEST-2", "Refactor legacy authentication module",
			"Old auth code is slow and unreliable", "To Do", "Medium", "tech-debt", "performance"),
		mk("TEST-3", "Add animated GIF support to chat",
			"Users want to send GIFs in chat messages", "To Do", "Low", "feature"),
		mk("TEST-4", "Optimize API response times for better performance",
			"Current API calls take 2-3 seconds, target is under 500ms", "In Progress", "High", "performance", "api"),
		mk("TEST-5", "Fix critical bug causing data loss on logout",
			"Users report losing unsaved work when logging out", "To Do", "Critical", "bug", "reliability"),
	}
}

// Fetch returns the configured tickets, truncated to q.MaxResults.
func (s *Synthetic) Fetch(ctx context.Context, q Query) ([]schema.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SourceError{Op: "search", Err: err}
	}
	out := slices.Clone(s.tickets)
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out, nil
}

func (s *Synthetic) check(key, op string) error {
	if s.Fail != nil {
		return s.Fail(key, op)
	}
	return nil
}

func (s *Synthetic) AddComment(_ context.Context, key, body string) error {
	if err := s.check(key, OpComment); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[key] = append(s.comments[key], body)
	return nil
}

func (s *Synthetic) AddLabel(_ context.Context, key, label string) error {
	if err := s.check(key, OpLabel); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.labels[key], label) {
		s.labels[key] = append(s.labels[key], label)
	}
	return nil
}

func (s *Synthetic) UpdateAlignment(_ context.Context, key string, score float64, category schema.Category) error {
	if err := s.check(key, OpFields); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[key] = Alignment{Score: score, Category: category}
	return nil
}

// Comments returns the comments recorded for key.
func (s *Synthetic) Comments(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.comments[key])
}

// Labels returns the labels recorded for key.
func (s *Synthetic) Labels(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.labels[key])
}

// Alignment returns the recorded field update for key.
func (s *Synthetic) Alignment(key string) (Alignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.fields[key]
	return a, ok
}
