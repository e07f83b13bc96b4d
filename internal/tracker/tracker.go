// Package tracker reads tickets from and writes alignment results back to the
// ticket tracker. Jira is the production source; Synthetic serves test mode
// and DryRun wraps any source to suppress writes.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/steve/internal/schema"
)

// Write-back operations, as recorded in schema.WriteBackFailure.Operation.
const (
	OpComment = "comment"
	OpLabel   = "label"
	OpFields  = "fields"
)

// Query selects tickets. MaxResults <= 0 means no limit.
type Query struct {
	JQL        string
	MaxResults int
}

// Source is a ticket tracker.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]schema.Ticket, error)
	AddComment(ctx context.Context, key, body string) error
	AddLabel(ctx context.Context, key, label string) error
	// UpdateAlignment stores score and category in the tracker's custom
	// fields. Sources without those fields return nil.
	UpdateAlignment(ctx context.Context, key string, score float64, category schema.Category) error
}

// SourceError reports a failure to reach or read the tracker.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("tracker: %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// WriteBackError reports one failed write for one ticket.
type WriteBackError struct {
	TicketKey string
	Op        string
	Err       error
}

func (e *WriteBackError) Error() string {
	return fmt.Sprintf("tracker: %s %s: %v", e.Op, e.TicketKey, e.Err)
}

func (e *WriteBackError) Unwrap() error { return e.Err }

// Failure converts e for the run report.
func (e *WriteBackError) Failure() schema.WriteBackFailure {
	return schema.WriteBackFailure{TicketKey: e.TicketKey, Operation: e.Op, Error: e.Err.Error()}
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("returned %d: %s", e.Code, e.Body)
}

// WriteBackOptions selects which writes a run performs.
type WriteBackOptions struct {
	AddComments  bool                       `yaml:"add_comments"`
	AddLabels    bool                       `yaml:"add_labels"`
	UpdateFields bool                       `yaml:"update_fields"`
	Labels       map[schema.Category]string `yaml:"labels"`
}

// DefaultWriteBackOptions enables every write with the steve-* labels.
func DefaultWriteBackOptions() WriteBackOptions {
	return WriteBackOptions{
		AddComments:  true,
		AddLabels:    true,
		UpdateFields: true,
		Labels: map[schema.Category]string{
			schema.CategoryCoreValue:        "steve-core-value",
			schema.CategoryStrategicEnabler: "steve-strategic-enabler",
			schema.CategoryDrift:            "steve-drift",
			schema.CategoryDistraction:      "steve-distraction",
		},
	}
}

// WriteBack performs the enabled writes for one result. Each write is
// attempted even when an earlier one fails; every failure is returned as a
// *WriteBackError. Context cancellation stops further writes.
func WriteBack(ctx context.Context, src Source, opts WriteBackOptions, r schema.AlignmentResult, comment string) []error {
	var errs []error
	fail := func(op string, err error) {
		errs = append(errs, &WriteBackError{TicketKey: r.TicketKey, Op: op, Err: err})
	}

	if opts.AddComments && comment != "" {
		if err := src.AddComment(ctx, r.TicketKey, comment); err != nil {
			fail(OpComment, err)
		}
	}
	if opts.AddLabels && ctx.Err() == nil {
		if label := opts.Labels[r.Category]; label != "" {
			if err := src.AddLabel(ctx, r.TicketKey, label); err != nil {
				fail(OpLabel, err)
			}
		}
	}
	if opts.UpdateFields && ctx.Err() == nil {
		if err := src.UpdateAlignment(ctx, r.TicketKey, r.AlignmentScore, r.Category); err != nil {
			fail(OpFields, err)
		}
	}
	return errs
}

// Failures converts WriteBack errors for the run report. Errors that are not
// *WriteBackError are recorded under key with an empty operation.
func Failures(key string, errs []error) []schema.WriteBackFailure {
	out := make([]schema.WriteBackFailure, 0, len(errs))
	for _, err := range errs {
		var wb *WriteBackError
		if errors.As(err, &wb) {
			out = append(out, wb.Failure())
			continue
		}
		out = append(out, schema.WriteBackFailure{TicketKey: key, Error: err.Error()})
	}
	return out
}
