// Package pipeline runs one analysis: fetch, score, aggregate, rewrite, write
// back, summarize and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/drift"
	"github.com/dshills/steve/internal/export"
	"github.com/dshills/steve/internal/narrative"
	"github.com/dshills/steve/internal/profile"
	"github.com/dshills/steve/internal/render"
	"github.com/dshills/steve/internal/rewrite"
	"github.com/dshills/steve/internal/schema"
	"github.com/dshills/steve/internal/scorer"
	"github.com/dshills/steve/internal/sprint"
	"github.com/dshills/steve/internal/tracker"
	"github.com/dshills/steve/internal/verdict"
)

// Tool is recorded in every report.
const Tool = "steve"

// Options wires the collaborators of one run. Catalog, Scorer and Source are
// required; every other collaborator is optional.
type Options struct {
	Project    string
	Profile    profile.Profile
	Catalog    *catalog.Catalog
	Scorer     scorer.Scorer
	Source     tracker.Source
	MaxResults int
	Sprint     sprint.Options
	// Workers bounds concurrent scoring and write-back. Zero uses NumCPU.
	Workers   int
	WriteBack tracker.WriteBackOptions

	// DryRun logs writes instead of performing them. AnalysisOnly skips
	// write-back entirely.
	DryRun       bool
	AnalysisOnly bool
	TestMode     bool

	Advisor   *rewrite.Advisor
	Narrator  *narrative.Writer
	Notifier  export.Notifier
	Publisher export.Publisher
	// OutputDir receives the report files; empty skips them.
	OutputDir string
	JSON      bool

	Version string
	Log     *zap.Logger
	Now     func() time.Time
}

// Run executes one analysis. Configuration and fetch failures abort the run;
// write-back and export failures are recorded in the report.
func Run(ctx context.Context, o Options) (*schema.Report, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	src := o.Source
	if o.DryRun {
		src = tracker.NewDryRun(src, log)
	}

	jql := o.Profile.Query(o.Project)
	log.Info("fetching tickets", zap.String("mode", string(o.Profile.Mode)), zap.String("jql", jql))
	tickets, err := src.Fetch(ctx, tracker.Query{JQL: jql, MaxResults: o.MaxResults})
	if err != nil {
		var se *tracker.SourceError
		if !errors.As(err, &se) {
			err = &tracker.SourceError{Op: "fetch", Err: err}
		}
		return nil, err
	}
	tickets = dedupe(tickets, log)

	results, err := score(ctx, tickets, o, log)
	if err != nil {
		return nil, err
	}

	report := &schema.Report{
		Tool:          Tool,
		Version:       o.Version,
		RunID:         runID,
		Project:       o.Project,
		Mode:          o.Profile.Mode,
		ScoringMethod: o.Scorer.Method(),
		DryRun:        o.DryRun,
		TestMode:      o.TestMode,
		GeneratedAt:   now().UTC(),
		Thresholds:    o.Catalog.Thresholds,
		Tickets:       tickets,
		Results:       results,
		Rewrites:      []schema.TicketRewrite{},
		Failures:      []schema.WriteBackFailure{},
	}
	report.Summary = sprint.Aggregate(tickets, results, o.Catalog.Principles, o.Sprint)
	for _, problem := range sprint.Verify(report.Summary, o.Sprint) {
		log.Error("summary inconsistent", zap.String("problem", problem))
	}
	log.Info("sprint aggregated",
		zap.Int("tickets", report.Summary.TotalTickets),
		zap.Float64("average", report.Summary.AverageAlignmentScore),
		zap.Float64("drift_pct", report.Summary.DriftPercentage))

	if o.Advisor != nil {
		log.Info("proposing rewrites", zap.Int("drifting", drift.CountDrifting(results)))
		rws, err := o.Advisor.RewriteAll(ctx, tickets, results)
		if err != nil {
			return nil, fmt.Errorf("pipeline: rewrite: %w", err)
		}
		report.Rewrites = rws
	}

	if !o.AnalysisOnly {
		report.Failures, err = writeBack(ctx, src, report, o, log)
		if err != nil {
			return nil, err
		}
	}

	if o.Narrator != nil {
		es, err := o.Narrator.Summarize(ctx, report.Summary)
		if err != nil {
			return nil, fmt.Errorf("pipeline: executive summary: %w", err)
		}
		report.Executive = &es
	}

	deliver(ctx, report, o, log)
	return report, nil
}

func (o Options) check() error {
	if o.Catalog == nil || len(o.Catalog.Principles) == 0 {
		return &catalog.ConfigError{Source: "pipeline", Err: catalog.ErrEmptyCatalog}
	}
	if err := catalog.ValidateThresholds(o.Catalog.Thresholds); err != nil {
		return &catalog.ConfigError{Source: "pipeline", Field: "thresholds", Err: err}
	}
	if err := o.Sprint.Validate(); err != nil {
		return &catalog.ConfigError{Source: "pipeline", Field: "sprint", Err: err}
	}
	if o.Scorer == nil || o.Source == nil {
		return errors.New("pipeline: scorer and source are required")
	}
	return nil
}

// dedupe keeps the first ticket for each key.
func dedupe(tickets []schema.Ticket, log *zap.Logger) []schema.Ticket {
	seen := make(map[string]bool, len(tickets))
	out := tickets[:0:0]
	for _, t := range tickets {
		if seen[t.Key] {
			log.Warn("duplicate ticket key dropped", zap.String("ticket", t.Key))
			continue
		}
		seen[t.Key] = true
		out = append(out, t)
	}
	return out
}

func workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// score evaluates every ticket concurrently. Results keep fetch order.
func score(ctx context.Context, tickets []schema.Ticket, o Options, log *zap.Logger) ([]schema.AlignmentResult, error) {
	results := make([]schema.AlignmentResult, len(tickets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(o.Workers))
	for i, t := range tickets {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = verdict.Evaluate(t, o.Scorer, o.Catalog)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: score: %w", err)
	}

	for i, r := range results {
		if err := verdict.Validate(r, o.Catalog.Thresholds); err != nil {
			log.Warn("result recomputed", zap.Error(err))
			results[i], _ = verdict.Reconcile(r, o.Catalog.Thresholds)
		}
		log.Debug("ticket scored",
			zap.String("ticket", r.TicketKey),
			zap.Float64("score", results[i].AlignmentScore),
			zap.String("category", string(results[i].Category)))
	}
	return results, nil
}

// writeBack updates every ticket concurrently. Per-ticket failures are
// collected in result order; only cancellation is returned as an error.
func writeBack(ctx context.Context, src tracker.Source, report *schema.Report, o Options, log *zap.Logger) ([]schema.WriteBackFailure, error) {
	perTicket := make([][]schema.WriteBackFailure, len(report.Results))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(o.Workers))
	for i, r := range report.Results {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			comment := render.Comment(r, report.RewriteFor(r.TicketKey))
			errs := tracker.WriteBack(gctx, src, o.WriteBack, r, comment)
			for _, err := range errs {
				log.Warn("write-back failed", zap.String("ticket", r.TicketKey), zap.Error(err))
			}
			if len(errs) > 0 {
				perTicket[i] = tracker.Failures(r.TicketKey, errs)
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: write-back: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: write-back: %w", err)
	}

	out := []schema.WriteBackFailure{}
	for _, f := range perTicket {
		out = append(out, f...)
	}
	log.Info("write-back complete",
		zap.Int("tickets", len(report.Results)), zap.Int("tickets_failed", failed), zap.Bool("dry_run", o.DryRun))
	return out, nil
}

// deliver runs the optional exports. Failures are logged and recorded on the
// report; they never fail the run.
func deliver(ctx context.Context, report *schema.Report, o Options, log *zap.Logger) {
	record := func(rec schema.ExportRecord, err error) {
		if err != nil {
			rec.Error = err.Error()
			log.Warn("export failed", zap.String("target", rec.Target), zap.Error(err))
		}
		report.Exports = append(report.Exports, rec)
	}

	if o.Notifier != nil && report.Executive != nil {
		record(schema.ExportRecord{Target: export.TargetSlack}, o.Notifier.Notify(ctx, report.Executive.Text))
	}
	if o.Publisher != nil {
		title := fmt.Sprintf("STEVE Alignment Report — %s %s", report.Project, report.GeneratedAt.Format("2006-01-02"))
		url, err := o.Publisher.Publish(ctx, title, render.RenderMarkdown(report))
		record(schema.ExportRecord{Target: export.TargetGoogleDocs, URL: url}, err)
	}
	if o.OutputDir != "" {
		recs, err := export.WriteFiles(o.OutputDir, report, o.JSON)
		report.Exports = append(report.Exports, recs...)
		if err != nil {
			record(schema.ExportRecord{Target: export.TargetMarkdown}, err)
		}
		for _, r := range recs {
			log.Info("report written", zap.String("path", r.Path))
		}
	}
}
