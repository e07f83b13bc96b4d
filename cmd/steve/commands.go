package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/config"
	"github.com/dshills/steve/internal/tracker"
)

func newPrinciplesCmd(a *app) *cobra.Command {
	var validate string
	cmd := &cobra.Command{
		Use:   "principles",
		Short: "Print the principle catalog, or validate a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if validate != "" {
				cat, err := catalog.Load(validate)
				if err != nil {
					return classify(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d principles)\n", validate, len(cat.Principles))
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return classify(err)
			}
			cat, err := loadCatalog(cfg.Principles)
			if err != nil {
				return classify(err)
			}
			printCatalog(cmd.OutOrStdout(), cat)
			return nil
		},
	}
	cmd.Flags().StringVar(&validate, "validate", "", "catalog file to validate")
	return cmd
}

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	fmt.Fprintf(w, "Principles (%s)\n\n", cat.Source)
	for i, p := range cat.Principles {
		fmt.Fprintf(w, "%d. %s (weight %.1f)\n", i+1, p.Name, p.Weight)
		if p.Description != "" {
			fmt.Fprintf(w, "   %s\n", p.Description)
		}
		fmt.Fprintf(w, "   keywords: %s\n", strings.Join(p.Keywords, ", "))
		if len(p.HighValueKeywords) > 0 {
			fmt.Fprintf(w, "   high value: %s\n", strings.Join(p.HighValueKeywords, ", "))
		}
	}
	t := cat.Thresholds
	fmt.Fprintf(w, "\nThresholds: core_value >= %.0f, strategic_enabler >= %.0f, drift >= %.0f, distraction below\n",
		t.CoreValue, t.StrategicEnabler, t.Drift)
	fmt.Fprintf(w, "Match threshold: %.0f, baseline: %.0f\n", cat.MatchThreshold, cat.Baseline)
}

func newFieldsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "Check the tracker for the alignment score and category custom fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return classify(err)
			}
			j, err := tracker.NewJira(cmd.Context(), cfg.TrackerConfig(), a.log)
			if err != nil {
				return classify(err)
			}
			printFields(cmd.OutOrStdout(), j.Fields())
			return nil
		},
	}
}

func printFields(w io.Writer, m tracker.FieldMap) {
	check := func(name, id, kind, purpose string) {
		if id != "" {
			fmt.Fprintf(w, "✅ %s found (%s)\n", name, id)
			return
		}
		fmt.Fprintf(w, "%s not found. Create it in Jira:\n", name)
		fmt.Fprintln(w, "  1. Jira Settings > Issues > Custom Fields")
		fmt.Fprintf(w, "  2. Create a new %s field named %q\n", kind, name)
		fmt.Fprintln(w, "  3. Add it to the appropriate screens")
		if purpose != "" {
			fmt.Fprintf(w, "  4. %s\n", purpose)
		}
	}
	check(tracker.ScoreFieldName, m.Score, "Number", "This field allows sorting tickets by alignment score")
	check(tracker.CategoryFieldName, m.Category, "Text", "")
}

func newScheduleCmd(a *app) *cobra.Command {
	var f analyzeFlags
	var expr string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run analyze on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.configPath = a.configPath
			f.out = cmd.OutOrStdout()
			return runSchedule(cmd.Context(), expr, f, a.log, time.Now)
		},
	}
	cmd.Flags().StringVar(&expr, "cron", "0 9 * * MON", "5-field cron expression")
	bindAnalyzeFlags(cmd, &f)
	return cmd
}

// runSchedule runs analyze at every activation of expr until ctx is done.
// Configuration errors stop the loop; other failures are logged and the
// next activation proceeds.
func runSchedule(ctx context.Context, expr string, f analyzeFlags, log *zap.Logger, now func() time.Time) error {
	if log == nil {
		log = zap.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return classify(&catalog.ConfigError{Source: "flags", Field: "cron", Err: err})
	}
	log.Info("analysis scheduled", zap.String("cron", expr))

	for {
		next := sched.Next(now())
		wait := next.Sub(now())
		log.Info("next analysis", zap.Time("at", next), zap.Duration("in", wait.Round(time.Second)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("schedule stopped")
			return nil
		case <-timer.C:
		}

		report, err := runAnalyze(ctx, f, log)
		switch {
		case err != nil && exitCode(err) == exitCodeBadInput:
			return err
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			log.Error("scheduled analysis failed", zap.Error(err))
		default:
			log.Info("scheduled analysis complete",
				zap.String("run_id", report.RunID), zap.Int("tickets", report.Summary.TotalTickets))
		}
	}
}
