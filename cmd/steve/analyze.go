package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/config"
	"github.com/dshills/steve/internal/export"
	"github.com/dshills/steve/internal/llm"
	"github.com/dshills/steve/internal/narrative"
	"github.com/dshills/steve/internal/pipeline"
	"github.com/dshills/steve/internal/profile"
	"github.com/dshills/steve/internal/render"
	"github.com/dshills/steve/internal/rewrite"
	"github.com/dshills/steve/internal/schema"
	"github.com/dshills/steve/internal/scorer"
	"github.com/dshills/steve/internal/tracker"
)

// analyzeFlags are the analyze command's options. Zero values leave the
// loaded settings untouched.
type analyzeFlags struct {
	configPath   string
	mode         string
	project      string
	principles   string
	scoring      string
	outputDir    string
	dryRun       bool
	testMode     bool
	analysisOnly bool
	useLLM       bool
	founderVoice bool
	googleDocs   bool
	json         bool
	render       bool
	sorted       bool
	quiet        bool
	// failDrift, when positive, fails the run if drift exceeds it.
	failDrift float64
	out       io.Writer
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score tickets, write results back and produce the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.configPath = a.configPath
			f.out = cmd.OutOrStdout()
			_, err := runAnalyze(cmd.Context(), f, a.log)
			return err
		},
	}
	bindAnalyzeFlags(cmd, &f)
	return cmd
}

func bindAnalyzeFlags(cmd *cobra.Command, f *analyzeFlags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", "", "review mode: execution, strategy or full_review")
	fl.StringVarP(&f.project, "project", "p", "", "tracker project key")
	fl.StringVar(&f.principles, "principles", "", "principle catalog file (default built-in)")
	fl.StringVar(&f.scoring, "scoring", "", "scoring method: keyword or tfidf")
	fl.StringVar(&f.outputDir, "output-dir", "", "directory for report files")
	fl.BoolVar(&f.dryRun, "dry-run", false, "log tracker writes instead of performing them")
	fl.BoolVar(&f.testMode, "test", false, "use the built-in test tickets instead of the tracker")
	fl.BoolVar(&f.analysisOnly, "analysis-only", false, "skip tracker write-back entirely")
	fl.BoolVar(&f.useLLM, "llm", false, "use the configured LLM for rewrites")
	fl.BoolVar(&f.founderVoice, "founder-voice", false, "let the LLM write the executive summary")
	fl.BoolVar(&f.googleDocs, "gdocs", false, "publish the report as a Google Doc")
	fl.BoolVar(&f.json, "json", false, "print the JSON report and write a JSON file")
	fl.BoolVar(&f.render, "render", false, "render the markdown report for the terminal")
	fl.BoolVar(&f.sorted, "sorted", false, "print the top-10 strategic priority table")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "print nothing on success")
	fl.Float64Var(&f.failDrift, "fail-drift", 0, "exit 2 when drift percentage exceeds this value")
}

// runAnalyze loads settings, wires the collaborators and runs the pipeline.
// Returned errors carry the process exit code.
func runAnalyze(ctx context.Context, f analyzeFlags, log *zap.Logger) (*schema.Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if f.out == nil {
		f.out = io.Discard
	}
	cfg, err := loadSettings(f)
	if err != nil {
		return nil, classify(err)
	}

	cat, err := loadCatalog(cfg.Principles)
	if err != nil {
		return nil, classify(err)
	}
	prof, err := profile.Load(cfg.Mode)
	if err != nil {
		return nil, classify(&catalog.ConfigError{Source: "flags", Field: "mode", Err: err})
	}
	sc, err := scorer.New(cfg.ScoringMethod, cat)
	if err != nil {
		return nil, classify(&catalog.ConfigError{Source: "flags", Field: "scoring", Err: err})
	}

	var src tracker.Source
	if f.testMode {
		log.Info("running in test mode; no tracker connection")
		src = tracker.NewSynthetic(nil)
	} else {
		j, err := tracker.NewJira(ctx, cfg.TrackerConfig(), log)
		if err != nil {
			return nil, classify(err)
		}
		src = j
	}

	var gen llm.Generator
	if cfg.LLM.Enabled {
		c, err := llm.New(cfg.LLMOptions(), log)
		if err != nil {
			return nil, classify(&catalog.ConfigError{Source: "llm", Field: "provider", Err: err})
		}
		gen = c
	}

	advOpts := []rewrite.Option{rewrite.WithLogger(log), rewrite.WithPromptAddendum(prof.SystemPromptAddendum)}
	if gen != nil {
		advOpts = append(advOpts, rewrite.WithGenerator(gen))
	}
	var voice llm.Generator
	if cfg.Narrative.FounderVoice {
		voice = gen
	}
	narrator := narrative.New(voice, narrative.Options{
		MaxWords: cfg.Narrative.MaxWords,
		Tone:     cfg.Narrative.Tone,
		Addendum: prof.SystemPromptAddendum,
	}, log)

	opts := pipeline.Options{
		Project:      cfg.Project,
		Profile:      prof,
		Catalog:      cat,
		Scorer:       sc,
		Source:       src,
		MaxResults:   cfg.Jira.MaxResults,
		Sprint:       cfg.Sprint,
		Workers:      cfg.Pipeline.Workers,
		WriteBack:    cfg.Jira.WriteBack,
		DryRun:       f.dryRun || f.testMode,
		AnalysisOnly: f.analysisOnly,
		TestMode:     f.testMode,
		Advisor:      rewrite.New(cat, sc, advOpts...),
		Narrator:     narrator,
		OutputDir:    cfg.Export.Dir,
		JSON:         cfg.Export.JSON,
		Version:      version,
		Log:          log,
	}
	if cfg.Narrative.SlackWebhook != "" && !opts.DryRun {
		opts.Notifier = &export.SlackWebhook{URL: cfg.Narrative.SlackWebhook, Retry: cfg.Retry()}
	}
	if cfg.Export.GoogleDocs {
		g, err := export.NewGoogleDocs(ctx, cfg.Export.GoogleCredentialsFile, cfg.Retry(), log)
		if err != nil {
			log.Warn("google docs export disabled", zap.Error(err))
		} else {
			opts.Publisher = g
		}
	}

	report, err := pipeline.Run(ctx, opts)
	if err != nil {
		return nil, classify(err)
	}
	if err := printReport(f, report); err != nil {
		return report, err
	}

	if f.failDrift > 0 && report.Summary.DriftPercentage > f.failDrift {
		return report, &exitError{code: exitCodeDriftLimit,
			err: fmt.Errorf("drift %.0f%% exceeds limit %.0f%%", report.Summary.DriftPercentage, f.failDrift)}
	}
	return report, nil
}

// loadSettings reads the settings file and applies flag overrides.
func loadSettings(f analyzeFlags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if f.mode != "" {
		cfg.Mode = f.mode
	}
	if f.project != "" {
		cfg.Project = f.project
	}
	if f.principles != "" {
		cfg.Principles = f.principles
	}
	if f.scoring != "" {
		cfg.ScoringMethod = f.scoring
	}
	if f.outputDir != "" {
		cfg.Export.Dir = f.outputDir
	}
	if f.useLLM {
		cfg.LLM.Enabled = true
	}
	if f.founderVoice {
		cfg.LLM.Enabled = true
		cfg.Narrative.FounderVoice = true
	}
	if f.googleDocs {
		cfg.Export.GoogleDocs = true
	}
	if f.json {
		cfg.Export.JSON = true
	}
	return cfg, cfg.Validate()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func printReport(f analyzeFlags, report *schema.Report) error {
	if f.quiet {
		return nil
	}
	if f.json {
		b, err := render.RenderJSON(report)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(f.out, string(b))
		return err
	}

	md := render.RenderMarkdown(report)
	if f.sorted {
		md = "## Strategic Priority Ranking\n\n" + render.Scorecard(report, 10)
	}
	if f.render {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if md, err = r.Render(md); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	_, err := fmt.Fprint(f.out, md)
	return err
}
