// Package config loads run settings from steve.yaml, the .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/llm"
	"github.com/dshills/steve/internal/narrative"
	"github.com/dshills/steve/internal/profile"
	"github.com/dshills/steve/internal/retry"
	"github.com/dshills/steve/internal/scorer"
	"github.com/dshills/steve/internal/sprint"
	"github.com/dshills/steve/internal/tracker"
)

// DefaultPath is read when no path is given and STEVE_CONFIG is unset.
const DefaultPath = "steve.yaml"

type Config struct {
	Project       string `yaml:"project"`
	Mode          string `yaml:"mode"`
	Principles    string `yaml:"principles"` // catalog path; empty uses the built-in catalog
	ScoringMethod string `yaml:"scoring_method"`

	Jira      JiraConfig      `yaml:"jira"`
	Sprint    sprint.Options  `yaml:"sprint"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	LLM       LLMConfig       `yaml:"llm"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Export    ExportConfig    `yaml:"export"`

	Source string `yaml:"-"` // file the settings were read from, if any
}

type JiraConfig struct {
	URL        string                   `yaml:"url"`
	Email      string                   `yaml:"email"`
	APIToken   string                   `yaml:"api_token"`
	MaxResults int                      `yaml:"max_results"`
	PageSize   int                      `yaml:"page_size"`
	Fields     tracker.FieldMap         `yaml:"fields"`
	WriteBack  tracker.WriteBackOptions `yaml:"write_back"`
}

type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type LLMConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type NarrativeConfig struct {
	// FounderVoice lets the LLM write the executive summary.
	FounderVoice bool   `yaml:"founder_voice"`
	MaxWords     int    `yaml:"max_words"`
	Tone         string `yaml:"tone"`
	SlackWebhook string `yaml:"slack_webhook"`
}

type ExportConfig struct {
	Dir                   string `yaml:"dir"`
	JSON                  bool   `yaml:"json"`
	GoogleDocs            bool   `yaml:"google_docs"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
}

// Default returns the settings used when no file or environment overrides
// are present.
func Default() Config {
	l := llm.DefaultOptions()
	n := narrative.DefaultOptions()
	r := retry.Default()
	return Config{
		Project:       "PROJ",
		Mode:          "execution",
		ScoringMethod: scorer.MethodKeyword,
		Jira: JiraConfig{
			MaxResults: 1000,
			PageSize:   tracker.DefaultPageSize,
			WriteBack:  tracker.DefaultWriteBackOptions(),
		},
		Sprint: sprint.DefaultOptions(),
		Pipeline: PipelineConfig{
			Workers:       runtime.NumCPU(),
			RetryAttempts: r.Attempts,
			RetryDelay:    r.BaseDelay,
		},
		LLM: LLMConfig{
			Provider:    l.Provider,
			MaxTokens:   l.MaxTokens,
			Temperature: l.Temperature,
		},
		Narrative: NarrativeConfig{MaxWords: n.MaxWords, Tone: n.Tone},
		Export:    ExportConfig{Dir: "reports"},
	}
}

// Load reads .env (or envFiles), then the settings file, then environment
// overrides, and validates the result. path may be empty: STEVE_CONFIG is
// tried next, then DefaultPath. A missing default file is not an error; a
// missing explicit file is.
func Load(path string, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, &catalog.ConfigError{Source: "dotenv", Err: err}
	}

	cfg := Default()
	explicit := path != ""
	if path == "" {
		if p := os.Getenv("STEVE_CONFIG"); p != "" {
			path, explicit = p, true
		} else {
			path = DefaultPath
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, &catalog.ConfigError{Source: path, Err: fmt.Errorf("parse: %w", err)}
		}
		cfg.Source = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, &catalog.ConfigError{Source: path, Err: err}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.Jira.URL, "JIRA_URL")
	envOverride(&cfg.Jira.Email, "JIRA_EMAIL")
	envOverride(&cfg.Jira.APIToken, "JIRA_API_TOKEN")
	envOverride(&cfg.Project, "JIRA_PROJECT_KEY")
	envOverride(&cfg.Principles, "STEVE_PRINCIPLES")
	envOverride(&cfg.Mode, "REVIEW_MODE")
	envOverride(&cfg.ScoringMethod, "STEVE_SCORING_METHOD")
	envOverride(&cfg.LLM.Provider, "LLM_PROVIDER")
	envOverride(&cfg.LLM.Model, "LLM_MODEL")
	envOverride(&cfg.Narrative.SlackWebhook, "SLACK_WEBHOOK_URL")
	envOverride(&cfg.Export.GoogleCredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	envOverride(&cfg.Export.Dir, "REPORT_OUTPUT_DIR")
	for _, b := range []struct {
		key   string
		field *bool
	}{
		{"LLM_ENABLED", &cfg.LLM.Enabled},
		{"USE_FOUNDER_VOICE", &cfg.Narrative.FounderVoice},
		{"GOOGLE_DOCS_EXPORT", &cfg.Export.GoogleDocs},
	} {
		if err := envOverrideBool(b.field, b.key); err != nil {
			return err
		}
	}
	if err := envOverrideInt(&cfg.Pipeline.Workers, "STEVE_WORKERS"); err != nil {
		return err
	}
	return envOverrideInt(&cfg.Jira.MaxResults, "JIRA_MAX_RESULTS")
}

// Validate reports the first setting that would make a run meaningless.
func (c Config) Validate() error {
	bad := func(field string, err error) error {
		return &catalog.ConfigError{Source: c.source(), Field: field, Err: err}
	}
	if strings.TrimSpace(c.Project) == "" {
		return bad("project", errors.New("must not be empty"))
	}
	if _, err := profile.Load(c.Mode); err != nil {
		return bad("mode", err)
	}
	if c.ScoringMethod != scorer.MethodKeyword && c.ScoringMethod != scorer.MethodTFIDF {
		return bad("scoring_method", fmt.Errorf("unknown method %q (available: %s, %s)",
			c.ScoringMethod, scorer.MethodKeyword, scorer.MethodTFIDF))
	}
	if err := c.Sprint.Validate(); err != nil {
		return bad("sprint", err)
	}
	if c.Pipeline.Workers < 0 {
		return bad("pipeline.workers", fmt.Errorf("%d must not be negative", c.Pipeline.Workers))
	}
	if c.Pipeline.RetryAttempts < 1 {
		return bad("pipeline.retry_attempts", fmt.Errorf("%d must be at least 1", c.Pipeline.RetryAttempts))
	}
	if c.Jira.MaxResults < 0 {
		return bad("jira.max_results", fmt.Errorf("%d must not be negative", c.Jira.MaxResults))
	}
	switch c.LLM.Provider {
	case "anthropic", "openai", "google":
	default:
		return bad("llm.provider", fmt.Errorf("unknown provider %q", c.LLM.Provider))
	}
	return nil
}

func (c Config) source() string {
	if c.Source == "" {
		return "config"
	}
	return c.Source
}

// Retry returns the retry policy for external I/O.
func (c Config) Retry() retry.Policy {
	return retry.Policy{Attempts: c.Pipeline.RetryAttempts, BaseDelay: c.Pipeline.RetryDelay}
}

// LLMOptions returns client options for the configured provider.
func (c Config) LLMOptions() llm.Options {
	o := llm.DefaultOptions()
	o.Provider = c.LLM.Provider
	o.Model = c.LLM.Model
	if c.LLM.MaxTokens > 0 {
		o.MaxTokens = c.LLM.MaxTokens
	}
	o.Temperature = c.LLM.Temperature
	o.Retry = c.Retry()
	return o
}

// TrackerConfig returns the Jira client settings.
func (c Config) TrackerConfig() tracker.JiraConfig {
	return tracker.JiraConfig{
		BaseURL:  c.Jira.URL,
		Email:    c.Jira.Email,
		APIToken: c.Jira.APIToken,
		PageSize: c.Jira.PageSize,
		Fields:   c.Jira.Fields,
		Retry:    c.Retry(),
	}
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return &catalog.ConfigError{Source: "env", Field: envKey, Err: err}
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return &catalog.ConfigError{Source: "env", Field: envKey, Err: err}
		}
		*field = parsed
	}
	return nil
}
