// Package llm handles LLM provider communication for the optional narrative
// and rewrite features, response decoding, and the single repair attempt.
// Nothing in the scoring path depends on this package.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/steve/internal/retry"
)

// ErrInvalidModelOutput is returned when both the initial and repair LLM
// responses fail validation. The caller should exit with code 5.
var ErrInvalidModelOutput = errors.New("llm: invalid model output after repair attempt")

// Provider is the interface for LLM backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// NewProvider is the factory for creating LLM providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call site.
// Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

// Generator is the narrow text-generation collaborator used by the rewrite
// and narrative features.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Nop is a Generator that always returns the empty string.
type Nop struct{}

func (Nop) Generate(context.Context, string, string) (string, error) { return "", nil }

// Options configures a Client.
type Options struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	Retry       retry.Policy
	Debug       bool
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{Provider: "anthropic", MaxTokens: 1024, Temperature: 0.4, Retry: retry.Default()}
}

// Client is a Generator backed by a Provider, with bounded retry on
// provider errors.
type Client struct {
	provider Provider
	opts     Options
	log      *zap.Logger
}

// New creates a Client for opts.Provider. An empty model selects the
// provider's default.
func New(opts Options, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel(opts.Provider)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Default()
	}
	p, err := NewProvider(opts.Provider, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("llm: create provider: %w", err)
	}
	return &Client{provider: p, opts: opts, log: log}, nil
}

// Generate sends one prompt, retrying transient provider failures.
func (c *Client) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if c.opts.Debug {
		c.log.Debug("llm prompt", zap.String("system", systemPrompt), zap.String("user", prompt))
	}
	pol := c.opts.Retry
	pol.Retriable = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	pol.OnRetry = func(err error, wait time.Duration) {
		c.log.Warn("llm call failed; retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	var out string
	err := retry.Do(ctx, pol, func() error {
		s, err := c.provider.Complete(ctx, systemPrompt, prompt, c.opts.MaxTokens, c.opts.Temperature)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: complete: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ValidationError records a single validation failure on an LLM response.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// DecodeJSON strips fences, parses raw into v and returns any validation
// failures. A parse failure is reported under the "json_parse" field.
func DecodeJSON(raw string, v any) []ValidationError {
	raw = stripMarkdownFences(raw)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		// LLMs sometimes emit unescaped backslashes inside JSON strings.
		if err2 := json.Unmarshal([]byte(fixInvalidJSONEscapes(raw)), v); err2 != nil {
			return []ValidationError{{Field: "json_parse", Message: err.Error()}}
		}
	}
	return nil
}

// GenerateJSON asks g for a JSON document, decodes it into v, and checks it
// with validate (which may be nil). On failure it makes one repair attempt
// carrying the previous response and the errors. If the repair also fails
// ErrInvalidModelOutput is returned.
func GenerateJSON(ctx context.Context, g Generator, systemPrompt, prompt string, v any, validate func() []ValidationError) error {
	check := func(raw string) []ValidationError {
		if errs := DecodeJSON(raw, v); len(errs) > 0 {
			return errs
		}
		if validate != nil {
			return validate()
		}
		return nil
	}

	raw, err := g.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return err
	}
	errs := check(raw)
	if len(errs) == 0 {
		return nil
	}

	raw2, err := g.Generate(ctx, systemPrompt, buildRepairPrompt(prompt, raw, errs))
	if err != nil {
		return fmt.Errorf("llm: repair: %w", err)
	}
	if len(check(raw2)) == 0 {
		return nil
	}
	return ErrInvalidModelOutput
}

// fenceRe matches a markdown code fence block (``` or ~~~) with an optional
// language tag and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line, for truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// stripMarkdownFences removes leading/trailing markdown code fences that LLMs
// sometimes wrap around JSON output (e.g., "```json\n...\n```").
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// invalidJSONEscapeRe matches a backslash followed by any character that is not
// a valid JSON string escape character ("\/bfnrtu).
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

// buildRepairPrompt includes the original prompt and the previous invalid
// response so the LLM has full context.
func buildRepairPrompt(originalPrompt, previousResponse string, errs []ValidationError) string {
	var sb strings.Builder
	sb.WriteString(originalPrompt)
	sb.WriteString("\n\nYour previous response was:\n")
	sb.WriteString(previousResponse)
	sb.WriteString("\n\nThat response was invalid. Errors:\n")
	for _, e := range errs {
		fmt.Fprintf(&sb, "  - %s\n", e.Error())
	}
	sb.WriteString("\nPlease output only the corrected JSON. Do not repeat the error.")
	return sb.String()
}
