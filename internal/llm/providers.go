package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	openai "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	googleoption "google.golang.org/api/option"
)

// ErrMissingAPIKey is wrapped when a provider's key variable is unset.
var ErrMissingAPIKey = errors.New("llm: api key not set")

// keyVars names the environment variable each provider reads its key from.
var keyVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(providerName string) string {
	switch normalize(providerName) {
	case "openai":
		return "gpt-4o-mini"
	case "google":
		return "gemini-1.5-flash"
	default:
		return "claude-3-5-haiku-latest"
	}
}

func normalize(providerName string) string {
	p := strings.ToLower(strings.TrimSpace(providerName))
	if p == "" {
		return "anthropic"
	}
	return p
}

func apiKey(providerName string) (string, error) {
	v := keyVars[providerName]
	key := os.Getenv(v)
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingAPIKey, v)
	}
	return key, nil
}

func defaultNewProvider(providerName, model string) (Provider, error) {
	name := normalize(providerName)
	if _, ok := keyVars[name]; !ok {
		return nil, fmt.Errorf("llm: unknown provider %q", providerName)
	}
	key, err := apiKey(name)
	if err != nil {
		return nil, err
	}
	switch name {
	case "openai":
		return &openaiProvider{client: openai.NewClient(openaioption.WithAPIKey(key)), model: model}, nil
	case "google":
		return &googleProvider{key: key, model: model}, nil
	default:
		return &anthropicProvider{client: anthropic.NewClient(anthropicoption.WithAPIKey(key)), model: model}, nil
	}
}

// errEmpty is returned by a provider whose response carried no text.
func errEmpty(provider string) error {
	return fmt.Errorf("llm: %s: empty response", provider)
}

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func (p *anthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: anthropic: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errEmpty("anthropic")
	}
	return sb.String(), nil
}

type openaiProvider struct {
	client openai.Client
	model  string
}

func (p *openaiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errEmpty("openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// googleProvider opens a client per call so the caller's context owns the
// connection.
type googleProvider struct {
	key   string
	model string
}

func (p *googleProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(p.key))
	if err != nil {
		return "", fmt.Errorf("llm: google: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	m.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	m.SetMaxOutputTokens(int32(maxTokens))
	m.SetTemperature(float32(temperature))

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("llm: google: %w", err)
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	if sb.Len() == 0 {
		return "", errEmpty("google")
	}
	return sb.String(), nil
}
