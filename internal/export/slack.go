package export

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/dshills/steve/internal/retry"
)

// Notifier delivers a short message to a channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// SlackWebhook posts to an incoming webhook.
type SlackWebhook struct {
	URL   string
	Retry retry.Policy
}

func (s *SlackWebhook) Notify(ctx context.Context, text string) error {
	msg := &slack.WebhookMessage{Text: text}
	if err := retry.Do(ctx, s.Retry, func() error {
		return slack.PostWebhookContext(ctx, s.URL, msg)
	}); err != nil {
		return fmt.Errorf("export: slack webhook: %w", err)
	}
	return nil
}
