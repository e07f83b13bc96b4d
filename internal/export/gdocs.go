package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"github.com/dshills/steve/internal/retry"
)

// Publisher creates a document and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, title, body string) (string, error)
}

// GoogleDocs publishes reports as Google Docs.
type GoogleDocs struct {
	svc   *docs.Service
	retry retry.Policy
	log   *zap.Logger
}

// NewGoogleDocs builds a client from a service-account credentials file, or
// from opts alone when credentialsFile is empty.
func NewGoogleDocs(ctx context.Context, credentialsFile string, pol retry.Policy, log *zap.Logger, opts ...option.ClientOption) (*GoogleDocs, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else if len(opts) == 0 {
		return nil, errors.New("export: google docs needs a credentials file")
	}
	svc, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("export: google docs client: %w", err)
	}
	return &GoogleDocs{svc: svc, retry: pol, log: log}, nil
}

// DocURL returns the edit URL for a document ID.
func DocURL(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}

// Publish creates a document titled title containing body converted to plain
// text and returns its edit URL.
func (g *GoogleDocs) Publish(ctx context.Context, title, body string) (string, error) {
	var doc *docs.Document
	err := retry.Do(ctx, g.retry, func() error {
		var err error
		doc, err = g.svc.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("export: create document: %w", err)
	}

	text := PlainText(body)
	if strings.TrimSpace(text) != "" {
		req := &docs.BatchUpdateDocumentRequest{Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{Location: &docs.Location{Index: 1}, Text: text},
		}}}
		err = retry.Do(ctx, g.retry, func() error {
			_, err := g.svc.Documents.BatchUpdate(doc.DocumentId, req).Context(ctx).Do()
			return err
		})
		if err != nil {
			return "", fmt.Errorf("export: insert content into %s: %w", doc.DocumentId, err)
		}
	}
	url := DocURL(doc.DocumentId)
	g.log.Info("report published", zap.String("url", url))
	return url, nil
}

// PlainText strips the markdown markers Google Docs would show literally.
func PlainText(md string) string {
	lines := strings.Split(md, "\n")
	out := lines[:0]
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "<details>"), strings.HasPrefix(l, "</details>"):
			continue
		case strings.HasPrefix(l, "<summary>"):
			l = strings.NewReplacer("<summary>", "", "</summary>", "", "<strong>", "", "</strong>", "").Replace(l)
		case strings.HasPrefix(l, "|---"):
			continue
		}
		l = strings.TrimLeft(l, "#")
		l = strings.TrimSpace(strings.ReplaceAll(l, "**", ""))
		l = strings.TrimSuffix(l, "  ")
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
