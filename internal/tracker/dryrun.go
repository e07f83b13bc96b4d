package tracker

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/steve/internal/schema"
)

// DryRun reads through to Source and logs writes instead of performing them.
type DryRun struct {
	Source Source
	Log    *zap.Logger
}

// NewDryRun wraps src.
func NewDryRun(src Source, log *zap.Logger) *DryRun {
	if log == nil {
		log = zap.NewNop()
	}
	return &DryRun{Source: src, Log: log}
}

func (d *DryRun) Fetch(ctx context.Context, q Query) ([]schema.Ticket, error) {
	return d.Source.Fetch(ctx, q)
}

func (d *DryRun) AddComment(_ context.Context, key, body string) error {
	d.Log.Info("[dry run] would comment", zap.String("ticket", key), zap.Int("chars", len(body)))
	return nil
}

func (d *DryRun) AddLabel(_ context.Context, key, label string) error {
	d.Log.Info("[dry run] would label", zap.String("ticket", key), zap.String("label", label))
	return nil
}

func (d *DryRun) UpdateAlignment(_ context.Context, key string, score float64, category schema.Category) error {
	d.Log.Info("[dry run] would update fields", zap.String("ticket", key),
		zap.Float64("score", score), zap.String("category", string(category)))
	return nil
}
