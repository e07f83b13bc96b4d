// Package export delivers a finished run report: files on disk, a Google Doc,
// and the executive summary to a Slack webhook.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dshills/steve/internal/render"
	"github.com/dshills/steve/internal/schema"
)

// Export targets recorded in schema.ExportRecord.Target.
const (
	TargetMarkdown   = "markdown"
	TargetJSON       = "json"
	TargetGoogleDocs = "google_docs"
	TargetSlack      = "slack"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName returns steve_{project}_{mode}_{YYYYMMDD_HHMMSS}.{ext}.
func FileName(project string, mode schema.ReviewMode, at time.Time, ext string) string {
	p := unsafeName.ReplaceAllString(project, "-")
	if p == "" {
		p = "project"
	}
	return fmt.Sprintf("steve_%s_%s_%s.%s", p, mode, at.Format("20060102_150405"), ext)
}

// WriteFiles writes the markdown report, and the JSON report when withJSON
// is set, into dir. The returned records describe the files written.
func WriteFiles(dir string, r *schema.Report, withJSON bool) ([]schema.ExportRecord, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}

	var records []schema.ExportRecord
	md := filepath.Join(dir, FileName(r.Project, r.Mode, r.GeneratedAt, "md"))
	if err := os.WriteFile(md, []byte(render.RenderMarkdown(r)), 0o644); err != nil {
		return records, fmt.Errorf("export: write %s: %w", md, err)
	}
	records = append(records, schema.ExportRecord{Target: TargetMarkdown, Path: md})

	if withJSON {
		b, err := render.RenderJSON(r)
		if err != nil {
			return records, fmt.Errorf("export: %w", err)
		}
		js := filepath.Join(dir, FileName(r.Project, r.Mode, r.GeneratedAt, "json"))
		if err := os.WriteFile(js, append(b, '\n'), 0o644); err != nil {
			return records, fmt.Errorf("export: write %s: %w", js, err)
		}
		records = append(records, schema.ExportRecord{Target: TargetJSON, Path: js})
	}
	return records, nil
}
