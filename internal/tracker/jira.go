package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/dshills/steve/internal/retry"
	"github.com/dshills/steve/internal/schema"
)

// Field names looked up in /rest/api/2/field when no ID is configured.
const (
	ScoreFieldName    = "Steve Alignment Score"
	CategoryFieldName = "Steve Category"
)

// DefaultPageSize is the maxResults sent with each search page.
const DefaultPageSize = 100

// ErrNotConfigured is returned when the Jira URL or credentials are missing.
var ErrNotConfigured = errors.New("tracker: jira url, email and api token are required")

var jiraHTTPClient = &http.Client{Timeout: 30 * time.Second}

// FieldMap holds the custom field IDs used when reading and writing tickets.
// An empty Score or Category disables that write.
type FieldMap struct {
	StoryPoints string `yaml:"story_points"`
	EpicLink    string `yaml:"epic_link"`
	Sprint      string `yaml:"sprint"`
	Score       string `yaml:"score"`
	Category    string `yaml:"category"`
}

// DefaultFieldMap returns the IDs Jira Cloud commonly assigns to story points,
// epic link and sprint.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		StoryPoints: "customfield_10016",
		EpicLink:    "customfield_10014",
		Sprint:      "customfield_10020",
	}
}

// JiraConfig configures a Jira client.
type JiraConfig struct {
	BaseURL  string
	Email    string
	APIToken string
	PageSize int
	// Fields overrides DefaultFieldMap entry by entry. Score and Category are
	// looked up by name when left empty.
	Fields     FieldMap
	Retry      retry.Policy
	HTTPClient *http.Client
}

// Jira talks to the Jira REST v2 API.
type Jira struct {
	base     string
	email    string
	token    string
	pageSize int
	fields   FieldMap
	retry    retry.Policy
	client   *http.Client
	log      *zap.Logger
}

// NewJira validates cfg and resolves the custom field IDs once.
func NewJira(ctx context.Context, cfg JiraConfig, log *zap.Logger) (*Jira, error) {
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.APIToken == "" {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = zap.NewNop()
	}
	j := &Jira{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		email:    cfg.Email,
		token:    cfg.APIToken,
		pageSize: cfg.PageSize,
		fields:   mergeFields(DefaultFieldMap(), cfg.Fields),
		retry:    cfg.Retry,
		client:   cfg.HTTPClient,
		log:      log,
	}
	if j.pageSize <= 0 {
		j.pageSize = DefaultPageSize
	}
	if j.retry.Attempts == 0 {
		j.retry = retry.Default()
	}
	j.retry.Retriable = retriable
	j.retry.OnRetry = func(err error, wait time.Duration) {
		log.Warn("jira request failed; retrying", zap.Duration("wait", wait), zap.Error(err))
	}
	if j.client == nil {
		j.client = jiraHTTPClient
	}

	if j.fields.Score == "" || j.fields.Category == "" {
		if err := j.resolveFields(ctx); err != nil {
			return nil, &SourceError{Op: "resolve fields", Err: err}
		}
	}
	log.Debug("jira fields resolved",
		zap.String("score", j.fields.Score), zap.String("category", j.fields.Category),
		zap.String("sprint", j.fields.Sprint))
	return j, nil
}

func mergeFields(base, override FieldMap) FieldMap {
	if override.StoryPoints != "" {
		base.StoryPoints = override.StoryPoints
	}
	if override.EpicLink != "" {
		base.EpicLink = override.EpicLink
	}
	if override.Sprint != "" {
		base.Sprint = override.Sprint
	}
	base.Score = override.Score
	base.Category = override.Category
	return base
}

// Fields returns the resolved field map.
func (j *Jira) Fields() FieldMap { return j.fields }

func (j *Jira) resolveFields(ctx context.Context) error {
	body, err := j.do(ctx, http.MethodGet, "/rest/api/2/field", nil)
	if err != nil {
		return err
	}
	gjson.ParseBytes(body).ForEach(func(_, f gjson.Result) bool {
		switch f.Get("name").String() {
		case ScoreFieldName:
			if j.fields.Score == "" {
				j.fields.Score = f.Get("id").String()
			}
		case CategoryFieldName:
			if j.fields.Category == "" {
				j.fields.Category = f.Get("id").String()
			}
		}
		return true
	})
	return nil
}

// Fetch pages through /rest/api/2/search until the result set or
// q.MaxResults is exhausted.
func (j *Jira) Fetch(ctx context.Context, q Query) ([]schema.Ticket, error) {
	fieldList := strings.Join([]string{
		"summary", "description", "status", "priority", "assignee", "labels", "created", "updated",
		j.fields.StoryPoints, j.fields.EpicLink, j.fields.Sprint,
	}, ",")

	var tickets []schema.Ticket
	startAt := 0
	for {
		size := j.pageSize
		if q.MaxResults > 0 && q.MaxResults-len(tickets) < size {
			size = q.MaxResults - len(tickets)
		}
		v := url.Values{}
		v.Set("jql", q.JQL)
		v.Set("startAt", strconv.Itoa(startAt))
		v.Set("maxResults", strconv.Itoa(size))
		v.Set("fields", fieldList)

		body, err := j.do(ctx, http.MethodGet, "/rest/api/2/search?"+v.Encode(), nil)
		if err != nil {
			return nil, &SourceError{Op: "search", Err: err}
		}
		page := gjson.ParseBytes(body)
		issues := page.Get("issues").Array()
		for _, issue := range issues {
			tickets = append(tickets, j.parseIssue(issue))
		}
		j.log.Debug("jira page fetched", zap.Int("start_at", startAt), zap.Int("count", len(issues)))

		startAt += len(issues)
		if len(issues) < size || int64(startAt) >= page.Get("total").Int() {
			break
		}
		if q.MaxResults > 0 && len(tickets) >= q.MaxResults {
			break
		}
	}
	j.log.Info("tickets fetched", zap.Int("count", len(tickets)))
	return tickets, nil
}

func (j *Jira) parseIssue(issue gjson.Result) schema.Ticket {
	f := issue.Get("fields")
	t := schema.Ticket{
		Key:         issue.Get("key").String(),
		Summary:     f.Get("summary").String(),
		Description: f.Get("description").String(),
		Status:      f.Get("status.name").String(),
		Priority:    f.Get("priority.name").String(),
		Assignee:    f.Get("assignee.displayName").String(),
		EpicLink:    f.Get(j.fields.EpicLink).String(),
		Sprint:      sprintName(f.Get(j.fields.Sprint)),
		Created:     parseTime(f.Get("created").String()),
		Updated:     parseTime(f.Get("updated").String()),
	}
	if t.Priority == "" {
		t.Priority = "Medium"
	}
	for _, l := range f.Get("labels").Array() {
		t.Labels = append(t.Labels, l.String())
	}
	if sp := f.Get(j.fields.StoryPoints); sp.Type == gjson.Number {
		v := sp.Float()
		t.StoryPoints = &v
	}
	return t
}

// sprintName reads the first sprint from either the Cloud object form or the
// Server "com.atlassian...[id=1,name=Sprint 4,...]" string form.
func sprintName(v gjson.Result) string {
	if !v.Exists() || !v.IsArray() {
		return ""
	}
	first := v.Get("0")
	if name := first.Get("name"); name.Exists() {
		return name.String()
	}
	s := first.String()
	_, after, ok := strings.Cut(s, "name=")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(after, ",")
	return name
}

func parseTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000-0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// AddComment posts body as a new comment on key.
func (j *Jira) AddComment(ctx context.Context, key, body string) error {
	payload, err := sjson.SetBytes([]byte(`{}`), "body", body)
	if err != nil {
		return err
	}
	_, err = j.do(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/comment", payload)
	return err
}

// AddLabel appends label to key's labels.
func (j *Jira) AddLabel(ctx context.Context, key, label string) error {
	payload, err := sjson.SetBytes([]byte(`{}`), "update.labels.0.add", label)
	if err != nil {
		return err
	}
	_, err = j.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), payload)
	return err
}

// UpdateAlignment writes the score and category custom fields. Fields that
// were not found at construction are skipped.
func (j *Jira) UpdateAlignment(ctx context.Context, key string, score float64, category schema.Category) error {
	payload := []byte(`{}`)
	var err error
	if j.fields.Score != "" {
		if payload, err = sjson.SetBytes(payload, "fields."+j.fields.Score, score); err != nil {
			return err
		}
	}
	if j.fields.Category != "" {
		if payload, err = sjson.SetBytes(payload, "fields."+j.fields.Category, category.Title()); err != nil {
			return err
		}
	}
	if !gjson.GetBytes(payload, "fields").Exists() {
		j.log.Debug("no alignment fields configured; skipping", zap.String("ticket", key))
		return nil
	}
	_, err = j.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), payload)
	return err
}

func (j *Jira) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var out []byte
	err := retry.Do(ctx, j.retry, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, j.base+path, body)
		if err != nil {
			return retry.Permanent(err)
		}
		req.SetBasicAuth(j.email, j.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := j.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{Code: resp.StatusCode, Body: truncate(string(b), 200)}
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, strings.SplitN(path, "?", 2)[0], err)
	}
	return out, nil
}

// retriable treats client errors as final, except rate limiting.
func retriable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
