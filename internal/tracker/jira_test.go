package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/steve/internal/retry"
	"github.com/dshills/steve/internal/schema"
)

type fakeJira struct {
	t      *testing.T
	issues []map[string]any
	fields string

	mu       sync.Mutex
	writes   []string // "METHOD path body"
	failures map[string]int
}

func (f *fakeJira) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/field", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.Equal(f.t, "me@example.com", user)
		assert.Equal(f.t, "secret", pass)
		fmt.Fprint(w, f.fields)
	})
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		if f.fail("search") {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		size, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		end := min(start+size, len(f.issues))
		page := []map[string]any{}
		if start < end {
			page = f.issues[start:end]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"startAt": start, "total": len(f.issues), "issues": page})
	})
	mux.HandleFunc("/rest/api/2/issue/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, r.Method+" "+r.URL.Path+" "+string(body))
		f.mu.Unlock()
		if f.fail(r.URL.Path) {
			http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (f *fakeJira) fail(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[key] > 0 {
		f.failures[key]--
		return true
	}
	return false
}

func issue(n int) map[string]any {
	return map[string]any{
		"key": fmt.Sprintf("PROJ-%d", n),
		"fields": map[string]any{
			"summary":           fmt.Sprintf("Ticket %d", n),
			"description":       nil,
			"status":            map[string]any{"name": "To Do"},
			"labels":            []string{"api"},
			"created":           "2026-03-01T10:00:00.000+0000",
			"customfield_10016": 3,
			"customfield_10020": []any{"com.atlassian.greenhopper.service.sprint.Sprint@1[id=7,name=Sprint 12,state=ACTIVE]"},
		},
	}
}

const allFields = `[{"id":"summary","name":"Summary"},{"id":"customfield_10100","name":"Steve Alignment Score"},{"id":"customfield_10101","name":"Steve Category"}]`

func newFake(t *testing.T, f *fakeJira) (*Jira, *fakeJira) {
	t.Helper()
	f.t = t
	if f.failures == nil {
		f.failures = map[string]int{}
	}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	j, err := NewJira(context.Background(), JiraConfig{
		BaseURL:  srv.URL + "/",
		Email:    "me@example.com",
		APIToken: "secret",
		PageSize: 2,
		Retry:    retry.Policy{Attempts: 3, BaseDelay: time.Millisecond},
	}, nil)
	require.NoError(t, err)
	return j, f
}

func TestNewJira_RequiresCredentials(t *testing.T) {
	_, err := NewJira(context.Background(), JiraConfig{BaseURL: "https://x.atlassian.net"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewJira_ResolvesFields(t *testing.T) {
	j, _ := newFake(t, &fakeJira{fields: allFields})
	got := j.Fields()
	assert.Equal(t, "customfield_10100", got.Score)
	assert.Equal(t, "customfield_10101", got.Category)
	assert.Equal(t, "customfield_10020", got.Sprint)
}

func TestJira_FetchPages(t *testing.T) {
	var issues []map[string]any
	for i := 1; i <= 5; i++ {
		issues = append(issues, issue(i))
	}
	j, _ := newFake(t, &fakeJira{fields: allFields, issues: issues})

	got, err := j.Fetch(context.Background(), Query{JQL: "project = PROJ"})
	require.NoError(t, err)
	require.Len(t, got, 5)

	first := got[0]
	assert.Equal(t, "PROJ-1", first.Key)
	assert.Equal(t, "", first.Description)
	assert.Equal(t, "Medium", first.Priority)
	assert.Equal(t, "Sprint 12", first.Sprint)
	assert.Equal(t, []string{"api"}, first.Labels)
	require.NotNil(t, first.StoryPoints)
	assert.Equal(t, 3.0, *first.StoryPoints)
	assert.Equal(t, 2026, first.Created.Year())
}

func TestJira_FetchMaxResults(t *testing.T) {
	var issues []map[string]any
	for i := 1; i <= 5; i++ {
		issues = append(issues, issue(i))
	}
	j, _ := newFake(t, &fakeJira{fields: allFields, issues: issues})
	got, err := j.Fetch(context.Background(), Query{JQL: "x", MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestJira_FetchRetriesServerErrors(t *testing.T) {
	j, _ := newFake(t, &fakeJira{fields: allFields, issues: []map[string]any{issue(1)}, failures: map[string]int{"search": 2}})
	got, err := j.Fetch(context.Background(), Query{JQL: "x"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJira_FetchGivesUp(t *testing.T) {
	j, _ := newFake(t, &fakeJira{fields: allFields, failures: map[string]int{"search": 5}})
	_, err := j.Fetch(context.Background(), Query{JQL: "x"})
	var se *SourceError
	require.ErrorAs(t, err, &se)
	var st *StatusError
	require.ErrorAs(t, err, &st)
	assert.Equal(t, http.StatusServiceUnavailable, st.Code)
}

func TestJira_Writes(t *testing.T) {
	j, f := newFake(t, &fakeJira{fields: allFields})
	ctx := context.Background()
	require.NoError(t, j.AddComment(ctx, "PROJ-1", "hello \"world\""))
	require.NoError(t, j.AddLabel(ctx, "PROJ-1", "steve-drift"))
	require.NoError(t, j.UpdateAlignment(ctx, "PROJ-1", 45, schema.CategoryDrift))

	require.Len(t, f.writes, 3)
	assert.Contains(t, f.writes[0], "POST /rest/api/2/issue/PROJ-1/comment")
	assert.Equal(t, `hello "world"`, gjson.Get(payloadOf(f.writes[0]), "body").String())
	assert.Equal(t, "steve-drift", gjson.Get(payloadOf(f.writes[1]), "update.labels.0.add").String())
	assert.Equal(t, 45.0, gjson.Get(payloadOf(f.writes[2]), "fields.customfield_10100").Float())
	assert.Equal(t, "Drift", gjson.Get(payloadOf(f.writes[2]), "fields.customfield_10101").String())
}

func TestJira_UpdateAlignmentSkipsMissingFields(t *testing.T) {
	j, f := newFake(t, &fakeJira{fields: `[]`})
	require.NoError(t, j.UpdateAlignment(context.Background(), "PROJ-1", 45, schema.CategoryDrift))
	assert.Empty(t, f.writes)
}

func TestJira_ClientErrorsAreNotRetried(t *testing.T) {
	j, f := newFake(t, &fakeJira{fields: allFields, failures: map[string]int{"/rest/api/2/issue/PROJ-9/comment": 3}})
	err := j.AddComment(context.Background(), "PROJ-9", "x")
	var st *StatusError
	require.ErrorAs(t, err, &st)
	assert.Equal(t, http.StatusNotFound, st.Code)
	assert.Len(t, f.writes, 1)
}

func payloadOf(write string) string {
	for i := 0; i < len(write); i++ {
		if write[i] == '{' {
			return write[i:]
		}
	}
	return ""
}

func TestSprintName(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: `[{"id":1,"name":"Cloud Sprint"}]`, want: "Cloud Sprint"},
		{in: `["x.Sprint@1[id=1,name=Server Sprint,state=ACTIVE]"]`, want: "Server Sprint"},
		{in: `[]`},
		{in: `null`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sprintName(gjson.Parse(c.in)), c.in)
	}
}

func TestRetriable(t *testing.T) {
	assert.True(t, retriable(&StatusError{Code: 429}))
	assert.True(t, retriable(&StatusError{Code: 502}))
	assert.False(t, retriable(&StatusError{Code: 400}))
	assert.False(t, retriable(context.Canceled))
	assert.True(t, retriable(io.ErrUnexpectedEOF))
}
