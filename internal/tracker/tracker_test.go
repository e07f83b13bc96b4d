package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/steve/internal/schema"
)

func TestTestTickets(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	got := TestTickets(now)
	require.Len(t, got, 5)
	keys := []string{}
	for _, tk := range got {
		keys = append(keys, tk.Key)
		assert.Equal(t, now, tk.Created)
		assert.NotEmpty(t, tk.Summary)
	}
	assert.Equal(t, []string{"TEST-1", "TEST-2", "TEST-3", "TEST-4", "TEST-5"}, keys)
}

func TestSynthetic_Fetch(t *testing.T) {
	s := NewSynthetic(nil)
	got, err := s.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = s.Fetch(context.Background(), Query{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Fetch(ctx, Query{})
	var se *SourceError
	assert.ErrorAs(t, err, &se)
}

func TestWriteBack_AllWrites(t *testing.T) {
	s := NewSynthetic([]schema.Ticket{})
	r := schema.AlignmentResult{TicketKey: "T-1", AlignmentScore: 85, Category: schema.CategoryCoreValue}

	errs := WriteBack(context.Background(), s, DefaultWriteBackOptions(), r, "nice work")
	assert.Empty(t, errs)
	assert.Equal(t, []string{"nice work"}, s.Comments("T-1"))
	assert.Equal(t, []string{"steve-core-value"}, s.Labels("T-1"))
	a, ok := s.Alignment("T-1")
	require.True(t, ok)
	assert.Equal(t, Alignment{Score: 85, Category: schema.CategoryCoreValue}, a)
}

func TestWriteBack_Disabled(t *testing.T) {
	s := NewSynthetic([]schema.Ticket{})
	r := schema.AlignmentResult{TicketKey: "T-1", AlignmentScore: 10, Category: schema.CategoryDistraction}
	errs := WriteBack(context.Background(), s, WriteBackOptions{}, r, "ignored")
	assert.Empty(t, errs)
	assert.Empty(t, s.Comments("T-1"))
	assert.Empty(t, s.Labels("T-1"))
}

func TestWriteBack_IsolatesFailures(t *testing.T) {
	s := NewSynthetic([]schema.Ticket{})
	boom := errors.New("403 forbidden")
	s.Fail = func(key, op string) error {
		if op == OpComment {
			return boom
		}
		return nil
	}
	r := schema.AlignmentResult{TicketKey: "T-2", AlignmentScore: 45, Category: schema.CategoryDrift}

	errs := WriteBack(context.Background(), s, DefaultWriteBackOptions(), r, "body")
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	// Later writes still happen.
	assert.Equal(t, []string{"steve-drift"}, s.Labels("T-2"))

	got := Failures("T-2", errs)
	assert.Equal(t, []schema.WriteBackFailure{{TicketKey: "T-2", Operation: OpComment, Error: "403 forbidden"}}, got)
}

func TestFailures_PlainError(t *testing.T) {
	got := Failures("T-3", []error{errors.New("x")})
	assert.Equal(t, []schema.WriteBackFailure{{TicketKey: "T-3", Error: "x"}}, got)
}

func TestDryRun(t *testing.T) {
	inner := NewSynthetic(nil)
	d := NewDryRun(inner, nil)
	ctx := context.Background()

	got, err := d.Fetch(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	r := schema.AlignmentResult{TicketKey: "TEST-1", AlignmentScore: 30, Category: schema.CategoryDistraction}
	assert.Empty(t, WriteBack(ctx, d, DefaultWriteBackOptions(), r, "comment"))
	assert.Empty(t, inner.Comments("TEST-1"))
	assert.Empty(t, inner.Labels("TEST-1"))
	_, ok := inner.Alignment("TEST-1")
	assert.False(t, ok)
}
