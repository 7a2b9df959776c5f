package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semprofile/assemble"
	"github.com/c360studio/semprofile/hydrate"
	"github.com/c360studio/semprofile/profile"
	"github.com/c360studio/semprofile/validate"
)

const countryProfile = `
id: town
labels:
  - {language: en, source: name}
statements:
  - property: P17
    datatype: wikibase-item
    source: country
    max_count: 1
    behavior: {references: hidden}
    allowed_items:
      id: countries
      query: "SELECT ?item ?itemLabel WHERE { ?item wdt:P31 wd:Q6256 }"
      fallback_items: [Q142]
`

type countingQuerier struct {
	calls atomic.Int32
}

func (q *countingQuerier) Query(context.Context, string) ([]hydrate.Candidate, error) {
	q.calls.Add(1)
	return []hydrate.Candidate{{ID: "Q142", Label: "France"}, {ID: "Q183", Label: "Germany"}}, nil
}

func newSession(t *testing.T, q hydrate.Querier) *Session {
	t.Helper()
	p, err := profile.Parse([]byte(countryProfile))
	require.NoError(t, err)
	cfg := hydrate.Config{Timeout: time.Second, MaxAttempts: 1}
	return New(p, q, cfg, WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }))
}

func TestSession_HydrateAllAndProcess(t *testing.T) {
	q := &countingQuerier{}
	s := newSession(t, q)
	s.HydrateAll(context.Background())

	snap := s.Cache().Lookup("countries")
	require.True(t, snap.Fresh)
	assert.Equal(t, int32(1), q.calls.Load())

	r := s.Process(assemble.Record{"name": "Aachen", "country": "Germany"})
	require.NoError(t, r.Err)
	require.Len(t, r.Entity.Statements, 1)
	assert.Equal(t, "Q183", r.Entity.Statements[0].Value.String())
	assert.False(t, r.Issues.Blocking())
}

func TestSession_Isolation(t *testing.T) {
	a := newSession(t, &countingQuerier{})
	b := newSession(t, nil)
	assert.NotEqual(t, a.ID, b.ID)

	a.HydrateAll(context.Background())
	assert.True(t, a.Cache().Lookup("countries").Fresh)
	assert.False(t, b.Cache().Lookup("countries").Found)

	// Without a querier the second session only knows the fallback item.
	r := b.Process(assemble.Record{"name": "Aachen", "country": "Q183"})
	require.NoError(t, r.Err)
	assert.True(t, r.Issues.Blocking())
}

func TestProcessBatch(t *testing.T) {
	s := newSession(t, &countingQuerier{})
	s.HydrateAll(context.Background())

	recs := []assemble.Record{
		{"name": "Lyon", "country": "Q142"},
		{"name": "Basel", "country": []any{"Q142", "Q183"}},
		{"name": "Bonn", "country": "Q183"},
	}
	results, err := s.ProcessBatch(context.Background(), recs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "Lyon", results[0].Entity.Labels["en"])
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "Bonn", results[2].Entity.Labels["en"])

	var cerr *assemble.CardinalityError
	require.ErrorAs(t, results[1].Err, &cerr)
	assert.Equal(t, 2, cerr.Count)
	assert.Nil(t, results[1].Entity)
	require.NotEmpty(t, results[1].Issues)
	assert.Equal(t, validate.WhyMaxCount, results[1].Issues[0].Why)
}

func TestProcessBatch_Cancelled(t *testing.T) {
	s := newSession(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ProcessBatch(ctx, []assemble.Record{{"name": "x"}}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
