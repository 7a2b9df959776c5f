package hydrate

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semprofile/profile"
)

type fakeQuerier struct {
	calls   atomic.Int32
	release chan struct{}
	result  []Candidate
	err     error
	// failFirst makes the first n calls fail with err.
	failFirst int32
}

func (f *fakeQuerier) Query(ctx context.Context, _ string) ([]Candidate, error) {
	n := f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failFirst > 0 && n <= f.failFirst {
		return nil, f.err
	}
	if f.failFirst == 0 && f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// blockingQuerier never answers before its context expires.
type blockingQuerier struct {
	calls atomic.Int32
}

func (b *blockingQuerier) Query(ctx context.Context, _ string) ([]Candidate, error) {
	b.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func occupations() *profile.AllowedItemList {
	return &profile.AllowedItemList{
		ID:            "occupations",
		Query:         "SELECT ?item WHERE { ?item wdt:P31 wd:Q28640 }",
		FallbackItems: []string{"Q82955", "Q1622272"},
	}
}

func fastConfig() Config {
	return Config{Timeout: 20 * time.Millisecond, MaxAttempts: 2, BackoffBase: time.Millisecond, BackoffMultiplier: 2}
}

func ids(s Snapshot) []string {
	var out []string
	for c := range s.Items() {
		out = append(out, c.ID)
	}
	return out
}

func TestHydrate_Fresh(t *testing.T) {
	q := &fakeQuerier{result: []Candidate{{ID: "Q1028181", Label: "painter"}, {ID: "Q36180", Label: "writer"}}}
	h := New(q, NewCache(), fastConfig())

	s := h.Hydrate(context.Background(), occupations())
	assert.True(t, s.Found)
	assert.True(t, s.Fresh)
	assert.False(t, s.Stale())
	assert.Nil(t, s.Failure)
	assert.Equal(t, []string{"Q1028181", "Q36180"}, ids(s))

	cached := h.Cache().Lookup("occupations")
	assert.True(t, cached.Fresh)
	assert.Equal(t, 2, cached.Len())
	c, ok := cached.MatchLabel("PAINTER")
	require.True(t, ok)
	assert.Equal(t, "Q1028181", c.ID)
}

func TestHydrate_TimeoutFallsBackToLiteralItems(t *testing.T) {
	q := &blockingQuerier{}
	reg := prometheus.NewRegistry()
	h := New(q, NewCache(), fastConfig(), WithMetrics(NewMetrics(reg)))

	s := h.Hydrate(context.Background(), occupations())
	assert.Equal(t, []string{"Q82955", "Q1622272"}, ids(s))
	assert.True(t, s.Stale())
	require.NotNil(t, s.Failure)
	assert.Equal(t, 2, s.Failure.Attempts)
	assert.ErrorIs(t, s.Failure, context.DeadlineExceeded)
	assert.Equal(t, int32(2), q.calls.Load())

	cached := h.Cache().Lookup("occupations")
	assert.False(t, cached.Fresh)
	assert.Equal(t, []string{"Q82955", "Q1622272"}, ids(cached))
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.hydrations.WithLabelValues(OutcomeFallback)), 0)
}

func TestHydrate_RetriesBeforeFallback(t *testing.T) {
	q := &fakeQuerier{err: errors.New("503"), failFirst: 1, result: []Candidate{{ID: "Q5"}}}
	h := New(q, NewCache(), fastConfig())

	s := h.Hydrate(context.Background(), occupations())
	assert.True(t, s.Fresh)
	assert.Equal(t, []string{"Q5"}, ids(s))
	assert.Equal(t, int32(2), q.calls.Load())
}

func TestHydrate_EmptyResultIsAFailure(t *testing.T) {
	q := &fakeQuerier{result: nil}
	h := New(q, NewCache(), fastConfig())

	s := h.Hydrate(context.Background(), occupations())
	assert.True(t, s.Stale())
	assert.ErrorIs(t, s.Failure, errNoCandidates)
}

func TestHydrate_NoQuerier(t *testing.T) {
	h := New(nil, nil, fastConfig())
	s := h.Hydrate(context.Background(), occupations())
	assert.True(t, s.Stale())
	assert.Equal(t, 0, s.Failure.Attempts)
}

func TestHydrate_SingleFlight(t *testing.T) {
	q := &fakeQuerier{release: make(chan struct{}), result: []Candidate{{ID: "Q5"}}}
	h := New(q, NewCache(), Config{Timeout: time.Second, MaxAttempts: 1})
	list := occupations()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Snapshot, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.Hydrate(context.Background(), list)
		}()
	}

	require.Eventually(t, func() bool { return q.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(q.release)
	wg.Wait()

	assert.Equal(t, int32(1), q.calls.Load())
	for _, r := range results {
		assert.True(t, r.Fresh)
		assert.Equal(t, []string{"Q5"}, ids(r))
	}
}

func TestHydrate_CallerCancellationDoesNotWait(t *testing.T) {
	q := &fakeQuerier{release: make(chan struct{}), result: []Candidate{{ID: "Q5"}}}
	h := New(q, NewCache(), Config{Timeout: time.Second, MaxAttempts: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := h.Hydrate(ctx, occupations())
	assert.True(t, s.Stale(), "cancelled caller gets fallback items")
	assert.Equal(t, []string{"Q82955", "Q1622272"}, ids(s))

	close(q.release)
	require.Eventually(t, func() bool { return h.Cache().Lookup("occupations").Fresh }, time.Second, time.Millisecond)
}

func TestHydrate_LiteralList(t *testing.T) {
	h := New(nil, NewCache(), fastConfig())
	list := &profile.AllowedItemList{ID: "genders", Items: []string{"Q6581097", "Q6581072"}}

	before := h.Lookup(list)
	assert.True(t, before.Fresh)
	assert.Equal(t, []string{"Q6581097", "Q6581072"}, ids(before))

	s := h.Hydrate(context.Background(), list)
	assert.True(t, s.Fresh)
	assert.True(t, s.Contains("Q6581072"))
}

func TestHydrateAll(t *testing.T) {
	q := &fakeQuerier{result: []Candidate{{ID: "Q5"}}}
	h := New(q, NewCache(), fastConfig())
	lists := []*profile.AllowedItemList{
		occupations(),
		{ID: "genders", Items: []string{"Q6581097"}},
	}
	h.HydrateAll(context.Background(), lists)
	assert.Equal(t, []string{"genders", "occupations"}, h.Cache().IDs())
}

func TestLookup_Unhydrated(t *testing.T) {
	c := NewCache()
	s := c.Lookup("missing")
	assert.False(t, s.Found)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, slices.Collect(s.Items()))

	h := New(nil, c, fastConfig())
	fallback := h.Lookup(occupations())
	assert.True(t, fallback.Stale())
	assert.Equal(t, 2, fallback.Len())
}

func TestSnapshot_ItemsIsRestartable(t *testing.T) {
	e := Entry{ListID: "x", Candidates: []Candidate{{ID: "Q1"}, {ID: "Q2"}, {ID: "Q3"}}, Fresh: true}
	s := newSnapshot(&e)
	seq := s.Items()

	var first []string
	for c := range seq {
		first = append(first, c.ID)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"Q1", "Q2"}, first)
	assert.Equal(t, []Candidate{{ID: "Q1"}, {ID: "Q2"}, {ID: "Q3"}}, slices.Collect(seq))
}

func TestLookup_SnapshotsShareIndex(t *testing.T) {
	tests := []struct {
		name     string
		hydrated bool
		list     *profile.AllowedItemList
		member   string
	}{
		{name: "hydrated enumeration", hydrated: true, list: &profile.AllowedItemList{ID: "genders", Items: []string{"Q6581097", "Q6581072"}}, member: "Q6581072"},
		{name: "unhydrated enumeration", list: &profile.AllowedItemList{ID: "genders", Items: []string{"Q6581097", "Q6581072"}}, member: "Q6581072"},
		{name: "unhydrated query fallback", list: occupations(), member: "Q1622272"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil, nil, fastConfig())
			if tt.hydrated {
				h.Hydrate(context.Background(), tt.list)
			}
			first, second := h.Lookup(tt.list), h.Lookup(tt.list)

			require.NotNil(t, first.index)
			assert.Equal(t, reflect.ValueOf(first.index).Pointer(), reflect.ValueOf(second.index).Pointer())
			assert.True(t, second.Contains(tt.member))
			assert.False(t, second.Contains("Q1"))
		})
	}
}

type memPersister struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func (m *memPersister) Save(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ListID] = e
	return nil
}

func (m *memPersister) Load(_ context.Context, id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, errors.New("not found")
	}
	return e, nil
}

func TestWarmAndPersist(t *testing.T) {
	store := &memPersister{entries: map[string]Entry{}}

	first := New(&fakeQuerier{result: []Candidate{{ID: "Q1028181", Label: "painter"}}}, NewCache(), fastConfig(), WithPersister(store))
	first.Hydrate(context.Background(), occupations())
	require.Contains(t, store.entries, "occupations")

	second := New(&blockingQuerier{}, NewCache(), fastConfig(), WithPersister(store))
	assert.Equal(t, 1, second.Warm(context.Background(), []*profile.AllowedItemList{occupations()}))

	s := second.Lookup(occupations())
	assert.True(t, s.Stale())
	assert.Equal(t, []string{"Q1028181"}, ids(s))
	assert.Equal(t, 0, second.Warm(context.Background(), []*profile.AllowedItemList{occupations()}))
}

func TestConfigBackoff(t *testing.T) {
	cfg := Config{BackoffBase: 100 * time.Millisecond, BackoffMultiplier: 2}
	assert.Equal(t, time.Duration(0), cfg.Backoff(0))
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, cfg.Backoff(3))

	d := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig().MaxAttempts, d.MaxAttempts)
	assert.Equal(t, DefaultConfig().Timeout, d.Timeout)
}
