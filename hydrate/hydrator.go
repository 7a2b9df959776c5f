package hydrate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/c360studio/semprofile/profile"
)

// Querier executes an external lookup and returns candidates in result order.
type Querier interface {
	Query(ctx context.Context, query string) ([]Candidate, error)
}

// Persister stores hydrated entries across sessions.
type Persister interface {
	Save(ctx context.Context, e Entry) error
	Load(ctx context.Context, listID string) (Entry, error)
}

// Config controls timeouts and retries. All attempts run before falling back.
type Config struct {
	// Timeout bounds each query attempt.
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts is the number of query attempts per hydration.
	MaxAttempts int `yaml:"max_attempts"`
	// BackoffBase is the wait after the first failed attempt.
	BackoffBase time.Duration `yaml:"backoff_base"`
	// BackoffMultiplier grows the wait after each further failure.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// DefaultConfig returns the documented hydration defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		MaxAttempts:       3,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffBase < 0 {
		c.BackoffBase = 0
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	return c
}

// Backoff returns the wait before attempt+1: base * multiplier^(attempt-1).
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}
	return time.Duration(float64(c.BackoffBase) * multiplier)
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hydrator) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics records hydration outcomes.
func WithMetrics(m *Metrics) Option {
	return func(h *Hydrator) { h.metrics = m }
}

// WithPersister persists fresh results and enables Warm.
func WithPersister(p Persister) Option {
	return func(h *Hydrator) { h.persister = p }
}

// WithClock overrides the clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hydrator) {
		if now != nil {
			h.now = now
		}
	}
}

// Hydrator populates the Cache. At most one hydration per list id is in
// flight; concurrent callers for the same id share its result.
type Hydrator struct {
	querier   Querier
	cache     *Cache
	cfg       Config
	group     singleflight.Group
	logger    *slog.Logger
	metrics   *Metrics
	persister Persister
	now       func() time.Time

	// literals holds snapshots of fallback items for lists not yet hydrated,
	// keyed by list pointer.
	literals sync.Map
}

// New creates a Hydrator writing into cache. querier may be nil, in which case
// every query-backed list falls back to its literal items.
func New(querier Querier, cache *Cache, cfg Config, opts ...Option) *Hydrator {
	if cache == nil {
		cache = NewCache()
	}
	h := &Hydrator{
		querier: querier,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Cache returns the cache the hydrator writes to.
func (h *Hydrator) Cache() *Cache {
	return h.cache
}

// Hydrate populates the cache entry for list and returns the resulting
// snapshot. It never fails: query errors, timeouts and exhausted retries
// store the list's fallback items marked stale. If ctx ends before the shared
// hydration completes, the caller gets the current lookup without waiting.
func (h *Hydrator) Hydrate(ctx context.Context, list *profile.AllowedItemList) Snapshot {
	ch := h.group.DoChan(list.ID, func() (any, error) {
		// The shared call must not die with whichever caller started it.
		return h.hydrate(context.WithoutCancel(ctx), list), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Snapshot)
	case <-ctx.Done():
		return h.Lookup(list)
	}
}

// HydrateAll hydrates distinct lists concurrently.
func (h *Hydrator) HydrateAll(ctx context.Context, lists []*profile.AllowedItemList) {
	g, gctx := errgroup.WithContext(ctx)
	for _, list := range lists {
		g.Go(func() error {
			h.Hydrate(gctx, list)
			return nil
		})
	}
	_ = g.Wait()
}

// Lookup returns the cached snapshot for list. Lists that have not been
// hydrated yield their literal items: fresh for enumerated lists, stale
// fallback items for query-backed ones. The result is never empty for a
// valid profile list.
func (h *Hydrator) Lookup(list *profile.AllowedItemList) Snapshot {
	if s := h.cache.Lookup(list.ID); s.Found {
		return s
	}
	if s, ok := h.literals.Load(list); ok {
		return s.(Snapshot)
	}
	e := literalEntry(list, !list.External(), time.Time{})
	s, _ := h.literals.LoadOrStore(list, newSnapshot(sealed(e)))
	return s.(Snapshot)
}

func (h *Hydrator) hydrate(ctx context.Context, list *profile.AllowedItemList) Snapshot {
	started := h.now()
	if !list.External() {
		h.cache.put(literalEntry(list, true, started), nil)
		h.metrics.observe(OutcomeLiteral, started)
		return h.cache.Lookup(list.ID)
	}

	candidates, attempts, err := h.query(ctx, list)
	if err != nil {
		herr := &HydrationError{ListID: list.ID, Attempts: attempts, Err: err}
		h.logger.Warn("Hydration failed, using fallback items",
			slog.String("list", list.ID),
			slog.Int("fallback_items", len(list.FallbackItems)),
			slog.String("error", err.Error()))
		h.cache.put(literalEntry(list, false, h.now()), herr)
		h.metrics.observe(OutcomeFallback, started)
		return h.cache.Lookup(list.ID)
	}

	entry := Entry{ListID: list.ID, Candidates: candidates, HydratedAt: h.now(), Fresh: true}
	h.cache.put(entry, nil)
	h.metrics.observe(OutcomeFresh, started)
	h.logger.Debug("Hydrated allowed-item list",
		slog.String("list", list.ID),
		slog.Int("candidates", len(candidates)))

	if h.persister != nil {
		if err := h.persister.Save(ctx, entry); err != nil {
			h.logger.Warn("Failed to persist hydrated list",
				slog.String("list", list.ID),
				slog.String("error", err.Error()))
		}
	}
	return h.cache.Lookup(list.ID)
}

var errNoCandidates = errors.New("query returned no candidates")

func (h *Hydrator) query(ctx context.Context, list *profile.AllowedItemList) ([]Candidate, int, error) {
	if h.querier == nil {
		return nil, 0, errors.New("no querier configured")
	}

	var (
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= h.cfg.MaxAttempts; attempt++ {
		h.metrics.attempt()
		actx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
		candidates, err := h.querier.Query(actx, list.Query)
		cancel()
		if err == nil && len(candidates) == 0 {
			err = errNoCandidates
		}
		if err == nil {
			return candidates, attempt, nil
		}
		lastErr = err
		h.logger.Debug("Hydration attempt failed",
			slog.String("list", list.ID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt == h.cfg.MaxAttempts {
			return nil, attempt, lastErr
		}
		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(h.cfg.Backoff(attempt)):
		}
	}
	return nil, h.cfg.MaxAttempts, lastErr
}

// Warm preloads persisted entries from an earlier session as stale entries.
// Lists that already have an entry are left alone.
func (h *Hydrator) Warm(ctx context.Context, lists []*profile.AllowedItemList) int {
	if h.persister == nil {
		return 0
	}
	loaded := 0
	for _, list := range lists {
		if !list.External() {
			continue
		}
		e, err := h.persister.Load(ctx, list.ID)
		if err != nil {
			h.logger.Debug("No persisted entry for list",
				slog.String("list", list.ID),
				slog.String("error", err.Error()))
			continue
		}
		e.ListID = list.ID
		e.Fresh = false
		if h.cache.putIfAbsent(e) {
			loaded++
		}
	}
	return loaded
}

func literalEntry(list *profile.AllowedItemList, fresh bool, at time.Time) Entry {
	ids := list.Fallback()
	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, Candidate{ID: id})
	}
	return Entry{ListID: list.ID, Candidates: candidates, HydratedAt: at, Fresh: fresh}
}
