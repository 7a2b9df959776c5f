// Package session binds one profile to one allowed-item cache and runs
// records through assembly and validation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/semprofile/assemble"
	"github.com/c360studio/semprofile/hydrate"
	"github.com/c360studio/semprofile/profile"
	"github.com/c360studio/semprofile/validate"
)

// DefaultWorkers bounds ProcessBatch when no worker count is given.
const DefaultWorkers = 4

// Option configures a Session.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	now       func() time.Time
	metrics   *hydrate.Metrics
	persister hydrate.Persister
}

// WithLogger sets the logger shared by every component of the session.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock, mainly for current_date references in tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics records hydration metrics.
func WithMetrics(m *hydrate.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPersister persists hydrated lists and lets Warm restore them.
func WithPersister(p hydrate.Persister) Option {
	return func(o *options) { o.persister = p }
}

// Session is the processing context for one profile. Nothing is shared
// between sessions; concurrent use of one session is safe.
type Session struct {
	ID        string
	Profile   *profile.Profile
	Hydrator  *hydrate.Hydrator
	Assembler *assemble.Assembler
	Engine    *validate.Engine

	logger *slog.Logger
}

// New creates a session for p. querier may be nil, in which case
// query-backed lists resolve to their fallback items.
func New(p *profile.Profile, querier hydrate.Querier, cfg hydrate.Config, opts ...Option) *Session {
	o := &options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger.With(slog.String("profile", p.ID))
	hopts := []hydrate.Option{hydrate.WithLogger(logger), hydrate.WithClock(o.now)}
	if o.metrics != nil {
		hopts = append(hopts, hydrate.WithMetrics(o.metrics))
	}
	if o.persister != nil {
		hopts = append(hopts, hydrate.WithPersister(o.persister))
	}
	h := hydrate.New(querier, hydrate.NewCache(), cfg, hopts...)

	return &Session{
		ID:        uuid.New().String(),
		Profile:   p,
		Hydrator:  h,
		Assembler: assemble.New(p, assemble.WithItemLookup(h), assemble.WithClock(o.now), assemble.WithLogger(logger)),
		Engine:    validate.New(p, validate.WithItemLookup(h), validate.WithClock(o.now), validate.WithLogger(logger)),
		logger:    logger,
	}
}

// Cache returns the session's allowed-item cache.
func (s *Session) Cache() *hydrate.Cache {
	return s.Hydrator.Cache()
}

// HydrateAll restores persisted lists, then hydrates every allowed list of the
// profile. Hydration never fails; lists that cannot be fetched fall back.
func (s *Session) HydrateAll(ctx context.Context) {
	lists := s.Profile.AllowedLists()
	if n := s.Hydrator.Warm(ctx, lists); n > 0 {
		s.logger.Debug("Restored persisted lists", slog.Int("lists", n))
	}
	s.Hydrator.HydrateAll(ctx, lists)
	s.logger.Info("Hydrated allowed-item lists", slog.Int("lists", len(lists)))
}

// Result is the outcome of processing one record.
type Result struct {
	// Index is the record's position in the batch.
	Index  int
	Entity *assemble.Entity
	Issues validate.Issues
	// Err is set when the record could not be assembled at all.
	Err error
}

// Process assembles rec and validates the result. A record that exceeds a
// max count still gets its issues; only the entity is missing.
func (s *Session) Process(rec assemble.Record) Result {
	ent, err := s.Assembler.Assemble(rec)
	if err != nil {
		return Result{Issues: s.Engine.Record(rec), Err: err}
	}
	return Result{Entity: ent, Issues: s.Engine.Entity(ent)}
}

// ProcessBatch processes recs with at most workers concurrent records.
// Results keep record order. Per-record failures are reported in Result.Err;
// the returned error is only set when ctx ends first.
func (s *Session) ProcessBatch(ctx context.Context, recs []assemble.Record, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]Result, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range recs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := s.Process(rec)
			r.Index = i
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("process batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("process batch: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Debug("Processed batch",
		slog.Int("records", len(recs)),
		slog.Int("failed", failed))
	return results, nil
}
