package assemble

import (
	"errors"
	"log/slog"
	"time"

	"github.com/c360studio/semprofile/datatype"
	"github.com/c360studio/semprofile/hydrate"
	"github.com/c360studio/semprofile/profile"
)

// ItemLookup returns the current candidates of an allowed-item list.
// *hydrate.Hydrator satisfies it.
type ItemLookup interface {
	Lookup(list *profile.AllowedItemList) hydrate.Snapshot
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithItemLookup enables resolving item labels against allowed-item lists.
func WithItemLookup(l ItemLookup) Option {
	return func(a *Assembler) { a.items = l }
}

// WithClock sets the clock used for "current_date" values.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assembler builds entities for one profile. It holds no per-record state
// and is safe for concurrent use.
type Assembler struct {
	profile *profile.Profile
	items   ItemLookup
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an Assembler for p.
func New(p *profile.Profile, opts ...Option) *Assembler {
	a := &Assembler{
		profile: p,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Profile returns the profile the assembler was built for.
func (a *Assembler) Profile() *profile.Profile {
	return a.profile
}

// Assemble builds the entity for rec. A statement whose instance count exceeds
// its max_count fails the record with *CardinalityError. Instances whose values
// do not coerce are dropped and listed in Entity.Failures.
func (a *Assembler) Assemble(rec Record) (*Entity, error) {
	ent := &Entity{
		ProfileID:    a.profile.ID,
		Labels:       make(map[string]string),
		Descriptions: make(map[string]string),
		Aliases:      make(map[string][]string),
		Sitelinks:    make(map[string]string),
	}
	a.assembleTerms(ent, rec)

	for _, spec := range a.profile.Statements {
		raws := Values(spec, rec)
		if !spec.Cardinality.Allows(len(raws)) {
			return nil, &CardinalityError{
				StatementID: spec.ID,
				Property:    spec.Property,
				Count:       len(raws),
				Max:         spec.Cardinality.Max,
			}
		}
		b := &builder{a: a, rec: rec}
		for i, raw := range raws {
			st, err := b.statement(spec, raw)
			if err != nil {
				failure := InstanceFailure{StatementID: spec.ID, Property: spec.Property, Instance: i, Err: err}
				var ferr *fieldError
				if errors.As(err, &ferr) {
					failure.Field, failure.Input, failure.Err = ferr.field, ferr.input, ferr.err
				}
				a.logger.Debug("Dropped statement instance",
					slog.String("profile", a.profile.ID),
					slog.String("statement", spec.ID),
					slog.Int("instance", i),
					slog.String("error", failure.Err.Error()))
				ent.Failures = append(ent.Failures, failure)
				continue
			}
			st.Instance = i
			ent.Statements = append(ent.Statements, st)
		}
	}
	return ent, nil
}

// CoerceMain coerces raw as a main value of spec. Item values that are not
// identifier tokens are matched against allowed-item labels when a lookup is
// configured.
func (a *Assembler) CoerceMain(spec *profile.StatementSpec, raw any) (datatype.Value, error) {
	opts := a.options(spec.Options)
	v, err := datatype.Coerce(spec.Datatype, raw, opts)
	if err == nil || spec.Kind != datatype.KindItem || spec.Allowed == nil || a.items == nil {
		return v, err
	}
	label, ok := raw.(string)
	if !ok {
		return nil, err
	}
	if c, ok := a.items.Lookup(spec.Allowed).MatchLabel(label); ok {
		return datatype.Coerce(spec.Datatype, c.ID, opts)
	}
	return nil, err
}

func (a *Assembler) options(o datatype.Options) datatype.Options {
	o.Now = a.now
	return o
}

func (a *Assembler) assembleTerms(ent *Entity, rec Record) {
	for _, t := range a.profile.Labels {
		if v := termValues(t.Value, t.Source, "", rec); len(v) > 0 {
			ent.Labels[t.Language] = v[0]
		}
	}
	for _, t := range a.profile.Descriptions {
		if v := termValues(t.Value, t.Source, "", rec); len(v) > 0 {
			ent.Descriptions[t.Language] = v[0]
		}
	}
	for _, t := range a.profile.Aliases {
		if v := termValues(t.Value, t.Source, t.Separator, rec); len(v) > 0 {
			ent.Aliases[t.Language] = append(ent.Aliases[t.Language], v...)
		}
	}
	for _, s := range a.profile.Sitelinks {
		if v := termValues(s.Value, s.Source, "", rec); len(v) > 0 {
			ent.Sitelinks[s.Site] = v[0]
		}
	}
}

// termValues prefers the source field and falls back to the literal.
func termValues(literal, source, sep string, rec Record) []string {
	var out []string
	for _, v := range sourceValues(rec, source, sep) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && literal != "" {
		out = append(out, literal)
	}
	return out
}

// fieldError ties a coercion failure to the part of the instance it came from.
type fieldError struct {
	field string
	input any
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

// builder assembles the instances of one record.
type builder struct {
	a   *Assembler
	rec Record
}

func (b *builder) statement(spec *profile.StatementSpec, raw any) (Statement, error) {
	value, err := b.a.CoerceMain(spec, raw)
	if err != nil {
		return Statement{}, &fieldError{field: "value", input: raw, err: err}
	}
	quals, err := qualifierBuilders[spec.Behavior.Qualifiers](b, spec.Qualifiers)
	if err != nil {
		return Statement{}, err
	}
	refs, err := referenceBuilders[spec.Behavior.References](b, spec.References, value)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		ID:         spec.ID,
		Property:   spec.Property,
		Datatype:   spec.Datatype,
		Value:      value,
		Qualifiers: quals,
		References: refs,
		Rank:       spec.Rank,
	}, nil
}

// snaks resolves fragments into snaks. Literal fragments always apply;
// source-mapped fragments apply unless literalOnly is set and are skipped
// when the record has no value for them.
func (b *builder) snaks(frags []*profile.Fragment, section string, literalOnly bool) ([]Snak, error) {
	var out []Snak
	for _, f := range frags {
		var raws []any
		switch {
		case f.HasLiteral():
			raws = []any{f.Value}
		case !literalOnly:
			raws = sourceValues(b.rec, f.Source, "")
		}
		for _, raw := range raws {
			v, err := datatype.Coerce(f.Datatype, raw, b.a.options(f.Options))
			if err != nil {
				return nil, &fieldError{field: section + "." + f.Property, input: raw, err: err}
			}
			out = append(out, Snak{Property: f.Property, Datatype: f.Datatype, Value: v})
		}
	}
	return out, nil
}
