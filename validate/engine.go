package validate

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/c360studio/semprofile/assemble"
	"github.com/c360studio/semprofile/datatype"
	"github.com/c360studio/semprofile/hydrate"
	"github.com/c360studio/semprofile/profile"
)

// MaxTermLength is the longest label or description the target graph accepts.
const MaxTermLength = 250

// Option configures an Engine.
type Option func(*Engine)

// WithItemLookup sets where allowed-item candidates come from. Without one,
// lists are checked against their literal items.
func WithItemLookup(l assemble.ItemLookup) Option {
	return func(e *Engine) {
		if l != nil {
			e.items = l
		}
	}
}

// WithClock sets the clock used when coercing "current_date" values.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine validates records and assembled entities against one profile. It
// never mutates its input and is safe for concurrent use.
type Engine struct {
	profile   *profile.Profile
	items     assemble.ItemLookup
	now       func() time.Time
	logger    *slog.Logger
	assembler *assemble.Assembler
}

// New creates an Engine for p.
func New(p *profile.Profile, opts ...Option) *Engine {
	e := &Engine{
		profile: p,
		items:   hydrate.New(nil, nil, hydrate.Config{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.assembler = assemble.New(p,
		assemble.WithItemLookup(e.items),
		assemble.WithClock(e.now),
		assemble.WithLogger(e.logger))
	return e
}

// Record runs the cheap pre-checks on a raw record: term presence, instance
// counts, coercion, and allowed-item membership. It does not assemble.
func (e *Engine) Record(rec assemble.Record) Issues {
	var issues Issues
	issues = append(issues, e.recordTerms(rec)...)

	for _, spec := range e.profile.Statements {
		raws := assemble.Values(spec, rec)
		if !spec.Cardinality.Allows(len(raws)) {
			issues = append(issues, maxCountIssue(spec, len(raws)))
		}
		var values []instanceValue
		for i, raw := range raws {
			v, err := e.assembler.CoerceMain(spec, raw)
			if err != nil {
				issues = append(issues, Issue{
					Severity:    SeverityError,
					StatementID: spec.ID,
					Instance:    i,
					Message:     err.Error(),
					Why:         WhyCoercion,
				})
				continue
			}
			values = append(values, instanceValue{instance: i, value: v})
		}
		issues = append(issues, presenceIssues(spec, len(raws))...)
		issues = append(issues, e.allowedIssues(spec, values)...)
	}
	return issues
}

// Entity runs the full checks on an assembled entity.
func (e *Engine) Entity(ent *assemble.Entity) Issues {
	var issues Issues
	issues = append(issues, e.entityTerms(ent)...)

	for _, spec := range e.profile.Statements {
		instances := ent.Instances(spec.ID)
		failures := ent.FailuresFor(spec.ID)

		if !spec.Cardinality.Allows(len(instances)) {
			issues = append(issues, maxCountIssue(spec, len(instances)))
		}
		for _, f := range failures {
			issues = append(issues, Issue{
				Severity:    SeverityError,
				StatementID: spec.ID,
				Instance:    f.Instance,
				Message:     fmt.Sprintf("%s: %v", f.Field, f.Err),
				Why:         WhyCoercion,
			})
		}
		issues = append(issues, presenceIssues(spec, len(instances)+len(failures))...)

		values := make([]instanceValue, 0, len(instances))
		for _, st := range instances {
			values = append(values, instanceValue{instance: st.Instance, value: st.Value})
		}
		issues = append(issues, e.allowedIssues(spec, values)...)

		if spec.Behavior.References == profile.ReferencesEditable {
			for _, st := range instances {
				if len(st.References) == 0 {
					issues = append(issues, Issue{
						Severity:    SeveritySuggestion,
						StatementID: spec.ID,
						Instance:    st.Instance,
						Message:     "statement has no reference",
						Why:         WhyNoReference,
					})
				}
			}
		}
	}

	e.logger.Debug("Validated entity",
		slog.String("profile", e.profile.ID),
		slog.Int("issues", len(issues)))
	return issues
}

// instanceValue is a coerced main value with its source instance position.
type instanceValue struct {
	instance int
	value    datatype.Value
}

func maxCountIssue(spec *profile.StatementSpec, n int) Issue {
	return Issue{
		Severity:    SeverityError,
		StatementID: spec.ID,
		Instance:    NoInstance,
		Message:     fmt.Sprintf("%d value(s) for %s exceed max_count %d", n, spec.Property, spec.Cardinality.Max),
		Why:         WhyMaxCount,
	}
}

// presenceIssues grades a statement by how many instances were supplied.
// Missing values are never errors.
func presenceIssues(spec *profile.StatementSpec, n int) Issues {
	switch {
	case n == 0 && spec.Required:
		return Issues{{
			Severity:    SeverityWarning,
			StatementID: spec.ID,
			Instance:    NoInstance,
			Message:     fmt.Sprintf("recommended statement %s is missing", spec.Property),
			Why:         WhyRequired,
		}}
	case n < spec.Cardinality.Min:
		return Issues{{
			Severity:    SeverityWarning,
			StatementID: spec.ID,
			Instance:    NoInstance,
			Message:     fmt.Sprintf("%d value(s) for %s, expected at least %d", n, spec.Property, spec.Cardinality.Min),
			Why:         WhyMinCount,
		}}
	case n == 0 && spec.Behavior.UserEditable():
		return Issues{{
			Severity:    SeveritySuggestion,
			StatementID: spec.ID,
			Instance:    NoInstance,
			Message:     fmt.Sprintf("optional statement %s could be added", spec.Property),
			Why:         WhyOptional,
		}}
	}
	return nil
}

// allowedIssues checks values against the statement's allowed-item list. A
// value passes when it is a current candidate or one of the list's literal
// items.
func (e *Engine) allowedIssues(spec *profile.StatementSpec, values []instanceValue) Issues {
	if spec.Allowed == nil {
		return nil
	}
	var issues Issues
	snap := e.items.Lookup(spec.Allowed)
	if snap.Stale() && len(values) > 0 {
		msg := fmt.Sprintf("allowed items for %s come from fallback data", spec.Allowed.ID)
		if snap.Failure != nil {
			msg += ": " + snap.Failure.Error()
		}
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			StatementID: spec.ID,
			Instance:    NoInstance,
			Message:     msg,
			Why:         WhyStaleList,
		})
	}
	fallback := spec.Allowed.Fallback()
	for _, v := range values {
		id := v.value.String()
		if snap.Contains(id) || slices.Contains(fallback, id) {
			continue
		}
		issues = append(issues, Issue{
			Severity:    SeverityError,
			StatementID: spec.ID,
			Instance:    v.instance,
			Message:     fmt.Sprintf("%s is not in allowed list %s", id, spec.Allowed.ID),
			Why:         WhyAllowedItems,
		})
	}
	return issues
}

func (e *Engine) recordTerms(rec assemble.Record) Issues {
	labels := make(map[string]string)
	descriptions := make(map[string]string)
	sitelinks := make(map[string]string)
	for _, t := range e.profile.Labels {
		labels[t.Language] = termValue(t.Value, t.Source, rec)
	}
	for _, t := range e.profile.Descriptions {
		descriptions[t.Language] = termValue(t.Value, t.Source, rec)
	}
	for _, s := range e.profile.Sitelinks {
		sitelinks[s.Site] = termValue(s.Value, s.Source, rec)
	}
	return e.termIssues(labels, descriptions, sitelinks)
}

func (e *Engine) entityTerms(ent *assemble.Entity) Issues {
	return e.termIssues(ent.Labels, ent.Descriptions, ent.Sitelinks)
}

func termValue(literal, source string, rec assemble.Record) string {
	if s, ok := rec[source].(string); ok && source != "" && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return literal
}

func (e *Engine) termIssues(labels, descriptions, sitelinks map[string]string) Issues {
	var issues Issues
	missing := func(subject, what string) {
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			StatementID: subject,
			Instance:    NoInstance,
			Message:     "recommended " + what + " is missing",
			Why:         WhyRequired,
		})
	}
	tooLong := func(subject, value string) {
		if n := utf8.RuneCountInString(value); n > MaxTermLength {
			issues = append(issues, Issue{
				Severity:    SeverityWarning,
				StatementID: subject,
				Instance:    NoInstance,
				Message:     fmt.Sprintf("%d characters, longer than %d", n, MaxTermLength),
				Why:         WhyFormat,
			})
		}
	}

	for _, t := range e.profile.Labels {
		subject := "label:" + t.Language
		v := labels[t.Language]
		if v == "" {
			if t.Required {
				missing(subject, "label")
			}
			continue
		}
		tooLong(subject, v)
	}
	for _, t := range e.profile.Descriptions {
		subject := "description:" + t.Language
		v := descriptions[t.Language]
		if v == "" {
			if t.Required {
				missing(subject, "description")
			}
			continue
		}
		tooLong(subject, v)
		if v == labels[t.Language] {
			issues = append(issues, Issue{
				Severity:    SeverityWarning,
				StatementID: subject,
				Instance:    NoInstance,
				Message:     "description repeats the label",
				Why:         WhyFormat,
			})
		}
	}
	for _, s := range e.profile.Sitelinks {
		if sitelinks[s.Site] == "" && s.Required {
			missing("sitelink:"+s.Site, "sitelink")
		}
	}
	return issues
}
