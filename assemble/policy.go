package assemble

import (
	"strings"

	"github.com/c360studio/semprofile/datatype"
	"github.com/c360studio/semprofile/profile"
)

// ReferenceURLProperty is the "reference URL" property used for derived citations.
const ReferenceURLProperty = "P854"

type valueSource func(spec *profile.StatementSpec, rec Record) []any

// valueSources maps each value policy to where main values come from.
var valueSources = map[profile.ValuePolicy]valueSource{
	profile.ValueEditable: func(spec *profile.StatementSpec, rec Record) []any {
		if vals := sourceValues(rec, spec.Source, spec.Separator); len(vals) > 0 {
			return vals
		}
		return spec.Literals()
	},
	// Source content is ignored, so a conflicting record cannot change the value.
	profile.ValueFixed: func(spec *profile.StatementSpec, _ Record) []any {
		return spec.Literals()
	},
	profile.ValueHidden: func(spec *profile.StatementSpec, rec Record) []any {
		if spec.HasLiteral() {
			return spec.Literals()
		}
		return sourceValues(rec, spec.Source, spec.Separator)
	},
}

// Values returns the raw main values rec supplies for spec under its value
// policy, one per statement instance. Nothing is coerced.
func Values(spec *profile.StatementSpec, rec Record) []any {
	return valueSources[spec.Behavior.Value](spec, rec)
}

type snakResolver func(b *builder, frags []*profile.Fragment) ([]Snak, error)

var qualifierBuilders = map[profile.QualifierPolicy]snakResolver{
	profile.QualifiersEditable: func(b *builder, frags []*profile.Fragment) ([]Snak, error) {
		return b.snaks(frags, "qualifiers", false)
	},
	profile.QualifiersHidden: func(*builder, []*profile.Fragment) ([]Snak, error) {
		return nil, nil
	},
}

type referenceBuilder func(b *builder, frags []*profile.Fragment, main datatype.Value) ([]ReferenceGroup, error)

var referenceBuilders = map[profile.ReferencePolicy]referenceBuilder{
	profile.ReferencesEditable: func(b *builder, frags []*profile.Fragment, _ datatype.Value) ([]ReferenceGroup, error) {
		snaks, err := b.snaks(frags, "references", false)
		return group(snaks), err
	},
	profile.ReferencesFixed: func(b *builder, frags []*profile.Fragment, _ datatype.Value) ([]ReferenceGroup, error) {
		snaks, err := b.snaks(frags, "references", true)
		return group(snaks), err
	},
	profile.ReferencesAutoDerive: func(b *builder, frags []*profile.Fragment, main datatype.Value) ([]ReferenceGroup, error) {
		var snaks []Snak
		if u, ok := main.(datatype.URL); ok {
			snaks = append(snaks, Snak{Property: ReferenceURLProperty, Datatype: datatype.URLType, Value: u})
		}
		literal, err := b.snaks(frags, "references", true)
		if err != nil {
			return nil, err
		}
		return group(append(snaks, literal...)), nil
	},
	profile.ReferencesHidden: func(*builder, []*profile.Fragment, datatype.Value) ([]ReferenceGroup, error) {
		return nil, nil
	},
}

func group(snaks []Snak) []ReferenceGroup {
	if len(snaks) == 0 {
		return nil
	}
	return []ReferenceGroup{{Snaks: snaks}}
}

// sourceValues reads field from rec. Strings are trimmed and split on sep;
// lists yield one value per element. Empty values are dropped.
func sourceValues(rec Record, field, sep string) []any {
	if field == "" {
		return nil
	}
	raw, ok := rec[field]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return splitString(v, sep)
	case []string:
		var out []any
		for _, s := range v {
			out = append(out, splitString(s, "")...)
		}
		return out
	case []any:
		var out []any
		for _, elem := range v {
			switch e := elem.(type) {
			case nil:
			case string:
				out = append(out, splitString(e, "")...)
			default:
				out = append(out, e)
			}
		}
		return out
	}
	return []any{raw}
}

func splitString(s, sep string) []any {
	parts := []string{s}
	if sep != "" {
		parts = strings.Split(s, sep)
	}
	var out []any
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
