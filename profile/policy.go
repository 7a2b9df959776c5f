package profile

import "fmt"

// ValuePolicy governs the main value of a statement.
type ValuePolicy string

const (
	ValueEditable ValuePolicy = "editable"
	ValueFixed    ValuePolicy = "fixed"
	ValueHidden   ValuePolicy = "hidden"
)

// QualifierPolicy governs the qualifiers of a statement.
type QualifierPolicy string

const (
	QualifiersEditable QualifierPolicy = "editable"
	QualifiersHidden   QualifierPolicy = "hidden"
)

// ReferencePolicy governs the references of a statement.
type ReferencePolicy string

const (
	ReferencesEditable   ReferencePolicy = "editable"
	ReferencesFixed      ReferencePolicy = "fixed"
	ReferencesAutoDerive ReferencePolicy = "auto_derive"
	ReferencesHidden     ReferencePolicy = "hidden"
)

// BehaviorPolicy holds the three independent per-field editing policies.
type BehaviorPolicy struct {
	Value      ValuePolicy
	Qualifiers QualifierPolicy
	References ReferencePolicy
}

// DefaultBehavior leaves every field editable.
func DefaultBehavior() BehaviorPolicy {
	return BehaviorPolicy{
		Value:      ValueEditable,
		Qualifiers: QualifiersEditable,
		References: ReferencesEditable,
	}
}

// UserEditable reports whether a UI may let a user change the main value.
func (b BehaviorPolicy) UserEditable() bool {
	return b.Value == ValueEditable
}

var (
	valuePolicies = map[string]ValuePolicy{
		"":         ValueEditable,
		"editable": ValueEditable,
		"fixed":    ValueFixed,
		"hidden":   ValueHidden,
	}
	qualifierPolicies = map[string]QualifierPolicy{
		"":         QualifiersEditable,
		"editable": QualifiersEditable,
		"hidden":   QualifiersHidden,
	}
	referencePolicies = map[string]ReferencePolicy{
		"":            ReferencesEditable,
		"editable":    ReferencesEditable,
		"fixed":       ReferencesFixed,
		"auto_derive": ReferencesAutoDerive,
		"hidden":      ReferencesHidden,
	}
	ranks = map[string]Rank{
		"":           RankNormal,
		"normal":     RankNormal,
		"preferred":  RankPreferred,
		"deprecated": RankDeprecated,
	}
)

func parseBehavior(doc behaviorDoc) (BehaviorPolicy, error) {
	v, ok := valuePolicies[doc.Value]
	if !ok {
		return BehaviorPolicy{}, fmt.Errorf("unknown value policy %q", doc.Value)
	}
	q, ok := qualifierPolicies[doc.Qualifiers]
	if !ok {
		return BehaviorPolicy{}, fmt.Errorf("unknown qualifiers policy %q", doc.Qualifiers)
	}
	r, ok := referencePolicies[doc.References]
	if !ok {
		return BehaviorPolicy{}, fmt.Errorf("unknown references policy %q", doc.References)
	}
	return BehaviorPolicy{Value: v, Qualifiers: q, References: r}, nil
}

func parseRank(s string) (Rank, error) {
	r, ok := ranks[s]
	if !ok {
		return "", fmt.Errorf("unknown rank %q", s)
	}
	return r, nil
}
