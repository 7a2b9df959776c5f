// Package assemble turns source records into entities shaped by a profile.
package assemble

import (
	"github.com/c360studio/semprofile/datatype"
	"github.com/c360studio/semprofile/profile"
)

// Record is one source record. Values are untyped until coerced.
type Record map[string]any

// Snak is a property-value pair used for qualifiers and references.
type Snak struct {
	Property string
	Datatype datatype.Datatype
	Value    datatype.Value
}

// ReferenceGroup is one reference: a set of snaks cited together.
type ReferenceGroup struct {
	Snaks []Snak
}

// Statement is one assembled statement instance.
type Statement struct {
	// ID is the StatementSpec id the instance was produced from.
	ID string
	// Instance is the position of the source value among the spec's values,
	// counting instances that were dropped.
	Instance   int
	Property   string
	Datatype   datatype.Datatype
	Value      datatype.Value
	Qualifiers []Snak
	References []ReferenceGroup
	Rank       profile.Rank
}

// Entity is the result of assembling one record. It is never mutated after
// Assemble returns; re-assemble to change it.
type Entity struct {
	ProfileID    string
	Labels       map[string]string
	Descriptions map[string]string
	Aliases      map[string][]string
	Sitelinks    map[string]string

	// Statements are in profile order, instances in source order.
	Statements []Statement
	// Failures lists instances dropped because a value did not coerce.
	Failures []InstanceFailure
}

// Instances returns the statements produced from the spec with the given id.
func (e *Entity) Instances(specID string) []Statement {
	var out []Statement
	for _, s := range e.Statements {
		if s.ID == specID {
			out = append(out, s)
		}
	}
	return out
}

// FailuresFor returns the failures recorded for the spec with the given id.
func (e *Entity) FailuresFor(specID string) []InstanceFailure {
	var out []InstanceFailure
	for _, f := range e.Failures {
		if f.StatementID == specID {
			out = append(out, f)
		}
	}
	return out
}
