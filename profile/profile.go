// Package profile holds the in-memory schema model of an Entity Profile.
//
// A Profile is parsed once from a YAML document into closed types and is
// immutable afterwards, so a single instance can be shared read-only by every
// goroutine processing records against it.
package profile

import (
	"fmt"

	"github.com/c360studio/semprofile/datatype"
)

// Status is the lifecycle state of a profile.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusStable     Status = "stable"
	StatusDeprecated Status = "deprecated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusStable, StatusDeprecated:
		return true
	}
	return false
}

// Unbounded is the Max value of a cardinality without an upper limit.
const Unbounded = -1

// Cardinality bounds the number of statement instances per record.
type Cardinality struct {
	Min int
	Max int
}

// Allows reports whether n instances fit under the upper bound.
func (c Cardinality) Allows(n int) bool {
	return c.Max == Unbounded || n <= c.Max
}

func (c Cardinality) String() string {
	if c.Max == Unbounded {
		return fmt.Sprintf("%d..*", c.Min)
	}
	return fmt.Sprintf("%d..%d", c.Min, c.Max)
}

// Rank is the statement rank marker in the target graph.
type Rank string

const (
	RankPreferred  Rank = "preferred"
	RankNormal     Rank = "normal"
	RankDeprecated Rank = "deprecated"
)

// Profile is a loaded, validated Entity Profile.
type Profile struct {
	ID          string
	Version     string
	Status      Status
	Name        string
	Description string

	Labels       []TermSpec
	Descriptions []TermSpec
	Aliases      []TermSpec
	Sitelinks    []SitelinkSpec

	Statements []*StatementSpec
	Patterns   *PatternLibrary

	// Warnings are non-fatal findings from loading, such as conflicting
	// inline pattern definitions.
	Warnings []Warning
}

// Statement returns the statement spec with the given id.
func (p *Profile) Statement(id string) (*StatementSpec, bool) {
	for _, s := range p.Statements {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// AllowedLists returns every distinct allowed-item list in profile order.
func (p *Profile) AllowedLists() []*AllowedItemList {
	seen := make(map[string]bool)
	var lists []*AllowedItemList
	for _, s := range p.Statements {
		if s.Allowed == nil || seen[s.Allowed.ID] {
			continue
		}
		seen[s.Allowed.ID] = true
		lists = append(lists, s.Allowed)
	}
	return lists
}

// TermSpec maps a label, description or alias for one language.
type TermSpec struct {
	Language  string
	Value     string
	Source    string
	Separator string
	Required  bool
}

// SitelinkSpec maps a sitelink title for one site.
type SitelinkSpec struct {
	Site     string
	Value    string
	Source   string
	Required bool
}

// StatementSpec declares one permitted statement.
type StatementSpec struct {
	// ID identifies the spec within the profile; defaults to Property.
	ID       string
	Property string
	Datatype datatype.Datatype
	Kind     datatype.Kind

	Cardinality Cardinality
	Behavior    BehaviorPolicy
	Required    bool
	Rank        Rank

	// Value is the literal value; nil when the spec declares none.
	Value     any
	Source    string
	Separator string
	Options   datatype.Options

	Qualifiers []*Fragment
	References []*Fragment
	Allowed    *AllowedItemList
}

// HasLiteral reports whether the spec declares a literal value.
func (s *StatementSpec) HasLiteral() bool {
	return s.Value != nil
}

// Fragment is a qualifier or reference snak declaration. Qualifiers and
// references share this shape so resolution is uniform.
type Fragment struct {
	Name     string
	Property string
	Datatype datatype.Datatype
	// Value is the literal value; nil when the fragment maps a source field.
	Value   any
	Source  string
	Options datatype.Options
}

// HasLiteral reports whether the fragment declares a literal value.
func (f *Fragment) HasLiteral() bool {
	return f.Value != nil
}

// AllowedItemList is the permitted value set of a statement.
type AllowedItemList struct {
	ID string
	// Items is the literal enumerated set when no query is declared.
	Items []string
	// Query is an external lookup (SPARQL) whose results replace Items.
	Query string
	// FallbackItems is used when the query cannot be executed.
	FallbackItems []string
}

// External reports whether the list is backed by an external query.
func (l *AllowedItemList) External() bool {
	return l.Query != ""
}

// Fallback returns the deterministic literal set for the list.
func (l *AllowedItemList) Fallback() []string {
	if l.External() {
		return l.FallbackItems
	}
	return l.Items
}

// Warning is a non-fatal load-time finding.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Message
}
