package assemble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semprofile/datatype"
	"github.com/c360studio/semprofile/hydrate"
	"github.com/c360studio/semprofile/profile"
)

const personProfile = `
id: person
version: 1.0.0
labels:
  - {language: en, source: name}
descriptions:
  - {language: en, value: "human being"}
aliases:
  - {language: en, source: aka, separator: ";"}
sitelinks:
  - {site: enwiki, source: wiki_title}
patterns:
  retrieved_today: {property: P813, datatype: time, value: current_date}
statements:
  - id: instance_of
    property: P31
    datatype: wikibase-item
    value: Q5
    behavior: {value: fixed, qualifiers: hidden, references: hidden}
    max_count: 1
    required: true
  - property: P569
    datatype: time
    source: born
    max_count: 1
    references:
      - {property: P854, datatype: url, source: ref_url}
  - property: P106
    datatype: wikibase-item
    source: occupations
    separator: ";"
    allowed_items:
      id: occupations
      query: "SELECT ?item ?itemLabel WHERE {}"
      fallback_items: [Q82955, Q1622272]
    qualifiers:
      - {property: P580, datatype: time, source: start, precision: 9}
    references:
      - retrieved_today
  - property: P856
    datatype: url
    source: website
    rank: preferred
    behavior: {references: auto_derive}
    references:
      - retrieved_today
      - {property: P1476, datatype: monolingualtext, source: title, language: en}
  - property: P2048
    datatype: quantity
    source: height
    unit: Q11573
    behavior: {references: fixed}
    references:
      - retrieved_today
      - {property: P854, datatype: url, source: ref_url}
`

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC) }

func mustProfile(t *testing.T, doc string) *profile.Profile {
	t.Helper()
	p, err := profile.Parse([]byte(doc))
	require.NoError(t, err)
	return p
}

type staticQuerier struct {
	candidates []hydrate.Candidate
}

func (q *staticQuerier) Query(context.Context, string) ([]hydrate.Candidate, error) {
	return q.candidates, nil
}

func TestAssemble_Person(t *testing.T) {
	p := mustProfile(t, personProfile)
	a := New(p, WithClock(fixedNow))

	ent, err := a.Assemble(Record{
		"name":        "Ada Lovelace",
		"aka":         "Augusta Ada King; Countess of Lovelace",
		"wiki_title":  "Ada Lovelace",
		"born":        "1815-12-10",
		"ref_url":     "https://example.org/ada",
		"occupations": "Q170790; Q11900058",
		"start":       "1833",
		"website":     "https://ada.example.org",
		"title":       "Ada",
		"height":      "1.65",
	})
	require.NoError(t, err)
	assert.Empty(t, ent.Failures)

	assert.Equal(t, "person", ent.ProfileID)
	assert.Equal(t, map[string]string{"en": "Ada Lovelace"}, ent.Labels)
	assert.Equal(t, map[string]string{"en": "human being"}, ent.Descriptions)
	assert.Equal(t, []string{"Augusta Ada King", "Countess of Lovelace"}, ent.Aliases["en"])
	assert.Equal(t, "Ada Lovelace", ent.Sitelinks["enwiki"])

	var props []string
	for _, s := range ent.Statements {
		props = append(props, s.Property)
	}
	assert.Equal(t, []string{"P31", "P569", "P106", "P106", "P856", "P2048"}, props)

	inst := ent.Instances("instance_of")
	require.Len(t, inst, 1)
	assert.Equal(t, datatype.Item{ID: "Q5"}, inst[0].Value)
	assert.Empty(t, inst[0].Qualifiers)
	assert.Empty(t, inst[0].References)

	born := ent.Instances("P569")[0]
	assert.Equal(t, datatype.Time{Time: "+1815-12-10T00:00:00Z", Precision: datatype.PrecisionDay, Calendar: datatype.GregorianCalendar}, born.Value)
	require.Len(t, born.References, 1)
	assert.Equal(t, datatype.URL{Value: "https://example.org/ada"}, born.References[0].Snaks[0].Value)

	occ := ent.Instances("P106")
	require.Len(t, occ, 2)
	assert.Equal(t, datatype.Item{ID: "Q11900058"}, occ[1].Value)
	require.Len(t, occ[0].Qualifiers, 1)
	assert.Equal(t, datatype.PrecisionYear, occ[0].Qualifiers[0].Value.(datatype.Time).Precision)
	require.Len(t, occ[0].References, 1)
	assert.Equal(t, "+2024-06-01T00:00:00Z", occ[0].References[0].Snaks[0].Value.(datatype.Time).Time)

	web := ent.Instances("P856")[0]
	assert.Equal(t, profile.RankPreferred, web.Rank)
	require.Len(t, web.References, 1)
	snaks := web.References[0].Snaks
	require.Len(t, snaks, 2, "derived URL plus literal fragment; source-mapped title is not used")
	assert.Equal(t, ReferenceURLProperty, snaks[0].Property)
	assert.Equal(t, datatype.URL{Value: "https://ada.example.org"}, snaks[0].Value)
	assert.Equal(t, "P813", snaks[1].Property)

	height := ent.Instances("P2048")[0]
	assert.Equal(t, datatype.Quantity{Amount: "+1.65", Unit: datatype.EntityPrefix + "Q11573"}, height.Value)
	require.Len(t, height.References, 1)
	require.Len(t, height.References[0].Snaks, 1, "fixed references ignore source-mapped fragments")
	assert.Equal(t, "P813", height.References[0].Snaks[0].Property)
}

func TestAssemble_FixedValueIgnoresConflictingSource(t *testing.T) {
	p := mustProfile(t, `
id: x
statements:
  - {property: P31, datatype: wikibase-item, value: Q5, source: kind, behavior: {value: fixed}, max_count: 1}
`)
	a := New(p)
	for _, rec := range []Record{{}, {"kind": "Q515"}, {"kind": "not an item"}, {"kind": []any{"Q1", "Q2"}}} {
		ent, err := a.Assemble(rec)
		require.NoError(t, err)
		assert.Empty(t, ent.Failures)
		require.Len(t, ent.Statements, 1)
		assert.Equal(t, datatype.Item{ID: "Q5"}, ent.Statements[0].Value)
	}
}

func TestAssemble_Cardinality(t *testing.T) {
	p := mustProfile(t, `
id: x
statements:
  - {property: P569, datatype: time, source: born, separator: ";", max_count: 1}
  - {property: P106, datatype: wikibase-item, source: occ, separator: ";", max_count: unbounded}
`)
	a := New(p)

	_, err := a.Assemble(Record{"born": "1815; 1816"})
	var cerr *CardinalityError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "P569", cerr.StatementID)
	assert.Equal(t, 2, cerr.Count)
	assert.Equal(t, 1, cerr.Max)

	ent, err := a.Assemble(Record{"occ": "Q1;Q2; Q3"})
	require.NoError(t, err)
	assert.Len(t, ent.Instances("P106"), 3)
	assert.Empty(t, ent.Instances("P569"), "min_count shortfall is not an assembly error")
}

func TestAssemble_NoPhantomStatements(t *testing.T) {
	p := mustProfile(t, personProfile)
	a := New(p, WithClock(fixedNow))

	ent, err := a.Assemble(Record{"unrelated": "value", "P999": "Q1"})
	require.NoError(t, err)
	for _, s := range ent.Statements {
		_, ok := p.Statement(s.ID)
		assert.True(t, ok, "statement %s is declared", s.ID)
	}
	assert.Len(t, ent.Statements, 1, "only the fixed instance_of statement")
}

func TestAssemble_CoercionFailureDropsOnlyThatInstance(t *testing.T) {
	p := mustProfile(t, personProfile)
	a := New(p, WithClock(fixedNow))

	ent, err := a.Assemble(Record{
		"born":        "sometime",
		"occupations": "Q170790;painter",
		"website":     "https://ada.example.org",
	})
	require.NoError(t, err)

	assert.Empty(t, ent.Instances("P569"))
	assert.Len(t, ent.Instances("P106"), 1)
	assert.Len(t, ent.Instances("P856"), 1)

	require.Len(t, ent.Failures, 2)
	assert.Equal(t, "P569", ent.Failures[0].StatementID)
	assert.Equal(t, "value", ent.Failures[0].Field)
	assert.Equal(t, "sometime", ent.Failures[0].Input)
	var cerr *datatype.CoercionError
	assert.True(t, errors.As(ent.Failures[0], &cerr))
	assert.Equal(t, 1, ent.Failures[1].Instance)
}

func TestAssemble_QualifierFailureIsReported(t *testing.T) {
	p := mustProfile(t, personProfile)
	a := New(p, WithClock(fixedNow))

	ent, err := a.Assemble(Record{"occupations": "Q170790", "start": "not a date"})
	require.NoError(t, err)
	assert.Empty(t, ent.Instances("P106"))
	require.Len(t, ent.FailuresFor("P106"), 1)
	assert.Equal(t, "qualifiers.P580", ent.FailuresFor("P106")[0].Field)
}

func TestAssemble_LabelMatching(t *testing.T) {
	p := mustProfile(t, personProfile)
	q := &staticQuerier{candidates: []hydrate.Candidate{{ID: "Q1028181", Label: "painter"}, {ID: "Q36180", Label: "writer"}}}
	h := hydrate.New(q, nil, hydrate.Config{MaxAttempts: 1})
	h.HydrateAll(t.Context(), p.AllowedLists())

	a := New(p, WithItemLookup(h), WithClock(fixedNow))
	ent, err := a.Assemble(Record{"occupations": "Painter; Q36180; astronaut"})
	require.NoError(t, err)

	occ := ent.Instances("P106")
	require.Len(t, occ, 2)
	assert.Equal(t, datatype.Item{ID: "Q1028181"}, occ[0].Value)
	assert.Equal(t, datatype.Item{ID: "Q36180"}, occ[1].Value)
	require.Len(t, ent.Failures, 1)
	assert.Equal(t, "astronaut", ent.Failures[0].Input)
}

func TestAssemble_HiddenValueUsesLiteralThenSource(t *testing.T) {
	p := mustProfile(t, `
id: x
statements:
  - {id: lit, property: P1, datatype: string, value: "fixed text", source: a, behavior: {value: hidden}}
  - {id: src, property: P2, datatype: string, source: b, behavior: {value: hidden}}
  - {id: def, property: P3, datatype: string, value: "default", source: c}
`)
	ent, err := New(p).Assemble(Record{"a": "ignored", "b": "from source"})
	require.NoError(t, err)
	assert.Equal(t, datatype.Text{Value: "fixed text"}, ent.Instances("lit")[0].Value)
	assert.Equal(t, datatype.Text{Value: "from source"}, ent.Instances("src")[0].Value)
	assert.Equal(t, datatype.Text{Value: "default"}, ent.Instances("def")[0].Value, "editable falls back to the literal")
}

func TestValues(t *testing.T) {
	spec := &profile.StatementSpec{Source: "f", Separator: "|", Behavior: profile.DefaultBehavior()}
	tests := []struct {
		name string
		rec  Record
		want []any
	}{
		{"missing", Record{}, nil},
		{"nil", Record{"f": nil}, nil},
		{"blank", Record{"f": "  "}, nil},
		{"split", Record{"f": "a| b ||c"}, []any{"a", "b", "c"}},
		{"list", Record{"f": []any{"a", nil, 3}}, []any{"a", 3}},
		{"string list", Record{"f": []string{"a", " "}}, []any{"a"}},
		{"scalar", Record{"f": 42}, []any{42}},
		{"map", Record{"f": map[string]any{"amount": 1}}, []any{map[string]any{"amount": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Values(spec, tt.rec))
		})
	}
}
