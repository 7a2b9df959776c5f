package profile

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/c360studio/semprofile/datatype"
)

// Parse decodes and validates a profile document.
//
// Structural problems return *ProfileLoadError; references to undefined
// pattern names return *PatternResolutionError. Conflicting inline pattern
// definitions are reported in Profile.Warnings.
func Parse(data []byte) (*Profile, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, loadError("malformed document", err)
	}
	p, err := build(doc)
	if err != nil {
		var lerr *ProfileLoadError
		if errors.As(err, &lerr) && lerr.ProfileID == "" {
			lerr.ProfileID = doc.ID
		}
		return nil, err
	}
	return p, nil
}

func build(doc *document) (*Profile, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return nil, loadError("missing id", nil)
	}
	status := Status(doc.Status)
	if doc.Status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, loadError("invalid status", fmt.Errorf("%q", doc.Status))
	}

	p := &Profile{
		ID:          doc.ID,
		Version:     doc.Version,
		Status:      status,
		Name:        doc.Name,
		Description: doc.Description,
	}

	var err error
	if p.Labels, err = buildTerms("labels", doc.Labels); err != nil {
		return nil, err
	}
	if p.Descriptions, err = buildTerms("descriptions", doc.Descriptions); err != nil {
		return nil, err
	}
	if p.Aliases, err = buildTerms("aliases", doc.Aliases); err != nil {
		return nil, err
	}
	for i, s := range doc.Sitelinks {
		if s.Site == "" || (s.Value == "" && s.Source == "") {
			return nil, loadError(fmt.Sprintf("sitelinks[%d]", i), errors.New("sitelink needs a site and a value or source"))
		}
		p.Sitelinks = append(p.Sitelinks, SitelinkSpec(s))
	}

	sites := collectSites(doc.Statements)
	lib, warnings, err := buildPatternLibrary(doc.Patterns, sites)
	if err != nil {
		return nil, err
	}
	p.Patterns = lib
	p.Warnings = warnings

	ids := make(map[string]bool, len(doc.Statements))
	lists := make(map[string]*AllowedItemList)
	for i, sd := range doc.Statements {
		spec, err := buildStatement(i, sd, lib)
		if err != nil {
			return nil, err
		}
		if ids[spec.ID] {
			return nil, loadError("duplicate statement id", fmt.Errorf("%q declared more than once; set a distinct id", spec.ID))
		}
		ids[spec.ID] = true

		if spec.Allowed != nil {
			if prior, ok := lists[spec.Allowed.ID]; ok {
				if !reflect.DeepEqual(prior, spec.Allowed) {
					return nil, loadError("duplicate allowed list id", fmt.Errorf("%q declared with different content", spec.Allowed.ID))
				}
				spec.Allowed = prior
			} else {
				lists[spec.Allowed.ID] = spec.Allowed
			}
		}
		p.Statements = append(p.Statements, spec)
	}
	return p, nil
}

func buildTerms(section string, docs []termDoc) ([]TermSpec, error) {
	terms := make([]TermSpec, 0, len(docs))
	for i, t := range docs {
		if t.Language == "" {
			return nil, loadError(fmt.Sprintf("%s[%d]", section, i), errors.New("term has no language"))
		}
		if t.Value == "" && t.Source == "" {
			return nil, loadError(fmt.Sprintf("%s[%d]", section, i), errors.New("term declares neither value nor source"))
		}
		terms = append(terms, TermSpec(t))
	}
	return terms, nil
}

func statementID(sd statementDoc) string {
	if sd.ID != "" {
		return sd.ID
	}
	return sd.Property
}

func sitePath(sd statementDoc, kind string, j int) string {
	return fmt.Sprintf("statements[%s].%s[%d]", statementID(sd), kind, j)
}

func collectSites(statements []statementDoc) []fragmentSite {
	var sites []fragmentSite
	for _, sd := range statements {
		for j, q := range sd.Qualifiers {
			sites = append(sites, fragmentSite{path: sitePath(sd, "qualifiers", j), doc: q})
		}
		for j, r := range sd.References {
			sites = append(sites, fragmentSite{path: sitePath(sd, "references", j), doc: r})
		}
	}
	return sites
}

func buildStatement(i int, sd statementDoc, lib *PatternLibrary) (*StatementSpec, error) {
	path := fmt.Sprintf("statements[%d]", i)
	if sd.Property == "" {
		return nil, loadError(path, errors.New("statement has no property"))
	}
	dt, err := datatype.Parse(sd.Datatype)
	if err != nil {
		return nil, loadError(path, err)
	}
	kind, _ := dt.Kind()
	behavior, err := parseBehavior(sd.Behavior)
	if err != nil {
		return nil, loadError(path, err)
	}
	rank, err := parseRank(sd.Rank)
	if err != nil {
		return nil, loadError(path, err)
	}
	card, err := parseCardinality(sd.MinCount, sd.MaxCount)
	if err != nil {
		return nil, loadError(path, err)
	}

	spec := &StatementSpec{
		ID:          statementID(sd),
		Property:    sd.Property,
		Datatype:    dt,
		Kind:        kind,
		Cardinality: card,
		Behavior:    behavior,
		Required:    sd.Required,
		Rank:        rank,
		Value:       sd.Value,
		Source:      sd.Source,
		Separator:   sd.Separator,
		Options: datatype.Options{
			Precision: datatype.Precision(sd.Precision),
			Unit:      sd.Unit,
			Language:  sd.Language,
		},
	}

	if behavior.Value == ValueFixed && !spec.HasLiteral() {
		return nil, loadError(path, errors.New("value policy fixed requires a literal value"))
	}
	if !spec.HasLiteral() && spec.Source == "" {
		return nil, loadError(path, errors.New("statement declares neither value nor source"))
	}
	for _, lit := range literals(spec.Value) {
		if _, err := datatype.Coerce(dt, lit, spec.Options); err != nil {
			return nil, loadError(path+": literal value", err)
		}
	}

	for j, q := range sd.Qualifiers {
		frag, err := lib.resolve(fragmentSite{path: sitePath(sd, "qualifiers", j), doc: q})
		if err != nil {
			return nil, err
		}
		spec.Qualifiers = append(spec.Qualifiers, frag)
	}
	for j, r := range sd.References {
		frag, err := lib.resolve(fragmentSite{path: sitePath(sd, "references", j), doc: r})
		if err != nil {
			return nil, err
		}
		spec.References = append(spec.References, frag)
	}

	if sd.AllowedItems != nil {
		list, err := buildAllowed(spec.ID, dt, *sd.AllowedItems)
		if err != nil {
			return nil, loadError(path+".allowed_items", err)
		}
		spec.Allowed = list
	}
	return spec, nil
}

func parseCardinality(minCount int, maxCount any) (Cardinality, error) {
	if minCount < 0 {
		return Cardinality{}, fmt.Errorf("min_count %d is negative", minCount)
	}
	c := Cardinality{Min: minCount, Max: Unbounded}
	switch v := maxCount.(type) {
	case nil:
	case string:
		if v != "unbounded" {
			return Cardinality{}, fmt.Errorf("max_count must be an integer or \"unbounded\", got %q", v)
		}
	case int:
		if v < 1 {
			return Cardinality{}, fmt.Errorf("max_count %d must be at least 1", v)
		}
		c.Max = v
	default:
		return Cardinality{}, fmt.Errorf("max_count must be an integer or \"unbounded\", got %v", v)
	}
	if c.Max != Unbounded && c.Min > c.Max {
		return Cardinality{}, fmt.Errorf("min_count %d exceeds max_count %d", c.Min, c.Max)
	}
	return c, nil
}

func buildAllowed(statementID string, dt datatype.Datatype, doc allowedDoc) (*AllowedItemList, error) {
	list := &AllowedItemList{
		ID:            doc.ID,
		Items:         slices.Clone(doc.Items),
		Query:         strings.TrimSpace(doc.Query),
		FallbackItems: slices.Clone(doc.FallbackItems),
	}
	if list.ID == "" {
		list.ID = statementID
	}
	switch {
	case list.Query != "" && len(list.FallbackItems) == 0:
		return nil, errors.New("query-backed list needs fallback_items")
	case list.Query == "" && len(list.Items) == 0:
		return nil, errors.New("list needs items or a query")
	}
	for _, id := range list.Fallback() {
		if _, err := datatype.Coerce(dt, id, datatype.Options{}); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// literals flattens a literal value that may be a list of values.
func literals(v any) []any {
	switch lv := v.(type) {
	case nil:
		return nil
	case []any:
		return lv
	}
	return []any{v}
}

// Literals returns the spec's literal value(s) as a flat list.
func (s *StatementSpec) Literals() []any {
	return literals(s.Value)
}
