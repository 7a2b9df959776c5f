package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/semprofile/assemble"
	"github.com/c360studio/semprofile/datatype"
	"github.com/c360studio/semprofile/profile"
)

// Namespaces used by truthy N-Triples.
const (
	DirectPropertyNS = "http://www.wikidata.org/prop/direct/"
	RDFSLabel        = "http://www.w3.org/2000/01/rdf-schema#label"
	SchemaDesc       = "http://schema.org/description"
	SKOSAltLabel     = "http://www.w3.org/2004/02/skos/core#altLabel"
	XSDDateTime      = "http://www.w3.org/2001/XMLSchema#dateTime"
	XSDDecimal       = "http://www.w3.org/2001/XMLSchema#decimal"
	WKTLiteral       = "http://www.opengis.net/ont/geosparql#wktLiteral"
)

// DefaultSubject is the blank node used when no subject IRI is given.
const DefaultSubject = "_:entity"

// NTriples renders the truthy view of ent: terms plus, per property, the
// main values of the best-ranked instances. Deprecated instances are never
// truthy; preferred instances hide normal ones.
func NTriples(ent *assemble.Entity, subject string) string {
	subj := DefaultSubject
	if subject != "" {
		subj = "<" + subject + ">"
	}

	var sb strings.Builder
	writeTerms(&sb, subj, RDFSLabel, singleTerms(ent.Labels))
	writeTerms(&sb, subj, SchemaDesc, singleTerms(ent.Descriptions))
	writeTerms(&sb, subj, SKOSAltLabel, ent.Aliases)

	for _, st := range truthy(ent.Statements) {
		obj, ok := formatObjectNTriples(st.Value)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s <%s%s> %s .\n", subj, DirectPropertyNS, st.Property, obj))
	}
	return sb.String()
}

func singleTerms(m map[string]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for lang, v := range m {
		out[lang] = []string{v}
	}
	return out
}

func writeTerms(sb *strings.Builder, subj, predicate string, terms map[string][]string) {
	langs := make([]string, 0, len(terms))
	for lang := range terms {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		for _, v := range terms[lang] {
			sb.WriteString(fmt.Sprintf("%s <%s> \"%s\"@%s .\n", subj, predicate, escapeString(v), lang))
		}
	}
}

// truthy keeps the best-ranked instances of each property in assembly order.
func truthy(statements []assemble.Statement) []assemble.Statement {
	preferred := make(map[string]bool)
	for _, st := range statements {
		if st.Rank == profile.RankPreferred {
			preferred[st.Property] = true
		}
	}
	var out []assemble.Statement
	for _, st := range statements {
		switch {
		case st.Rank == profile.RankDeprecated:
		case preferred[st.Property] && st.Rank != profile.RankPreferred:
		default:
			out = append(out, st)
		}
	}
	return out
}

// formatObjectNTriples formats a main value as an N-Triples object.
func formatObjectNTriples(v datatype.Value) (string, bool) {
	switch tv := v.(type) {
	case datatype.Text:
		return fmt.Sprintf("\"%s\"", escapeString(tv.Value)), true
	case datatype.URL:
		return fmt.Sprintf("<%s>", tv.Value), true
	case datatype.Item:
		return fmt.Sprintf("<%s%s>", datatype.EntityPrefix, tv.ID), true
	case datatype.Quantity:
		return fmt.Sprintf("\"%s\"^^<%s>", tv.Amount, XSDDecimal), true
	case datatype.Time:
		return fmt.Sprintf("\"%s\"^^<%s>", strings.TrimPrefix(tv.Time, "+"), XSDDateTime), true
	case datatype.Coordinate:
		point := "Point(" + strconv.FormatFloat(tv.Longitude, 'f', -1, 64) + " " +
			strconv.FormatFloat(tv.Latitude, 'f', -1, 64) + ")"
		return fmt.Sprintf("\"%s\"^^<%s>", point, WKTLiteral), true
	case datatype.Monolingual:
		return fmt.Sprintf("\"%s\"@%s", escapeString(tv.Text), tv.Language), true
	}
	return "", false
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
