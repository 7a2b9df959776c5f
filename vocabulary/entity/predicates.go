package entity

import (
	"strings"

	"github.com/c360studio/semstreams/vocabulary"
)

// Namespace for entity predicates.
const Namespace = "https://semprofile.dev/vocabulary/entity#"

// DirectClaimNamespace is the IRI namespace of direct (truthy) property claims.
const DirectClaimNamespace = "http://www.wikidata.org/prop/direct/"

// Core entity predicates.
const (
	// PredicateProfile is the id of the profile the entity was assembled with.
	PredicateProfile = "semprofile.entity.profile"

	// PredicateProfileVersion is the profile version used for assembly.
	PredicateProfileVersion = "semprofile.entity.profile_version"

	// PredicateLabel is a label, formatted "<text>@<lang>".
	PredicateLabel = "semprofile.entity.label"

	// PredicateDescription is a description, formatted "<text>@<lang>".
	PredicateDescription = "semprofile.entity.description"

	// PredicateAlias is an alias, formatted "<text>@<lang>".
	PredicateAlias = "semprofile.entity.alias"

	// PredicateSitelink is a sitelink, formatted "<site>:<title>".
	PredicateSitelink = "semprofile.entity.sitelink"

	// PredicateAssembledAt is the RFC3339 assembly timestamp.
	PredicateAssembledAt = "semprofile.entity.assembled_at"
)

// claimPrefix prefixes per-property claim predicates.
const claimPrefix = "semprofile.claim."

// ClaimPredicate returns the predicate for truthy claims of property.
func ClaimPredicate(property string) string {
	return claimPrefix + property
}

// ClaimProperty extracts the property from a claim predicate.
func ClaimProperty(predicate string) (string, bool) {
	if !strings.HasPrefix(predicate, claimPrefix) {
		return "", false
	}
	return strings.TrimPrefix(predicate, claimPrefix), true
}

func init() {
	vocabulary.Register(PredicateProfile,
		vocabulary.WithDescription("Entity profile used for assembly"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(vocabulary.ProvWasDerivedFrom))

	vocabulary.Register(PredicateProfileVersion,
		vocabulary.WithDescription("Version of the entity profile"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"profileVersion"))

	vocabulary.Register(PredicateLabel,
		vocabulary.WithDescription("Language-tagged label"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(vocabulary.SkosPrefLabel))

	vocabulary.Register(PredicateDescription,
		vocabulary.WithDescription("Language-tagged description"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"description"))

	vocabulary.Register(PredicateAlias,
		vocabulary.WithDescription("Language-tagged alias"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI("http://www.w3.org/2004/02/skos/core#altLabel"))

	vocabulary.Register(PredicateSitelink,
		vocabulary.WithDescription("Site-scoped page title"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"sitelink"))

	vocabulary.Register(PredicateAssembledAt,
		vocabulary.WithDescription("Assembly timestamp (RFC3339)"),
		vocabulary.WithDataType("datetime"),
		vocabulary.WithIRI(vocabulary.ProvGeneratedAtTime))
}
