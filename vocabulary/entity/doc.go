// Package entity provides vocabulary predicates for assembled profile entities.
//
// Assembled entities are projected into graph triples: identity and terms use
// the fixed predicates below, and each truthy statement uses the predicate
// returned by ClaimPredicate for its property.
//
// Import this package to auto-register predicates:
//
//	import _ "github.com/c360studio/semprofile/vocabulary/entity"
package entity
