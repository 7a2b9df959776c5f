// Package graph projects assembled entities into triples and publishes them
// for graph ingestion.
package graph

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semprofile/assemble"
	"github.com/c360studio/semprofile/datatype"
	"github.com/c360studio/semprofile/profile"
	"github.com/c360studio/semprofile/vocabulary/entity"
	"github.com/c360studio/semstreams/message"
)

// DefaultSubject for graph ingestion.
const DefaultSubject = "graph.ingest.entity"

// tripleSource identifies this module as the origin of projected triples.
const tripleSource = "semprofile.assemble"

// Publisher sends raw messages. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NewEntityID generates an entity id for a profile.
// Format: semprofile.local.<profile>.entity.<uuid>
func NewEntityID(profileID string) string {
	return fmt.Sprintf("semprofile.local.%s.entity.%s", profileID, uuid.New().String())
}

// Triples projects ent into triples: profile identity, terms in sorted
// language order, then the truthy claims in assembly order.
func Triples(entityID string, p *profile.Profile, ent *assemble.Entity, now time.Time) []message.Triple {
	triple := func(predicate string, object any) message.Triple {
		return message.Triple{
			Subject:    entityID,
			Predicate:  predicate,
			Object:     object,
			Source:     tripleSource,
			Timestamp:  now,
			Confidence: 1.0,
		}
	}

	triples := []message.Triple{
		triple(entity.PredicateProfile, p.ID),
		triple(entity.PredicateAssembledAt, now.Format(time.RFC3339)),
	}
	if p.Version != "" {
		triples = append(triples, triple(entity.PredicateProfileVersion, p.Version))
	}
	for _, lang := range sortedKeys(ent.Labels) {
		triples = append(triples, triple(entity.PredicateLabel, ent.Labels[lang]+"@"+lang))
	}
	for _, lang := range sortedKeys(ent.Descriptions) {
		triples = append(triples, triple(entity.PredicateDescription, ent.Descriptions[lang]+"@"+lang))
	}
	for _, lang := range sortedKeys(ent.Aliases) {
		for _, alias := range ent.Aliases[lang] {
			triples = append(triples, triple(entity.PredicateAlias, alias+"@"+lang))
		}
	}
	for _, site := range sortedKeys(ent.Sitelinks) {
		triples = append(triples, triple(entity.PredicateSitelink, site+":"+ent.Sitelinks[site]))
	}

	preferred := make(map[string]bool)
	for _, st := range ent.Statements {
		if st.Rank == profile.RankPreferred {
			preferred[st.Property] = true
		}
	}
	for _, st := range ent.Statements {
		if st.Rank == profile.RankDeprecated || (preferred[st.Property] && st.Rank != profile.RankPreferred) {
			continue
		}
		triples = append(triples, triple(entity.ClaimPredicate(st.Property), objectValue(st.Value)))
	}
	return triples
}

// objectValue maps a typed value to a triple object.
func objectValue(v datatype.Value) any {
	switch tv := v.(type) {
	case datatype.Item:
		return tv.ID
	case datatype.Quantity:
		if f, err := strconv.ParseFloat(tv.Amount, 64); err == nil && (tv.Unit == "" || tv.Unit == datatype.UnitOne) {
			return f
		}
		return tv.String()
	case datatype.Time:
		return strings.TrimPrefix(tv.Time, "+")
	}
	return v.String()
}

// PublishEntity projects ent and publishes it to subject. Publishing is fire
// and forget: Publisher carries no acknowledgement.
func PublishEntity(ctx context.Context, pub Publisher, subject, entityID string, p *profile.Profile, ent *assemble.Entity) error {
	if pub == nil {
		return nil // Skip publishing if no connection (graceful degradation)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if subject == "" {
		subject = DefaultSubject
	}

	now := time.Now()
	triples := Triples(entityID, p, ent, now)
	claims := 0
	for _, t := range triples {
		if _, ok := entity.ClaimProperty(t.Predicate); ok {
			claims++
		}
	}
	payload := &EntityPayload{
		ID:             entityID,
		ProfileID:      p.ID,
		ProfileVersion: p.Version,
		Claims:         claims,
		Projected:      triples,
		AssembledAt:    now,
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("validate entity payload: %w", err)
	}

	data, err := payload.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal entity payload: %w", err)
	}
	if err := pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish entity: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
