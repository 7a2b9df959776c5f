package graph

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "semprofile",
		Category:    "entity",
		Version:     "v1",
		Description: "Assembled profile entity projected to truthy triples",
		Factory:     func() any { return &EntityPayload{} },
	})
	if err != nil {
		panic("failed to register EntityPayload: " + err.Error())
	}
}

// EntityType is the message type for assembled entity payloads.
var EntityType = message.Type{Domain: "semprofile", Category: "entity", Version: "v1"}

// EntityPayload carries one assembled entity to graph ingestion. The triples
// are the projection made by Triples; Claims counts the truthy claims among
// them so consumers can spot an entity whose statements were all dropped.
type EntityPayload struct {
	ID             string           `json:"id"`
	ProfileID      string           `json:"profile_id"`
	ProfileVersion string           `json:"profile_version,omitempty"`
	Claims         int              `json:"claims"`
	Projected      []message.Triple `json:"triples"`
	AssembledAt    time.Time        `json:"assembled_at"`
}

func (e *EntityPayload) EntityID() string          { return e.ID }
func (e *EntityPayload) Triples() []message.Triple { return e.Projected }
func (e *EntityPayload) Schema() message.Type      { return EntityType }

// Validate rejects payloads that graph ingestion could not attribute: a
// missing entity or profile id, no triples, or a triple about another subject.
func (e *EntityPayload) Validate() error {
	switch {
	case e.ID == "":
		return errors.New("entity ID is required")
	case e.ProfileID == "":
		return errors.New("profile ID is required")
	case len(e.Projected) == 0:
		return errors.New("at least one triple is required")
	case e.Claims < 0 || e.Claims > len(e.Projected):
		return fmt.Errorf("claim count %d out of range", e.Claims)
	}
	for i, t := range e.Projected {
		if t.Subject != e.ID {
			return fmt.Errorf("triple %d has subject %q, want %q", i, t.Subject, e.ID)
		}
	}
	return nil
}

func (e *EntityPayload) MarshalJSON() ([]byte, error) {
	type Alias EntityPayload
	return json.Marshal((*Alias)(e))
}

func (e *EntityPayload) UnmarshalJSON(data []byte) error {
	type Alias EntityPayload
	return json.Unmarshal(data, (*Alias)(e))
}
