// Package datatype converts raw source values into typed knowledge-graph values.
//
// Every datatype tag declared in a profile maps onto one Kind from a closed set
// (text, url, item, quantity, time, coordinate, monolingual). Downstream code
// dispatches on Kind only; the open-ended tag strings stop at this package.
package datatype

import "fmt"

// Datatype is the datatype tag carried by a statement or fragment in a profile.
type Datatype string

// Supported datatype tags.
const (
	String          Datatype = "string"
	ExternalID      Datatype = "external-id"
	CommonsMedia    Datatype = "commonsMedia"
	URLType         Datatype = "url"
	WikibaseItem    Datatype = "wikibase-item"
	WikibaseProp    Datatype = "wikibase-property"
	QuantityType    Datatype = "quantity"
	TimeType        Datatype = "time"
	GlobeCoordinate Datatype = "globe-coordinate"
	MonolingualText Datatype = "monolingualtext"
)

// Kind is the closed set of value families every datatype tag resolves to.
type Kind int

const (
	KindText Kind = iota + 1
	KindURL
	KindItem
	KindQuantity
	KindTime
	KindCoordinate
	KindMonolingual
)

var kindNames = map[Kind]string{
	KindText:        "text",
	KindURL:         "url",
	KindItem:        "item",
	KindQuantity:    "quantity",
	KindTime:        "time",
	KindCoordinate:  "coordinate",
	KindMonolingual: "monolingual",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var kinds = map[Datatype]Kind{
	String:          KindText,
	ExternalID:      KindText,
	CommonsMedia:    KindText,
	URLType:         KindURL,
	WikibaseItem:    KindItem,
	WikibaseProp:    KindItem,
	QuantityType:    KindQuantity,
	TimeType:        KindTime,
	GlobeCoordinate: KindCoordinate,
	MonolingualText: KindMonolingual,
}

// Kind returns the value family for the tag.
func (d Datatype) Kind() (Kind, bool) {
	k, ok := kinds[d]
	return k, ok
}

// Valid reports whether the tag is one of the supported datatypes.
func (d Datatype) Valid() bool {
	_, ok := kinds[d]
	return ok
}

// Parse validates a raw datatype tag.
func Parse(s string) (Datatype, error) {
	d := Datatype(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown datatype %q", s)
	}
	return d, nil
}

// All returns every supported datatype tag in declaration order.
func All() []Datatype {
	return []Datatype{
		String, ExternalID, CommonsMedia, URLType, WikibaseItem, WikibaseProp,
		QuantityType, TimeType, GlobeCoordinate, MonolingualText,
	}
}
