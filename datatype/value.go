package datatype

import (
	"strconv"
	"strings"
)

// Default calendar and globe identifiers used by the target graph.
const (
	GregorianCalendar = "http://www.wikidata.org/entity/Q1985727"
	EarthGlobe        = "http://www.wikidata.org/entity/Q2"
	EntityPrefix      = "http://www.wikidata.org/entity/"
	// UnitOne marks a dimensionless quantity.
	UnitOne = "1"
)

// Precision is the time precision code used by the target graph.
type Precision int

const (
	PrecisionMillennium Precision = 6
	PrecisionCentury    Precision = 7
	PrecisionDecade     Precision = 8
	PrecisionYear       Precision = 9
	PrecisionMonth      Precision = 10
	PrecisionDay        Precision = 11
)

// Value is a coerced, typed value. The set of implementations is closed.
type Value interface {
	Kind() Kind
	// String returns a compact human-readable form, also used for comparisons.
	String() string
	isValue()
}

// Text is a plain string value (string, external-id, commonsMedia).
type Text struct {
	Value string
}

func (Text) Kind() Kind       { return KindText }
func (t Text) String() string { return t.Value }
func (Text) isValue()         {}

// URL is an absolute URL value.
type URL struct {
	Value string
}

func (URL) Kind() Kind       { return KindURL }
func (u URL) String() string { return u.Value }
func (URL) isValue()         {}

// Item references an entity by identifier token (Q42, P31).
type Item struct {
	ID string
}

func (Item) Kind() Kind       { return KindItem }
func (i Item) String() string { return i.ID }
func (Item) isValue()         {}

// EntityType returns "item" or "property" depending on the token prefix.
func (i Item) EntityType() string {
	if strings.HasPrefix(i.ID, "P") {
		return "property"
	}
	return "item"
}

// NumericID returns the numeric part of the identifier.
func (i Item) NumericID() int64 {
	n, _ := strconv.ParseInt(strings.TrimLeft(i.ID, "QP"), 10, 64)
	return n
}

// Quantity is a signed decimal amount with an optional unit entity.
type Quantity struct {
	// Amount is normalized to a signed decimal string, e.g. "+12.5" or "-3".
	Amount string
	// Unit is UnitOne or an entity URI.
	Unit string
}

func (Quantity) Kind() Kind { return KindQuantity }
func (q Quantity) String() string {
	if q.Unit == "" || q.Unit == UnitOne {
		return q.Amount
	}
	return q.Amount + " " + strings.TrimPrefix(q.Unit, EntityPrefix)
}
func (Quantity) isValue() {}

// Time is a point in time with an explicit precision.
type Time struct {
	// Time is formatted as +YYYY-MM-DDT00:00:00Z with zero-padded unknown parts.
	Time      string
	Precision Precision
	Calendar  string
}

func (Time) Kind() Kind       { return KindTime }
func (t Time) String() string { return t.Time + "/" + strconv.Itoa(int(t.Precision)) }
func (Time) isValue()         {}

// Coordinate is a point on a globe.
type Coordinate struct {
	Latitude  float64
	Longitude float64
	Precision float64
	Globe     string
}

func (Coordinate) Kind() Kind { return KindCoordinate }
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
func (Coordinate) isValue() {}

// Monolingual is a string in one language.
type Monolingual struct {
	Text     string
	Language string
}

func (Monolingual) Kind() Kind       { return KindMonolingual }
func (m Monolingual) String() string { return m.Text + "@" + m.Language }
func (Monolingual) isValue()         {}
