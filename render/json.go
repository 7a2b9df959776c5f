package render

import (
	"fmt"
	"slices"

	"github.com/goccy/go-json"

	"github.com/c360studio/semprofile/assemble"
	"github.com/c360studio/semprofile/datatype"
)

// Map-valued fields are encoded with sorted keys; every list keeps assembly
// order, so the encoding is deterministic.

type entityJSON struct {
	Type         string                     `json:"type"`
	Labels       map[string]termJSON        `json:"labels"`
	Descriptions map[string]termJSON        `json:"descriptions"`
	Aliases      map[string][]termJSON      `json:"aliases"`
	Sitelinks    map[string]sitelinkJSON    `json:"sitelinks"`
	Claims       map[string][]statementJSON `json:"claims"`
}

type termJSON struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type sitelinkJSON struct {
	Site  string `json:"site"`
	Title string `json:"title"`
}

type statementJSON struct {
	MainSnak        snakJSON              `json:"mainsnak"`
	Type            string                `json:"type"`
	Rank            string                `json:"rank"`
	Qualifiers      map[string][]snakJSON `json:"qualifiers,omitempty"`
	QualifiersOrder []string              `json:"qualifiers-order,omitempty"`
	References      []referenceJSON       `json:"references,omitempty"`
}

type referenceJSON struct {
	Snaks      map[string][]snakJSON `json:"snaks"`
	SnaksOrder []string              `json:"snaks-order"`
}

type snakJSON struct {
	SnakType  string        `json:"snaktype"`
	Property  string        `json:"property"`
	DataValue dataValueJSON `json:"datavalue"`
	Datatype  string        `json:"datatype"`
}

type dataValueJSON struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

type entityIDJSON struct {
	EntityType string `json:"entity-type"`
	NumericID  int64  `json:"numeric-id"`
	ID         string `json:"id"`
}

type quantityJSON struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

type timeJSON struct {
	Time          string `json:"time"`
	Timezone      int    `json:"timezone"`
	Before        int    `json:"before"`
	After         int    `json:"after"`
	Precision     int    `json:"precision"`
	CalendarModel string `json:"calendarmodel"`
}

type coordinateJSON struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Precision float64  `json:"precision"`
	Globe     string   `json:"globe"`
}

type monolingualJSON struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// JSON encodes ent as compact entity JSON.
func JSON(ent *assemble.Entity) ([]byte, error) {
	doc, err := toEntityJSON(ent)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// JSONIndent encodes ent as indented entity JSON.
func JSONIndent(ent *assemble.Entity) ([]byte, error) {
	doc, err := toEntityJSON(ent)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

func toEntityJSON(ent *assemble.Entity) (*entityJSON, error) {
	doc := &entityJSON{
		Type:         "item",
		Labels:       make(map[string]termJSON, len(ent.Labels)),
		Descriptions: make(map[string]termJSON, len(ent.Descriptions)),
		Aliases:      make(map[string][]termJSON, len(ent.Aliases)),
		Sitelinks:    make(map[string]sitelinkJSON, len(ent.Sitelinks)),
		Claims:       make(map[string][]statementJSON),
	}
	for lang, v := range ent.Labels {
		doc.Labels[lang] = termJSON{Language: lang, Value: v}
	}
	for lang, v := range ent.Descriptions {
		doc.Descriptions[lang] = termJSON{Language: lang, Value: v}
	}
	for lang, vs := range ent.Aliases {
		for _, v := range vs {
			doc.Aliases[lang] = append(doc.Aliases[lang], termJSON{Language: lang, Value: v})
		}
	}
	for site, title := range ent.Sitelinks {
		doc.Sitelinks[site] = sitelinkJSON{Site: site, Title: title}
	}

	for _, st := range ent.Statements {
		main, err := toSnakJSON(st.Property, st.Datatype, st.Value)
		if err != nil {
			return nil, fmt.Errorf("render statement %s: %w", st.ID, err)
		}
		sj := statementJSON{MainSnak: main, Type: "statement", Rank: string(st.Rank)}
		if sj.Rank == "" {
			sj.Rank = "normal"
		}
		if len(st.Qualifiers) > 0 {
			sj.Qualifiers, sj.QualifiersOrder, err = toSnakGroup(st.Qualifiers)
			if err != nil {
				return nil, fmt.Errorf("render statement %s qualifiers: %w", st.ID, err)
			}
		}
		for _, ref := range st.References {
			snaks, order, err := toSnakGroup(ref.Snaks)
			if err != nil {
				return nil, fmt.Errorf("render statement %s references: %w", st.ID, err)
			}
			sj.References = append(sj.References, referenceJSON{Snaks: snaks, SnaksOrder: order})
		}
		doc.Claims[st.Property] = append(doc.Claims[st.Property], sj)
	}
	return doc, nil
}

// toSnakGroup groups snaks by property; order lists properties by first use.
func toSnakGroup(snaks []assemble.Snak) (map[string][]snakJSON, []string, error) {
	grouped := make(map[string][]snakJSON)
	var order []string
	for _, s := range snaks {
		sj, err := toSnakJSON(s.Property, s.Datatype, s.Value)
		if err != nil {
			return nil, nil, err
		}
		if !slices.Contains(order, s.Property) {
			order = append(order, s.Property)
		}
		grouped[s.Property] = append(grouped[s.Property], sj)
	}
	return grouped, order, nil
}

func toSnakJSON(property string, dt datatype.Datatype, v datatype.Value) (snakJSON, error) {
	dv, err := toDataValue(v)
	if err != nil {
		return snakJSON{}, fmt.Errorf("property %s: %w", property, err)
	}
	return snakJSON{SnakType: "value", Property: property, DataValue: dv, Datatype: string(dt)}, nil
}

func toDataValue(v datatype.Value) (dataValueJSON, error) {
	switch tv := v.(type) {
	case datatype.Text:
		return dataValueJSON{Value: tv.Value, Type: "string"}, nil
	case datatype.URL:
		return dataValueJSON{Value: tv.Value, Type: "string"}, nil
	case datatype.Item:
		return dataValueJSON{
			Value: entityIDJSON{EntityType: tv.EntityType(), NumericID: tv.NumericID(), ID: tv.ID},
			Type:  "wikibase-entityid",
		}, nil
	case datatype.Quantity:
		return dataValueJSON{Value: quantityJSON{Amount: tv.Amount, Unit: tv.Unit}, Type: "quantity"}, nil
	case datatype.Time:
		return dataValueJSON{
			Value: timeJSON{Time: tv.Time, Precision: int(tv.Precision), CalendarModel: tv.Calendar},
			Type:  "time",
		}, nil
	case datatype.Coordinate:
		return dataValueJSON{
			Value: coordinateJSON{Latitude: tv.Latitude, Longitude: tv.Longitude, Precision: tv.Precision, Globe: tv.Globe},
			Type:  "globecoordinate",
		}, nil
	case datatype.Monolingual:
		return dataValueJSON{Value: monolingualJSON{Text: tv.Text, Language: tv.Language}, Type: "monolingualtext"}, nil
	}
	return dataValueJSON{}, fmt.Errorf("unsupported value %T", v)
}
