package datatype

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceTime_PrecisionDetection(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		opts     Options
		wantTime string
		wantPrec Precision
	}{
		{"year only", "2005", Options{}, "+2005-00-00T00:00:00Z", PrecisionYear},
		{"year and month", "2005-03", Options{}, "+2005-03-00T00:00:00Z", PrecisionMonth},
		{"full date", "2005-03-15", Options{}, "+2005-03-15T00:00:00Z", PrecisionDay},
		{"integer year", 1999, Options{}, "+1999-00-00T00:00:00Z", PrecisionYear},
		{"json decoded year", float64(2005), Options{}, "+2005-00-00T00:00:00Z", PrecisionYear},
		{"float32 year", float32(1066), Options{}, "+1066-00-00T00:00:00Z", PrecisionYear},
		{"negative float year", float64(-44), Options{}, "-0044-00-00T00:00:00Z", PrecisionYear},
		{"unsigned year", uint64(1850), Options{}, "+1850-00-00T00:00:00Z", PrecisionYear},
		{"json number year", json.Number("1999"), Options{}, "+1999-00-00T00:00:00Z", PrecisionYear},
		{"float year with month override", float64(2005), Options{Precision: PrecisionMonth}, "+2005-00-00T00:00:00Z", PrecisionMonth},
		{"negative year", "-0044", Options{}, "-0044-00-00T00:00:00Z", PrecisionYear},
		{"timestamp suffix ignored", "2005-03-15T10:00:00Z", Options{}, "+2005-03-15T00:00:00Z", PrecisionDay},
		{"override coarser than input", "2005-03-15", Options{Precision: PrecisionYear}, "+2005-00-00T00:00:00Z", PrecisionYear},
		{"override finer than input", "2005", Options{Precision: PrecisionDay}, "+2005-00-00T00:00:00Z", PrecisionDay},
		{"override on month input", "2005-03", Options{Precision: PrecisionDecade}, "+2005-00-00T00:00:00Z", PrecisionDecade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Coerce(TimeType, tt.raw, tt.opts)
			require.NoError(t, err)
			tv, ok := v.(Time)
			require.True(t, ok, "expected Time, got %T", v)
			assert.Equal(t, tt.wantTime, tv.Time)
			assert.Equal(t, tt.wantPrec, tv.Precision)
			assert.Equal(t, GregorianCalendar, tv.Calendar)
		})
	}
}

func TestCoerceTime_CurrentDate(t *testing.T) {
	fixed := func() time.Time { return time.Date(2024, time.February, 29, 18, 30, 0, 0, time.UTC) }

	v, err := Coerce(TimeType, CurrentDate, Options{Now: fixed})
	require.NoError(t, err)
	assert.Equal(t, Time{Time: "+2024-02-29T00:00:00Z", Precision: PrecisionDay, Calendar: GregorianCalendar}, v)
}

func TestCoerceTime_Errors(t *testing.T) {
	for _, raw := range []any{
		"2005-13", "2005-02-30", "2005-03-15-01", "yesterday", "", true,
		2005.5, float32(1999.25), json.Number("2005.5"), math.NaN(), math.Inf(1), float64(1e12),
	} {
		_, err := Coerce(TimeType, raw, Options{})
		var cerr *CoercionError
		require.ErrorAs(t, err, &cerr, "input %#v", raw)
		assert.Equal(t, TimeType, cerr.Datatype)
	}

	_, err := Coerce(TimeType, "2005", Options{Precision: 14})
	require.Error(t, err)
}

func TestCoerceCoordinate(t *testing.T) {
	t.Run("string pair", func(t *testing.T) {
		v, err := Coerce(GlobeCoordinate, "52.52, 13.405", Options{})
		require.NoError(t, err)
		c := v.(Coordinate)
		assert.InDelta(t, 52.52, c.Latitude, 1e-9)
		assert.InDelta(t, 13.405, c.Longitude, 1e-9)
		assert.Equal(t, EarthGlobe, c.Globe)
	})

	t.Run("mapping with precision", func(t *testing.T) {
		v, err := Coerce(GlobeCoordinate, map[string]any{"latitude": -33.9, "longitude": 151, "precision": 0.01}, Options{})
		require.NoError(t, err)
		assert.InDelta(t, 0.01, v.(Coordinate).Precision, 1e-12)
	})

	t.Run("non-finite precision keeps the default", func(t *testing.T) {
		v, err := Coerce(GlobeCoordinate, map[string]any{"latitude": 1.0, "longitude": 2.0, "precision": math.NaN()}, Options{})
		require.NoError(t, err)
		assert.InDelta(t, 0.0001, v.(Coordinate).Precision, 1e-12)
	})

	bad := []any{
		"91,0",
		"-90.5,10",
		[]any{10.0, 180.1},
		map[string]any{"latitude": 0, "longitude": -181},
		"north,east",
		"1,2,3",
		"NaN,10",
		"10,NaN",
		"Inf,0",
		[]any{math.NaN(), 0.0},
		map[string]any{"latitude": 0, "longitude": math.Inf(-1)},
	}
	for _, raw := range bad {
		_, err := Coerce(GlobeCoordinate, raw, Options{})
		var cerr *CoercionError
		assert.ErrorAs(t, err, &cerr, "input %#v", raw)
	}
}

func TestCoerceQuantity(t *testing.T) {
	tests := []struct {
		raw        any
		opts       Options
		wantAmount string
		wantUnit   string
	}{
		{"12.5", Options{}, "+12.5", UnitOne},
		{"-3", Options{}, "-3", UnitOne},
		{"007", Options{}, "+7", UnitOne},
		{"-0.0", Options{}, "+0.0", UnitOne},
		{42, Options{}, "+42", UnitOne},
		{1.25, Options{}, "+1.25", UnitOne},
		{"180 Q11573", Options{}, "+180", EntityPrefix + "Q11573"},
		{map[string]any{"amount": "5", "unit": "Q11570"}, Options{}, "+5", EntityPrefix + "Q11570"},
		{"5 Q11570", Options{Unit: "Q11573"}, "+5", EntityPrefix + "Q11573"},
	}
	for _, tt := range tests {
		v, err := Coerce(QuantityType, tt.raw, tt.opts)
		require.NoError(t, err, "input %#v", tt.raw)
		q := v.(Quantity)
		assert.Equal(t, tt.wantAmount, q.Amount, "input %#v", tt.raw)
		assert.Equal(t, tt.wantUnit, q.Unit, "input %#v", tt.raw)
	}

	for _, raw := range []any{"1e5", "twelve", "5 kilograms", "1 2 3", true} {
		_, err := Coerce(QuantityType, raw, Options{})
		assert.Error(t, err, "input %#v", raw)
	}
}

func TestCoerceItem(t *testing.T) {
	v, err := Coerce(WikibaseItem, "Q42", Options{})
	require.NoError(t, err)
	assert.Equal(t, Item{ID: "Q42"}, v)
	assert.Equal(t, int64(42), v.(Item).NumericID())
	assert.Equal(t, "item", v.(Item).EntityType())

	v, err = Coerce(WikibaseItem, EntityPrefix+"Q5", Options{})
	require.NoError(t, err)
	assert.Equal(t, Item{ID: "Q5"}, v)

	v, err = Coerce(WikibaseProp, "P31", Options{})
	require.NoError(t, err)
	assert.Equal(t, "property", v.(Item).EntityType())

	for _, raw := range []any{"P31", "Q0", "q42", "painter", 42} {
		_, err := Coerce(WikibaseItem, raw, Options{})
		assert.Error(t, err, "input %#v", raw)
	}
}

func TestCoerceTextAndURL(t *testing.T) {
	v, err := Coerce(String, "Ada Lovelace", Options{})
	require.NoError(t, err)
	assert.Equal(t, Text{Value: "Ada Lovelace"}, v)

	v, err = Coerce(ExternalID, 12345, Options{})
	require.NoError(t, err)
	assert.Equal(t, Text{Value: "12345"}, v)

	_, err = Coerce(String, "line one\nline two", Options{})
	assert.Error(t, err)
	_, err = Coerce(String, "   ", Options{})
	assert.Error(t, err)

	v, err = Coerce(URLType, "https://example.org/ada", Options{})
	require.NoError(t, err)
	assert.Equal(t, URL{Value: "https://example.org/ada"}, v)

	_, err = Coerce(URLType, "example.org/ada", Options{})
	var cerr *CoercionError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "scheme")
}

func TestCoerceMonolingual(t *testing.T) {
	v, err := Coerce(MonolingualText, map[string]any{"text": "Ada", "language": "en"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, Monolingual{Text: "Ada", Language: "en"}, v)

	v, err = Coerce(MonolingualText, "Ada", Options{Language: "pt-br"})
	require.NoError(t, err)
	assert.Equal(t, Monolingual{Text: "Ada", Language: "pt-br"}, v)

	_, err = Coerce(MonolingualText, "Ada", Options{})
	require.Error(t, err)
	_, err = Coerce(MonolingualText, "Ada", Options{Language: "zh-hant"})
	require.NoError(t, err)

	for _, lang := range []string{"EN", "e1", "not a tag", "pt-BR"} {
		_, err = Coerce(MonolingualText, "Ada", Options{Language: lang})
		assert.Error(t, err, lang)
	}
}

func TestCoerce_UnknownDatatypeAndNil(t *testing.T) {
	_, err := Coerce(Datatype("bogus"), "x", Options{})
	require.Error(t, err)

	_, err = Coerce(String, nil, Options{})
	var cerr *CoercionError
	require.True(t, errors.As(err, &cerr))
}

func TestDatatypeKinds(t *testing.T) {
	for _, dt := range All() {
		k, ok := dt.Kind()
		assert.True(t, ok, dt)
		assert.NotEqual(t, "", k.String())
	}
	_, err := Parse("geo-shape")
	assert.Error(t, err)
}
