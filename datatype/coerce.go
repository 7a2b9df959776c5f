package datatype

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// MaxTextLength is the longest string value the target graph accepts.
const MaxTextLength = 1500

var (
	itemPattern     = regexp.MustCompile(`^Q[1-9][0-9]*$`)
	propertyPattern = regexp.MustCompile(`^P[1-9][0-9]*$`)
	decimalPattern  = regexp.MustCompile(`^([+-]?)([0-9]+)(\.[0-9]+)?$`)
)

// Options carries explicit overrides declared next to a value in the profile.
// Zero fields mean "not declared".
type Options struct {
	// Precision overrides time precision auto-detection (1-11).
	Precision Precision
	// Unit is the quantity unit, as an item token or entity URI.
	Unit string
	// Language is the monolingual text language tag.
	Language string
	// Now supplies the clock for "current_date". Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

type coercer func(dt Datatype, raw any, opts Options) (Value, error)

var coercers = map[Kind]coercer{
	KindText:        coerceText,
	KindURL:         coerceURL,
	KindItem:        coerceItem,
	KindQuantity:    coerceQuantity,
	KindTime:        coerceTime,
	KindCoordinate:  coerceCoordinate,
	KindMonolingual: coerceMonolingual,
}

// Coerce converts raw into a typed value for the datatype. It never substitutes
// a default: a value that does not fit fails with *CoercionError.
func Coerce(dt Datatype, raw any, opts Options) (Value, error) {
	kind, ok := dt.Kind()
	if !ok {
		return nil, coercionError(dt, raw, "a supported datatype", errors.New("unknown datatype"))
	}
	if raw == nil {
		return nil, coercionError(dt, raw, "a value", errors.New("value is empty"))
	}
	return coercers[kind](dt, raw, opts)
}

func coerceText(dt Datatype, raw any, _ Options) (Value, error) {
	s, ok := scalarString(raw)
	if !ok {
		return nil, coercionError(dt, raw, "a string", nil)
	}
	if strings.TrimSpace(s) == "" {
		return nil, coercionError(dt, raw, "a non-empty string", nil)
	}
	if strings.ContainsAny(s, "\r\n") {
		return nil, coercionError(dt, raw, "a single-line string", nil)
	}
	if n := utf8.RuneCountInString(s); n > MaxTextLength {
		return nil, coercionError(dt, raw, fmt.Sprintf("at most %d characters, got %d", MaxTextLength, n), nil)
	}
	return Text{Value: s}, nil
}

func coerceURL(dt Datatype, raw any, _ Options) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, coercionError(dt, raw, "a URL string", nil)
	}
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return nil, coercionError(dt, raw, "a URL without whitespace", nil)
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, coercionError(dt, raw, "a URL", err)
	}
	if u.Scheme == "" {
		return nil, coercionError(dt, raw, "a URL with a scheme", nil)
	}
	return URL{Value: s}, nil
}

func coerceItem(dt Datatype, raw any, _ Options) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, coercionError(dt, raw, "an entity identifier", nil)
	}
	id := strings.TrimPrefix(strings.TrimSpace(s), EntityPrefix)
	pattern, expected := itemPattern, "an item identifier like Q42"
	if dt == WikibaseProp {
		pattern, expected = propertyPattern, "a property identifier like P31"
	}
	if !pattern.MatchString(id) {
		return nil, coercionError(dt, raw, expected, nil)
	}
	return Item{ID: id}, nil
}

func coerceQuantity(dt Datatype, raw any, opts Options) (Value, error) {
	var amountRaw any
	unit := ""
	switch v := raw.(type) {
	case map[string]any:
		amountRaw = v["amount"]
		if u, ok := v["unit"].(string); ok {
			unit = u
		}
	case string:
		fields := strings.Fields(v)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, coercionError(dt, raw, `"<amount>" or "<amount> <unit>"`, nil)
		}
		amountRaw = fields[0]
		if len(fields) == 2 {
			unit = fields[1]
		}
	default:
		amountRaw = raw
	}
	if opts.Unit != "" {
		unit = opts.Unit
	}

	amount, err := normalizeDecimal(amountRaw)
	if err != nil {
		return nil, coercionError(dt, raw, "a decimal amount", err)
	}
	normUnit, err := normalizeUnit(unit)
	if err != nil {
		return nil, coercionError(dt, raw, "a unit item or URI", err)
	}
	return Quantity{Amount: amount, Unit: normUnit}, nil
}

func normalizeDecimal(raw any) (string, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return "", fmt.Errorf("unsupported amount type %T", raw)
	}
	m := decimalPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("malformed amount %q", s)
	}
	sign, whole, frac := m[1], strings.TrimLeft(m[2], "0"), m[3]
	if whole == "" {
		whole = "0"
	}
	if sign != "-" || (whole == "0" && strings.Trim(frac, ".0") == "") {
		sign = "+"
	}
	return sign + whole + frac, nil
}

func normalizeUnit(unit string) (string, error) {
	unit = strings.TrimSpace(unit)
	switch {
	case unit == "" || unit == UnitOne:
		return UnitOne, nil
	case itemPattern.MatchString(unit):
		return EntityPrefix + unit, nil
	case strings.HasPrefix(unit, EntityPrefix) && itemPattern.MatchString(strings.TrimPrefix(unit, EntityPrefix)):
		return unit, nil
	}
	return "", fmt.Errorf("malformed unit %q", unit)
}

func coerceCoordinate(dt Datatype, raw any, _ Options) (Value, error) {
	var latRaw, lonRaw any
	precision := 0.0001
	switch v := raw.(type) {
	case map[string]any:
		latRaw, lonRaw = v["latitude"], v["longitude"]
		if p, ok := toFloat(v["precision"]); ok && p > 0 {
			precision = p
		}
	case []any:
		if len(v) != 2 {
			return nil, coercionError(dt, raw, "a [latitude, longitude] pair", nil)
		}
		latRaw, lonRaw = v[0], v[1]
	case string:
		parts := strings.Split(v, ",")
		if len(parts) != 2 {
			return nil, coercionError(dt, raw, `"<latitude>,<longitude>"`, nil)
		}
		latRaw, lonRaw = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	default:
		return nil, coercionError(dt, raw, "a latitude/longitude pair", nil)
	}

	lat, ok := toFloat(latRaw)
	if !ok {
		return nil, coercionError(dt, raw, "a numeric latitude", nil)
	}
	lon, ok := toFloat(lonRaw)
	if !ok {
		return nil, coercionError(dt, raw, "a numeric longitude", nil)
	}
	if lat < -90 || lat > 90 {
		return nil, coercionError(dt, raw, "latitude in [-90, 90]", nil)
	}
	if lon < -180 || lon > 180 {
		return nil, coercionError(dt, raw, "longitude in [-180, 180]", nil)
	}
	return Coordinate{Latitude: lat, Longitude: lon, Precision: precision, Globe: EarthGlobe}, nil
}

func coerceMonolingual(dt Datatype, raw any, opts Options) (Value, error) {
	var text, lang string
	switch v := raw.(type) {
	case map[string]any:
		text, _ = v["text"].(string)
		lang, _ = v["language"].(string)
	case string:
		text = v
	default:
		return nil, coercionError(dt, raw, "a text with a language tag", nil)
	}
	if opts.Language != "" {
		lang = opts.Language
	}
	if strings.TrimSpace(text) == "" {
		return nil, coercionError(dt, raw, "a non-empty text", nil)
	}
	if lang == "" {
		return nil, coercionError(dt, raw, "a language tag", errors.New("language is missing"))
	}
	if !validLanguage(lang) {
		return nil, coercionError(dt, raw, "a lowercase language tag like en or pt-br", nil)
	}
	return Monolingual{Text: text, Language: lang}, nil
}

func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// validLanguage accepts lowercase BCP 47 tags.
func validLanguage(tag string) bool {
	if tag != strings.ToLower(tag) {
		return false
	}
	_, err := language.Parse(tag)
	return err == nil
}

// toFloat reads a finite number. NaN and infinities are rejected.
func toFloat(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
