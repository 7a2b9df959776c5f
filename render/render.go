// Package render serializes assembled entities into target formats.
package render

import (
	"fmt"

	"github.com/c360studio/semprofile/assemble"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatJSON produces knowledge-graph entity JSON.
	FormatJSON Format = "json"

	// FormatNTriples produces truthy N-Triples of the main values.
	FormatNTriples Format = "ntriples"
)

// FormatInfo provides metadata about a render format.
type FormatInfo struct {
	Name        Format
	MIMEType    string
	Extension   string
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatJSON: {
		Name:        FormatJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "Entity JSON with claims, qualifiers and references",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - best-rank main values, labels and aliases",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// Options tune rendering.
type Options struct {
	// Subject is the entity IRI used by N-Triples. Defaults to a blank node.
	Subject string
	// Indent pretty-prints JSON output.
	Indent bool
}

// Render serializes ent in the given format. The output is byte-for-byte
// reproducible for the same entity.
func Render(ent *assemble.Entity, format Format, opts Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		if opts.Indent {
			return JSONIndent(ent)
		}
		return JSON(ent)
	case FormatNTriples:
		return []byte(NTriples(ent, opts.Subject)), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
