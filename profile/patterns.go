package profile

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/c360studio/semprofile/datatype"
)

// PatternLibrary maps pattern names to resolved fragments.
type PatternLibrary struct {
	entries map[string]*Fragment
	origins map[string]string
}

// Lookup returns the fragment bound to name.
func (l *PatternLibrary) Lookup(name string) (*Fragment, bool) {
	f, ok := l.entries[name]
	return f, ok
}

// Names returns all bound names in sorted order.
func (l *PatternLibrary) Names() []string {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Origin returns where a name was first bound: "patterns" for the explicit
// library or the path of the inline fragment.
func (l *PatternLibrary) Origin(name string) string {
	return l.origins[name]
}

// Len returns the number of bound names.
func (l *PatternLibrary) Len() int {
	return len(l.entries)
}

// fragmentSite is one qualifier/reference declaration inside a statement.
type fragmentSite struct {
	path string
	doc  fragmentDoc
}

// buildPatternLibrary seeds the table with the explicit library, then scans
// inline named fragments in declaration order. The explicit library is always
// seeded first, so statement order never changes which content a name binds to.
func buildPatternLibrary(explicit map[string]fragmentDoc, sites []fragmentSite) (*PatternLibrary, []Warning, error) {
	lib := &PatternLibrary{
		entries: make(map[string]*Fragment, len(explicit)),
		origins: make(map[string]string, len(explicit)),
	}

	names := make([]string, 0, len(explicit))
	for name := range explicit {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := "patterns." + name
		frag, err := toFragment(explicit[name], path)
		if err != nil {
			return nil, nil, err
		}
		frag.Name = name
		lib.entries[name] = frag
		lib.origins[name] = "patterns"
	}

	var warnings []Warning
	for _, site := range sites {
		if site.doc.Name == "" || !site.doc.hasContent() {
			continue
		}
		frag, err := toFragment(site.doc, site.path)
		if err != nil {
			return nil, nil, err
		}
		prior, ok := lib.entries[frag.Name]
		if !ok {
			lib.entries[frag.Name] = frag
			lib.origins[frag.Name] = site.path
			continue
		}
		if !sameContent(prior, frag) {
			warnings = append(warnings, Warning{
				Path: site.path,
				Message: fmt.Sprintf("pattern %q redefined with different content; keeping definition from %s",
					frag.Name, lib.origins[frag.Name]),
			})
		}
	}
	return lib, warnings, nil
}

// resolve returns the fragment a site refers to. Named sites always resolve
// through the library, so an explicit entry wins over inline content.
func (l *PatternLibrary) resolve(site fragmentSite) (*Fragment, error) {
	if site.doc.Name == "" {
		return toFragment(site.doc, site.path)
	}
	frag, ok := l.entries[site.doc.Name]
	if !ok {
		return nil, &PatternResolutionError{Name: site.doc.Name, Path: site.path}
	}
	return frag, nil
}

func toFragment(doc fragmentDoc, path string) (*Fragment, error) {
	if doc.Property == "" {
		return nil, loadError(path, fmt.Errorf("fragment has no property"))
	}
	dt, err := datatype.Parse(doc.Datatype)
	if err != nil {
		return nil, loadError(path, err)
	}
	if doc.Value == nil && doc.Source == "" {
		return nil, loadError(path, fmt.Errorf("fragment declares neither value nor source"))
	}
	frag := &Fragment{
		Name:     doc.Name,
		Property: doc.Property,
		Datatype: dt,
		Value:    doc.Value,
		Source:   doc.Source,
		Options: datatype.Options{
			Precision: datatype.Precision(doc.Precision),
			Unit:      doc.Unit,
			Language:  doc.Language,
		},
	}
	if frag.HasLiteral() {
		if _, err := datatype.Coerce(dt, frag.Value, frag.Options); err != nil {
			return nil, loadError(path+": literal value", err)
		}
	}
	return frag, nil
}

func sameContent(a, b *Fragment) bool {
	return a.Property == b.Property &&
		a.Datatype == b.Datatype &&
		a.Source == b.Source &&
		a.Options.Precision == b.Options.Precision &&
		a.Options.Unit == b.Options.Unit &&
		a.Options.Language == b.Options.Language &&
		reflect.DeepEqual(a.Value, b.Value)
}
