// Package registry resolves profile identifiers to documents and loads them.
//
// A registry is rooted at a profiles directory and recognizes two layouts,
// tried in order:
//
//	<id>/profile.yaml + <id>/metadata.yaml   registrant package
//	<id>.yaml                                legacy flat file
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semprofile/profile"
)

// ErrProfileNotFound is wrapped by the load error returned when neither
// layout resolves.
var ErrProfileNotFound = errors.New("profile not found")

const (
	profileFile  = "profile.yaml"
	metadataFile = "metadata.yaml"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Location is where a profile id resolved to.
type Location struct {
	ID           string
	ProfilePath  string
	MetadataPath string
	// Packaged is true for the registrant package layout.
	Packaged bool
}

// Metadata describes a profile without loading its statements.
type Metadata struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Status      profile.Status `yaml:"status"`
	Description string         `yaml:"description,omitempty"`
	Maintainer  string         `yaml:"maintainer,omitempty"`
	Tags        []string       `yaml:"tags,omitempty"`
}

// Validate checks that the required fields are present.
func (m *Metadata) Validate() error {
	var missing []string
	if m.Name == "" {
		missing = append(missing, "name")
	}
	if m.Version == "" {
		missing = append(missing, "version")
	}
	if m.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	if !m.Status.Valid() {
		return fmt.Errorf("invalid status %q", m.Status)
	}
	return nil
}

// Registry discovers and loads profiles from a filesystem.
type Registry struct {
	fsys   fs.FS
	logger *slog.Logger
}

// New creates a registry over fsys, which is rooted at the profiles directory.
func New(fsys fs.FS, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{fsys: fsys, logger: logger}
}

// List returns every resolvable profile id in sorted order.
func (r *Registry) List() ([]string, error) {
	seen := make(map[string]bool)
	packaged, err := doublestar.Glob(r.fsys, "*/"+profileFile)
	if err != nil {
		return nil, fmt.Errorf("list packaged profiles: %w", err)
	}
	for _, p := range packaged {
		if id := path.Dir(p); idPattern.MatchString(id) {
			seen[id] = true
		}
	}
	flat, err := doublestar.Glob(r.fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list legacy profiles: %w", err)
	}
	for _, p := range flat {
		if id := strings.TrimSuffix(p, ".yaml"); idPattern.MatchString(id) {
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether id resolves under either layout.
func (r *Registry) Exists(id string) bool {
	_, err := r.Resolve(id)
	return err == nil
}

// Resolve finds the document location for id.
func (r *Registry) Resolve(id string) (Location, error) {
	if !idPattern.MatchString(id) {
		return Location{}, &profile.ProfileLoadError{ProfileID: id, Reason: "invalid profile id", Err: ErrProfileNotFound}
	}
	packaged := path.Join(id, profileFile)
	if isFile(r.fsys, packaged) {
		return Location{
			ID:           id,
			ProfilePath:  packaged,
			MetadataPath: path.Join(id, metadataFile),
			Packaged:     true,
		}, nil
	}
	legacy := id + ".yaml"
	if isFile(r.fsys, legacy) {
		return Location{ID: id, ProfilePath: legacy}, nil
	}
	return Location{}, &profile.ProfileLoadError{
		ProfileID: id,
		Path:      packaged + ", " + legacy,
		Reason:    "no document found",
		Err:       ErrProfileNotFound,
	}
}

// Metadata returns the metadata of id. Packaged profiles read metadata.yaml;
// legacy profiles take it from the document header.
func (r *Registry) Metadata(id string) (*Metadata, error) {
	loc, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}

	var (
		meta Metadata
		src  = loc.ProfilePath
	)
	if loc.Packaged && isFile(r.fsys, loc.MetadataPath) {
		src = loc.MetadataPath
	}
	data, err := fs.ReadFile(r.fsys, src)
	if err != nil {
		return nil, &profile.ProfileLoadError{ProfileID: id, Path: src, Reason: "read metadata", Err: err}
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, &profile.ProfileLoadError{ProfileID: id, Path: src, Reason: "malformed metadata", Err: err}
	}
	if meta.ID == "" {
		meta.ID = id
	}
	if err := meta.Validate(); err != nil {
		return nil, &profile.ProfileLoadError{ProfileID: id, Path: src, Reason: "invalid metadata", Err: err}
	}
	return &meta, nil
}

// Load reads and parses the profile document for id. Load warnings are
// logged and kept on the returned profile.
func (r *Registry) Load(id string) (*profile.Profile, error) {
	loc, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(r.fsys, loc.ProfilePath)
	if err != nil {
		return nil, &profile.ProfileLoadError{ProfileID: id, Path: loc.ProfilePath, Reason: "read document", Err: err}
	}

	p, err := profile.Parse(data)
	if err != nil {
		var lerr *profile.ProfileLoadError
		if errors.As(err, &lerr) {
			lerr.Path = loc.ProfilePath
			if lerr.ProfileID == "" {
				lerr.ProfileID = id
			}
		}
		return nil, err
	}
	if p.ID != id {
		return nil, &profile.ProfileLoadError{
			ProfileID: id,
			Path:      loc.ProfilePath,
			Reason:    "id mismatch",
			Err:       fmt.Errorf("document declares id %q", p.ID),
		}
	}

	for _, w := range p.Warnings {
		r.logger.Warn("Profile load warning",
			slog.String("profile", id),
			slog.String("path", w.Path),
			slog.String("message", w.Message))
	}
	r.logger.Debug("Loaded profile",
		slog.String("profile", id),
		slog.String("version", p.Version),
		slog.Int("statements", len(p.Statements)))
	return p, nil
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
