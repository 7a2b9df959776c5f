// Package hydrate executes external lookups for allowed-item lists and caches
// the results for one profile-processing session.
//
// The Cache is the only shared mutable state in the pipeline. Reads return
// point-in-time snapshots; writes happen only inside the Hydrator's
// single-flight path and replace an entry as a whole.
package hydrate

import (
	"iter"
	"sort"
	"strings"
	"sync"
	"time"
)

// Candidate is one permitted item.
type Candidate struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Entry is a cached candidate sequence for one list.
type Entry struct {
	ListID     string      `json:"list_id"`
	Candidates []Candidate `json:"candidates"`
	HydratedAt time.Time   `json:"hydrated_at"`
	// Fresh is false when the entry holds fallback items or a persisted copy
	// from an earlier session.
	Fresh bool `json:"fresh"`

	index map[string]int
}

// sealed returns a private copy of e with its id index built. Sealed entries
// are never mutated, so snapshots share the candidates and the index.
func sealed(e Entry) *Entry {
	stored := e
	stored.Candidates = append([]Candidate(nil), e.Candidates...)
	stored.index = make(map[string]int, len(stored.Candidates))
	for i, c := range stored.Candidates {
		if _, dup := stored.index[c.ID]; !dup {
			stored.index[c.ID] = i
		}
	}
	return &stored
}

// Snapshot is a read-only view of one list at the time of lookup.
type Snapshot struct {
	ListID     string
	Found      bool
	Fresh      bool
	HydratedAt time.Time
	// Failure describes why the list is backed by fallback items, if it is.
	Failure *HydrationError

	candidates []Candidate
	index      map[string]int
}

func newSnapshot(e *Entry) Snapshot {
	if e.index == nil {
		e = sealed(*e)
	}
	return Snapshot{
		ListID:     e.ListID,
		Found:      true,
		Fresh:      e.Fresh,
		HydratedAt: e.HydratedAt,
		candidates: e.Candidates,
		index:      e.index,
	}
}

// Stale reports whether the snapshot is backed by fallback or persisted items.
func (s Snapshot) Stale() bool {
	return s.Found && !s.Fresh
}

// Items returns a lazy sequence over the candidates. Each range over the
// returned sequence starts from the beginning.
func (s Snapshot) Items() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, c := range s.candidates {
			if !yield(c) {
				return
			}
		}
	}
}

// Len returns the number of candidates.
func (s Snapshot) Len() int {
	return len(s.candidates)
}

// Contains reports whether id is a permitted candidate.
func (s Snapshot) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// MatchLabel finds a candidate whose label equals label, ignoring case.
func (s Snapshot) MatchLabel(label string) (Candidate, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Candidate{}, false
	}
	for c := range s.Items() {
		if c.Label != "" && strings.EqualFold(c.Label, label) {
			return c, true
		}
	}
	return Candidate{}, false
}

// Cache maps list ids to hydrated entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	errs    map[string]*HydrationError
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		errs:    make(map[string]*HydrationError),
	}
}

// Lookup returns a snapshot for listID. A list that was never hydrated yields
// an empty sequence with Found false.
func (c *Cache) Lookup(listID string) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[listID]
	if !ok {
		return Snapshot{ListID: listID}
	}
	s := newSnapshot(e)
	s.Failure = c.errs[listID]
	return s
}

// IDs returns the ids of all cached lists in sorted order.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// put replaces the entry for e.ListID. failure is recorded for stale entries.
func (c *Cache) put(e Entry, failure *HydrationError) {
	stored := sealed(e)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.ListID] = stored
	if failure != nil {
		c.errs[e.ListID] = failure
	} else {
		delete(c.errs, e.ListID)
	}
}

// putIfAbsent stores e only when the list has no entry yet.
func (c *Cache) putIfAbsent(e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[e.ListID]; ok {
		return false
	}
	c.entries[e.ListID] = sealed(e)
	return true
}
