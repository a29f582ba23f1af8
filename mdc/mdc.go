// Package mdc implements a mapped diagnostic context for cooperatively
// scheduled tasks. A task carries a small string-to-string mapping (request
// IDs, trace IDs, tenant identifiers) that must be visible to any log
// statement executing on whichever worker currently runs the task, even
// though successive resumptions of the task may land on different workers.
//
// The package provides three pieces: Map, the immutable per-task snapshot;
// State, the mutable ambient mapping owned by one worker; and Element, the
// propagation element a scheduler invokes around every resumption to install
// the task's snapshot onto the worker and to put the worker back exactly as
// it was when the task suspends.
package mdc

import (
	"context"
	"maps"
)

type (
	// Map is a task-owned diagnostic context snapshot. Once handed to an
	// Element it must not be mutated; Element copies it at construction so
	// later mutation of the source map never affects an installed snapshot.
	Map map[string]string

	// State is the ambient diagnostic context of a single worker. It is
	// read by diagnostic sinks (log statements) executing on that worker
	// and mutated only by the task currently occupying the worker.
	//
	// State carries no lock: the cooperative scheduler guarantees a single
	// occupant per worker at any instant, so access is sequential across
	// time rather than concurrent.
	State struct {
		entries map[string]string
	}
)

// Clone returns an independent copy of the map. A nil map clones to nil.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// NewState returns an empty worker state.
func NewState() *State {
	return &State{entries: make(map[string]string)}
}

// Get returns the value stored under key and whether the key is present.
func (s *State) Get(key string) (string, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (s *State) Set(key, value string) {
	if s.entries == nil {
		s.entries = make(map[string]string)
	}
	s.entries[key] = value
}

// Delete removes key from the state. Removing an absent key is a no-op.
func (s *State) Delete(key string) {
	delete(s.entries, key)
}

// Len reports the number of entries currently in the state.
func (s *State) Len() int {
	return len(s.entries)
}

// Snapshot returns a full copy of the current entries. Later mutation of
// the state never alters a previously taken snapshot.
func (s *State) Snapshot() Map {
	return Map(maps.Clone(s.entries))
}

type contextKey struct{}

// NewContext returns a context carrying m as the task's diagnostic context.
// The map is cloned so callers may keep mutating their copy.
func NewContext(ctx context.Context, m Map) context.Context {
	return context.WithValue(ctx, contextKey{}, m.Clone())
}

// FromContext returns the diagnostic context carried by ctx, or nil when
// none is attached. The returned map is a copy and safe to mutate.
func FromContext(ctx context.Context) Map {
	m, _ := ctx.Value(contextKey{}).(Map)
	return m.Clone()
}
