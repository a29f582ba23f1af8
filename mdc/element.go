package mdc

import "maps"

type (
	// Element binds one diagnostic context snapshot to one task. The
	// scheduler invokes Install immediately before resuming the task's
	// continuation on a worker and Restore immediately after the
	// continuation suspends or completes, on every exit path. One Element
	// is reused across all resumptions of its task.
	//
	// Install and Restore keep no state on the Element itself: the saved
	// worker state travels by value from Install to the matching Restore.
	// Installing the same Element concurrently on two distinct workers is
	// therefore safe even without a single-occupancy-per-task guarantee.
	Element struct {
		snapshot Map
	}

	// Saved is an opaque copy of a worker's ambient state captured by
	// Install and consumed by the matching Restore. It is valid for
	// exactly one install/restore cycle.
	Saved struct {
		entries map[string]string
	}
)

// New constructs a propagation element for the given diagnostic context.
// The map is copied; the element never observes later mutation of m.
func New(m Map) *Element {
	return &Element{snapshot: m.Clone()}
}

// Values returns a copy of the element's diagnostic context.
func (e *Element) Values() Map {
	return e.snapshot.Clone()
}

// Install captures the worker's current ambient state and then merges the
// element's snapshot over it, entry by entry. Keys present on the worker
// but absent from the snapshot are left untouched so ambient keys set by
// outer scopes survive. The returned Saved must be handed back to the
// matching Restore on the same worker.
func (e *Element) Install(s *State) Saved {
	saved := Saved{entries: maps.Clone(s.entries)}
	if s.entries == nil && len(e.snapshot) > 0 {
		s.entries = make(map[string]string, len(e.snapshot))
	}
	maps.Copy(s.entries, e.snapshot)
	return saved
}

// Restore puts the worker's ambient state back to exactly the captured
// Saved: all current entries are cleared first so keys the task added
// while running do not leak into the next occupant, then the saved
// entries are reinstated.
func (e *Element) Restore(s *State, saved Saved) {
	clear(s.entries)
	if saved.entries != nil {
		if s.entries == nil {
			s.entries = make(map[string]string, len(saved.entries))
		}
		maps.Copy(s.entries, saved.entries)
	}
}

// Bind runs fn with the element installed on s, restoring the prior state
// on every exit path including panics. It is the scoped acquire/release
// form of the Install/Restore pair for callers outside a scheduler.
func (e *Element) Bind(s *State, fn func() error) error {
	saved := e.Install(s)
	defer e.Restore(s, saved)
	return fn()
}
