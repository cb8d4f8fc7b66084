// Package state keeps one measurement entry per execution context together
// with its stack of open sections.
package state

import (
	"sync"
	"time"

	"github.com/plexsphere/plexapm/internal/aggregate"
	"github.com/plexsphere/plexapm/internal/faults"
	"github.com/plexsphere/plexapm/internal/sample"
)

// Store maps execution contexts to their entries.
type Store struct {
	mu      sync.Mutex
	entries map[ContextID]*Entry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[ContextID]*Entry)}
}

// GetOrCreate returns the entry for id, allocating an idle one if needed.
func (s *Store) GetOrCreate(id ContextID) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &Entry{}
		s.entries[id] = e
	}
	return e
}

// Lookup returns the entry for id without allocating.
func (s *Store) Lookup(id ContextID) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Clear removes the entry for id. An entry that was reactivated after it
// finished is left in place.
func (s *Store) Clear(id ContextID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.Active() {
		return
	}
	delete(s.entries, id)
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// OpenSection is a section pushed on an entry and not closed yet. It is
// returned by Push and closes with Pop.
type OpenSection struct {
	section *sample.Section
	start   time.Time
	parent  *OpenSection
	closed  bool
}

// Entry is the mutable state of one execution context. All methods are safe
// for concurrent use; the record is only reachable through them while the
// entry is active.
type Entry struct {
	mu     sync.Mutex
	active bool
	record *sample.Record
	stack  []*OpenSection
	errCtx *faults.Context
}

// Start activates the entry with an empty record. It returns false, leaving
// the entry untouched, when a record is already active.
func (e *Entry) Start(kind sample.Kind, name string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return false
	}
	e.active = true
	e.record = &sample.Record{Kind: kind, Name: name, StartedAt: now}
	e.stack = e.stack[:0]
	e.errCtx = nil
	return true
}

// Active reports whether a record is being measured.
func (e *Entry) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Depth returns the number of open sections.
func (e *Entry) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.stack)
}

// Update runs fn on the active record under the entry lock. It returns false
// without calling fn when the entry is idle.
func (e *Entry) Update(fn func(r *sample.Record)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return false
	}
	fn(e.record)
	return true
}

// Push opens a section nested under the innermost open one. With guard set,
// nothing is pushed when the innermost open section already has the same
// kind. It returns nil when no section was pushed.
func (e *Entry) Push(command, kind string, guard bool, now time.Time) *OpenSection {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return nil
	}
	var parent *OpenSection
	if n := len(e.stack); n > 0 {
		parent = e.stack[n-1]
	}
	if guard && parent != nil && parent.section.Kind == kind {
		return nil
	}
	s := &OpenSection{
		section: &sample.Section{Command: command, Kind: kind, Calls: 1},
		start:   now,
		parent:  parent,
	}
	e.stack = append(e.stack, s)
	return s
}

// Pop closes s, charges its elapsed time to the children runtime of the
// section it was pushed under and merges it into the record's section list.
// Sections may close in any order. When the parent closed first, nothing is
// charged. Popping a section twice, or one from an earlier record, does
// nothing.
func (e *Entry) Pop(s *OpenSection, now time.Time) (sample.Section, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || s == nil || s.closed {
		return sample.Section{}, false
	}
	i := len(e.stack) - 1
	for i >= 0 && e.stack[i] != s {
		i--
	}
	if i < 0 {
		return sample.Section{}, false
	}
	e.stack = append(e.stack[:i], e.stack[i+1:]...)
	s.closed = true

	sec := s.section
	sec.Runtime = sample.Millis(now.Sub(s.start))
	if p := s.parent; p != nil && !p.closed {
		p.section.ChildrenRuntime += sec.Runtime
	}
	closed := *sec
	e.record.Sections = aggregate.MergeSection(e.record.Sections, sec)
	return closed, true
}

// SetErrorContext attaches request data used when an error is captured.
func (e *Entry) SetErrorContext(ec *faults.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return false
	}
	e.errCtx = ec
	return true
}

// ErrorContext returns the data set by SetErrorContext.
func (e *Entry) ErrorContext() *faults.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errCtx
}

// Finish deactivates the entry and hands ownership of its record to the
// caller with Runtime set. Sections still open are discarded.
func (e *Entry) Finish(now time.Time) (*sample.Record, *faults.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return nil, nil, false
	}
	rec, ec := e.record, e.errCtx
	rec.Runtime = sample.Millis(now.Sub(rec.StartedAt))
	e.active = false
	e.record = nil
	e.errCtx = nil
	e.stack = nil
	return rec, ec, true
}
