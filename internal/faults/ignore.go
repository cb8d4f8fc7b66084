package faults

import (
	"fmt"
	"sort"
	"sync"
)

// IgnoreSet is a concurrency-safe set of exception class names.
type IgnoreSet struct {
	mu      sync.RWMutex
	classes map[string]struct{}
}

// NewIgnoreSet creates a set seeded with classes.
func NewIgnoreSet(classes ...string) *IgnoreSet {
	s := &IgnoreSet{classes: make(map[string]struct{}, len(classes))}
	for _, c := range classes {
		s.classes[c] = struct{}{}
	}
	return s
}

// Add inserts class into the set.
func (s *IgnoreSet) Add(class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class] = struct{}{}
}

// Remove deletes class from the set.
func (s *IgnoreSet) Remove(class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.classes, class)
}

// Contains reports whether class is in the set. Matching is exact.
func (s *IgnoreSet) Contains(class string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.classes[class]
	return ok
}

// List returns the classes in sorted order.
func (s *IgnoreSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.classes))
	for c := range s.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// classifier lets an error report its own exception class.
type classifier interface {
	ExceptionClass() string
}

// ClassOf returns the exception class of err: its ExceptionClass method when
// implemented, the class of the recovered value for a *PanicError, and the
// dynamic Go type name otherwise.
func ClassOf(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := err.(classifier); ok {
		return c.ExceptionClass()
	}
	if p, ok := err.(*PanicError); ok {
		if inner, ok := p.Value.(error); ok {
			return ClassOf(inner)
		}
		return "panic"
	}
	return fmt.Sprintf("%T", err)
}
