package policy

import (
	"sync"
	"sync/atomic"

	"github.com/joshuapare/regenforce/pkg/types"
)

// Document is the parse result of one source file.
type Document struct {
	Name     string
	Entries  []*Entry
	Problems []Problem
}

// Set is an ordered collection of documents loaded together. Its shape is
// fixed at construction; a reload builds a new Set.
//
// Set implements sync.Locker. The lock serializes evaluation of entries so
// a poll tick and a change notification never race on one observation.
type Set struct {
	mu   sync.Mutex
	docs []Document
}

// NewSet builds a Set from documents, preserving their order.
func NewSet(docs ...Document) *Set {
	return &Set{docs: docs}
}

// Lock acquires the evaluation lock.
func (s *Set) Lock() { s.mu.Lock() }

// Unlock releases the evaluation lock.
func (s *Set) Unlock() { s.mu.Unlock() }

// Documents returns the documents in load order.
func (s *Set) Documents() []Document {
	if s == nil {
		return nil
	}
	return s.docs
}

// Entries returns every entry in document order.
func (s *Set) Entries() []*Entry {
	if s == nil {
		return nil
	}
	var out []*Entry
	for _, d := range s.docs {
		out = append(out, d.Entries...)
	}
	return out
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, d := range s.docs {
		n += len(d.Entries)
	}
	return n
}

// Problems returns every rejected line across documents.
func (s *Set) Problems() []Problem {
	if s == nil {
		return nil
	}
	var out []Problem
	for _, d := range s.docs {
		out = append(out, d.Problems...)
	}
	return out
}

// KeyPaths returns the distinct key paths in first-seen order.
func (s *Set) KeyPaths() []types.RegistryPath {
	seen := make(map[string]bool)
	var out []types.RegistryPath
	for _, e := range s.Entries() {
		k := e.Key.Key()
		if !seen[k] {
			seen[k] = true
			out = append(out, e.Key)
		}
	}
	return out
}

// Under returns the entries whose key is path or lies below it.
func (s *Set) Under(path types.RegistryPath) []*Entry {
	var out []*Entry
	for _, e := range s.Entries() {
		if path.Contains(e.Key) {
			out = append(out, e)
		}
	}
	return out
}

// Holder publishes the current Set. Readers always see a whole Set, either
// the one before a Swap or the one after it.
type Holder struct {
	cur atomic.Pointer[Set]
}

// NewHolder returns a Holder publishing set.
func NewHolder(set *Set) *Holder {
	h := &Holder{}
	h.cur.Store(set)
	return h
}

// Load returns the current Set.
func (h *Holder) Load() *Set {
	return h.cur.Load()
}

// Swap publishes set and returns the one it replaced.
func (h *Holder) Swap(set *Set) *Set {
	return h.cur.Swap(set)
}
