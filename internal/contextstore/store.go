// Package contextstore provides the append-only, categorized accumulation of
// tool results for a single task run. Each task owns exactly one store; tool
// executions append to it and the final synthesis step reads from it. Entries
// are never removed or mutated once inserted.
package contextstore

import (
	"sync"
	"time"
)

// Category groups tool results by the kind of work that produced them.
type Category string

const (
	CategoryResearch    Category = "research"
	CategoryAnalysis    Category = "analysis"
	CategorySpecialized Category = "specialized"
	CategoryQuality     Category = "quality"
)

// Categories returns all known categories in a stable order.
func Categories() []Category {
	return []Category{CategoryResearch, CategoryAnalysis, CategorySpecialized, CategoryQuality}
}

// Entry is a single accumulated tool result payload.
type Entry struct {
	Tool      string    `json:"tool"`
	CallID    string    `json:"call_id"`
	Iteration int       `json:"iteration"`
	Payload   any       `json:"payload"`
	AddedAt   time.Time `json:"added_at"`
}

// Store accumulates tool result payloads per category for one task.
//
// The store is safe for concurrent appends from parallel tool executions.
// Lengths per category are monotonically non-decreasing for the lifetime of
// the task.
type Store struct {
	mu      sync.RWMutex
	entries map[Category][]Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[Category][]Entry),
	}
}

// Append adds an entry under the given category.
func (s *Store) Append(category Category, entry Entry) {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[category] = append(s.entries[category], entry)
}

// Len returns the number of entries in a category.
func (s *Store) Len(category Category) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[category])
}

// Total returns the number of entries across all categories.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, entries := range s.entries {
		total += len(entries)
	}
	return total
}

// Snapshot returns a frozen copy of the store contents. The snapshot is
// detached from the live store: later appends do not affect it, which makes
// it a stable input for quality review and final synthesis.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.entries))
	for category, entries := range s.entries {
		copied := make([]Entry, len(entries))
		copy(copied, entries)
		snap[category] = copied
	}
	return snap
}

// Snapshot is an immutable view of store contents per category.
type Snapshot map[Category][]Entry

// Len returns the number of entries in a category of the snapshot.
func (s Snapshot) Len(category Category) int {
	return len(s[category])
}

// Total returns the number of entries across all categories of the snapshot.
func (s Snapshot) Total() int {
	total := 0
	for _, entries := range s {
		total += len(entries)
	}
	return total
}
