package socket

import (
	"sort"
	"sync"
)

// Registry maps client ids to live connections.  Its lock is held
// only for the map operation itself, never across I/O, so a slow
// socket cannot stall lookups for any other client.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register stores e under id and returns the entry it replaced, if
// any.  The replaced entry is not closed here.
func (r *Registry) Register(id string, e *Entry) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.entries[id]
	r.entries[id] = e
	return prev
}

// Lookup returns the entry registered under id.
func (r *Registry) Lookup(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Remove detaches and returns the entry under id.  Removing an absent
// id is a no-op.
func (r *Registry) Remove(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return e, ok
}

// RemoveEntry deletes id only while it still maps to e, so a read
// loop winding down can never evict a newer connection that took
// over its id.
func (r *Registry) RemoveEntry(id string, e *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[id]; ok && cur == e {
		delete(r.entries, id)
		return true
	}
	return false
}

// IDs returns the registered client ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
