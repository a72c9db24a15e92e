package sandbox

import (
	"sync"
	"time"
)

// Registry tracks live sandbox namespaces keyed by token with an
// explicit create/destroy lifecycle. Isolation between instances rests
// on token uniqueness, so registration is the chokepoint that turns
// that invariant into a checked property: Create refuses a token it
// already holds alive.
type Registry struct {
	mu      sync.RWMutex
	entries map[Token]*Entry
}

// Entry records one live namespace.
type Entry struct {
	Token     Token           `json:"token"`
	Label     string          `json:"label"`
	Whitelist ModuleWhitelist `json:"whitelist"`
	Digest    string          `json:"digest"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Token]*Entry)}
}

// Create registers the artifact's namespace. ErrTokenExists reports a
// duplicate token; callers treat that as fatal for the build.
func (r *Registry) Create(a *Artifact) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[a.Token]; exists {
		return nil, ErrTokenExists
	}
	e := &Entry{
		Token:     a.Token,
		Label:     a.Label,
		Whitelist: a.Whitelist,
		Digest:    a.Digest,
		CreatedAt: time.Now(),
	}
	r.entries[a.Token] = e
	entry := *e
	return &entry, nil
}

// Destroy drops a namespace at the end of its instance's life.
func (r *Registry) Destroy(t Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[t]; !ok {
		return ErrNotFound
	}
	delete(r.entries, t)
	return nil
}

// Get returns a copy of the entry for t.
func (r *Registry) Get(t Token) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	if !ok {
		return nil, false
	}
	entry := *e
	return &entry, true
}

// List returns copies of all live entries.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entry := *e
		out = append(out, &entry)
	}
	return out
}

// Len reports the number of live namespaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
