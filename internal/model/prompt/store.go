package prompt

import "strings"

// Store exposes prompt retrieval for handlers and the CLI.
type Store interface {
	List() []Prompt
	FindByID(id Key) (Prompt, bool)
}

// Defaulter is implemented by stores whose fallback prompt is configurable.
type Defaulter interface {
	DefaultKey() Key
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items    []Prompt
	fallback Key
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied prompts.
func NewMemoryStore(items []Prompt) *MemoryStore {
	return &MemoryStore{items: append([]Prompt(nil), items...)}
}

// WithDefault sets the prompt used for empty or unknown keys. Keys the store does not
// hold are ignored.
func (s *MemoryStore) WithDefault(key Key) *MemoryStore {
	if _, ok := s.FindByID(key); ok {
		s.fallback = key
	}
	return s
}

// DefaultKey returns the configured fallback, or Default.
func (s *MemoryStore) DefaultKey() Key {
	if s.fallback == "" {
		return Default
	}
	return s.fallback
}

// List returns the configured prompt list.
func (s *MemoryStore) List() []Prompt {
	return append([]Prompt(nil), s.items...)
}

// FindByID looks up a prompt by key.
func (s *MemoryStore) FindByID(id Key) (Prompt, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Prompt{}, false
}

// Resolve maps a raw key to a prompt. Unknown or empty keys resolve to the store's
// default and report ok=false; the fallback is never surfaced to users as an error.
func Resolve(store Store, raw string) (Prompt, bool) {
	key := Key(strings.TrimSpace(raw))
	if p, ok := store.FindByID(key); ok {
		return p, true
	}
	fallback := Default
	if d, ok := store.(Defaulter); ok {
		fallback = d.DefaultKey()
	}
	if p, ok := store.FindByID(fallback); ok {
		return p, false
	}
	for _, p := range Seed() {
		if p.ID == Default {
			return p, false
		}
	}
	return Prompt{}, false
}
