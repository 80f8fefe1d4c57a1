package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is a volatile Store for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage

	// FailNextSet, when non-nil, is returned by the next Set call and then
	// cleared. Lets tests exercise storage-failure paths.
	FailNextSet error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]json.RawMessage)}
}

// Get returns the values for the requested keys; absent keys are omitted.
func (m *MemoryStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if value, ok := m.entries[key]; ok {
			result[key] = value
		}
	}
	return result, nil
}

// Set writes all entries atomically.
func (m *MemoryStore) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextSet != nil {
		err := m.FailNextSet
		m.FailNextSet = nil
		return err
	}

	for key, value := range entries {
		m.entries[key] = value
	}
	return nil
}

// Clear wipes the store.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]json.RawMessage)
	return nil
}
