package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps request history and blocks in process memory. It is the
// default backend for single-instance deployments and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	history map[string][]time.Time
	blocks  map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string][]time.Time),
		blocks:  make(map[string]time.Time),
	}
}

func (m *MemoryStore) Record(_ context.Context, identifier string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[identifier] = append(m.history[identifier], ts)
	return nil
}

func (m *MemoryStore) CountSince(_ context.Context, identifier string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, ts := range m.history[identifier] {
		if !ts.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Prune(_ context.Context, identifier string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.history[identifier]
	kept := old[:0]
	for _, ts := range old {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(m.history, identifier)
		return nil
	}
	m.history[identifier] = kept
	return nil
}

func (m *MemoryStore) Block(_ context.Context, identifier string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[identifier] = until
	return nil
}

func (m *MemoryStore) BlockedUntil(_ context.Context, identifier string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.blocks[identifier]
	if !ok {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

// Identifiers returns every identifier with recorded history, for the
// cleanup worker.
func (m *MemoryStore) Identifiers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.history))
	for id := range m.history {
		ids = append(ids, id)
	}
	return ids
}
