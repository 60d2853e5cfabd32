package cache

import (
	"context"
	"sync"
	"time"
)

// Memory keeps entries in a map guarded by a RWMutex.
type Memory struct {
	mu            sync.RWMutex
	items         map[string]Entry
	generations   map[string]Generation
	schemaVersion int
	now           Clock
}

func NewMemory(schemaVersion int) *Memory {
	return &Memory{
		items:         make(map[string]Entry),
		generations:   make(map[string]Generation),
		schemaVersion: schemaVersion,
		now:           time.Now,
	}
}

// WithClock replaces the time source.
func (m *Memory) WithClock(now Clock) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, kind Kind, key string, maxAge time.Duration) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.items[entryKey(kind, key)]
	m.mu.RUnlock()

	if !ok || !entry.Fresh(m.schemaVersion, maxAge, m.now()) {
		return nil, false
	}
	return cloneBytes(entry.Data), true
}

func (m *Memory) Generation(_ context.Context, kind Kind, key string) Generation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generations[entryKey(kind, key)]
}

func (m *Memory) Set(_ context.Context, kind Kind, key string, gen Generation, data []byte) error {
	k := entryKey(kind, key)
	entry := Entry{
		Data:          cloneBytes(data),
		FetchedAt:     m.now(),
		SchemaVersion: m.schemaVersion,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations[k] != gen {
		return nil
	}
	m.items[k] = entry
	return nil
}

func (m *Memory) Invalidate(_ context.Context, kind Kind, key string) error {
	k := entryKey(kind, key)
	m.mu.Lock()
	delete(m.items, k)
	m.generations[k]++
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, stale ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
