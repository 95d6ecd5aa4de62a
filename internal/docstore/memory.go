package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory. It is used for local
// development (DOCSTORE_BACKEND=memory) and in tests; the compare-and-swap
// happens under a single mutex so it has the same semantics as the remote
// backends.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]Document)}
}

func (m *MemoryStore) Fetch(ctx context.Context, path string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[path]
	if !ok {
		return nil, ErrNotFound
	}
	content := make([]byte, len(d.Content))
	copy(content, d.Content)
	return &Document{Content: content, Version: d.Version}, nil
}

func (m *MemoryStore) Write(ctx context.Context, path string, content []byte, expectedVersion string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.store[path]
	switch {
	case expectedVersion == "" && exists:
		return "", ErrVersionConflict
	case expectedVersion != "" && (!exists || cur.Version != expectedVersion):
		return "", ErrVersionConflict
	}
	stored := make([]byte, len(content))
	copy(stored, content)
	version := ContentVersion(stored)
	m.store[path] = Document{Content: stored, Version: version}
	return version, nil
}
