package media

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
)

const memoryBaseURL = "memory://media"

// MemoryStore keeps uploaded images in process memory. Used with
// MEDIA_BACKEND=memory for local development and by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, localPath, targetFolder string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", &UploadError{File: localPath, Err: err}
	}
	key := objectKey(targetFolder, localPath)
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return joinURL(memoryBaseURL, key), nil
}

func (m *MemoryStore) Delete(ctx context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[publicID]; !ok {
		return &DeletionError{PublicID: publicID, Err: fmt.Errorf("no such object")}
	}
	delete(m.objects, publicID)
	return nil
}

func (m *MemoryStore) PublicID(rawURL string) (string, error) {
	return keyFromURL(memoryBaseURL, rawURL)
}

// Keys lists the stored object keys in order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
