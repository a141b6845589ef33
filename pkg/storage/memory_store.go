package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryObjectStore keeps objects in-process. It backs unit tests and local
// development without MinIO.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

func NewMemoryObjectStore(bucket string) *MemoryObjectStore {
	return &MemoryObjectStore{bucket: bucket, objects: make(map[string][]byte)}
}

func (m *MemoryObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %q not found", key)
	}
	return m.PublicURL(key), nil
}

func (m *MemoryObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("memory://%s/%s", m.bucket, key)
}

func (m *MemoryObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Object returns the stored bytes, for assertions in tests.
func (m *MemoryObjectStore) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	return data, ok
}
