package documents

import (
	"context"
	"slices"
	"sync"

	"drugscreen/internal/services"
)

// MemoryBlob keeps objects in process memory. Used by tests and dry runs.
type MemoryBlob struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{objects: make(map[string][]byte)}
}

func (b *MemoryBlob) Driver() string { return "memory" }

func (b *MemoryBlob) Put(_ context.Context, key string, data []byte, _ string) error {
	clean, err := sanitizeKey(key)
	if err != nil {
		return services.Wrap(services.ErrValidation, "documents", "memory", "invalid key", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[clean] = slices.Clone(data)
	return nil
}

func (b *MemoryBlob) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "documents", "memory get", key, nil)
	}
	return slices.Clone(data), nil
}

func (b *MemoryBlob) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}
