// Package storage keeps document bytes. A Store addresses blobs by an opaque
// key that the document registry records as the content reference.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/google/uuid"
)

// Store is the blob storage contract. All failures wrap common.ErrorStorage.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh object key for a document owned by ownerID.
func NewKey(ownerID string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("documents/%s/%d/%02d/%02d/%v", ownerID, d.Year(), d.Month(), d.Day(), uuid.New())
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	b := make([]byte, len(data))
	copy(b, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = b
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s not found", common.ErrorStorage, key)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// Len reports how many blobs are held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
