// Package sessions keeps the server-held session records that opaque session
// tokens point to. A token alone never grants access: the record must still
// exist in the store.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/server/models"
)

// Store persists sessions keyed by id. Get returns common.ErrorNotFound for
// missing or expired records. Delete of an absent id is not an error.
type Store interface {
	Save(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if s.Expired(m.now()) {
		delete(m.sessions, id)
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
