// Package locks provides the per-key mutual exclusion used to keep at most
// one verification in flight per document.
package locks

import (
	"context"
	"sync"
)

// Locker acquires named locks without waiting. When ok is false someone
// else holds the lock. release must be called exactly once after a
// successful acquire.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// MemoryLocker serializes work inside a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (m *MemoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.held[key]; busy {
		return nil, false, nil
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, true, nil
}
