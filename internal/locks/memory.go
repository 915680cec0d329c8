package locks

import (
	"context"
	"sync"

	"github.com/wardenhq/warden/internal/types"
)

// MemoryRegistry is an in-memory lock registry. It backs tests and
// single-process setups where the daemon shares its lock table directly.
type MemoryRegistry struct {
	mu    sync.RWMutex
	locks []types.AreaLock
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

// Set records or replaces the lock for an area.
func (m *MemoryRegistry) Set(lock types.AreaLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.locks {
		if m.locks[i].Area == lock.Area {
			m.locks[i] = lock
			return
		}
	}
	m.locks = append(m.locks, lock)
}

// Release removes the lock for an area, if present.
func (m *MemoryRegistry) Release(area string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.locks {
		if m.locks[i].Area == area {
			m.locks = append(m.locks[:i], m.locks[i+1:]...)
			return
		}
	}
}

// LockForPath returns the most specific lock covering path, or nil.
func (m *MemoryRegistry) LockForPath(ctx context.Context, path string) (*types.AreaLock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match := bestMatch(m.locks, path)
	if match == nil {
		return nil, nil
	}
	copied := *match
	return &copied, nil
}
