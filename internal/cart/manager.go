package cart

import (
	"context"
	"sync"
)

type profileLock struct {
	mu   sync.Mutex
	refs int
}

// Manager opens carts by profile id against one Storage. Work on the same
// profile through Do is serialised, from the rehydrating read to the last
// write. Separate processes sharing a profile still race and the last write
// wins.
type Manager struct {
	storage Storage

	mu    sync.Mutex
	locks map[string]*profileLock
}

func NewManager(storage Storage) *Manager {
	return &Manager{
		storage: storage,
		locks:   make(map[string]*profileLock),
	}
}

// Do opens the cart for profileID and runs fn on it while holding the
// profile's lock.
func (m *Manager) Do(ctx context.Context, profileID string, fn func(*Store) error) error {
	unlock := m.lock(profileID)
	defer unlock()

	s, err := Open(ctx, m.storage, profileID)
	if err != nil {
		return err
	}
	return fn(s)
}

func (m *Manager) lock(profileID string) func() {
	m.mu.Lock()
	l, ok := m.locks[profileID]
	if !ok {
		l = &profileLock{}
		m.locks[profileID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, profileID)
		}
		m.mu.Unlock()
	}
}
