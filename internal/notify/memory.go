package notify

import (
	"context"
	"sync"
)

// MemoryNotifier keeps registrations in a map. It backs tests and any
// runtime where no delivery engine is wired.
type MemoryNotifier struct {
	mu      sync.Mutex
	pending map[string]Notification
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{pending: make(map[string]Notification)}
}

func (m *MemoryNotifier) Schedule(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[n.ID] = n
	return nil
}

func (m *MemoryNotifier) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	return nil
}

// Scheduled returns the registration for id, if any.
func (m *MemoryNotifier) Scheduled(id string) (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.pending[id]
	return n, ok
}

// Count returns the number of outstanding registrations.
func (m *MemoryNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
