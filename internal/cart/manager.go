package cart

import (
	"sync"
	"time"
)

// Manager owns one cart per acting principal. Carts for anonymous visitors
// are keyed by a client-generated cart token; carts for authenticated users
// by their principal ID. Either way the cart stays ephemeral — the Manager
// sweeps carts that have gone untouched for longer than the TTL.
type Manager struct {
	ttl time.Duration

	mu    sync.Mutex
	carts map[string]*entry
}

type entry struct {
	cart     *Cart
	lastSeen time.Time
}

// NewManager creates a Manager whose Sweep discards carts idle for ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:   ttl,
		carts: make(map[string]*entry),
	}
}

// Get returns the cart for key, creating it on first use and refreshing its
// idle timer.
func (m *Manager) Get(key string) *Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.carts[key]
	if !ok {
		e = &entry{cart: New()}
		m.carts[key] = e
	}
	e.lastSeen = time.Now()
	return e.cart
}

// Drop discards the cart for key, if any. Used on logout.
func (m *Manager) Drop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, key)
}

// Len reports how many carts are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

// Sweep removes carts untouched for longer than the TTL and reports how many
// were discarded. Wired to the scheduler at boot.
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int
	for key, e := range m.carts {
		if e.lastSeen.Before(cutoff) {
			delete(m.carts, key)
			removed++
		}
	}
	return removed
}
