// Package cart owns the in-memory shopping cart and keeps it in step with
// the persistent store.
package cart

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BrunoMartinho00/lab11/internal/domain"
)

// Store defines what the manager needs from persistence.
// Consumers define this interface, not the store implementation
type Store interface {
	Load(ctx context.Context) domain.Cart
	Save(ctx context.Context, cart domain.Cart) error
	Subscribe(fn func(domain.Cart)) (unsubscribe func())
}

type Manager struct {
	store       Store
	log         zerolog.Logger
	unsubscribe func()

	// writeMu serialises read-modify-write cycles including the save, so
	// that two local mutations cannot persist out of order.
	writeMu sync.Mutex

	mu    sync.RWMutex
	lines domain.Cart
}

type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager hydrates the cart from store and follows its notifications
// until Close is called.
func NewManager(ctx context.Context, store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lines = store.Load(ctx)
	m.unsubscribe = store.Subscribe(m.replace)
	return m
}

// AddProduct adds one unit of p, appending a new line for unseen products.
func (m *Manager) AddProduct(ctx context.Context, p domain.Product) {
	m.mutate(ctx, func(lines domain.Cart) (domain.Cart, bool) {
		if i := lines.IndexOf(p.ID); i >= 0 {
			lines[i].Quantity++
			return lines, true
		}
		return append(lines, domain.CartLine{Product: p, Quantity: 1}), true
	})
}

// RemoveOneUnit takes one unit of productID out of the cart and drops the
// line when none remain. Unknown ids are ignored.
func (m *Manager) RemoveOneUnit(ctx context.Context, productID int64) {
	m.mutate(ctx, func(lines domain.Cart) (domain.Cart, bool) {
		i := lines.IndexOf(productID)
		if i < 0 {
			return lines, false
		}
		lines[i].Quantity--
		if lines[i].Quantity <= 0 {
			lines = append(lines[:i], lines[i+1:]...)
		}
		return lines, true
	})
}

func (m *Manager) Clear(ctx context.Context) {
	m.mutate(ctx, func(domain.Cart) (domain.Cart, bool) {
		return domain.Cart{}, true
	})
}

func (m *Manager) TotalUnitCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lines.Units()
}

// Lines returns a copy of the current lines in insertion order.
func (m *Manager) Lines() domain.Cart {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lines.Clone()
}

func (m *Manager) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lines) == 0
}

// Close stops following store notifications.
func (m *Manager) Close() {
	m.unsubscribe()
}

func (m *Manager) mutate(ctx context.Context, fn func(domain.Cart) (domain.Cart, bool)) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	next, changed := fn(m.lines.Clone())
	if !changed {
		m.mu.Unlock()
		return
	}
	m.lines = next
	snapshot := next.Clone()
	m.mu.Unlock()

	// Save notifies subscribers, m.replace included, so it must run unlocked.
	if err := m.store.Save(ctx, snapshot); err != nil {
		m.log.Warn().Err(err).Int("units", snapshot.Units()).Msg("cart not persisted")
	}
}

// replace adopts the stored cart; the last writer wins.
func (m *Manager) replace(cart domain.Cart) {
	m.mu.Lock()
	m.lines = cart
	m.mu.Unlock()
}
