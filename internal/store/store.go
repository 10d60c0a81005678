// Package store persists the cart as a JSON array under a fixed key and
// tells subscribers whenever the stored cart changes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BrunoMartinho00/lab11/internal/domain"
)

type Store struct {
	backend Backend
	key     string
	log     zerolog.Logger

	mu     sync.RWMutex
	subs   map[uint64]func(domain.Cart)
	nextID uint64
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New wraps backend. A nil backend models an environment without a
// persistent store: Load yields an empty cart and Save fails with
// ErrNoBackend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     CartKey,
		log:     zerolog.Nop(),
		subs:    make(map[uint64]func(domain.Cart)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored cart. Absent, unreadable or malformed values all
// degrade to an empty cart.
func (s *Store) Load(ctx context.Context) domain.Cart {
	if s.backend == nil {
		return domain.Cart{}
	}
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return domain.Cart{}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("cart load failed, using empty cart")
		return domain.Cart{}
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		s.log.Debug().Err(err).Str("key", s.key).Msg("stored cart is malformed, using empty cart")
		return domain.Cart{}
	}
	return cart.Normalize()
}

// Save overwrites the stored cart and, once the write succeeded, calls every
// current subscriber synchronously in subscription order.
func (s *Store) Save(ctx context.Context, cart domain.Cart) error {
	if s.backend == nil {
		return ErrNoBackend
	}
	if cart == nil {
		cart = domain.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save cart failed: %w", err)
	}
	s.notify(cart)
	return nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it again.
func (s *Store) Subscribe(fn func(domain.Cart)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Run relays writes made by other processes to subscribers until ctx is
// done. It returns immediately when the backend cannot observe them.
func (s *Store) Run(ctx context.Context) error {
	w, ok := s.backend.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, s.key, func() {
		s.log.Debug().Str("key", s.key).Msg("cart changed by another writer")
		s.notify(s.Load(ctx))
	})
}

func (s *Store) notify(cart domain.Cart) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(domain.Cart), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(cart.Clone())
	}
}
