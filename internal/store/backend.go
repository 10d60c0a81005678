package store

import (
	"context"
	"errors"
)

// CartKey is the key the cart is stored under in every backend.
const CartKey = "deisiShopCart"

var (
	ErrNotFound  = errors.New("key not found")
	ErrNoBackend = errors.New("no persistent store available")
)

// Backend is a key-value store holding serialized values.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Watcher is implemented by backends shared with other processes. Watch
// blocks until ctx is done, calling onChange whenever another writer
// replaced the value under key. Writes made through the same backend
// instance are not reported.
type Watcher interface {
	Watch(ctx context.Context, key string, onChange func()) error
}
