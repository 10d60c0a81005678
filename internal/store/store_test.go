package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrunoMartinho00/lab11/internal/domain"
)

type failingBackend struct {
	getErr error
	setErr error
}

func (f failingBackend) Get(context.Context, string) ([]byte, error) { return nil, f.getErr }
func (f failingBackend) Set(context.Context, string, []byte) error  { return f.setErr }

// watchableBackend lets a test trigger a foreign write notification.
type watchableBackend struct {
	*MemoryBackend
	changes chan struct{}
}

func (w *watchableBackend) Watch(ctx context.Context, _ string, onChange func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.changes:
			onChange()
		}
	}
}

func sampleCart() domain.Cart {
	return domain.Cart{
		{Product: domain.Product{ID: 2, Title: "Caneca", Price: domain.MustPrice("19.50"), Rating: domain.Rating{Rate: 4.9, Count: 150}}, Quantity: 1},
		{Product: domain.Product{ID: 1, Title: "T-shirt", Price: domain.MustPrice("10.00"), Image: "/media/t.png"}, Quantity: 3},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend())

	cart := sampleCart()
	require.NoError(t, s.Save(ctx, cart))

	loaded := s.Load(ctx)
	assert.Equal(t, cart, loaded)
}

func TestLoad_AbsentKey(t *testing.T) {
	s := New(NewMemoryBackend())

	cart := s.Load(context.Background())
	assert.NotNil(t, cart)
	assert.Empty(t, cart)
}

func TestLoad_MalformedValue(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, CartKey, []byte(`{"not":"an array"`)))

	assert.Empty(t, New(backend).Load(ctx))
}

func TestLoad_InvalidPriceInStoredCart(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, CartKey, []byte(`[{"id":1,"price":"free","quantity":1}]`)))

	assert.Empty(t, New(backend).Load(ctx))
}

func TestLoad_DropsNonPositiveQuantities(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, CartKey, []byte(`[{"id":1,"price":"1.00","quantity":0},{"id":2,"price":"2.00","quantity":2}]`)))

	cart := New(backend).Load(ctx)
	require.Len(t, cart, 1)
	assert.Equal(t, int64(2), cart[0].ID)
}

func TestLoad_BackendError(t *testing.T) {
	s := New(failingBackend{getErr: errors.New("disk on fire")})
	assert.Empty(t, s.Load(context.Background()))
}

func TestNoBackend(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	called := false
	s.Subscribe(func(domain.Cart) { called = true })

	assert.Empty(t, s.Load(ctx))
	assert.ErrorIs(t, s.Save(ctx, sampleCart()), ErrNoBackend)
	assert.False(t, called)
	assert.NoError(t, s.Run(ctx))
}

func TestSave_NotifiesAllSubscribersInOrder(t *testing.T) {
	s := New(NewMemoryBackend())

	var order []string
	var got domain.Cart
	s.Subscribe(func(c domain.Cart) { order = append(order, "first"); got = c })
	s.Subscribe(func(domain.Cart) { order = append(order, "second") })

	require.NoError(t, s.Save(context.Background(), sampleCart()))

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, sampleCart(), got)
}

func TestSave_SubscribersGetIndependentCopies(t *testing.T) {
	s := New(NewMemoryBackend())

	var a, b domain.Cart
	s.Subscribe(func(c domain.Cart) { a = c; a[0].Quantity = 99 })
	s.Subscribe(func(c domain.Cart) { b = c })

	require.NoError(t, s.Save(context.Background(), sampleCart()))
	assert.Equal(t, 1, b[0].Quantity)
}

func TestSave_FailureDoesNotNotify(t *testing.T) {
	s := New(failingBackend{setErr: errors.New("quota exceeded")})

	called := false
	s.Subscribe(func(domain.Cart) { called = true })

	err := s.Save(context.Background(), sampleCart())
	assert.ErrorContains(t, err, "save cart failed")
	assert.False(t, called)
}

func TestSave_NilCartStoredAsEmptyArray(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, New(backend).Save(ctx, nil))

	data, err := backend.Get(ctx, CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestUnsubscribe(t *testing.T) {
	s := New(NewMemoryBackend())

	calls := 0
	unsubscribe := s.Subscribe(func(domain.Cart) { calls++ })
	require.NoError(t, s.Save(context.Background(), sampleCart()))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Save(context.Background(), sampleCart()))

	assert.Equal(t, 1, calls)
}

func TestWithKey(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, New(backend, WithKey("other")).Save(ctx, sampleCart()))

	_, err := backend.Get(ctx, CartKey)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, New(backend, WithKey("other")).Load(ctx), 2)
}

func TestRun_RelaysForeignWrites(t *testing.T) {
	backend := &watchableBackend{MemoryBackend: NewMemoryBackend(), changes: make(chan struct{})}
	s := New(backend)

	var mu sync.Mutex
	var got domain.Cart
	s.Subscribe(func(c domain.Cart) {
		mu.Lock()
		defer mu.Unlock()
		got = c
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// another process wrote directly to the shared backend
	require.NoError(t, New(backend.MemoryBackend).Save(context.Background(), sampleCart()))
	backend.changes <- struct{}{}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_NonWatchingBackendReturnsImmediately(t *testing.T) {
	assert.NoError(t, New(NewMemoryBackend()).Run(context.Background()))
}
