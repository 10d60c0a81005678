package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrunoMartinho00/lab11/internal/domain"
)

const catalogJSON = `[
	{"id":1,"title":"T-shirt DEISI","price":"10.00","description":"Branca","category":"t-shirts","image":"/media/t.png","rating":{"rate":4.5,"count":10}},
	{"id":2,"title":"Caneca","price":"19.50","description":"Caneca","category":"canecas","image":"/media/c.png","rating":{"rate":4.9,"count":150}}
]`

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, opts...), srv
}

func TestProducts_DecodesCatalog(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, catalogJSON)
	})

	products, err := c.Products(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Caneca", products[1].Title)
	assert.Equal(t, "19.50", products[1].Price.String())
}

func TestProducts_CachedWithinTTL(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, catalogJSON)
	})

	_, err := c.Products(context.Background())
	require.NoError(t, err)
	products, err := c.Products(context.Background())
	require.NoError(t, err)

	assert.Len(t, products, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProducts_CallerCannotCorruptCache(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, catalogJSON)
	})

	first, err := c.Products(context.Background())
	require.NoError(t, err)
	first[0].Title = "changed"

	second, err := c.Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T-shirt DEISI", second[0].Title)
}

func TestProducts_ConcurrentCallsCoalesce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = io.WriteString(w, catalogJSON)
	}, WithCacheTTL(0))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Products(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestProducts_StatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Products(context.Background())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestProducts_InvalidPriceRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"title":"x","price":"abc"}]`)
	})

	_, err := c.Products(context.Background())

	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestProduct(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/2":
			_, _ = io.WriteString(w, `{"id":2,"title":"Caneca","price":"19.50"}`)
		default:
			http.NotFound(w, r)
		}
	})

	p, err := c.Product(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Caneca", p.Title)

	_, err = c.Product(context.Background(), 99)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProduct_ServedFromCatalogCache(t *testing.T) {
	var detailCalls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			detailCalls.Add(1)
		}
		_, _ = io.WriteString(w, catalogJSON)
	})

	_, err := c.Products(context.Background())
	require.NoError(t, err)
	p, err := c.Product(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "T-shirt DEISI", p.Title)
	assert.Zero(t, detailCalls.Load())
}

func TestBuy_SendsFlatProductList(t *testing.T) {
	var got domain.PurchaseRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/buy", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id": 1234, "totalCost": "63.00"}`)
	})

	cart := domain.Cart{
		{Product: domain.Product{ID: 1, Price: domain.MustPrice("10")}, Quantity: 2},
		{Product: domain.Product{ID: 5, Price: domain.MustPrice("50")}, Quantity: 1},
	}
	resp, err := c.Buy(context.Background(), domain.NewPurchaseRequest(cart, "Ana", true, "deisi20"))

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 5}, got.Products)
	assert.True(t, got.Student)
	assert.Equal(t, "deisi20", got.Coupon)
	assert.Equal(t, json.Number("1234"), resp.Fields["id"])
}

func TestBuy_NonObjectBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `"ok"`)
	})

	resp, err := c.Buy(context.Background(), domain.PurchaseRequest{Products: []int64{1}})

	require.NoError(t, err)
	assert.Empty(t, resp.Fields)
	assert.Equal(t, `"ok"`, string(resp.Body))
}

func TestBuy_BusinessError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Produto 42 inexistente"}`)
	})

	_, err := c.Buy(context.Background(), domain.PurchaseRequest{Products: []int64{42}})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "Produto 42 inexistente", se.Message())
}

func TestForward_RelaysServerErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"detail":"down"}`)
	})

	resp, err := c.Forward(context.Background(), http.MethodPost, "/buy", []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"detail":"down"}`, string(resp.Body))
}

func TestForward_BreakerOpensAfterRepeatedFaults(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		resp, err := c.Forward(context.Background(), http.MethodGet, "/products", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}
	_, err := c.Forward(context.Background(), http.MethodGet, "/products", nil)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestForward_ClientErrorsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 10; i++ {
		resp, err := c.Forward(context.Background(), http.MethodPost, "/buy", []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestForward_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, time.Second)

	_, err := c.Forward(context.Background(), http.MethodGet, "/products", nil)

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestStatusError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  StatusError
		want string
	}{
		{"message field", StatusError{StatusCode: 400, Body: []byte(`{"message":"Cupão inválido"}`)}, "Cupão inválido"},
		{"error field", StatusError{StatusCode: 400, Body: []byte(`{"error":"sem stock"}`)}, "sem stock"},
		{"detail field", StatusError{StatusCode: 422, Body: []byte(`{"detail":"bad ids"}`)}, "bad ids"},
		{"message wins", StatusError{StatusCode: 400, Body: []byte(`{"detail":"d","message":"m"}`)}, "m"},
		{"blank falls through", StatusError{StatusCode: 400, Body: []byte(`{"message":" ","error":"e"}`)}, "e"},
		{"status line", StatusError{StatusCode: 503, Status: "503 Service Unavailable"}, "purchase failed: 503 Service Unavailable"},
		{"status text", StatusError{StatusCode: 404, Body: []byte(`<html>`)}, "purchase failed: 404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Message())
		})
	}
}
