// Package upstream talks to the DEISI shop API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/BrunoMartinho00/lab11/internal/domain"
)

const (
	ProductsPath = "/products"
	BuyPath      = "/buy"
)

const (
	listKey          = "products"
	productCacheSize = 256
	maxResponseBody  = 4 << 20
)

// Response is an upstream answer kept byte for byte.
type Response struct {
	StatusCode  int
	Status      string
	ContentType string
	Body        []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// PurchaseResponse is a successful /buy answer. Fields is empty when the
// body is not a JSON object.
type PurchaseResponse struct {
	StatusCode int
	Fields     map[string]any
	Body       []byte
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Response]
	sfg     singleflight.Group // coalesces concurrent catalog fetches
	list    *expirable.LRU[string, []domain.Product]
	byID    *expirable.LRU[int64, domain.Product]
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithCacheTTL sets how long catalog answers are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.list, c.byID = nil, nil
			return
		}
		c.list = expirable.NewLRU[string, []domain.Product](1, nil, ttl)
		c.byID = expirable.NewLRU[int64, domain.Product](productCacheSize, nil, ttl)
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: zerolog.Nop(),
	}
	WithCacheTTL(time.Minute)(c)
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "deisishop",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c
}

// Forward sends body to path and returns whatever the shop answered.
// An error means no answer was obtained.
func (c *Client) Forward(ctx context.Context, method, path string, body []byte) (*Response, error) {
	resp, err := c.breaker.Execute(func() (*Response, error) {
		resp, err := c.do(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerFault
		}
		return resp, nil
	})
	switch {
	case errors.Is(err, errServerFault):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	case err != nil:
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", res.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream call")

	return &Response{
		StatusCode:  res.StatusCode,
		Status:      res.Status,
		ContentType: res.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// Products returns the catalog. Concurrent callers share one request.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	if c.list != nil {
		if products, ok := c.list.Get(listKey); ok {
			return slices.Clone(products), nil
		}
	}

	v, err, _ := c.sfg.Do(listKey, func() (interface{}, error) {
		resp, err := c.Forward(ctx, http.MethodGet, ProductsPath, nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, newStatusError(resp)
		}
		var products []domain.Product
		if err := json.Unmarshal(resp.Body, &products); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		if c.list != nil {
			c.list.Add(listKey, products)
			for _, p := range products {
				c.byID.Add(p.ID, p)
			}
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.Product)), nil
}

func (c *Client) Product(ctx context.Context, id int64) (domain.Product, error) {
	if c.byID != nil {
		if p, ok := c.byID.Get(id); ok {
			return p, nil
		}
	}

	resp, err := c.Forward(ctx, http.MethodGet, ProductsPath+"/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return domain.Product{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.Product{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if !resp.OK() {
		return domain.Product{}, newStatusError(resp)
	}

	var p domain.Product
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if c.byID != nil {
		c.byID.Add(p.ID, p)
	}
	return p, nil
}

// Buy submits a purchase. Non-2xx answers come back as *StatusError.
func (c *Client) Buy(ctx context.Context, req domain.PurchaseRequest) (*PurchaseResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purchase: %w", err)
	}
	resp, err := c.Forward(ctx, http.MethodPost, BuyPath, body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newStatusError(resp)
	}

	out := &PurchaseResponse{StatusCode: resp.StatusCode, Fields: map[string]any{}, Body: resp.Body}
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err == nil && fields != nil {
		out.Fields = fields
	}
	return out, nil
}
