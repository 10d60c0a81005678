package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/BrunoMartinho00/lab11/internal/catalog"
	"github.com/BrunoMartinho00/lab11/internal/domain"
	"github.com/BrunoMartinho00/lab11/internal/upstream"
)

// Catalog defines the product lookups the handler needs
type Catalog interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id int64) (domain.Product, error)
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewProductHandler(catalog Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

// List serves the catalog, optionally narrowed by ?search= and ordered
// by ?sort=. Without either the upstream order is kept.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Products(ctx)
	if err != nil {
		handleUpstreamError(w, err, "failed to fetch products")
		return
	}

	q := r.URL.Query()
	if search := q.Get("search"); search != "" {
		products = catalog.Filter(products, search)
	}
	if q.Has("sort") {
		products = catalog.Sort(products, catalog.ParseSortOrder(q.Get("sort")))
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "invalid product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.Product(ctx, id)
	if err != nil {
		handleUpstreamError(w, err, "product not found")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// handleUpstreamError maps client errors to HTTP statuses. Upstream
// statuses are relayed with message as the body text.
func handleUpstreamError(w http.ResponseWriter, err error, message string) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, upstream.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", message)
	case errors.As(err, &se):
		respondError(w, se.StatusCode, "upstream_error", message)
	case errors.Is(err, upstream.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "unavailable", "shop temporarily unavailable")
	default:
		log.Error().Err(err).Msg("upstream call failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
