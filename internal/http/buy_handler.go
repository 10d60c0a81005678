package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BrunoMartinho00/lab11/internal/upstream"
)

type Forwarder interface {
	Forward(ctx context.Context, method, path string, body []byte) (*upstream.Response, error)
}

// BuyHandler passes purchase requests to the shop untouched and relays
// its answer the same way.
type BuyHandler struct {
	upstream Forwarder
	timeout  time.Duration
	maxBody  int64
}

func NewBuyHandler(f Forwarder, timeout time.Duration, maxBody int64) *BuyHandler {
	return &BuyHandler{
		upstream: f,
		timeout:  timeout,
		maxBody:  maxBody,
	}
}

func (h *BuyHandler) Buy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read request body")
		return
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.upstream.Forward(ctx, http.MethodPost, upstream.BuyPath, body)
	if err != nil {
		log.Error().Err(err).Msg("purchase not forwarded")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error while processing the purchase")
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		log.Warn().Err(err).Msg("failed to relay purchase response")
	}
}
