package http

import (
	"encoding/json"
	"net/http"

	"github.com/BrunoMartinho00/lab11/internal/domain"
	"github.com/BrunoMartinho00/lab11/internal/pricing"
)

type QuoteRequestDTO struct {
	Cart    domain.Cart `json:"cart"`
	Student bool        `json:"student"`
	Coupon  string      `json:"coupon"`
}

type QuoteLineDTO struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type QuoteResponse struct {
	Lines        []QuoteLineDTO `json:"lines"`
	Units        int            `json:"units"`
	Subtotal     string         `json:"subtotal"`
	DiscountRate string         `json:"discount_rate"`
	Discount     string         `json:"discount"`
	Total        string         `json:"total"`
}

// QuoteHandler prices a posted cart without storing anything.
type QuoteHandler struct {
	maxBody int64
}

func NewQuoteHandler(maxBody int64) *QuoteHandler {
	return &QuoteHandler{maxBody: maxBody}
}

func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid cart: "+err.Error())
		return
	}

	q := pricing.NewQuote(req.Cart.Normalize(), req.Student, req.Coupon)
	resp := QuoteResponse{
		Lines:        make([]QuoteLineDTO, len(q.Lines)),
		Units:        q.Units,
		Subtotal:     pricing.Money(q.Subtotal),
		DiscountRate: q.Percent(),
		Discount:     pricing.Money(q.Discount),
		Total:        pricing.Money(q.Total),
	}
	for i, l := range q.Lines {
		resp.Lines[i] = QuoteLineDTO{
			ProductID: l.ProductID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: pricing.Money(l.UnitPrice),
			Subtotal:  pricing.Money(l.Subtotal),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
