package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("invalid product price")

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is a catalog entry as served by the upstream shop.
type Product struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Price       Price  `json:"price"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	Rating      Rating `json:"rating"`
}

// Price is a non-negative decimal amount carried as a string on the wire.
// The original text is kept so that re-encoding returns it unchanged.
type Price struct {
	value decimal.Decimal
	raw   string
}

func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("%w %q", ErrInvalidPrice, s)
	}
	if d.IsNegative() {
		return Price{}, fmt.Errorf("%w %q: must not be negative", ErrInvalidPrice, s)
	}
	return Price{value: d, raw: s}, nil
}

// MustPrice is ParsePrice for literals known to be valid.
func MustPrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Price) Decimal() decimal.Decimal {
	return p.value
}

func (p Price) String() string {
	if p.raw != "" {
		return p.raw
	}
	return p.value.StringFixed(2)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts a JSON string or a bare number.
func (p *Price) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPrice, err)
		}
	} else {
		s = string(data)
	}
	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
