// Package pricing computes cart subtotals, discounts and totals.
//
// Every figure is derived once from full-precision decimals; only the
// final total is rounded.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/BrunoMartinho00/lab11/internal/domain"
)

// CouponCode is the only coupon the shop honours, compared case-insensitively.
const CouponCode = "deisi20"

var (
	StudentRate = decimal.RequireFromString("0.10")
	CouponRate  = decimal.RequireFromString("0.20")
)

func Subtotal(lines domain.Cart) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Price.Decimal().Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum
}

// DiscountRate adds the student and coupon rates. Unknown coupons count
// as no coupon.
func DiscountRate(isStudent bool, coupon string) decimal.Decimal {
	rate := decimal.Zero
	if isStudent {
		rate = rate.Add(StudentRate)
	}
	if strings.EqualFold(coupon, CouponCode) {
		rate = rate.Add(CouponRate)
	}
	return rate
}

// Total is the subtotal minus the discount, rounded to cents.
func Total(lines domain.Cart, isStudent bool, coupon string) decimal.Decimal {
	return applyRate(Subtotal(lines), DiscountRate(isStudent, coupon))
}

func applyRate(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(decimal.NewFromInt(1).Sub(rate)).Round(2)
}

// LineQuote is one cart line priced at quote time.
type LineQuote struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Quote is everything the cart view displays, computed in a single pass.
type Quote struct {
	Lines    []LineQuote     `json:"lines"`
	Units    int             `json:"units"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Rate     decimal.Decimal `json:"discount_rate"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

func NewQuote(lines domain.Cart, isStudent bool, coupon string) Quote {
	q := Quote{
		Lines: make([]LineQuote, 0, len(lines)),
		Units: lines.Units(),
		Rate:  DiscountRate(isStudent, coupon),
	}
	for _, line := range lines {
		unit := line.Price.Decimal()
		q.Lines = append(q.Lines, LineQuote{
			ProductID: line.ID,
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Subtotal:  unit.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}
	q.Subtotal = Subtotal(lines)
	q.Total = applyRate(q.Subtotal, q.Rate)
	q.Discount = q.Subtotal.Round(2).Sub(q.Total)
	return q
}

func (q Quote) HasDiscount() bool {
	return q.Rate.IsPositive()
}

// Percent renders the discount rate as a whole percentage, e.g. "30%".
func (q Quote) Percent() string {
	return q.Rate.Mul(decimal.NewFromInt(100)).StringFixed(0) + "%"
}

// Money formats an amount with two decimals, the way prices are shown.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
