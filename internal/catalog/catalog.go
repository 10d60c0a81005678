// Package catalog filters, orders and decorates product listings.
package catalog

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/BrunoMartinho00/lab11/internal/domain"
)

type SortOrder string

const (
	NameAsc   SortOrder = "name_asc"
	NameDesc  SortOrder = "name_desc"
	PriceAsc  SortOrder = "price_asc"
	PriceDesc SortOrder = "price_desc"
)

// aliases accepts the Portuguese names used by the shop front end.
var aliases = map[string]SortOrder{
	"name_asc":   NameAsc,
	"name_desc":  NameDesc,
	"price_asc":  PriceAsc,
	"price_desc": PriceDesc,
	"nome_asc":   NameAsc,
	"nome_desc":  NameDesc,
	"preco_asc":  PriceAsc,
	"preco_desc": PriceDesc,
}

// ParseSortOrder maps s to a SortOrder. Unknown values sort by name.
func ParseSortOrder(s string) SortOrder {
	if order, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return order
	}
	return NameAsc
}

// Filter keeps the products whose title contains search, ignoring case.
// An empty search keeps everything.
func Filter(products []domain.Product, search string) []domain.Product {
	term := strings.ToLower(search)
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), term) {
			out = append(out, p)
		}
	}
	return out
}

// Sort returns a sorted copy of products. Ties keep their input order.
func Sort(products []domain.Product, order SortOrder) []domain.Product {
	out := slices.Clone(products)
	// Collators are not safe for concurrent use.
	col := collate.New(language.Portuguese)
	byName := func(a, b domain.Product) int {
		return col.CompareString(a.Title, b.Title)
	}
	byPrice := func(a, b domain.Product) int {
		return a.Price.Decimal().Cmp(b.Price.Decimal())
	}

	switch order {
	case NameDesc:
		slices.SortStableFunc(out, func(a, b domain.Product) int { return byName(b, a) })
	case PriceAsc:
		slices.SortStableFunc(out, byPrice)
	case PriceDesc:
		slices.SortStableFunc(out, func(a, b domain.Product) int { return byPrice(b, a) })
	default:
		slices.SortStableFunc(out, byName)
	}
	return out
}

// ImageURL resolves a product image path against base. Absolute URLs are
// returned unchanged.
func ImageURL(base, path string) string {
	if path == "" {
		return ""
	}
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(path, "//") {
		return path
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// WithImageURLs returns a copy of products with absolute image URLs.
func WithImageURLs(products []domain.Product, base string) []domain.Product {
	out := slices.Clone(products)
	for i := range out {
		out[i].Image = ImageURL(base, out[i].Image)
	}
	return out
}
