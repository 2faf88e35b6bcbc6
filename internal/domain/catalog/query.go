package catalog

import (
	"sort"
	"strings"

	"github.com/iagopasso/revendis-sub001/internal/brand"
)

// Sort orders accepted by Query.
const (
	SortName      = "name"
	SortPriceAsc  = "price"
	SortPriceDesc = "-price"
)

// Query is the caller-side filter applied over fetched products.
type Query struct {
	// Search matches name, SKU, barcode and brand, ignoring case, accents and
	// punctuation.
	Search   string
	Category string
	InStock  *bool
	Sort     string
	Limit    int
	Offset   int
}

// Apply filters, sorts and paginates products. The input slice is not
// modified.
func (q Query) Apply(products []Product) []Product {
	search := brand.Token(q.Search)
	category := strings.ToLower(strings.TrimSpace(q.Category))

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if q.InStock != nil && p.InStock != *q.InStock {
			continue
		}
		if category != "" && p.SourceCategory != category {
			continue
		}
		if search != "" && !matches(p, search) {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case SortName:
		SortByName(out)
	case SortPriceAsc, SortPriceDesc:
		desc := q.Sort == SortPriceDesc
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Price, out[j].Price
			// Products without a price go last in both directions.
			if a.Valid != b.Valid {
				return a.Valid
			}
			if desc {
				return a.Decimal.GreaterThan(b.Decimal)
			}
			return a.Decimal.LessThan(b.Decimal)
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []Product{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

func matches(p Product, token string) bool {
	for _, field := range []string{p.Name, p.SKU, p.Barcode, p.Brand} {
		if strings.Contains(brand.Token(field), token) {
			return true
		}
	}
	return false
}

// SortByName orders products by name, then source brand, then ID.
func SortByName(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		if a.SourceBrand != b.SourceBrand {
			return a.SourceBrand < b.SourceBrand
		}
		return a.ID < b.ID
	})
}
