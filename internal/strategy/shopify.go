package strategy

import (
	"context"
	"fmt"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
	"github.com/iagopasso/revendis-sub001/internal/normalize"
)

// Shopify defaults.
const (
	ShopifyPageSize = 250
	ShopifyMaxPages = 12
)

// Shopify pages through a Shopify storefront's /products.json listing.
type Shopify struct {
	Client   Client
	Brand    brand.Slug
	BaseURL  string
	PageSize int
	MaxPages int
}

// Fetch reads pages 1..MaxPages until one is short, empty or fails.
func (s Shopify) Fetch(ctx context.Context) (catalog.UpstreamResult, error) {
	size, pages := s.PageSize, s.MaxPages
	if size <= 0 {
		size = ShopifyPageSize
	}
	if pages <= 0 {
		pages = ShopifyMaxPages
	}

	r := &results{}
	for page := 1; page <= pages; page++ {
		u := Joined(s.BaseURL, fmt.Sprintf("/products.json?limit=%d&page=%d", size, page))

		res, err := s.Client.JSON(ctx, u)
		if err != nil {
			if err := r.failErr(ctx, u, err); err != nil {
				return catalog.UpstreamResult{}, err
			}
			break
		}
		if !res.OK {
			r.fail(ctx, u, fetch.StatusCode(res.Status))
			break
		}
		if res.Body.Kind() != jsonvalue.Object {
			r.fail(ctx, u, CodeInvalidPayload)
			break
		}

		records := res.Body.At("products").Items()
		if len(records) == 0 {
			break
		}
		for _, raw := range records {
			if p, ok := normalize.Shopify(raw, s.Brand, s.BaseURL); ok {
				r.add(p)
			}
		}
		if len(records) < size {
			break
		}
	}
	return r.result(), nil
}
