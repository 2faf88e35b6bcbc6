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

// VTEX defaults.
const (
	VTEXPageSize = 50
	VTEXMaxPages = 20
)

// CodeInvalidPayload marks a 2xx response whose body has the wrong shape.
const CodeInvalidPayload = "invalid_payload"

// VTEX pages through the public VTEX catalog search API.
type VTEX struct {
	Client  Client
	Brand   brand.Slug
	BaseURL string
	// Filter, when set, drops products of other brands sharing the
	// storefront.
	Filter   Filter
	PageSize int
	MaxPages int
}

// Fetch reads pages until one is short, empty or fails, or until MaxPages.
func (s VTEX) Fetch(ctx context.Context) (catalog.UpstreamResult, error) {
	size, pages := s.PageSize, s.MaxPages
	if size <= 0 {
		size = VTEXPageSize
	}
	if pages <= 0 {
		pages = VTEXMaxPages
	}

	r := &results{filter: s.Filter}
	for page := 0; page < pages; page++ {
		from := page * size
		u := Joined(s.BaseURL, fmt.Sprintf("/api/catalog_system/pub/products/search?_from=%d&_to=%d", from, from+size-1))

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
		if res.Body.Kind() != jsonvalue.Array {
			r.fail(ctx, u, CodeInvalidPayload)
			break
		}

		records := res.Body.Items()
		parsed := make([]catalog.Product, 0, len(records))
		for _, raw := range records {
			if p, ok := normalize.VTEX(raw, s.Brand, s.BaseURL, catalog.DefaultCategory); ok {
				parsed = append(parsed, p)
			}
		}
		if len(parsed) == 0 {
			break
		}
		r.add(parsed...)
		if len(records) < size {
			break
		}
	}
	return r.result(), nil
}
