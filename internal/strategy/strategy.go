// Package strategy implements the per-source catalog fetch strategies:
// VTEX and Shopify storefront APIs, schema.org JSON-LD scraping with a
// sitemap crawl, and the Avon product tile scraper.
//
// Strategies never fail because an upstream did: unreachable pages and bad
// payloads are recorded as failed sources and the strategy keeps going or
// stops paginating. The only error a strategy returns is the caller's
// context cancellation.
package strategy

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
)

// Client is the subset of *fetch.Client strategies use.
type Client interface {
	Text(ctx context.Context, url string, opts ...fetch.Option) (string, error)
	JSON(ctx context.Context, url string, opts ...fetch.Option) (fetch.JSONResponse, error)
}

var _ Client = (*fetch.Client)(nil)

// Filter reports whether a normalized product belongs to the requested
// brand. Storefronts shared by several brands are narrowed with it.
type Filter func(catalog.Product) bool

// BrandFilter keeps products whose brand label folds to a token containing
// want.
func BrandFilter(want string) Filter {
	want = brand.Token(want)
	return func(p catalog.Product) bool {
		return strings.Contains(brand.Token(p.Brand), want)
	}
}

// NameFilter keeps products whose name or URL contains any of tokens.
func NameFilter(tokens ...string) Filter {
	return func(p catalog.Product) bool {
		t := brand.Token(p.Name + " " + p.URL)
		for _, want := range tokens {
			if strings.Contains(t, want) {
				return true
			}
		}
		return false
	}
}

// Joined builds an upstream URL from a base URL and a path.
func Joined(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// results accumulates products and failures of one strategy run. It is safe
// for concurrent use.
type results struct {
	filter Filter

	mu      sync.Mutex
	set     catalog.Set
	failed  []string
	details []catalog.FailureDetail
}

func (r *results) add(products ...catalog.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range products {
		if r.filter == nil || r.filter(p) {
			r.set.Add(p)
		}
	}
}

func (r *results) fail(ctx context.Context, source, code string) {
	zctx.From(ctx).Debug("Upstream source failed",
		zap.String("source", source),
		zap.String("code", code),
	)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, source)
	r.details = append(r.details, catalog.FailureDetail{Source: source, Error: code})
}

// failErr records err for source unless the caller's context is done, in
// which case the cancellation is returned.
func (r *results) failErr(ctx context.Context, source string, err error) error {
	if cerr := fetch.Canceled(ctx); cerr != nil {
		return cerr
	}
	r.fail(ctx, source, fetch.Code(err))
	return nil
}

func (r *results) result() catalog.UpstreamResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return catalog.UpstreamResult{
		Products:      r.set.Products(),
		FailedSources: catalog.UniqueStrings(r.failed),
		FailedDetails: append([]catalog.FailureDetail(nil), r.details...),
	}
}
