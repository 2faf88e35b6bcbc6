// Package dispatch routes a brand to the strategy that can read its
// storefront.
package dispatch

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iagopasso/revendis-sub001/internal/bff"
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/strategy"
)

// Paths scraped for brands served by the generic JSON-LD strategy.
var genericPaths = map[brand.Slug][]string{
	brand.Demillus:          {"/", "/produtos", "/catalogo"},
	brand.Farmasi:           {"/", "/collections/all", "/produtos"},
	brand.Hinode:            {"/", "/produtos", "/perfumaria"},
	brand.Jequiti:           {"/", "/perfumes", "/maquiagem"},
	brand.LoccitaneAuBresil: {"/", "/perfume", "/cuidado-corporal"},
	brand.Mahogany:          {"/", "/perfumes", "/corpo-e-banho"},
	brand.MomentsParis:      {"/", "/produtos"},
	brand.Odorata:           {"/", "/produtos"},
	brand.Racco:             {"/", "/produtos"},
	brand.Skelt:             {"/", "/autobronzeadores"},
	brand.Extase:            {"/", "/produtos", "/perfumes-femininos", "/cuidados-corporais"},
	brand.Diamante:          {"/", "/produtos"},
}

// Extase is sold through a multi-brand storefront.
var extaseFilter = strategy.NameFilter("extase", "xtase")

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBaseURL points a brand at another origin, such as a mirror or a test
// server.
func WithBaseURL(b brand.Slug, baseURL string) Option {
	return func(d *Dispatcher) { d.baseURLs[b] = baseURL }
}

// WithSitemap sets the sitemap stage limits of generic scraping.
func WithSitemap(s strategy.Sitemap) Option {
	return func(d *Dispatcher) { d.sitemap = s }
}

// Dispatcher routes brands to strategies.
type Dispatcher struct {
	client   strategy.Client
	natura   *bff.Client
	baseURLs map[brand.Slug]string
	sitemap  strategy.Sitemap
}

// New creates a Dispatcher. natura may be nil, in which case the Natura
// brand yields an empty result.
func New(client strategy.Client, natura *bff.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:   client,
		natura:   natura,
		baseURLs: make(map[brand.Slug]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BaseURL returns the origin used for b.
func (d *Dispatcher) BaseURL(b brand.Slug) string {
	if u, ok := d.baseURLs[b]; ok {
		return u
	}
	return brand.BaseURL(b)
}

func (d *Dispatcher) vtex(b, site brand.Slug, filter strategy.Filter) strategy.VTEX {
	return strategy.VTEX{Client: d.client, Brand: b, BaseURL: d.BaseURL(site), Filter: filter}
}

func (d *Dispatcher) jsonld(b brand.Slug, paths []string, filter strategy.Filter) strategy.JSONLD {
	return strategy.JSONLD{
		Client:  d.client,
		Brand:   b,
		BaseURL: d.BaseURL(b),
		Paths:   paths,
		Filter:  filter,
		Sitemap: d.sitemap,
	}
}

type fetcher interface {
	Fetch(ctx context.Context) (catalog.UpstreamResult, error)
}

// withFallback runs secondary only when primary found nothing, merging both
// results.
func withFallback(ctx context.Context, primary, secondary fetcher) (catalog.UpstreamResult, error) {
	first, err := primary.Fetch(ctx)
	if err != nil {
		return catalog.UpstreamResult{}, err
	}
	if len(first.Products) > 0 {
		return first, nil
	}
	second, err := secondary.Fetch(ctx)
	if err != nil {
		return catalog.UpstreamResult{}, err
	}
	return catalog.Merge(first, second), nil
}

// Dispatch fetches the upstream catalog of b. Only cancellation of ctx and
// unknown brands yield an error.
func (d *Dispatcher) Dispatch(ctx context.Context, b brand.Slug) (catalog.UpstreamResult, error) {
	switch b {
	case brand.Avon:
		return withFallback(ctx,
			strategy.Avon{Client: d.client, BaseURL: d.BaseURL(b), Paths: strategy.AvonPaths},
			d.jsonld(b, strategy.AvonPaths, nil),
		)
	case brand.MaryKay, brand.QuemDisseBerenice:
		return d.vtex(b, b, nil).Fetch(ctx)
	case brand.Tupperware:
		return strategy.Shopify{Client: d.client, Brand: b, BaseURL: d.BaseURL(b)}.Fetch(ctx)
	case brand.Eudora, brand.Boticario:
		filter := strategy.BrandFilter(string(b))
		return withFallback(ctx, d.vtex(b, b, filter), d.jsonld(b, []string{"/"}, filter))
	case brand.Oui:
		// Oui products are listed on the Boticario storefront.
		filter := strategy.BrandFilter(string(b))
		return withFallback(ctx, d.vtex(b, brand.Boticario, filter), d.jsonld(b, []string{"/"}, filter))
	case brand.Natura:
		if d.natura == nil {
			return catalog.UpstreamResult{}, nil
		}
		return d.natura.FetchCatalog(ctx, bff.Options{})
	case brand.Extase:
		return d.jsonld(b, genericPaths[b], extaseFilter).Fetch(ctx)
	case brand.Demillus, brand.Farmasi, brand.Hinode, brand.Jequiti, brand.LoccitaneAuBresil,
		brand.Mahogany, brand.MomentsParis, brand.Odorata, brand.Racco, brand.Skelt, brand.Diamante:
		return d.jsonld(b, genericPaths[b], nil).Fetch(ctx)
	default:
		return catalog.UpstreamResult{}, errors.Wrapf(brand.ErrUnknown, "dispatch %q", b)
	}
}
