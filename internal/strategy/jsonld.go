package strategy

import (
	"context"
	"net/url"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/normalize"
)

// JSONLD scrapes schema.org Product markup from a list of site paths, then
// from the product pages listed in the site's sitemaps.
type JSONLD struct {
	Client  Client
	Brand   brand.Slug
	BaseURL string
	Paths   []string
	Filter  Filter
	// Sitemap configures the second stage. The zero value uses defaults.
	Sitemap Sitemap
}

// Fetch visits every path in order, then crawls sitemap product pages.
func (s JSONLD) Fetch(ctx context.Context) (catalog.UpstreamResult, error) {
	r := &results{filter: s.Filter}
	for _, path := range s.Paths {
		u := Joined(s.BaseURL, path)
		html, err := s.Client.Text(ctx, u)
		if err != nil {
			if err := r.failErr(ctx, u, err); err != nil {
				return catalog.UpstreamResult{}, err
			}
			continue
		}
		r.add(normalize.ExtractJSONLD(html, s.page(path))...)
	}

	if s.Sitemap.Disabled {
		return r.result(), nil
	}
	urls, err := s.Sitemap.discover(ctx, s.Client, s.BaseURL, r)
	if err != nil {
		return catalog.UpstreamResult{}, err
	}
	if err := s.Sitemap.crawl(ctx, urls, func(ctx context.Context, u string) error {
		html, err := s.Client.Text(ctx, u)
		if err != nil {
			return r.failErr(ctx, u, err)
		}
		r.add(normalize.ExtractJSONLD(html, s.page(pathOf(u)))...)
		return nil
	}); err != nil {
		return catalog.UpstreamResult{}, err
	}
	return r.result(), nil
}

func (s JSONLD) page(path string) normalize.Page {
	return normalize.Page{Brand: s.Brand, BaseURL: s.BaseURL, Path: path}
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
