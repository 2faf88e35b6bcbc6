// Package collector scrapes schema.org products from an arbitrary storefront
// website: product links found on the landing page and in the sitemaps are
// fetched by a small worker pool and their ld+json blocks normalized.
package collector

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
	"github.com/iagopasso/revendis-sub001/internal/normalize"
	"github.com/iagopasso/revendis-sub001/internal/resilience"
	"github.com/iagopasso/revendis-sub001/internal/strategy"
)

// Limits.
const (
	DefaultMaxPages = 120
	MaxPages        = 400
	MaxSitemapFiles = 30
	MaxLandingLinks = 300
	Workers         = 6

	// DefaultCategory is used when a product URL has no path.
	DefaultCategory = "website"

	frontierCapacity = 50_000
	frontierFPR      = 0.001
)

var defaultHints = []string{"/p/", "/produto", "/product", "/produtos/", "/item/", "/sku/"}

// ErrInvalidSiteURL is returned when the site URL is not an absolute http(s)
// URL.
var ErrInvalidSiteURL = errors.New("invalid site url")

// Request describes one collection run.
type Request struct {
	SiteURL string
	// ProductURLs are crawled in addition to discovered pages.
	ProductURLs []string
	// PathHints extend the path fragments that mark a product page.
	PathHints []string
	MaxPages  int
	// Brand assigns every product to a brand. When empty, the brand named by
	// each product is resolved through the registry.
	Brand brand.Slug
}

// FailedURL is a product page that could not be fetched.
type FailedURL struct {
	URL   string
	Error string
}

// Result of a collection run.
type Result struct {
	Products    []catalog.Product
	ScannedURLs int
	SourceURLs  []string
	FailedURLs  []FailedURL
	// Unmapped counts products whose brand is not in the registry.
	Unmapped int
}

// Collector collects products from websites.
type Collector struct {
	client strategy.Client
}

// New creates a Collector.
func New(client strategy.Client) *Collector {
	return &Collector{client: client}
}

// ClampMaxPages bounds the requested page budget.
func ClampMaxPages(n int) int {
	if n <= 0 {
		return DefaultMaxPages
	}
	return min(n, MaxPages)
}

// Collect runs the collection. Only an invalid site URL or cancellation are
// errors; unreachable pages are reported in Result.FailedURLs.
func (c *Collector) Collect(ctx context.Context, req Request) (Result, error) {
	site, err := url.Parse(strings.TrimSpace(req.SiteURL))
	if err != nil || (site.Scheme != "http" && site.Scheme != "https") || site.Host == "" {
		return Result{}, ErrInvalidSiteURL
	}

	f := newFrontier(site, req.PathHints, ClampMaxPages(req.MaxPages))
	if err := c.discover(ctx, site, req.ProductURLs, f); err != nil {
		return Result{}, err
	}

	res := Result{
		ScannedURLs: len(f.urls),
		SourceURLs:  f.urls,
	}
	var (
		mu  sync.Mutex
		set catalog.Set
	)
	var g errgroup.Group
	g.SetLimit(Workers)
	for _, u := range f.urls {
		g.Go(func() error {
			html, err := c.client.Text(ctx, u)
			if err != nil {
				if cerr := fetch.Canceled(ctx); cerr != nil {
					return cerr
				}
				mu.Lock()
				res.FailedURLs = append(res.FailedURLs, FailedURL{URL: u, Error: fetch.Code(err)})
				mu.Unlock()
				return nil
			}
			products, unmapped := pageProducts(html, u, site, req.Brand)
			mu.Lock()
			set.AddNew(products...)
			res.Unmapped += unmapped
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.Products = set.Products()
	catalog.SortByName(res.Products)
	sort.Slice(res.FailedURLs, func(i, j int) bool { return res.FailedURLs[i].URL < res.FailedURLs[j].URL })

	zctx.From(ctx).Info("Website collected",
		zap.String("site", site.Host),
		zap.Int("scanned", res.ScannedURLs),
		zap.Int("products", len(res.Products)),
		zap.Int("failed", len(res.FailedURLs)),
	)
	return res, nil
}

var hrefAttr = regexp.MustCompile(`(?i)href="([^"]+)"`)

// Links returns the href targets of html resolved against base.
func Links(html string, base *url.URL) []string {
	var out []string
	for _, m := range hrefAttr.FindAllStringSubmatch(html, -1) {
		if u, ok := resolve(base, m[1]); ok {
			out = append(out, u)
		}
	}
	return out
}

func resolve(base *url.URL, ref string) (string, bool) {
	ref = normalize.Text(ref)
	if ref == "" {
		return "", false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

// discover fills the frontier from the caller's URLs, the landing page and
// the sitemaps. Unreachable discovery sources are skipped.
func (c *Collector) discover(ctx context.Context, site *url.URL, productURLs []string, f *frontier) error {
	lg := zctx.From(ctx)
	for _, u := range productURLs {
		f.add(u)
	}

	landing, err := c.client.Text(ctx, site.String())
	switch {
	case err == nil:
		links := Links(landing, site)
		for _, u := range links[:min(len(links), MaxLandingLinks)] {
			f.add(u)
		}
	case fetch.Canceled(ctx) != nil:
		return fetch.Canceled(ctx)
	default:
		lg.Debug("Landing page unavailable", zap.String("url", site.String()), zap.Error(err))
	}

	origin := site.Scheme + "://" + site.Host
	queue := []string{origin + "/sitemap.xml", origin + "/sitemap_index.xml"}
	visited := make(map[string]struct{})
	for len(queue) > 0 && len(visited) < MaxSitemapFiles && !f.full() {
		current := queue[0]
		queue = queue[1:]
		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}

		xml, err := c.client.Text(ctx, current)
		if err != nil {
			if cerr := fetch.Canceled(ctx); cerr != nil {
				return cerr
			}
			lg.Debug("Sitemap unavailable", zap.String("url", current), zap.Error(err))
			continue
		}
		for _, loc := range strategy.Locs(xml) {
			if strings.HasSuffix(strings.ToLower(loc), ".xml") {
				if len(visited)+len(queue) < MaxSitemapFiles {
					queue = append(queue, loc)
				}
				continue
			}
			f.add(loc)
		}
	}
	return nil
}

// frontier keeps candidate product URLs in discovery order. Membership is
// tracked with a bloom filter.
type frontier struct {
	site   *url.URL
	hints  []string
	limit  int
	filter *bloom.BloomFilter
	urls   []string
}

func newFrontier(site *url.URL, hints []string, limit int) *frontier {
	all := append([]string(nil), defaultHints...)
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			all = append(all, h)
		}
	}
	return &frontier{
		site:   site,
		hints:  all,
		limit:  limit,
		filter: bloom.NewWithEstimates(frontierCapacity, frontierFPR),
	}
}

func (f *frontier) full() bool { return len(f.urls) >= f.limit }

func (f *frontier) add(raw string) {
	if f.full() {
		return
	}
	s, ok := resolve(f.site, raw)
	if !ok {
		return
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != f.site.Scheme || u.Host != f.site.Host {
		return
	}
	if !f.likelyProduct(u.Path) {
		return
	}
	if f.filter.TestOrAddString(s) {
		return
	}
	f.urls = append(f.urls, s)
}

func (f *frontier) likelyProduct(p string) bool {
	p = strings.ToLower(p)
	for _, h := range f.hints {
		if strings.Contains(p, h) {
			return true
		}
	}
	return false
}

// pageProducts extracts the products of one page and assigns their brand.
func pageProducts(html, pageURL string, site *url.URL, b brand.Slug) ([]catalog.Product, int) {
	page := normalize.Page{
		Brand:   b,
		BaseURL: site.Scheme + "://" + site.Host,
		Path:    pathOf(pageURL),
	}
	var (
		out      []catalog.Product
		unmapped int
	)
	for _, p := range normalize.ExtractJSONLD(html, page) {
		slug := b
		if slug == "" {
			resolved, ok := brand.Resolve(p.Brand)
			if !ok {
				unmapped++
				continue
			}
			slug = resolved
			if rest, ok := strings.CutPrefix(p.ID, "AUTO--"); ok {
				p.ID = "AUTO-" + strings.ToUpper(string(slug)) + "-" + rest
				p.SKU = p.ID
			}
		}
		if p.URL == "" {
			p.URL = pageURL
		}
		p.SourceBrand = slug
		p.Brand = brand.Label(slug)
		p.SourceCategory = categoryOf(p.URL)
		if !p.PurchasePrice.Valid {
			p.PurchasePrice = p.Price
		}
		p.ImageURL = resilience.ImageURL(slug, p.ImageURL)
		out = append(out, p)
	}
	return out, unmapped
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// categoryOf is the first path segment of a product URL.
func categoryOf(raw string) string {
	for _, part := range strings.Split(pathOf(raw), "/") {
		if part != "" {
			return strings.ToLower(part)
		}
	}
	return DefaultCategory
}
