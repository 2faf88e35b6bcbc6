// Package bff is a client for the Natura storefront search backend.
//
// The backend serves category listings and free-text search as paginated
// JSON behind an API key and tenant header. Requests walk a list of client
// profiles because the backend rate limits and bot-blocks unpredictably, and
// an authenticated consultant session may be attached to unlock reseller
// prices.
package bff

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
	"github.com/iagopasso/revendis-sub001/internal/normalize"
)

// CodeInvalidJSON marks a page that was neither JSON nor carried embedded
// product data.
const CodeInvalidJSON = "invalid_json"

// HTTPClient is the subset of *fetch.Client used by the backend client.
type HTTPClient interface {
	Text(ctx context.Context, url string, opts ...fetch.Option) (string, error)
	JSON(ctx context.Context, url string, opts ...fetch.Option) (fetch.JSONResponse, error)
}

var _ HTTPClient = (*fetch.Client)(nil)

// Session carries consultant credentials obtained by logging in. At least
// one field is set for a valid session.
type Session struct {
	BearerToken string
	Cookie      string
}

// Valid reports whether the session carries any credential.
func (s Session) Valid() bool { return s.BearerToken != "" || s.Cookie != "" }

// Client queries the backend.
type Client struct {
	cfg  Config
	http HTTPClient
}

// New creates a Client.
func New(cfg Config, http HTTPClient) *Client {
	cfg.setDefaults()
	return &Client{cfg: cfg, http: http}
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Options tunes FetchCatalog.
type Options struct {
	// Categories overrides category discovery.
	Categories []string
	Session    Session
}

// query is a single paginated backend query.
type query struct {
	// source names the query in failure details: a category slug or the
	// search text.
	source   string
	values   url.Values
	category string
}

func categoryQuery(slug string) query {
	return query{
		source:   slug,
		values:   url.Values{"refine_1": {"cgid=" + slug}},
		category: slug,
	}
}

func searchQuery(text string) query {
	return query{
		source:   text,
		values:   url.Values{"q": {text}},
		category: catalog.DefaultCategory,
	}
}

func (c *Client) pageURL(q query, start int) string {
	v := url.Values{}
	for k, vs := range q.values {
		v[k] = vs
	}
	v.Set("start", strconv.Itoa(start))
	v.Set("count", strconv.Itoa(c.cfg.PageSize))

	sep := "?"
	if strings.Contains(c.cfg.SearchURL, "?") {
		sep = "&"
	}
	return c.cfg.SearchURL + sep + v.Encode()
}

func (c *Client) options(p Profile, s Session) []fetch.Option {
	opts := []fetch.Option{
		fetch.WithHeaders(p.Header),
		fetch.WithHeader("x-api-key", c.cfg.APIKey),
		fetch.WithHeader("tenant", c.cfg.Tenant),
		fetch.WithHeader("Cookie", s.Cookie),
	}
	if s.BearerToken != "" {
		opts = append(opts, fetch.WithHeader("Authorization", "Bearer "+s.BearerToken))
	}
	return opts
}

// get runs the profile fold for one URL.
func (c *Client) get(ctx context.Context, u string, s Session) (outcome, []catalog.Attempt, error) {
	return fold(ctx, c.cfg.Profiles, func(ctx context.Context, p Profile) (fetch.JSONResponse, string, bool, error) {
		res, err := c.http.JSON(ctx, u, c.options(p, s)...)
		if err != nil {
			if cerr := fetch.Canceled(ctx); cerr != nil {
				return res, "", false, cerr
			}
			return res, fetch.Code(err), true, nil
		}
		if !res.OK {
			return res, fetch.StatusCode(res.Status), fetch.Retryable(res.Status), nil
		}
		return res, "", false, nil
	})
}

// page is one fetched result page.
type page struct {
	products []catalog.Product
	// hits is the number of raw records, used to detect the last page.
	hits   int
	failed *catalog.FailureDetail
}

func (c *Client) fetchPage(ctx context.Context, q query, start int, s Session) (page, error) {
	out, attempts, err := c.get(ctx, c.pageURL(q, start), s)
	if err != nil {
		return page{}, err
	}
	fail := func(code string) page {
		return page{failed: &catalog.FailureDetail{Source: q.source, Error: code, Attempts: attempts}}
	}
	if !out.ok() {
		return fail(out.code), nil
	}

	if !out.res.Parsed {
		products := normalize.ExtractEmbedded(string(out.res.Raw), c.cfg.BaseURL, "/c/"+q.category)
		if len(products) == 0 {
			return fail(CodeInvalidJSON), nil
		}
		return page{products: products, hits: len(products)}, nil
	}

	records := Hits(out.res.Body)
	products := make([]catalog.Product, 0, len(records))
	for _, raw := range records {
		if p, ok := normalize.BFF(raw, c.cfg.BaseURL, q.category); ok {
			products = append(products, p)
		}
	}
	return page{products: products, hits: len(records)}, nil
}

// Hits locates the product records in a backend response.
func Hits(body jsonvalue.Value) []jsonvalue.Value {
	if body.Kind() == jsonvalue.Array {
		return body.Items()
	}
	for _, path := range [][]string{
		{"products"},
		{"hits"},
		{"results"},
		{"data", "products"},
		{"data", "hits"},
	} {
		if v := body.Path(path...); v.Kind() == jsonvalue.Array {
			return v.Items()
		}
	}
	return nil
}

// crawl pages through q until a short page, a failure or MaxPages.
func (c *Client) crawl(ctx context.Context, q query, s Session, acc *accumulator) error {
	acc.query(q.source)
	for i := 0; i < c.cfg.MaxPages; i++ {
		p, err := c.fetchPage(ctx, q, i*c.cfg.PageSize, s)
		if err != nil {
			return err
		}
		if p.failed != nil {
			acc.fail(ctx, *p.failed)
			return nil
		}
		acc.set.Add(p.products...)
		if p.hits < c.cfg.PageSize {
			return nil
		}
	}
	return nil
}

type accumulator struct {
	set     catalog.Set
	details []catalog.FailureDetail
	queried map[string]struct{}
}

func (a *accumulator) query(source string) {
	if a.queried == nil {
		a.queried = make(map[string]struct{})
	}
	a.queried[source] = struct{}{}
}

func (a *accumulator) fail(ctx context.Context, d catalog.FailureDetail) {
	zctx.From(ctx).Debug("Backend query failed",
		zap.String("source", d.Source),
		zap.String("code", d.Error),
		zap.Int("attempts", len(d.Attempts)),
	)
	a.details = append(a.details, d)
}

func (a *accumulator) result() catalog.UpstreamResult {
	sources := make([]string, 0, len(a.details))
	for _, d := range a.details {
		sources = append(sources, d.Source)
	}
	return catalog.UpstreamResult{
		Products:      a.set.Products(),
		FailedSources: catalog.UniqueStrings(sources),
		FailedDetails: a.details,
		Queried:       len(a.queried),
	}
}

// FetchCategory crawls one category.
func (c *Client) FetchCategory(ctx context.Context, slug string, s Session) (catalog.UpstreamResult, error) {
	var acc accumulator
	if err := c.crawl(ctx, categoryQuery(slug), s, &acc); err != nil {
		return catalog.UpstreamResult{}, err
	}
	return acc.result(), nil
}

// Search crawls the results of a free-text query.
func (c *Client) Search(ctx context.Context, text string, s Session) (catalog.UpstreamResult, error) {
	var acc accumulator
	if err := c.crawl(ctx, searchQuery(text), s, &acc); err != nil {
		return catalog.UpstreamResult{}, err
	}
	return acc.result(), nil
}

// FetchCatalog returns the whole catalog. A root category whose first page
// is large enough is returned as is; otherwise every category is crawled in
// turn.
func (c *Client) FetchCatalog(ctx context.Context, opts Options) (catalog.UpstreamResult, error) {
	var acc accumulator
	for _, slug := range c.cfg.RootSlugs {
		acc.query(slug)
		p, err := c.fetchPage(ctx, categoryQuery(slug), 0, opts.Session)
		if err != nil {
			return catalog.UpstreamResult{}, err
		}
		if p.failed != nil {
			acc.fail(ctx, *p.failed)
			continue
		}
		if len(p.products) >= c.cfg.MinRootProducts {
			// Earlier root slugs still count, along with their failures.
			root := accumulator{details: acc.details, queried: acc.queried}
			root.set.Add(p.products...)
			return root.result(), nil
		}
		acc.set.Add(p.products...)
	}

	categories, err := c.categories(ctx, opts)
	if err != nil {
		return catalog.UpstreamResult{}, err
	}
	for _, slug := range categories {
		if err := c.crawl(ctx, categoryQuery(slug), opts.Session, &acc); err != nil {
			return catalog.UpstreamResult{}, err
		}
	}
	return acc.result(), nil
}

var categoryHref = regexp.MustCompile(`href="/c/([a-z0-9-]+)"`)

// DiscoverCategories lists the category slugs linked from a page, in order
// of first appearance.
func DiscoverCategories(html string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range categoryHref.FindAllStringSubmatch(html, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

func (c *Client) categories(ctx context.Context, opts Options) ([]string, error) {
	if len(opts.Categories) > 0 {
		return opts.Categories, nil
	}
	html, err := c.http.Text(ctx, c.cfg.BaseURL+"/", fetch.WithHeader("Cookie", opts.Session.Cookie))
	if err != nil {
		if cerr := fetch.Canceled(ctx); cerr != nil {
			return nil, cerr
		}
		zctx.From(ctx).Debug("Category discovery failed", zap.Error(err))
		return c.cfg.Categories, nil
	}
	if found := DiscoverCategories(html); len(found) > 0 {
		return found, nil
	}
	return c.cfg.Categories, nil
}

// SearchByCode looks a product up by its catalog code. A hit whose id or
// SKU folds to the same token as code wins; otherwise a hit whose id digits
// contain the code digits is used.
func (c *Client) SearchByCode(ctx context.Context, code string, s Session) (catalog.Product, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return catalog.Product{}, false, nil
	}
	p, err := c.fetchPage(ctx, searchQuery(code), 0, s)
	if err != nil {
		return catalog.Product{}, false, err
	}
	if p.failed != nil {
		return catalog.Product{}, false, nil
	}

	token := brand.Token(code)
	for _, product := range p.products {
		if brand.Token(product.ID) == token || brand.Token(product.SKU) == token {
			return product, true, nil
		}
	}
	digits := onlyDigits(code)
	if digits == "" {
		return catalog.Product{}, false, nil
	}
	for _, product := range p.products {
		if strings.Contains(onlyDigits(product.ID), digits) {
			return product, true, nil
		}
	}
	return catalog.Product{}, false, nil
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
