package strategy

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iagopasso/revendis-sub001/internal/normalize"
)

// Sitemap crawl defaults.
const (
	SitemapMaxFiles = 25
	SitemapMaxURLs  = 220
	SitemapWorkers  = 6
)

// Sitemap bounds the sitemap stage of a crawl.
type Sitemap struct {
	Disabled bool
	MaxFiles int
	MaxURLs  int
	Workers  int
}

func (s Sitemap) limits() (files, urls, workers int) {
	files, urls, workers = s.MaxFiles, s.MaxURLs, s.Workers
	if files <= 0 {
		files = SitemapMaxFiles
	}
	if urls <= 0 {
		urls = SitemapMaxURLs
	}
	if workers <= 0 {
		workers = SitemapWorkers
	}
	return files, urls, workers
}

var locTag = regexp.MustCompile(`(?i)<loc>\s*([^<]+?)\s*</loc>`)

// Locs returns the <loc> entries of a sitemap document.
func Locs(xml string) []string {
	var out []string
	for _, m := range locTag.FindAllStringSubmatch(xml, -1) {
		if loc := normalize.Text(m[1]); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// IsSitemap reports whether body looks like a sitemap or sitemap index.
func IsSitemap(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<urlset") || strings.Contains(lower, "<sitemapindex")
}

// LikelyCatalogPage filters sitemap entries that cannot be product or
// listing pages: the site root, XML and image files, feeds, taxonomies,
// blogs and institutional pages.
func LikelyCatalogPage(rawURL string) bool {
	p := strings.ToLower(pathOf(rawURL))
	if p == "/" {
		return false
	}
	for _, suffix := range []string{".xml", ".jpg", ".jpeg", ".png"} {
		if strings.HasSuffix(p, suffix) {
			return false
		}
	}
	for _, part := range []string{"/wp-json/", "/tag/", "/categoria/", "/category/", "/blog/", "/institucional/", "/contato"} {
		if strings.Contains(p, part) {
			return false
		}
	}
	return true
}

// discover walks /sitemap.xml and /sitemap_index.xml breadth-first,
// following index files, and returns candidate page URLs.
func (s Sitemap) discover(ctx context.Context, client Client, baseURL string, r *results) ([]string, error) {
	maxFiles, maxURLs, _ := s.limits()
	base := strings.TrimRight(baseURL, "/")

	queue := []string{base + "/sitemap.xml", base + "/sitemap_index.xml"}
	visited := make(map[string]struct{})
	seen := make(map[string]struct{})
	var urls []string

	for len(queue) > 0 && len(visited) < maxFiles && len(urls) < maxURLs {
		current := queue[0]
		queue = queue[1:]
		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}

		xml, err := client.Text(ctx, current)
		if err != nil {
			if err := r.failErr(ctx, current, err); err != nil {
				return nil, err
			}
			continue
		}
		if !IsSitemap(xml) {
			continue
		}

		locs := Locs(xml)
		if strings.Contains(strings.ToLower(xml), "<sitemapindex") {
			for _, loc := range locs {
				loc = normalize.AbsoluteURL(base, loc)
				if _, ok := visited[loc]; !ok && len(queue) < 2*maxFiles {
					queue = append(queue, loc)
				}
			}
			continue
		}
		for _, loc := range locs {
			loc = normalize.AbsoluteURL(base, loc)
			if len(urls) >= maxURLs {
				break
			}
			if _, ok := seen[loc]; ok || !LikelyCatalogPage(loc) {
				continue
			}
			seen[loc] = struct{}{}
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// crawl runs visit over urls with a bounded worker pool. Only cancellation
// errors are expected from visit.
func (s Sitemap) crawl(ctx context.Context, urls []string, visit func(context.Context, string) error) error {
	if len(urls) == 0 {
		return nil
	}
	_, _, workers := s.limits()

	var g errgroup.Group
	g.SetLimit(workers)
	for _, u := range urls {
		g.Go(func() error {
			return visit(ctx, u)
		})
	}
	return g.Wait()
}
