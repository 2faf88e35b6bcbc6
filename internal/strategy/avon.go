package strategy

import (
	"context"
	"strings"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/normalize"
)

// AvonPaths are the listing pages scraped for Avon.
var AvonPaths = []string{"/", "/c/perfumaria", "/c/maquiagem", "/c/corpo-e-banho"}

const (
	avonNeedle = `id="AVNBRA-`
	avonWindow = 8500
)

// ScanAvon extracts product tiles from an Avon listing page. Each tile is
// read from a fixed-size window starting at its id attribute.
func ScanAvon(html, sourcePath, baseURL string) []catalog.Product {
	var set catalog.Set
	for from := 0; from < len(html); {
		i := strings.Index(html[from:], avonNeedle)
		if i < 0 {
			break
		}
		start := from + i
		end := min(start+avonWindow, len(html))
		if p, ok := normalize.AvonWindow(html[start:end], sourcePath, baseURL); ok {
			set.AddNew(p)
		}
		from = start + len(avonNeedle)
	}
	return set.Products()
}

// Avon scrapes the Avon storefront. Pages without recognizable tiles are
// read through their JSON-LD markup instead.
type Avon struct {
	Client  Client
	BaseURL string
	Paths   []string
}

// Fetch visits every path; failed pages are recorded and skipped.
func (s Avon) Fetch(ctx context.Context) (catalog.UpstreamResult, error) {
	paths := s.Paths
	if len(paths) == 0 {
		paths = AvonPaths
	}

	r := &results{}
	for _, path := range paths {
		u := Joined(s.BaseURL, path)
		html, err := s.Client.Text(ctx, u)
		if err != nil {
			if err := r.failErr(ctx, u, err); err != nil {
				return catalog.UpstreamResult{}, err
			}
			continue
		}
		products := ScanAvon(html, path, s.BaseURL)
		if len(products) == 0 {
			products = normalize.ExtractJSONLD(html, normalize.Page{
				Brand:   brand.Avon,
				BaseURL: s.BaseURL,
				Path:    path,
			})
		}
		r.add(products...)
	}
	return r.result(), nil
}
