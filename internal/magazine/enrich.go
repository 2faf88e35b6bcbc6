package magazine

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iagopasso/revendis-sub001/internal/bff"
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/normalize"
	"github.com/iagopasso/revendis-sub001/internal/resilience"
)

// EnrichWorkers bounds concurrent catalog lookups.
const EnrichWorkers = 6

// DefaultCategory is used for items the catalog did not resolve.
const DefaultCategory = "magazine"

// Searcher looks products up by catalog code.
type Searcher interface {
	SearchByCode(ctx context.Context, code string, s bff.Session) (catalog.Product, bool, error)
}

var _ Searcher = (*bff.Client)(nil)

// Item is a magazine candidate turned into a catalog product.
type Item struct {
	catalog.Product
	Code string
	// LineBrand is the product line reported by the catalog, if any.
	LineBrand string
	Page      int
	Enriched  bool
}

// BuildOptions tunes Build.
type BuildOptions struct {
	Limit       int
	InStockOnly bool
	// Enrich looks every code up in the storefront catalog.
	Enrich bool
	// SourceURL is used as the product URL for unresolved items.
	SourceURL string
	Session   bff.Session
}

// Built is the outcome of Build.
type Built struct {
	Items         []Item
	EnrichedCount int
	FailedCodes   []string
}

// Build turns candidates into items, enriching them from s when asked.
// Codes the catalog cannot resolve keep the magazine data. Lookups stop once
// limit items are built; FailedCodes lists only codes that were considered.
func Build(ctx context.Context, s Searcher, candidates []Candidate, opts BuildOptions) (Built, error) {
	limit := ClampLimit(opts.Limit)
	enrich := opts.Enrich && s != nil

	var out Built
	for start := 0; start < len(candidates) && len(out.Items) < limit; {
		end := min(len(candidates), start+max(limit-len(out.Items), EnrichWorkers))
		batch := candidates[start:end]
		start = end

		found := make([]catalog.Product, len(batch))
		ok := make([]bool, len(batch))
		if enrich {
			if err := lookup(ctx, s, batch, opts.Session, found, ok); err != nil {
				return Built{}, err
			}
		}

		for i, c := range batch {
			if len(out.Items) == limit {
				break
			}
			if opts.Enrich && !ok[i] {
				out.FailedCodes = append(out.FailedCodes, c.Code)
			}
			item := toItem(c, found[i], ok[i], opts.SourceURL)
			if opts.InStockOnly && !item.InStock {
				continue
			}
			if item.Enriched {
				out.EnrichedCount++
			}
			out.Items = append(out.Items, item)
		}
	}

	zctx.From(ctx).Debug("Magazine items built",
		zap.Int("items", len(out.Items)),
		zap.Int("enriched", out.EnrichedCount),
		zap.Int("failed", len(out.FailedCodes)),
	)
	return out, nil
}

// lookup searches every code in batch concurrently, filling found and ok.
func lookup(ctx context.Context, s Searcher, batch []Candidate, session bff.Session, found []catalog.Product, ok []bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(EnrichWorkers)
	for i, c := range batch {
		g.Go(func() error {
			p, hit, err := s.SearchByCode(gctx, c.Code, session)
			if err != nil {
				return errors.Wrapf(err, "search %s", c.Code)
			}
			found[i], ok[i] = p, hit
			return nil
		})
	}
	return g.Wait()
}

func toItem(c Candidate, p catalog.Product, enriched bool, sourceURL string) Item {
	item := Item{
		Code:     c.Code,
		Page:     c.Page,
		Enriched: enriched,
	}
	item.Brand = brand.Label(brand.Natura)
	item.SourceBrand = brand.Natura
	item.InStock = true
	item.SourceCategory = DefaultCategory
	item.URL = sourceURL
	item.Price = c.Price
	item.PurchasePrice = c.Price

	if enriched {
		item.InStock = p.InStock
		item.LineBrand = strings.TrimSpace(p.Brand)
		item.ImageURL = p.ImageURL
		if p.SourceCategory != "" {
			item.SourceCategory = p.SourceCategory
		}
		if p.URL != "" {
			item.URL = p.URL
		}
		if p.Price.Valid {
			item.Price = p.Price
		}
		switch {
		case p.PurchasePrice.Valid:
			item.PurchasePrice = p.PurchasePrice
		case !item.PurchasePrice.Valid:
			item.PurchasePrice = item.Price
		}
	}

	item.Name = firstNonEmpty(p.Name, c.Name, "Produto Natura "+c.Code)
	item.SKU = firstNonEmpty(p.SKU, c.Code)
	item.Barcode = normalize.BarcodeText(firstNonEmpty(p.Barcode, item.SKU, c.Code))
	item.ID = firstNonEmpty(p.ID, item.SKU)
	item.ImageURL = resilience.ImageURL(brand.Natura, item.ImageURL)
	return item
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
