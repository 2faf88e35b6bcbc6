package resilience

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

// samples.json maps a brand slug to records of
// {sku, name, category, price, inStock?, imageUrl?}.
//
//go:embed samples.json
var samplesJSON []byte

var loadSamples = sync.OnceValues(func() (map[brand.Slug][]catalog.Product, error) {
	root, err := jsonvalue.Parse(samplesJSON)
	if err != nil {
		return nil, errors.Wrap(err, "parse samples")
	}

	out := make(map[brand.Slug][]catalog.Product, root.Len())
	for _, f := range root.Fields() {
		b := brand.Slug(f.Key)
		if !brand.Valid(b) {
			return nil, errors.Wrapf(brand.ErrUnknown, "samples for %q", b)
		}
		base := brand.BaseURL(b)
		products := make([]catalog.Product, 0, f.Value.Len())
		for _, it := range f.Value.Items() {
			sku := it.At("sku").StrOr("")
			lit, _ := it.At("price").Literal()
			price, err := decimal.NewFromString(lit)
			if err != nil {
				return nil, errors.Wrapf(err, "sample %s price", sku)
			}
			inStock, ok := it.At("inStock").Bool()
			if !ok {
				inStock = true
			}
			products = append(products, catalog.Product{
				ID:             strings.ToUpper(string(b)) + "-" + sku,
				SKU:            sku,
				Name:           it.At("name").StrOr(""),
				Brand:          brand.Label(b),
				Price:          decimal.NewNullDecimal(price),
				InStock:        inStock,
				URL:            base + "/produto/" + sku,
				ImageURL:       it.At("imageUrl").StrOr(""),
				SourceCategory: it.At("category").StrOr(""),
				SourceBrand:    b,
			})
		}
		out[b] = products
	}
	return out, nil
})

// Samples returns a fresh copy of the static sample catalog of b, with
// placeholder images applied.
func Samples(b brand.Slug) []catalog.Product {
	all, err := loadSamples()
	if err != nil {
		// The dataset is embedded; a parse failure is a build defect.
		panic(err)
	}
	return WithImages(all[b])
}
