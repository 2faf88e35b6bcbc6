package normalize

import (
	"regexp"
	"strings"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

// Page identifies where a scraped product came from.
type Page struct {
	Brand   brand.Slug
	Label   string
	BaseURL string
	Path    string
}

func (p Page) label() string {
	if p.Label != "" {
		return p.Label
	}
	return brand.Label(p.Brand)
}

var gtinKeys = []string{"gtin13", "gtin14", "gtin12", "gtin8", "gtin", "barcode", "ean", "upc"}

// JSONLD maps a schema.org Product node. Nodes of any other type are
// skipped.
func JSONLD(node jsonvalue.Value, page Page) (catalog.Product, bool) {
	if node.Kind() != jsonvalue.Object {
		return catalog.Product{}, false
	}
	typ, _ := node.At("@type").First().Str()
	if !strings.Contains(strings.ToLower(typ), "product") {
		return catalog.Product{}, false
	}

	name := Text(node.At("name").StrOr(""))
	if name == "" {
		name = Text(node.At("title").StrOr(""))
	}
	if name == "" {
		return catalog.Product{}, false
	}

	sku := TextOf(node.At("sku"), node.At("productID"), node.At("mpn"))
	ref := node.At("url").StrOr("")
	if ref == "" {
		ref = node.At("@id").StrOr("")
	}
	link := AbsoluteURL(page.BaseURL, ref)

	offer := node.At("offers").First()
	if offer.Kind() != jsonvalue.Object {
		offer = jsonvalue.Value{}
	}

	barcodes := make([]jsonvalue.Value, 0, 2*len(gtinKeys))
	for _, k := range gtinKeys {
		barcodes = append(barcodes, node.At(k))
	}
	for _, k := range gtinKeys {
		barcodes = append(barcodes, offer.At(k))
	}

	id := sku
	if id == "" {
		seed := link
		if seed == "" {
			seed = page.Path
		}
		id = "AUTO-" + upperSlug(page.Brand) + "-" + HashID(name+"|"+seed)
	}

	label := brandName(node.At("brand"))
	if label == "" {
		label = page.label()
	}

	return catalog.Product{
		ID:             id,
		SKU:            id,
		Barcode:        Barcode(barcodes...),
		Name:           name,
		Brand:          label,
		Price:          FirstPrice(offer.At("price"), offer.At("lowPrice"), offer.At("highPrice"), node.At("price")),
		InStock:        Stock{Availability: offer.At("availability")}.InStock(),
		URL:            link,
		ImageURL:       AbsoluteURL(page.BaseURL, imageRef(node.At("image"))),
		SourceCategory: CategorySlug(page.Path),
		SourceBrand:    page.Brand,
	}, true
}

var ldScript = regexp.MustCompile(`(?is)<script[^>]*type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

// ExtractJSONLD returns every Product found in the ld+json blocks of html,
// first occurrence of an id winning. Malformed blocks are skipped.
func ExtractJSONLD(html string, page Page) []catalog.Product {
	var set catalog.Set
	for _, m := range ldScript.FindAllStringSubmatch(html, -1) {
		payload := strings.TrimSpace(m[1])
		if payload == "" {
			continue
		}
		root, err := jsonvalue.ParseString(payload)
		if err != nil {
			continue
		}
		jsonvalue.Walk(root, func(obj jsonvalue.Value) bool {
			if p, ok := JSONLD(obj, page); ok {
				set.AddNew(p)
			}
			return true
		})
	}
	return set.Products()
}
