package normalize

import (
	"strings"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

// EmbeddedPrefix is the product id prefix of records embedded in Natura
// pages.
const EmbeddedPrefix = "NATBRA-"

// BFF maps one hit of the Natura search backend.
func BFF(raw jsonvalue.Value, baseURL, category string) (catalog.Product, bool) {
	id := TextOf(raw.At("productId"), raw.At("id"), raw.At("sku"))
	name := TextOf(raw.At("name"), raw.At("friendlyName"), raw.At("productName"))
	if id == "" || name == "" {
		return catalog.Product{}, false
	}

	ref := raw.At("url").StrOr("")
	if ref == "" {
		ref = raw.At("link").StrOr("")
	}
	image := imageRef(raw.At("images"))
	if image == "" {
		image = imageRef(raw.At("image"))
	}
	label := brandName(raw.At("brand"))
	if label == "" {
		label = brand.Label(brand.Natura)
	}

	price := raw.At("price")
	return catalog.Product{
		ID:      id,
		SKU:     id,
		Barcode: Barcode(raw.At("ean"), raw.At("gtin"), raw.At("barcode")),
		Name:    name,
		Brand:   label,
		Price: FirstPrice(
			price.Path("sales", "value"),
			price.At("value"),
			scalar(price),
			raw.At("salePrice"),
		),
		PurchasePrice: FirstPrice(
			price.Path("consultant", "value"),
			raw.At("consultantPrice"),
		),
		InStock: Stock{
			Flag:         firstNonNull(raw.At("inStock"), raw.At("available"), raw.At("orderable")),
			Quantity:     firstNonNull(raw.At("availableQuantity"), raw.At("stock")),
			Availability: raw.At("availability"),
		}.InStock(),
		URL:            AbsoluteURL(baseURL, ref),
		ImageURL:       AbsoluteURL(baseURL, image),
		SourceCategory: CategorySlug(category),
		SourceBrand:    brand.Natura,
	}, true
}

// EmbeddedProduct maps a product object scanned out of a Natura page. Only
// records with a NATBRA- id and a product link are kept.
func EmbeddedProduct(raw jsonvalue.Value, baseURL, sourcePath string) (catalog.Product, bool) {
	id := Text(raw.At("productId").StrOr(""))
	if !strings.HasPrefix(id, EmbeddedPrefix) || Text(raw.At("url").StrOr("")) == "" {
		return catalog.Product{}, false
	}
	return BFF(raw, baseURL, strings.TrimPrefix(sourcePath, "/c/"))
}

var embeddedEscapes = strings.NewReplacer(
	`\u0026`, "&",
	`\u003c`, "<",
	`\u003e`, ">",
	`\/`, "/",
	`\"`, `"`,
)

// ExtractEmbedded scans page HTML for product objects serialized into
// inline scripts, first occurrence of an id winning.
func ExtractEmbedded(html, baseURL, sourcePath string) []catalog.Product {
	const needle = `"productId":"` + EmbeddedPrefix
	text := embeddedEscapes.Replace(html)

	var set catalog.Set
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], needle)
		if i < 0 {
			break
		}
		at := from + i
		from = at + len(needle)

		start := strings.LastIndexByte(text[:at], '{')
		if start < 0 {
			continue
		}
		obj, ok := balancedObject(text, start)
		if !ok {
			continue
		}
		raw, err := jsonvalue.ParseString(obj)
		if err != nil {
			continue
		}
		if p, ok := EmbeddedProduct(raw, baseURL, sourcePath); ok {
			set.AddNew(p)
		}
	}
	return set.Products()
}

// balancedObject returns the JSON object starting at text[start], honoring
// string literals and escapes.
func balancedObject(text string, start int) (string, bool) {
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func scalar(v jsonvalue.Value) jsonvalue.Value {
	if _, ok := v.Literal(); ok {
		return v
	}
	return jsonvalue.Value{}
}

func firstNonNull(vs ...jsonvalue.Value) jsonvalue.Value {
	for _, v := range vs {
		if !v.IsNull() {
			return v
		}
	}
	return jsonvalue.Value{}
}
