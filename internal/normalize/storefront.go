package normalize

import (
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

// VTEX maps one record of the VTEX catalog search API. Records without a
// name or product link are skipped.
func VTEX(raw jsonvalue.Value, b brand.Slug, baseURL, category string) (catalog.Product, bool) {
	name := TextOf(raw.At("productName"), raw.At("productTitle"))
	link := AbsoluteURL(baseURL, raw.At("link").StrOr(""))
	if name == "" || link == "" {
		return catalog.Product{}, false
	}

	item := raw.At("items").First()
	offer := item.At("sellers").First().At("commertialOffer")

	productID := TextOf(raw.At("productId"), raw.At("productReference"))
	itemID := TextOf(item.At("itemId"))

	id := productID
	if id == "" {
		id = itemID
	}
	if id == "" {
		id = "VTEX-" + upperSlug(b) + "-" + HashID(link)
	}

	label := Text(raw.At("brand").StrOr(""))
	if label == "" {
		label = brand.Label(b)
	}

	return catalog.Product{
		ID:      id,
		SKU:     id,
		Barcode: Barcode(item.At("ean"), item.At("ean13"), item.At("referenceId"), item.At("itemId")),
		Name:    name,
		Brand:   label,
		Price:   FirstPrice(offer.At("Price"), offer.At("PriceWithoutDiscount")),
		InStock: Stock{
			Flag:     offer.At("IsAvailable"),
			Quantity: offer.At("AvailableQuantity"),
		}.InStock(),
		URL:            link,
		ImageURL:       AbsoluteURL(baseURL, item.At("images").First().At("imageUrl").StrOr("")),
		SourceCategory: CategorySlug(category),
		SourceBrand:    b,
	}, true
}

// shopifyPrefixes holds the id prefix used when a Shopify product has no SKU.
var shopifyPrefixes = map[brand.Slug]string{
	brand.Tupperware: "TW",
}

// Shopify maps one entry of a Shopify /products.json listing using its first
// variant and first image.
func Shopify(raw jsonvalue.Value, b brand.Slug, baseURL string) (catalog.Product, bool) {
	name := Text(raw.At("title").StrOr(""))
	handle := Text(raw.At("handle").StrOr(""))
	if name == "" || handle == "" {
		return catalog.Product{}, false
	}

	variant := raw.At("variants").First()
	id := Text(variant.At("sku").StrOr(""))
	if id == "" {
		rawID := TextOf(raw.At("id"))
		if rawID == "" {
			return catalog.Product{}, false
		}
		prefix, ok := shopifyPrefixes[b]
		if !ok {
			prefix = upperSlug(b)
		}
		id = prefix + "-" + rawID
	}

	category := "casa"
	if s, ok := raw.At("product_type").Str(); ok {
		category = s
	}

	return catalog.Product{
		ID:             id,
		SKU:            id,
		Barcode:        Barcode(variant.At("barcode")),
		Name:           name,
		Brand:          brand.Label(b),
		Price:          Price(variant.At("price")),
		InStock:        Stock{Flag: variant.At("available")}.InStock(),
		URL:            AbsoluteURL(baseURL, "/products/"+handle),
		ImageURL:       AbsoluteURL(baseURL, raw.At("images").First().At("src").StrOr("")),
		SourceCategory: CategorySlug(category),
		SourceBrand:    b,
	}, true
}
