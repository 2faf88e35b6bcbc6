package normalize

import (
	"regexp"
	"strings"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

var (
	avonSKU   = regexp.MustCompile(`(?i)^id="(AVNBRA-[A-Z0-9]+)`)
	avonHref  = regexp.MustCompile(`(?i)href="([^"]*/p/[^"]*/(AVNBRA-[A-Z0-9]+)[^"]*)"`)
	avonName  = regexp.MustCompile(`(?i)<h4[^>]*>([^<]+)</h4>`)
	avonBrand = regexp.MustCompile(`(?i)aria-label="Marca ([^"]+)"`)
	avonPrice = regexp.MustCompile(`(?i)id="product-price-por">([^<]+)<`)
	avonImage = regexp.MustCompile(`(?i)src="([^"]*AVNBRA-[^"]+)"`)
)

func submatch(re *regexp.Regexp, s string, i int) string {
	m := re.FindStringSubmatch(s)
	if len(m) <= i {
		return ""
	}
	return m[i]
}

// AvonWindow maps an HTML window starting at a product tile marker.
// Windows missing a SKU, name or product link are skipped.
func AvonWindow(window, sourcePath, baseURL string) (catalog.Product, bool) {
	sku := submatch(avonSKU, window, 1)
	if sku == "" {
		sku = submatch(avonHref, window, 2)
	}
	sku = Text(sku)
	name := Text(submatch(avonName, window, 1))
	href := AbsoluteURL(baseURL, submatch(avonHref, window, 1))
	if sku == "" || name == "" || href == "" {
		return catalog.Product{}, false
	}

	label := Text(submatch(avonBrand, window, 1))
	if label == "" {
		label = brand.Label(brand.Avon)
	}

	return catalog.Product{
		ID:             sku,
		SKU:            sku,
		Name:           name,
		Brand:          label,
		Price:          PriceText(submatch(avonPrice, window, 1)),
		InStock:        !strings.Contains(strings.ToLower(window), "esgotado"),
		URL:            href,
		ImageURL:       AbsoluteURL(baseURL, submatch(avonImage, window, 1)),
		SourceCategory: CategorySlug(sourcePath),
		SourceBrand:    brand.Avon,
	}, true
}
