package resilience

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

var placeholderTokens = []string{
	"placeholder", "noimage", "noimg", "semimagem", "notavailable",
	"imageindisponivel", "defaultimage", "missingimage", "productdefault",
	"imagemindisponivel",
}

// LooksLikePlaceholder reports whether an image URL points at a stock
// "no image" picture.
func LooksLikePlaceholder(imageURL string) bool {
	token := brand.Token(imageURL)
	if token == "" {
		return true
	}
	for _, p := range placeholderTokens {
		if strings.Contains(token, p) {
			return true
		}
	}
	return false
}

var svgEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// PlaceholderImage returns an SVG data URL showing the brand initials and
// label.
func PlaceholderImage(b brand.Slug) string {
	label := brand.Label(b)
	token := strings.ToUpper(brand.Token(label))
	initials := token[:min(2, len(token))]
	if initials == "" {
		initials = "PD"
	}
	upper := []rune(strings.ToUpper(label))
	name := string(upper[:min(20, len(upper))])

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 320 320">`+
		`<defs><linearGradient id="g" x1="0%%" y1="0%%" x2="100%%" y2="100%%">`+
		`<stop offset="0%%" stop-color="#efe4ff"/><stop offset="100%%" stop-color="#d5c4ff"/></linearGradient></defs>`+
		`<rect width="320" height="320" fill="url(#g)"/>`+
		`<circle cx="160" cy="120" r="54" fill="#ffffff" fill-opacity="0.92"/>`+
		`<text x="160" y="134" text-anchor="middle" font-family="Arial, sans-serif" font-size="40" font-weight="700" fill="#5f3fa2">%s</text>`+
		`<text x="160" y="238" text-anchor="middle" font-family="Arial, sans-serif" font-size="26" font-weight="600" fill="#5f3fa2">%s</text>`+
		`</svg>`,
		svgEscaper.Replace(initials), svgEscaper.Replace(name))
	return "data:image/svg+xml;charset=UTF-8," + url.PathEscape(svg)
}

var placeholders = func() map[brand.Slug]string {
	m := make(map[brand.Slug]string)
	for _, b := range brand.All() {
		m[b] = PlaceholderImage(b)
	}
	return m
}()

// ImageURL returns imageURL when it is usable, else the brand placeholder.
func ImageURL(b brand.Slug, imageURL string) string {
	s := strings.TrimSpace(imageURL)
	usable := strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:image/") ||
		strings.HasPrefix(s, "/")
	if usable && !LooksLikePlaceholder(s) {
		return s
	}
	if p, ok := placeholders[b]; ok {
		return p
	}
	return PlaceholderImage(b)
}

// WithImages returns a copy of products with every image resolved through
// ImageURL.
func WithImages(products []catalog.Product) []catalog.Product {
	out := make([]catalog.Product, len(products))
	for i, p := range products {
		p.ImageURL = ImageURL(p.SourceBrand, p.ImageURL)
		out[i] = p
	}
	return out
}
