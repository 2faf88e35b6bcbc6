// Package normalize turns upstream product representations into
// catalog.Product values.
//
// Every normalizer is pure and total: malformed input degrades to "skip this
// record" (a false second return value), never to an error or a panic.
package normalize

import (
	"crypto/sha1" //nolint:gosec // used for stable identifiers, not security
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&", "&AMP;", "&",
	"&quot;", `"`, "&QUOT;", `"`,
	"&#39;", "'",
	"&lt;", "<", "&LT;", "<",
	"&gt;", ">", "&GT;", ">",
	`\n`, " ",
)

// Text decodes the handful of HTML entities upstream pages leave in product
// text, turns literal "\n" sequences into spaces and collapses whitespace.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.FieldsFunc(entityReplacer.Replace(s), unicode.IsSpace), " ")
}

// TextOf normalizes the first string-or-number value among vs.
func TextOf(vs ...jsonvalue.Value) string {
	for _, v := range vs {
		if s, ok := v.Literal(); ok {
			if t := Text(s); t != "" {
				return t
			}
		}
	}
	return ""
}

// AbsoluteURL resolves ref against base. Empty input yields "".
func AbsoluteURL(base, ref string) string {
	ref = Text(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	}
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(ref, "/") {
		return base + ref
	}
	return base + "/" + ref
}

// PriceText coerces a price string. Both "12.34" and locale strings such as
// "R$ 1.234,56" are accepted: when a comma is present, dots are thousand
// separators and the comma is the decimal mark. Unparseable or non-positive
// input yields an invalid NullDecimal.
func PriceText(s string) decimal.NullDecimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	if strings.Contains(cleaned, ",") {
		cleaned = strings.Replace(strings.ReplaceAll(cleaned, ".", ""), ",", ".", 1)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return positive(d)
}

// Price coerces a JSON number or string into a price.
func Price(v jsonvalue.Value) decimal.NullDecimal {
	switch v.Kind() {
	case jsonvalue.Number:
		lit, _ := v.Literal()
		d, err := decimal.NewFromString(lit)
		if err != nil {
			return decimal.NullDecimal{}
		}
		return positive(d)
	case jsonvalue.String:
		s, _ := v.Str()
		return PriceText(s)
	default:
		return decimal.NullDecimal{}
	}
}

// FirstPrice parses the first non-null value among vs.
func FirstPrice(vs ...jsonvalue.Value) decimal.NullDecimal {
	for _, v := range vs {
		if !v.IsNull() {
			return Price(v)
		}
	}
	return decimal.NullDecimal{}
}

func positive(d decimal.Decimal) decimal.NullDecimal {
	if !d.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// BarcodeText keeps the digits of s when there are 8 to 18 of them.
func BarcodeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if n := b.Len(); n >= 8 && n <= 18 {
		return b.String()
	}
	return ""
}

// Barcode returns the first valid barcode among vs.
func Barcode(vs ...jsonvalue.Value) string {
	for _, v := range vs {
		if s, ok := v.Literal(); ok {
			if code := BarcodeText(s); code != "" {
				return code
			}
		}
	}
	return ""
}

// HashID returns a stable 16 character identifier derived from s.
func HashID(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // identifier, not security
	return strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

// CategorySlug folds s into a category slug, falling back to
// catalog.DefaultCategory.
func CategorySlug(s string) string {
	if token := brand.Token(s); token != "" {
		return token
	}
	return catalog.DefaultCategory
}

// Availability interprets a schema.org availability string. known is false
// when s is empty.
func Availability(s string) (inStock, known bool) {
	s = strings.ToLower(Text(s))
	if s == "" {
		return false, false
	}
	return strings.Contains(s, "instock") && !strings.Contains(s, "outofstock"), true
}

// Stock signals, from most to least authoritative.
type Stock struct {
	Flag         jsonvalue.Value
	Quantity     jsonvalue.Value
	Availability jsonvalue.Value
}

// InStock resolves the stock signals: explicit boolean flag, then available
// quantity, then availability string, defaulting to true.
func (s Stock) InStock() bool {
	if b, ok := s.Flag.Bool(); ok {
		return b
	}
	if q, ok := s.Quantity.Float(); ok {
		return q > 0
	}
	if a, ok := s.Availability.Str(); ok {
		if in, known := Availability(a); known {
			return in
		}
	}
	return true
}

// brandName reads a brand given either as a string or as {"name": ...}.
func brandName(v jsonvalue.Value) string {
	if s, ok := v.Str(); ok {
		return Text(s)
	}
	return Text(v.At("name").StrOr(""))
}

// imageRef reads an image given as a string, a list, or an object carrying
// the URL under one of the usual keys.
func imageRef(v jsonvalue.Value) string {
	v = v.First()
	if s, ok := v.Str(); ok {
		return s
	}
	for _, k := range []string{"url", "contentUrl", "absURL", "absUrl", "src", "imageUrl"} {
		if s, ok := v.At(k).Str(); ok && s != "" {
			return s
		}
	}
	return ""
}

func upperSlug(b brand.Slug) string {
	return strings.ToUpper(string(b))
}
