package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

func mustParse(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.ParseString(s)
	require.NoError(t, err)
	return v
}

func TestPriceText(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"R$ 1.234,56", "1234.56"},
		{"12.34", "12.34"},
		{"R$ 89,90", "89.9"},
		{"49", "49"},
	} {
		got := PriceText(tt.in)
		require.True(t, got.Valid, tt.in)
		assert.Equal(t, tt.want, got.Decimal.String(), tt.in)
	}
	for _, in := range []string{"abc", "", "0", "-5", "0,00", "1,2,3"} {
		assert.False(t, PriceText(in).Valid, in)
	}
}

func TestPrice(t *testing.T) {
	v := mustParse(t, `{"n":19.9,"s":"19,90","z":0,"b":true}`)
	assert.Equal(t, "19.9", Price(v.At("n")).Decimal.String())
	assert.Equal(t, "19.9", Price(v.At("s")).Decimal.String())
	assert.False(t, Price(v.At("z")).Valid)
	assert.False(t, Price(v.At("b")).Valid)
	assert.False(t, Price(v.At("missing")).Valid)

	// The first present value wins even when it does not parse.
	assert.False(t, FirstPrice(v.At("b"), v.At("n")).Valid)
	assert.True(t, FirstPrice(v.At("missing"), v.At("n")).Valid)
}

func TestBarcode(t *testing.T) {
	assert.Equal(t, "7891234567890", BarcodeText("789-1234-567890"))
	assert.Empty(t, BarcodeText("1234567"))
	assert.Empty(t, BarcodeText("1234567890123456789"))
	assert.Equal(t, "12345678", BarcodeText("12345678"))

	v := mustParse(t, `{"short":"12","num":7891234567890}`)
	assert.Equal(t, "7891234567890", Barcode(v.At("short"), v.At("num")))
	assert.Empty(t, Barcode(v.At("short")))
}

func TestHashID(t *testing.T) {
	a := HashID("Batom|https://x/p/1")
	assert.Len(t, a, 16)
	assert.Equal(t, a, HashID("Batom|https://x/p/1"))
	assert.NotEqual(t, a, HashID("Batom|https://x/p/2"))
	assert.Regexp(t, `^[0-9A-F]{16}$`, a)
}

func TestText(t *testing.T) {
	assert.Equal(t, `Creme "Ekos" & Cia`, Text("  Creme &quot;Ekos&quot;\\n &amp;   Cia "))
	assert.Equal(t, "", Text("   "))
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://shop.example.com/"
	assert.Equal(t, "https://shop.example.com/p/1", AbsoluteURL(base, "/p/1"))
	assert.Equal(t, "https://shop.example.com/p/1", AbsoluteURL(base, "p/1"))
	assert.Equal(t, "https://cdn.example.com/a.png", AbsoluteURL(base, "//cdn.example.com/a.png"))
	assert.Equal(t, "http://other/x", AbsoluteURL(base, "http://other/x"))
	assert.Empty(t, AbsoluteURL(base, ""))
}

func TestCategorySlug(t *testing.T) {
	assert.Equal(t, "cperfumaria", CategorySlug("/c/perfumaria"))
	assert.Equal(t, "corpoebanho", CategorySlug("Corpo e Banho"))
	assert.Equal(t, "catalogo", CategorySlug("/"))
}

func TestStock(t *testing.T) {
	v := mustParse(t, `{"t":true,"f":false,"q0":0,"q3":3,"in":"https://schema.org/InStock","out":"OutOfStock"}`)
	assert.False(t, Stock{Flag: v.At("f"), Quantity: v.At("q3")}.InStock())
	assert.False(t, Stock{Quantity: v.At("q0"), Availability: v.At("in")}.InStock())
	assert.True(t, Stock{Quantity: v.At("q3")}.InStock())
	assert.True(t, Stock{Availability: v.At("in")}.InStock())
	assert.False(t, Stock{Availability: v.At("out")}.InStock())
	assert.True(t, Stock{}.InStock())
}

func TestVTEX(t *testing.T) {
	raw := mustParse(t, `{
		"productId": "123",
		"productName": "Batom Matte",
		"brand": "Mary Kay",
		"link": "/batom-matte/p",
		"items": [{
			"itemId": "9",
			"ean": "7890000000001",
			"images": [{"imageUrl": "https://img/1.jpg"}],
			"sellers": [{"commertialOffer": {"Price": 39.9, "AvailableQuantity": 0}}]
		}]
	}`)
	p, ok := VTEX(raw, brand.MaryKay, "https://www.marykay.com.br", "catalogo")
	require.True(t, ok)
	assert.Equal(t, "123", p.ID)
	assert.Equal(t, "7890000000001", p.Barcode)
	assert.Equal(t, "https://www.marykay.com.br/batom-matte/p", p.URL)
	assert.Equal(t, "39.9", p.Price.Decimal.String())
	assert.False(t, p.InStock)
	assert.Equal(t, brand.MaryKay, p.SourceBrand)

	_, ok = VTEX(mustParse(t, `{"productId":"1","link":"/x"}`), brand.MaryKay, "https://x", "")
	assert.False(t, ok, "missing name")

	noID := mustParse(t, `{"productName":"Sem Id","link":"/sem-id/p"}`)
	a, ok := VTEX(noID, brand.MaryKay, "https://x", "")
	require.True(t, ok)
	b, _ := VTEX(noID, brand.MaryKay, "https://x", "")
	assert.Equal(t, a.ID, b.ID)
	assert.Regexp(t, `^VTEX-MARY-KAY-[0-9A-F]{16}$`, a.ID)
	assert.True(t, a.InStock)
	assert.Equal(t, "Mary Kay", a.Brand)
}

func TestShopify(t *testing.T) {
	raw := mustParse(t, `{
		"id": 555,
		"title": "Pote Eco",
		"handle": "pote-eco",
		"product_type": "Cozinha",
		"variants": [{"sku": "", "price": "59.90", "available": false}],
		"images": [{"src": "//cdn.shopify.com/p.jpg"}]
	}`)
	p, ok := Shopify(raw, brand.Tupperware, "https://www.tupperware.com.br")
	require.True(t, ok)
	assert.Equal(t, "TW-555", p.ID)
	assert.Equal(t, "https://www.tupperware.com.br/products/pote-eco", p.URL)
	assert.Equal(t, "https://cdn.shopify.com/p.jpg", p.ImageURL)
	assert.Equal(t, "59.9", p.Price.Decimal.String())
	assert.False(t, p.InStock)
	assert.Equal(t, "cozinha", p.SourceCategory)

	_, ok = Shopify(mustParse(t, `{"title":"X","handle":"x"}`), brand.Tupperware, "https://t")
	assert.False(t, ok, "no sku and no id")
}

func TestJSONLD(t *testing.T) {
	page := Page{Brand: brand.Jequiti, BaseURL: "https://www.jequiti.com.br", Path: "/perfumes"}

	node := mustParse(t, `{
		"@type": ["Product"],
		"name": "Colônia &amp; Cia",
		"image": [{"url": "/img/a.png"}],
		"brand": {"name": "Jequiti"},
		"gtin13": "7891234567890",
		"offers": [{"price": "79,90", "availability": "https://schema.org/OutOfStock"}]
	}`)
	p, ok := JSONLD(node, page)
	require.True(t, ok)
	assert.Equal(t, "Colônia & Cia", p.Name)
	assert.Regexp(t, `^AUTO-JEQUITI-[0-9A-F]{16}$`, p.ID)
	assert.Equal(t, p.ID, p.SKU)
	assert.Equal(t, "https://www.jequiti.com.br/img/a.png", p.ImageURL)
	assert.Equal(t, "79.9", p.Price.Decimal.String())
	assert.False(t, p.InStock)
	assert.Equal(t, "perfumes", p.SourceCategory)
	assert.Equal(t, "7891234567890", p.Barcode)

	_, ok = JSONLD(mustParse(t, `{"@type":"Organization","name":"X"}`), page)
	assert.False(t, ok)
	_, ok = JSONLD(mustParse(t, `{"@type":"Product"}`), page)
	assert.False(t, ok, "missing name")
}

func TestExtractJSONLD(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@graph":[
	{"@type":"Product","sku":"A1","name":"Alpha","offers":{"price":10}},
	{"@type":"Product","sku":"A1","name":"Alpha dup"}
]}</script>
<script type='application/ld+json'>{not json</script>
<SCRIPT TYPE="application/ld+json">[{"@type":"Product","sku":"B2","name":"Beta","isRelatedTo":{"@type":"Product","sku":"C3","name":"Gamma"}}]</SCRIPT>
</head></html>`

	got := ExtractJSONLD(html, Page{Brand: brand.Hinode, BaseURL: "https://h"})
	require.Len(t, got, 3)
	assert.Equal(t, "Alpha", got[0].Name)
	assert.Equal(t, "B2", got[1].ID)
	assert.Equal(t, "C3", got[2].ID)
	assert.Equal(t, "Hinode", got[0].Brand)
}

func TestAvonWindow(t *testing.T) {
	window := `id="AVNBRA-123AB" class="tile"><a href="/p/perfume-x/AVNBRA-123AB?x=1">` +
		`<img src="https://cdn/AVNBRA-123AB.jpg"><h4 class="n">Perfume X</h4>` +
		`<span aria-label="Marca Avon Care"></span><span id="product-price-por">R$ 49,90</span>`

	p, ok := AvonWindow(window, "/c/perfumaria", "https://www.avon.com.br")
	require.True(t, ok)
	assert.Equal(t, "AVNBRA-123AB", p.ID)
	assert.Equal(t, "Perfume X", p.Name)
	assert.Equal(t, "Avon Care", p.Brand)
	assert.Equal(t, "https://www.avon.com.br/p/perfume-x/AVNBRA-123AB?x=1", p.URL)
	assert.Equal(t, "49.9", p.Price.Decimal.String())
	assert.True(t, p.InStock)

	p, ok = AvonWindow(window+`<b>Esgotado</b>`, "/", "https://www.avon.com.br")
	require.True(t, ok)
	assert.False(t, p.InStock)

	_, ok = AvonWindow(`id="AVNBRA-1"><h4>Sem link</h4>`, "/", "https://www.avon.com.br")
	assert.False(t, ok)
}

func TestBFF(t *testing.T) {
	raw := mustParse(t, `{
		"productId": "NATBRA-100",
		"name": "Kaiak",
		"url": "/p/kaiak/NATBRA-100",
		"images": [{"absURL": "https://img/kaiak.jpg"}],
		"price": {"sales": {"value": 159.9}, "consultant": {"value": 111.93}},
		"orderable": false
	}`)
	p, ok := BFF(raw, "https://www.natura.com.br", "perfumaria")
	require.True(t, ok)
	assert.Equal(t, "NATBRA-100", p.ID)
	assert.Equal(t, "159.9", p.Price.Decimal.String())
	assert.Equal(t, "111.93", p.PurchasePrice.Decimal.String())
	assert.False(t, p.InStock)
	assert.Equal(t, "Natura", p.Brand)
	assert.Equal(t, "https://img/kaiak.jpg", p.ImageURL)

	_, ok = BFF(mustParse(t, `{"name":"sem id"}`), "https://n", "")
	assert.False(t, ok)
}

func TestExtractEmbedded(t *testing.T) {
	html := `<script>window.__STATE__ = {"grid":[` +
		`{"productId":"NATBRA-1","name":"Ekos {maracujá}","url":"/p/ekos/NATBRA-1","price":{"sales":{"value":"39.9"}},"inStock":true},` +
		`{"productId":"NATBRA-1","name":"dup","url":"/p/dup"},` +
		`{"productId":"NATBRA-2","name":"Sem url"}` +
		`]};</script>` +
		`<script>var x = {\"productId\":\"NATBRA-3\",\"name\":\"Escaped\",\"url\":\"\/p\/e\/NATBRA-3\"};</script>`

	got := ExtractEmbedded(html, "https://www.natura.com.br", "/c/perfumaria")
	require.Len(t, got, 2)
	assert.Equal(t, "NATBRA-1", got[0].ID)
	assert.Equal(t, "Ekos {maracujá}", got[0].Name)
	assert.Equal(t, "perfumaria", got[0].SourceCategory)
	assert.Equal(t, "https://www.natura.com.br/p/e/NATBRA-3", got[1].URL)
}
