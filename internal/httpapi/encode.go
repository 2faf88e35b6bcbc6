package httpapi

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/iagopasso/revendis-sub001/internal/aggregate"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

func encodePrice(e *jx.Encoder, d decimal.NullDecimal) {
	if !d.Valid {
		e.Null()
		return
	}
	e.Num(jx.Num(d.Decimal.String()))
}

func str(s string) func(e *jx.Encoder) {
	return func(e *jx.Encoder) { e.Str(s) }
}

func num(n int) func(e *jx.Encoder) {
	return func(e *jx.Encoder) { e.Int(n) }
}

func boolean(b bool) func(e *jx.Encoder) {
	return func(e *jx.Encoder) { e.Bool(b) }
}

func strs(values []string) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, v := range values {
				e.Str(v)
			}
		})
	}
}

// productFields writes the members of p shared by every listing.
func productFields(e *jx.Encoder, p catalog.Product) {
	e.Field("id", str(p.ID))
	e.Field("code", str(p.SKU))
	e.Field("sku", str(p.SKU))
	e.Field("barcode", str(p.Barcode))
	e.Field("name", str(p.Name))
	e.Field("brand", str(p.Brand))
	e.Field("price", func(e *jx.Encoder) { encodePrice(e, p.Price) })
	e.Field("purchasePrice", func(e *jx.Encoder) { encodePrice(e, p.PurchasePrice) })
	e.Field("inStock", boolean(p.InStock))
	e.Field("sourceCategory", str(p.SourceCategory))
	e.Field("sourceBrand", str(string(p.SourceBrand)))
	e.Field("url", str(p.URL))
	e.Field("imageUrl", str(p.ImageURL))
}

func encodeProducts(e *jx.Encoder, products []catalog.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			e.Obj(func(e *jx.Encoder) { productFields(e, p) })
		}
	})
}

func encodeDetails(e *jx.Encoder, details []catalog.FailureDetail) {
	e.Arr(func(e *jx.Encoder) {
		for _, d := range details {
			e.Obj(func(e *jx.Encoder) {
				e.Field("source", str(d.Source))
				e.Field("error", str(d.Error))
				e.Field("attempts", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, a := range d.Attempts {
							e.Obj(func(e *jx.Encoder) {
								e.Field("profile", str(a.Profile))
								e.Field("error", str(a.Error))
							})
						}
					})
				})
			})
		}
	})
}

func encodeReports(e *jx.Encoder, reports []aggregate.BrandReport) {
	e.Arr(func(e *jx.Encoder) {
		for _, rep := range reports {
			e.Obj(func(e *jx.Encoder) {
				e.Field("brand", str(string(rep.Brand)))
				e.Field("source", str(string(rep.Source)))
				e.Field("products", num(rep.Products))
				e.Field("failedSources", strs(rep.FailedSources))
				e.Field("failedDetails", func(e *jx.Encoder) { encodeDetails(e, rep.FailedDetails) })
			})
		}
	})
}

func encodeTime(t time.Time) func(e *jx.Encoder) {
	return str(t.UTC().Format(time.RFC3339))
}

// EncodeProduct writes p as a listing object.
func EncodeProduct(e *jx.Encoder, p catalog.Product) {
	e.Obj(func(e *jx.Encoder) { productFields(e, p) })
}
