package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

// listing is a parsed listing query.
type listing struct {
	query  catalog.Query
	limit  int
	offset int
	strict bool
}

func parseBool(s string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		v = true
	case "false", "0":
	default:
		return nil
	}
	return &v
}

func parseListing(r *http.Request) (listing, error) {
	q := r.URL.Query()
	l := listing{
		query: catalog.Query{
			Search:   strings.TrimSpace(q.Get("q")),
			Category: q.Get("category"),
			InStock:  parseBool(q.Get("inStock")),
			Sort:     catalog.SortName,
		},
		limit: DefaultLimit,
	}
	switch s := q.Get("sort"); s {
	case "":
	case catalog.SortName, catalog.SortPriceAsc, catalog.SortPriceDesc:
		l.query.Sort = s
	default:
		return listing{}, badRequest(CodeInvalidPayload, "unsupported sort "+strconv.Quote(s))
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return listing{}, badRequest(CodeInvalidPayload, "limit must be an integer")
		}
		l.limit = clampLimit(max(n, 1), DefaultLimit, MaxLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return listing{}, badRequest(CodeInvalidPayload, "offset must be a non-negative integer")
		}
		l.offset = n
	}
	if strict := parseBool(q.Get("strict")); strict != nil {
		l.strict = *strict
	}
	return l, nil
}

// page filters products and returns the requested window plus the number of
// matches before paging.
func (l listing) page(products []catalog.Product) ([]catalog.Product, int) {
	filtered := l.query.Apply(products)
	paged := catalog.Query{Limit: l.limit, Offset: l.offset}.Apply(filtered)
	return paged, len(filtered)
}

func (l listing) meta(e *jx.Encoder, total, count int) {
	e.Field("total", num(total))
	e.Field("count", num(count))
	e.Field("limit", num(l.limit))
	e.Field("offset", num(l.offset))
	e.Field("query", str(l.query.Search))
	e.Field("inStock", func(e *jx.Encoder) {
		if l.query.InStock == nil {
			e.Null()
			return
		}
		e.Bool(*l.query.InStock)
	})
}

func (h *Handler) listBrands(w http.ResponseWriter, _ *http.Request) {
	all := brand.All()
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range all {
					info, _ := brand.Lookup(s)
					e.Obj(func(e *jx.Encoder) {
						e.Field("slug", str(string(info.Slug)))
						e.Field("label", str(info.Label))
						e.Field("baseUrl", str(info.BaseURL))
					})
				}
			})
		})
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) { e.Field("total", num(len(all))) })
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) brandProducts(w http.ResponseWriter, r *http.Request) error {
	b, ok := brand.Resolve(r.PathValue("brand"))
	if !ok {
		return badRequest(CodeInvalidBrand, "unsupported brand "+strconv.Quote(r.PathValue("brand")))
	}
	l, err := parseListing(r)
	if err != nil {
		return err
	}

	res, err := h.deps.Catalog.FetchBrandCatalog(r.Context(), b)
	if err != nil {
		return errors.Wrapf(err, "fetch %s", b)
	}
	if l.strict && res.Source == catalog.SourceSample {
		return &apiError{status: http.StatusBadGateway, code: CodeUpstreamFailed,
			message: brand.Label(b) + " catalog is unavailable upstream"}
	}
	products, total := l.page(res.Products)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) { encodeProducts(e, products) })
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("brand", str(string(b)))
				e.Field("brandLabel", str(brand.Label(b)))
				l.meta(e, total, len(products))
				e.Field("source", str(string(res.Source)))
				e.Field("failedSources", strs(res.FailedSources))
				e.Field("failedDetails", func(e *jx.Encoder) { encodeDetails(e, res.FailedDetails) })
				e.Field("fetchedAt", encodeTime(h.now()))
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
	return nil
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) error {
	brands := brand.All()
	if raw := r.URL.Query().Get("brands"); strings.TrimSpace(raw) != "" {
		parsed, err := brand.ParseList(raw)
		if err != nil {
			return badRequest(CodeInvalidBrand, err.Error())
		}
		brands = parsed
	}
	l, err := parseListing(r)
	if err != nil {
		return err
	}

	res, err := h.deps.Aggregator.FetchMany(r.Context(), brands)
	if err != nil {
		return errors.Wrap(err, "fetch brands")
	}
	if l.strict && res.AllSamples() {
		return &apiError{status: http.StatusBadGateway, code: CodeUpstreamFailed,
			message: "no requested brand is available upstream"}
	}
	products, total := l.page(res.Products)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) { encodeProducts(e, products) })
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("brands", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, b := range brands {
							e.Str(string(b))
						}
					})
				})
				l.meta(e, total, len(products))
				e.Field("perBrand", func(e *jx.Encoder) { encodeReports(e, res.PerBrand) })
				e.Field("fetchedAt", encodeTime(h.now()))
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
	return nil
}
