package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/consultant"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

type consultantRequest struct {
	creds         consultant.Credentials
	categories    []string
	limit         int
	inStockOnly   bool
	classifyBrand string
}

func decodeConsultant(r *http.Request) (consultantRequest, error) {
	var req consultantRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "login":
			req.creds.Login, err = d.Str()
		case "password":
			req.creds.Password, err = d.Str()
		case "categories":
			req.categories, err = decodeStrings(d)
		case "limit":
			req.limit, err = d.Int()
		case "inStockOnly":
			req.inStockOnly, err = d.Bool()
		case "classifyBrand":
			req.classifyBrand, err = d.Str()
		default:
			return unknownField(key)
		}
		return err
	})
	return req, err
}

// classify returns the brand label to report for every product, or "" to
// keep the catalog's own.
func classify(name string) string {
	name = strings.TrimSpace(name)
	if s, ok := brand.Resolve(name); ok {
		return brand.Label(s)
	}
	return name
}

func (h *Handler) consultantProducts(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeConsultant(r)
	if err != nil {
		return err
	}
	creds := req.creds.Or(h.cfg.Credentials)
	if !creds.Valid() {
		return badRequest(CodeMissingCredentials,
			"set "+consultant.EnvLogin+" and "+consultant.EnvPassword+" or send login and password")
	}

	res, err := h.deps.Consultant.FetchAuthenticatedCatalog(r.Context(), creds, req.categories)
	if err != nil {
		var authErr *consultant.AuthError
		switch {
		case errors.As(err, &authErr):
			return &apiError{status: http.StatusUnauthorized, code: CodeAuthFailed, message: authErr.Error()}
		case errors.Is(err, consultant.ErrMissingCredentials):
			return badRequest(CodeMissingCredentials, err.Error())
		}
		return errors.Wrap(err, "fetch consultant catalog")
	}
	// Unreachable only when every queried source failed; reachable but empty
	// categories still answer 200.
	if len(res.Products) == 0 && res.AllFailed() {
		return &apiError{status: http.StatusBadGateway, code: CodeUpstreamFailed,
			message: "the consultant storefront could not be reached with these credentials"}
	}

	filtered := make([]catalog.Product, 0, len(res.Products))
	for _, p := range res.Products {
		if req.inStockOnly && !p.InStock {
			continue
		}
		filtered = append(filtered, p)
	}
	catalog.SortByName(filtered)
	limit := clampLimit(req.limit, MaxLimit, MaxConsultantLimit)
	limited := filtered[:min(limit, len(filtered))]

	label := classify(req.classifyBrand)
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range limited {
					if label != "" {
						p.Brand = label
					}
					if p.Barcode == "" {
						p.Barcode = p.SKU
					}
					e.Obj(func(e *jx.Encoder) { productFields(e, p) })
				}
			})
		})
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("total", num(len(filtered)))
				e.Field("count", num(len(limited)))
				e.Field("limit", num(limit))
				e.Field("inStockOnly", boolean(req.inStockOnly))
				e.Field("source", str("natura_consultoria"))
				e.Field("failedSources", strs(res.FailedSources))
				e.Field("failedDetails", func(e *jx.Encoder) { encodeDetails(e, res.FailedDetails) })
				e.Field("fetchedAt", encodeTime(h.now()))
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
	return nil
}
