package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/collector"
)

// Request bounds for website collection.
const (
	maxProductURLs = 500
	maxPathHints   = 30
)

func decodeCollect(r *http.Request) (collector.Request, error) {
	var (
		req       collector.Request
		brandName string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "siteUrl":
			req.SiteURL, err = d.Str()
		case "productUrls":
			req.ProductURLs, err = decodeStrings(d)
		case "pathHints":
			req.PathHints, err = decodeStrings(d)
		case "maxPages":
			req.MaxPages, err = d.Int()
		case "sourceBrand":
			brandName, err = d.Str()
		default:
			return unknownField(key)
		}
		return err
	})
	if err != nil {
		return req, err
	}
	switch {
	case len(req.ProductURLs) > maxProductURLs:
		return req, badRequest(CodeInvalidPayload, "at most "+strconv.Itoa(maxProductURLs)+" productUrls")
	case len(req.PathHints) > maxPathHints:
		return req, badRequest(CodeInvalidPayload, "at most "+strconv.Itoa(maxPathHints)+" pathHints")
	case req.MaxPages > collector.MaxPages:
		return req, badRequest(CodeInvalidPayload, "maxPages must not exceed "+strconv.Itoa(collector.MaxPages))
	}
	if strings.TrimSpace(brandName) != "" {
		b, ok := brand.Resolve(brandName)
		if !ok {
			return req, badRequest(CodeInvalidBrand, "unsupported brand "+strconv.Quote(brandName))
		}
		req.Brand = b
	}
	return req, nil
}

func (h *Handler) collect(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeCollect(r)
	if err != nil {
		return err
	}
	res, err := h.deps.Collector.Collect(r.Context(), req)
	if err != nil {
		if errors.Is(err, collector.ErrInvalidSiteURL) {
			return badRequest(CodeInvalidSiteURL, "siteUrl must be an absolute http(s) URL")
		}
		return errors.Wrap(err, "collect website")
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) { encodeProducts(e, res.Products) })
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("count", num(len(res.Products)))
				e.Field("scannedUrls", num(res.ScannedURLs))
				e.Field("sourceUrls", strs(res.SourceURLs))
				e.Field("failedUrls", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, f := range res.FailedURLs {
							e.Obj(func(e *jx.Encoder) {
								e.Field("url", str(f.URL))
								e.Field("error", str(f.Error))
							})
						}
					})
				})
				e.Field("unmapped", num(res.Unmapped))
				e.Field("maxPages", num(collector.ClampMaxPages(req.MaxPages)))
				e.Field("fetchedAt", encodeTime(h.now()))
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
	return nil
}
