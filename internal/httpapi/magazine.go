package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/iagopasso/revendis-sub001/internal/magazine"
)

type magazineRequest struct {
	src         magazine.Source
	limit       int
	inStockOnly bool
	enrich      bool
}

func decodeMagazine(r *http.Request) (magazineRequest, error) {
	req := magazineRequest{enrich: true}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "pdfPath":
			req.src.Path, err = d.Str()
		case "pdfUrl":
			req.src.URL, err = d.Str()
		case "pdfHeaders":
			req.src.Header = make(http.Header)
			err = d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				req.src.Header.Set(name, v)
				return nil
			})
		case "limit":
			req.limit, err = d.Int()
		case "inStockOnly":
			req.inStockOnly, err = d.Bool()
		case "enrichWithCatalog":
			req.enrich, err = d.Bool()
		default:
			return unknownField(key)
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if strings.TrimSpace(req.src.Path) == "" && strings.TrimSpace(req.src.URL) == "" {
		return req, badRequest(magazine.CodeMissingSource, "pdfPath or pdfUrl is required")
	}
	return req, nil
}

// magazineStatus maps extraction failures: bad input is the caller's fault,
// a broken extractor installation is ours and a bad download is upstream's.
func magazineStatus(code string) int {
	switch code {
	case magazine.CodeMissingSource, magazine.CodePDFNotFound, magazine.CodeNotPDF:
		return http.StatusBadRequest
	case magazine.CodeDownloadFailed:
		return http.StatusBadGateway
	}
	// Non-2xx answers to the PDF download.
	if strings.HasPrefix(code, "http_") {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) magazineProducts(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeMagazine(r)
	if err != nil {
		return err
	}
	limit := magazine.ClampLimit(req.limit)

	ext, err := h.deps.Magazine.Extract(r.Context(), req.src, limit)
	if err != nil {
		var extErr *magazine.ExtractError
		if errors.As(err, &extErr) {
			return &apiError{status: magazineStatus(extErr.Code), code: extErr.Code, message: extErr.Message}
		}
		return errors.Wrap(err, "extract magazine")
	}

	built, err := magazine.Build(r.Context(), h.deps.Searcher, ext.Candidates, magazine.BuildOptions{
		Limit:       limit,
		InStockOnly: req.inStockOnly,
		Enrich:      req.enrich && h.deps.Searcher != nil,
		SourceURL:   req.src.URL,
	})
	if err != nil {
		return errors.Wrap(err, "build magazine items")
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range built.Items {
					e.Obj(func(e *jx.Encoder) {
						productFields(e, item.Product)
						e.Field("magazineCode", str(item.Code))
						e.Field("lineBrand", str(item.LineBrand))
						e.Field("page", num(item.Page))
						e.Field("enriched", boolean(item.Enriched))
					})
				}
			})
		})
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("candidates", num(len(ext.Candidates)))
				e.Field("count", num(len(built.Items)))
				e.Field("enriched", num(built.EnrichedCount))
				e.Field("failedCodes", strs(built.FailedCodes))
				e.Field("limit", num(limit))
				e.Field("sourceType", str(ext.SourceType))
				e.Field("source", str(ext.Source))
				e.Field("extractor", ext.Meta.Encode)
				e.Field("fetchedAt", encodeTime(h.now()))
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
	return nil
}
