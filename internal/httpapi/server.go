// Package httpapi exposes the catalog aggregator over HTTP.
//
// Responses are {"data": ..., "meta": {...}} objects encoded with jx; errors
// are {"code": ..., "message": ...}.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/aggregate"
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/collector"
	"github.com/iagopasso/revendis-sub001/internal/consultant"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
	"github.com/iagopasso/revendis-sub001/internal/magazine"
)

// Listing limits.
const (
	DefaultLimit = 50
	MaxLimit     = 200
	// MaxConsultantLimit bounds the consultant listing.
	MaxConsultantLimit = 1000

	maxBodyBytes = 1 << 20
)

// Error codes.
const (
	CodeInvalidBrand       = "invalid_brand"
	CodeInvalidPayload     = "invalid_payload"
	CodeInvalidSiteURL     = "invalid_site_url"
	CodeMissingCredentials = "missing_consultant_credentials"
	CodeAuthFailed         = "consultant_auth_failed"
	CodeUpstreamFailed     = "upstream_unavailable"
	CodeInternal           = "internal_error"
)

// Aggregator fetches several brands at once.
type Aggregator interface {
	FetchMany(ctx context.Context, brands []brand.Slug) (aggregate.Result, error)
}

// Consultant fetches the authenticated Natura catalog.
type Consultant interface {
	FetchAuthenticatedCatalog(ctx context.Context, creds consultant.Credentials, categories []string) (catalog.UpstreamResult, error)
}

// Magazine reads products out of catalogue PDFs.
type Magazine interface {
	Extract(ctx context.Context, src magazine.Source, limit int) (magazine.Extraction, error)
}

// Collector scrapes a storefront website.
type Collector interface {
	Collect(ctx context.Context, req collector.Request) (collector.Result, error)
}

var (
	_ Aggregator = (*aggregate.Aggregator)(nil)
	_ Consultant = (*consultant.Client)(nil)
	_ Magazine   = (*magazine.Extractor)(nil)
	_ Collector  = (*collector.Collector)(nil)
)

// Deps are the services behind the handlers.
type Deps struct {
	Catalog    catalog.Fetcher
	Aggregator Aggregator
	Consultant Consultant
	Magazine   Magazine
	// Searcher enriches magazine items. Nil disables enrichment.
	Searcher  magazine.Searcher
	Collector Collector
	// Snapshots enables the stored catalog routes when set.
	Snapshots Snapshots
}

// Config tunes the handlers.
type Config struct {
	// Credentials are used when a consultant request carries none.
	Credentials consultant.Credentials
}

// Handler serves the catalog API.
type Handler struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

// New creates a Handler.
func New(deps Deps, cfg Config) *Handler {
	return &Handler{deps: deps, cfg: cfg, now: time.Now}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog/brands", h.listBrands)
	mux.Handle("GET /api/catalog/brands/{brand}", handler(h.brandProducts))
	mux.Handle("GET /api/catalog", handler(h.products))
	mux.Handle("POST /api/catalog/natura/consultant", handler(h.consultantProducts))
	mux.Handle("POST /api/catalog/magazine", handler(h.magazineProducts))
	mux.Handle("POST /api/catalog/collect", handler(h.collect))
	if h.deps.Snapshots != nil {
		mux.Handle("GET /api/catalog/snapshots/latest", handler(h.latestSnapshot))
		mux.Handle("GET /api/catalog/snapshots/{brand}", handler(h.snapshotProducts))
	}
}

// apiError is a handler failure with its HTTP status.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.code + ": " + e.message }

func badRequest(code, msg string) error {
	return &apiError{status: http.StatusBadRequest, code: code, message: msg}
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, &e)
}

// fail maps err to a response. Cancellation by the client is not answered.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.status, apiErr.code, apiErr.message)
		return
	}
	if fetch.IsCanceled(err) && r.Context().Err() != nil {
		zctx.From(r.Context()).Debug("Request canceled", zap.Error(err))
		return
	}
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// handler adapts an error-returning function.
func handler(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			fail(w, r, err)
		}
	}
}

// decodeBody decodes a JSON object body, calling field for every member.
// An empty body is an empty object. Unknown members are rejected.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(data) > maxBodyBytes {
		return badRequest(CodeInvalidPayload, "request body too large")
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return badRequest(CodeInvalidPayload, "request body must be a JSON object")
	}
	if err := d.Obj(field); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return badRequest(CodeInvalidPayload, err.Error())
	}
	return nil
}

func unknownField(key string) error {
	return badRequest(CodeInvalidPayload, "unknown field "+strconv.Quote(key))
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// clampLimit bounds n to [1, upper], using def when n is not positive.
func clampLimit(n, def, upper int) int {
	if n <= 0 {
		return def
	}
	return min(n, upper)
}
