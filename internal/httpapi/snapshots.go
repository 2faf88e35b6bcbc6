package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/storage/postgres"
)

// CodeNoSnapshot is returned before the first sync run.
const CodeNoSnapshot = "no_snapshot"

// Snapshots reads catalogs stored by catalog-sync.
type Snapshots interface {
	LatestRun(ctx context.Context) (postgres.Run, error)
	Products(ctx context.Context, b brand.Slug) ([]catalog.Product, error)
}

var _ Snapshots = (*postgres.SnapshotRepository)(nil)

func (h *Handler) latestSnapshot(w http.ResponseWriter, r *http.Request) error {
	run, err := h.deps.Snapshots.LatestRun(r.Context())
	if err != nil {
		if errors.Is(err, postgres.ErrNoRuns) {
			return &apiError{status: http.StatusNotFound, code: CodeNoSnapshot, message: "no catalog snapshot stored yet"}
		}
		return errors.Wrap(err, "latest run")
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", str(run.ID.String()))
				e.Field("startedAt", encodeTime(run.StartedAt))
				e.Field("finishedAt", encodeTime(run.FinishedAt))
				e.Field("products", num(run.Products))
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
	return nil
}

func (h *Handler) snapshotProducts(w http.ResponseWriter, r *http.Request) error {
	b, ok := brand.Resolve(r.PathValue("brand"))
	if !ok {
		return badRequest(CodeInvalidBrand, "unsupported brand "+strconv.Quote(r.PathValue("brand")))
	}
	l, err := parseListing(r)
	if err != nil {
		return err
	}
	stored, err := h.deps.Snapshots.Products(r.Context(), b)
	if err != nil {
		return errors.Wrapf(err, "stored products of %s", b)
	}
	products, total := l.page(stored)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) { encodeProducts(e, products) })
		e.Field("meta", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("brand", str(string(b)))
				e.Field("brandLabel", str(brand.Label(b)))
				l.meta(e, total, len(products))
				e.Field("source", str("snapshot"))
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
	return nil
}
