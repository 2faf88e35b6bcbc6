package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iagopasso/revendis-sub001/internal/aggregate"
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

// ErrNoRuns is returned by LatestRun before the first snapshot.
var ErrNoRuns = errors.New("no sync runs")

// Run describes one snapshot.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Products   int
}

// SaveOptions tunes Save.
type SaveOptions struct {
	// ClearMissing deletes stored products of upstream-served brands that
	// are absent from the snapshot.
	ClearMissing bool
}

// SnapshotRepository persists aggregated catalogs.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository returns a SnapshotRepository that uses the given
// pool.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

const (
	insertRun = `INSERT INTO sync_runs (id, started_at, finished_at, products)
VALUES ($1, $2, $3, $4)`

	insertReport = `INSERT INTO brand_reports (run_id, brand, source, products, failed_sources)
VALUES ($1, $2, $3, $4, $5)`

	upsertProduct = `INSERT INTO catalog_products (
    source_brand, id, sku, barcode, name, brand, price, purchase_price,
    in_stock, url, image_url, source_category, fetched_source, run_id, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
ON CONFLICT (source_brand, id) DO UPDATE SET
    sku = EXCLUDED.sku,
    barcode = EXCLUDED.barcode,
    name = EXCLUDED.name,
    brand = EXCLUDED.brand,
    price = EXCLUDED.price,
    purchase_price = EXCLUDED.purchase_price,
    in_stock = EXCLUDED.in_stock,
    url = EXCLUDED.url,
    image_url = EXCLUDED.image_url,
    source_category = EXCLUDED.source_category,
    fetched_source = EXCLUDED.fetched_source,
    run_id = EXCLUDED.run_id,
    updated_at = now()`

	deleteMissing = `DELETE FROM catalog_products WHERE source_brand = $1 AND run_id <> $2`
)

// Save stores the run, its brand reports and every product in one
// transaction. Products are upserted by (source brand, id).
func (r *SnapshotRepository) Save(ctx context.Context, run Run, res aggregate.Result, opts SaveOptions) error {
	sources := make(map[brand.Slug]catalog.Source, len(res.PerBrand))
	for _, rep := range res.PerBrand {
		sources[rep.Brand] = rep.Source
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRun, run.ID, run.StartedAt, run.FinishedAt, len(res.Products)); err != nil {
			return errors.Wrap(err, "insert run")
		}

		batch := &pgx.Batch{}
		for _, rep := range res.PerBrand {
			failed := rep.FailedSources
			if failed == nil {
				failed = []string{}
			}
			batch.Queue(insertReport, run.ID, string(rep.Brand), string(rep.Source), rep.Products, failed)
		}
		for _, p := range res.Products {
			batch.Queue(upsertProduct,
				string(p.SourceBrand), p.ID, p.SKU, p.Barcode, p.Name, p.Brand,
				p.Price, p.PurchasePrice, p.InStock, p.URL, p.ImageURL, p.SourceCategory,
				string(sources[p.SourceBrand]), run.ID,
			)
		}
		if opts.ClearMissing {
			for _, rep := range res.PerBrand {
				if rep.Source == catalog.SourceUpstream {
					batch.Queue(deleteMissing, string(rep.Brand), run.ID)
				}
			}
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "write snapshot")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "save run %s", run.ID)
	}
	return nil
}

// LatestRun returns the most recent run.
func (r *SnapshotRepository) LatestRun(ctx context.Context) (Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx,
		`SELECT id, started_at, finished_at, products FROM sync_runs ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Products)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrNoRuns
		}
		return Run{}, errors.Wrap(err, "query latest run")
	}
	return run, nil
}

// Products returns the stored products of b ordered by name.
func (r *SnapshotRepository) Products(ctx context.Context, b brand.Slug) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sku, barcode, name, brand, price, purchase_price,
    in_stock, url, image_url, source_category, source_brand
FROM catalog_products WHERE source_brand = $1 ORDER BY lower(name), id`, string(b))
	if err != nil {
		return nil, errors.Wrapf(err, "list products of %s", b)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrapf(err, "scan products of %s", b)
	}
	return products, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p             catalog.Product
		price, bought decimal.NullDecimal
		sourceBrand   string
	)
	err := row.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.Brand, &price, &bought,
		&p.InStock, &p.URL, &p.ImageURL, &p.SourceCategory, &sourceBrand)
	p.Price, p.PurchasePrice = price, bought
	p.SourceBrand = brand.Slug(sourceBrand)
	return p, err
}
