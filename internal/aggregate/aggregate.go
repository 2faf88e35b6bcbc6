// Package aggregate fetches several brand catalogs concurrently and merges
// them into one listing.
package aggregate

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

const instrumentation = "github.com/iagopasso/revendis-sub001/internal/aggregate"

// BrandReport summarizes the outcome for one requested brand.
type BrandReport struct {
	Brand         brand.Slug
	Source        catalog.Source
	Products      int
	FailedSources []string
	FailedDetails []catalog.FailureDetail
}

// Result is the merged listing plus one report per requested brand, in
// request order.
type Result struct {
	Products []catalog.Product
	PerBrand []BrandReport
}

// AllSamples reports whether every brand was served from sample data.
func (r Result) AllSamples() bool {
	if len(r.PerBrand) == 0 {
		return false
	}
	for _, rep := range r.PerBrand {
		if rep.Source != catalog.SourceSample {
			return false
		}
	}
	return true
}

// Option configures an Aggregator.
type Option func(*options)

type options struct {
	concurrency    int
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithConcurrency limits how many brands are fetched at once. Zero or less
// means unlimited.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithTelemetry sets the trace and metric providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
		o.meterProvider = mp
	}
}

// Aggregator fans brand fetches out over a catalog.Fetcher.
type Aggregator struct {
	fetcher     catalog.Fetcher
	concurrency int

	tracer   trace.Tracer
	fetches  metric.Int64Counter
	products metric.Int64Counter
}

// New creates an Aggregator.
func New(f catalog.Fetcher, opts ...Option) (*Aggregator, error) {
	o := options{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentation)
	fetches, err := meter.Int64Counter("catalog.brand.fetches",
		metric.WithDescription("Brand catalog fetches by brand and source"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create fetches counter")
	}
	products, err := meter.Int64Counter("catalog.brand.products",
		metric.WithDescription("Products returned by brand and source"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create products counter")
	}

	return &Aggregator{
		fetcher:     f,
		concurrency: o.concurrency,
		tracer:      o.tracerProvider.Tracer(instrumentation),
		fetches:     fetches,
		products:    products,
	}, nil
}

// FetchMany fetches every brand in brands. Duplicates are fetched once; the
// merged products are sorted by name, brand and ID. Cancellation aborts the
// whole call without a partial result.
func (a *Aggregator) FetchMany(ctx context.Context, brands []brand.Slug) (Result, error) {
	brands = unique(brands)

	ctx, span := a.tracer.Start(ctx, "aggregate.FetchMany",
		trace.WithAttributes(attribute.Int("catalog.brands", len(brands))),
	)
	defer span.End()

	results := make([]catalog.FetchResult, len(brands))
	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, b := range brands {
		g.Go(func() error {
			res, err := a.fetchBrand(gctx, b)
			if err != nil {
				return errors.Wrapf(err, "fetch %s", b)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return Result{}, err
	}

	out := Result{PerBrand: make([]BrandReport, 0, len(brands))}
	for i, b := range brands {
		res := results[i]
		out.Products = append(out.Products, res.Products...)
		out.PerBrand = append(out.PerBrand, BrandReport{
			Brand:         b,
			Source:        res.Source,
			Products:      len(res.Products),
			FailedSources: res.FailedSources,
			FailedDetails: res.FailedDetails,
		})
	}
	catalog.SortByName(out.Products)

	span.SetAttributes(attribute.Int("catalog.products", len(out.Products)))
	zctx.From(ctx).Debug("Catalogs aggregated",
		zap.Int("brands", len(brands)),
		zap.Int("products", len(out.Products)),
	)
	return out, nil
}

func (a *Aggregator) fetchBrand(ctx context.Context, b brand.Slug) (catalog.FetchResult, error) {
	ctx, span := a.tracer.Start(ctx, "aggregate.FetchBrand",
		trace.WithAttributes(attribute.String("catalog.brand", string(b))),
	)
	defer span.End()

	res, err := a.fetcher.FetchBrandCatalog(ctx, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return catalog.FetchResult{}, err
	}

	attrs := metric.WithAttributes(
		attribute.String("brand", string(b)),
		attribute.String("source", string(res.Source)),
	)
	a.fetches.Add(ctx, 1, attrs)
	a.products.Add(ctx, int64(len(res.Products)), attrs)
	span.SetAttributes(
		attribute.String("catalog.source", string(res.Source)),
		attribute.Int("catalog.products", len(res.Products)),
		attribute.Int("catalog.failed_sources", len(res.FailedSources)),
	)
	return res, nil
}

func unique(brands []brand.Slug) []brand.Slug {
	seen := make(map[brand.Slug]struct{}, len(brands))
	out := make([]brand.Slug, 0, len(brands))
	for _, b := range brands {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}
