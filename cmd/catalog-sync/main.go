// Command catalog-sync fetches brand catalogs once, stores them as a
// PostgreSQL snapshot and optionally exports them as gzipped NDJSON.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/iagopasso/revendis-sub001/internal/aggregate"
	"github.com/iagopasso/revendis-sub001/internal/app"
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/httpapi"
	"github.com/iagopasso/revendis-sub001/internal/storage/postgres"
)

type options struct {
	brands       string
	databaseURL  string
	export       string
	clearMissing bool
	upstream     bool
	samples      bool
	timeout      time.Duration
	concurrency  int
}

func main() {
	var opts options

	flag.StringVar(&opts.brands, "brands", "", "comma-separated brands to sync (default: all)")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.export, "export", "", "write the products to this .ndjson.gz file")
	flag.BoolVar(&opts.clearMissing, "clear-missing", true, "delete stored products missing from the snapshot")
	flag.BoolVar(&opts.upstream, "upstream", true, "fetch live catalogs ("+app.EnvEnableUpstream+" overrides)")
	flag.BoolVar(&opts.samples, "sample-fallback", true, "serve sample products when a brand yields nothing")
	flag.DurationVar(&opts.timeout, "timeout", 20*time.Second, "per-request upstream timeout")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "brands fetched at once")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if raw := os.Getenv(app.EnvEnableUpstream); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			opts.upstream = v
		}
	}
	if opts.databaseURL == "" && opts.export == "" {
		slog.Error("nothing to do: set --database-url (or DATABASE_URL) or --export")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("catalog sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog sync completed successfully")
}

func run(ctx context.Context, opts options) error {
	brands, err := brand.ParseList(opts.brands)
	if err != nil {
		return errors.Wrap(err, "parse brands")
	}
	if len(brands) == 0 {
		brands = brand.All()
	}

	cfg := &app.Config{Upstream: app.UpstreamConfig{
		Enabled:        opts.upstream,
		SampleFallback: opts.samples,
		Timeout:        opts.timeout,
		Burst:          4,
		Concurrency:    opts.concurrency,
	}}
	svcs, err := app.NewServices(cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		return err
	}

	runID := uuid.New()
	started := time.Now().UTC()
	slog.Info("fetching catalogs",
		slog.String("run_id", runID.String()),
		slog.Int("brands", len(brands)),
		slog.Bool("upstream", opts.upstream),
	)

	res, err := svcs.Aggregator.FetchMany(ctx, brands)
	if err != nil {
		return errors.Wrap(err, "fetch catalogs")
	}
	for _, rep := range res.PerBrand {
		slog.Info("brand fetched",
			slog.String("brand", string(rep.Brand)),
			slog.String("source", string(rep.Source)),
			slog.Int("products", rep.Products),
			slog.Int("failed_sources", len(rep.FailedSources)),
		)
	}

	if opts.export != "" {
		if err := export(opts.export, res); err != nil {
			return errors.Wrap(err, "export products")
		}
		slog.Info("products exported", slog.String("path", opts.export), slog.Int("count", len(res.Products)))
	}

	if opts.databaseURL == "" {
		return nil
	}

	slog.Info("connecting to database")
	pool, repo, err := app.OpenSnapshots(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	snap := postgres.Run{ID: runID, StartedAt: started, FinishedAt: time.Now().UTC()}
	if err := repo.Save(ctx, snap, res, postgres.SaveOptions{ClearMissing: opts.clearMissing}); err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	slog.Info("snapshot saved",
		slog.String("run_id", runID.String()),
		slog.Int("products", len(res.Products)),
	)
	return nil
}

// export writes one JSON object per product, gzip-compressed.
func export(path string, res aggregate.Result) (rerr error) {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "close file")
		}
	}()

	gz := pgzip.NewWriter(f)
	w := bufio.NewWriter(gz)

	var e jx.Encoder
	for _, p := range res.Products {
		e.Reset()
		httpapi.EncodeProduct(&e, p)
		if _, err := w.Write(e.Bytes()); err != nil {
			return errors.Wrap(err, "write product")
		}
		if err := w.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "write newline")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip writer")
	}
	return nil
}
