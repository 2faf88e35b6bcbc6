package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/aggregate"
	"github.com/iagopasso/revendis-sub001/internal/bff"
	"github.com/iagopasso/revendis-sub001/internal/collector"
	"github.com/iagopasso/revendis-sub001/internal/consultant"
	"github.com/iagopasso/revendis-sub001/internal/dispatch"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
	"github.com/iagopasso/revendis-sub001/internal/httpapi"
	"github.com/iagopasso/revendis-sub001/internal/magazine"
	"github.com/iagopasso/revendis-sub001/internal/resilience"
	"github.com/iagopasso/revendis-sub001/internal/storage/postgres"
	"github.com/iagopasso/revendis-sub001/pkg/health"
	"github.com/iagopasso/revendis-sub001/pkg/httpmiddleware"
)

// Services are the catalog services shared by the API server and the sync
// command.
type Services struct {
	HTTP       *fetch.Client
	Natura     *bff.Client
	Catalog    *resilience.Service
	Aggregator *aggregate.Aggregator
}

// NewServices wires the upstream client, strategies and aggregator.
func NewServices(cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (*Services, error) {
	client := fetch.New(fetch.Config{
		Timeout:     cfg.Upstream.Timeout,
		UserAgent:   cfg.Upstream.UserAgent,
		RatePerHost: cfg.Upstream.RatePerHost,
		Burst:       cfg.Upstream.Burst,
	}, fetch.WithTelemetry(tp, mp))

	natura := bff.New(cfg.Natura.Backend(), client)

	svc := resilience.New(dispatch.New(client, natura), resilience.Config{
		Upstream:          cfg.Upstream.Enabled,
		UseSampleFallback: cfg.Upstream.SampleFallback,
	})
	agg, err := aggregate.New(svc,
		aggregate.WithConcurrency(cfg.Upstream.Concurrency),
		aggregate.WithTelemetry(tp, mp),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create aggregator")
	}
	return &Services{HTTP: client, Natura: natura, Catalog: svc, Aggregator: agg}, nil
}

// OpenSnapshots connects to PostgreSQL and applies migrations.
func OpenSnapshots(ctx context.Context, databaseURL string) (*pgxpool.Pool, *postgres.SnapshotRepository, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	return pool, postgres.NewSnapshotRepository(pool), nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("upstream", cfg.Upstream.Enabled),
		zap.Bool("sample_fallback", cfg.Upstream.SampleFallback),
	)

	svcs, err := NewServices(cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	deps := httpapi.Deps{
		Catalog:    svcs.Catalog,
		Aggregator: svcs.Aggregator,
		Consultant: consultant.New(cfg.Natura.Consultant(), svcs.HTTP, svcs.Natura),
		Magazine: magazine.New(magazine.Config{
			PythonBin:  cfg.Magazine.PythonBin,
			ScriptPath: cfg.Magazine.ScriptPath,
			Timeout:    cfg.Magazine.Timeout,
		}, svcs.HTTP),
		Searcher:  svcs.Natura,
		Collector: collector.New(svcs.HTTP),
	}

	// PostgreSQL is optional: it only backs the snapshot routes.
	if cfg.DatabaseURL != "" {
		pool, repo, err := OpenSnapshots(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		deps.Snapshots = repo
	} else {
		lg.Info("No database configured, snapshot routes disabled")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	httpapi.New(deps, httpapi.Config{Credentials: cfg.Natura.Credentials()}).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Magazine extraction and site collection run inside the request.
		WriteTimeout:   max(cfg.Magazine.Timeout, magazine.MinTimeout) + 30*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("catalog-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
