// Package resilience wraps catalog strategies so that callers always get a
// usable answer: upstream failures are recorded, not raised, and a brand
// with no live products is served from a static sample catalog.
package resilience

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
)

// Dispatcher fetches a brand's upstream catalog.
type Dispatcher interface {
	Dispatch(ctx context.Context, b brand.Slug) (catalog.UpstreamResult, error)
	BaseURL(b brand.Slug) string
}

// Config controls fallback behavior.
type Config struct {
	// Upstream enables live fetching. When false every brand is served from
	// samples (or nothing).
	Upstream bool
	// UseSampleFallback serves samples when upstream yields no products.
	UseSampleFallback bool
}

// DefaultConfig fetches upstream and falls back to samples.
func DefaultConfig() Config {
	return Config{Upstream: true, UseSampleFallback: true}
}

// Service is the resilient catalog fetcher.
type Service struct {
	cfg        Config
	dispatcher Dispatcher
}

var _ catalog.Fetcher = (*Service)(nil)

// New creates a Service.
func New(d Dispatcher, cfg Config) *Service {
	return &Service{cfg: cfg, dispatcher: d}
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// WithoutSampleFallback returns a copy of s that never serves samples.
func (s *Service) WithoutSampleFallback() *Service {
	cfg := s.cfg
	cfg.UseSampleFallback = false
	return &Service{cfg: cfg, dispatcher: s.dispatcher}
}

// FetchBrandCatalog fetches the catalog of b. The error is non-nil only for
// unknown brands and cancellation of ctx.
func (s *Service) FetchBrandCatalog(ctx context.Context, b brand.Slug) (catalog.FetchResult, error) {
	if !brand.Valid(b) {
		return catalog.FetchResult{}, errors.Wrapf(brand.ErrUnknown, "fetch %q", b)
	}
	lg := zctx.From(ctx).With(zap.String("brand", string(b)))

	if !s.cfg.Upstream {
		if !s.cfg.UseSampleFallback {
			return catalog.FetchResult{Source: catalog.SourceUpstream}, nil
		}
		return catalog.FetchResult{Products: Samples(b), Source: catalog.SourceSample}, nil
	}

	res, err := s.dispatcher.Dispatch(ctx, b)
	if err != nil {
		if cerr := fetch.Canceled(ctx); cerr != nil {
			return catalog.FetchResult{}, cerr
		}
		lg.Warn("Strategy failed", zap.Error(err))
		base := s.dispatcher.BaseURL(b)
		res = catalog.UpstreamResult{
			FailedSources: []string{base},
			FailedDetails: []catalog.FailureDetail{{Source: base, Error: fetch.Code(err)}},
		}
	}

	if len(res.Products) > 0 {
		return catalog.FetchResult{
			Products:      WithImages(res.Products),
			Source:        catalog.SourceUpstream,
			FailedSources: res.FailedSources,
			FailedDetails: res.FailedDetails,
		}, nil
	}

	failed := res.FailedSources
	if len(failed) == 0 {
		failed = []string{s.dispatcher.BaseURL(b)}
	}
	out := catalog.FetchResult{
		Source:        catalog.SourceUpstream,
		FailedSources: failed,
		FailedDetails: res.FailedDetails,
	}
	if s.cfg.UseSampleFallback {
		lg.Info("No upstream products, serving samples", zap.Strings("failed", failed))
		out.Products = Samples(b)
		out.Source = catalog.SourceSample
	}
	return out, nil
}
