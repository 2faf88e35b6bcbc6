package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iagopasso/revendis-sub001/internal/brand"
)

// Source tells a caller whether products came from the live upstream or from
// the static sample dataset.
type Source string

// Product sources.
const (
	SourceUpstream Source = "upstream"
	SourceSample   Source = "sample"
)

// DefaultCategory is the category slug used when nothing better is known.
const DefaultCategory = "catalogo"

// Product is the canonical catalog record every upstream shape is normalized
// into. Records are never mutated after normalization.
type Product struct {
	ID             string
	SKU            string
	Barcode        string
	Name           string
	Brand          string
	Price          decimal.NullDecimal
	PurchasePrice  decimal.NullDecimal
	InStock        bool
	URL            string
	ImageURL       string
	SourceCategory string
	SourceBrand    brand.Slug
}

// Attempt records one fetch profile that was tried for a request and the
// error it ended with.
type Attempt struct {
	Profile string
	Error   string
}

// FailureDetail describes an upstream path or query that could not be
// resolved, with every attempt made before giving up.
type FailureDetail struct {
	Source   string
	Error    string
	Attempts []Attempt
}

// UpstreamResult is what a single fetch strategy produces.
type UpstreamResult struct {
	Products      []Product
	FailedSources []string
	FailedDetails []FailureDetail
	// Queried counts the distinct sources that were requested. Zero when
	// the strategy does not track it.
	Queried int
}

// AllFailed reports whether every queried source failed.
func (r UpstreamResult) AllFailed() bool {
	if r.Queried == 0 {
		return len(r.FailedSources) > 0
	}
	return len(r.FailedSources) >= r.Queried
}

// Merge combines two strategy results. Products are deduplicated by ID with
// later entries replacing earlier ones; failed sources are deduplicated.
func Merge(primary, secondary UpstreamResult) UpstreamResult {
	var set Set
	set.Add(primary.Products...)
	set.Add(secondary.Products...)

	details := make([]FailureDetail, 0, len(primary.FailedDetails)+len(secondary.FailedDetails))
	details = append(details, primary.FailedDetails...)
	details = append(details, secondary.FailedDetails...)

	return UpstreamResult{
		Products:      set.Products(),
		FailedSources: UniqueStrings(append(append([]string(nil), primary.FailedSources...), secondary.FailedSources...)),
		FailedDetails: details,
		Queried:       primary.Queried + secondary.Queried,
	}
}

// FetchResult is the outcome of fetching one brand's catalog.
type FetchResult struct {
	Products      []Product
	Source        Source
	FailedSources []string
	FailedDetails []FailureDetail
}

// Fetcher fetches a single brand's catalog, degrading to sample data on
// upstream failure. Only cancellation is reported as an error.
type Fetcher interface {
	FetchBrandCatalog(ctx context.Context, b brand.Slug) (FetchResult, error)
}

// UniqueStrings removes duplicates and empty strings, keeping first
// occurrence order.
func UniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
