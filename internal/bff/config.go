package bff

import (
	"net/http"
	"strings"

	"github.com/iagopasso/revendis-sub001/internal/brand"
)

// Defaults.
const (
	DefaultPageSize        = 48
	DefaultMaxPages        = 10
	DefaultMinRootProducts = 40
	DefaultSearchPath      = "/bff-app-natura-brazil/search"
)

var (
	// DefaultRootSlugs are the catalog-wide category ids tried first.
	DefaultRootSlugs = []string{"root", "catalog"}
	// DefaultCategories are crawled when none are given or discovered.
	DefaultCategories = []string{
		"perfumaria", "corpo-e-banho", "cabelos", "maquiagem",
		"rosto", "casa", "infantil", "homens",
	}
)

// Profile is one set of request headers tried against the backend. The
// backend blocks some clients intermittently, so requests walk a list of
// profiles.
type Profile struct {
	Name   string
	Header http.Header
}

// DefaultProfiles returns the built-in profile list: a desktop browser, a
// mobile browser and the plain fetch client.
func DefaultProfiles(baseURL string) []Profile {
	return []Profile{
		{
			Name: "desktop",
			Header: http.Header{
				"User-Agent": {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"},
				"Origin":     {baseURL},
				"Referer":    {baseURL + "/"},
			},
		},
		{
			Name: "mobile",
			Header: http.Header{
				"User-Agent": {"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"},
				"Origin":     {baseURL},
			},
		},
		{Name: "default"},
	}
}

// Config configures a Client.
type Config struct {
	// BaseURL is the storefront, used for product links and category
	// discovery.
	BaseURL string
	// SearchURL is the backend search endpoint.
	SearchURL string
	APIKey    string
	Tenant    string

	PageSize int
	MaxPages int

	RootSlugs []string
	// MinRootProducts is how many products the first root page must carry
	// for the per-category crawl to be skipped.
	MinRootProducts int
	Categories      []string
	Profiles        []Profile
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = brand.BaseURL(brand.Natura)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SearchURL == "" {
		c.SearchURL = c.BaseURL + DefaultSearchPath
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if len(c.RootSlugs) == 0 {
		c.RootSlugs = DefaultRootSlugs
	}
	if c.MinRootProducts <= 0 {
		c.MinRootProducts = DefaultMinRootProducts
	}
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories
	}
	if len(c.Profiles) == 0 {
		c.Profiles = DefaultProfiles(c.BaseURL)
	}
}
