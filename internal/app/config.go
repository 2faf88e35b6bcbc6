package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/iagopasso/revendis-sub001/internal/bff"
	"github.com/iagopasso/revendis-sub001/internal/consultant"
	"github.com/iagopasso/revendis-sub001/internal/magazine"
)

// Platform environment variables mapped onto Config.
const (
	EnvEnableUpstream = "CATALOG_ENABLE_UPSTREAM"
	envPort           = "PORT"
	envDatabaseURL    = "DATABASE_URL"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr string `default:"0.0.0.0:8080" usage:"API server listen address"`
	// DatabaseURL enables the snapshot routes and the postgres readiness
	// check. The API works without it.
	DatabaseURL string `usage:"PostgreSQL connection URL (CATALOG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Upstream    UpstreamConfig
	Natura      NaturaConfig
	Magazine    MagazineConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// UpstreamConfig controls storefront fetching.
type UpstreamConfig struct {
	Enabled        bool          `default:"true" usage:"Fetch live catalogs (CATALOG_ENABLE_UPSTREAM)"`
	SampleFallback bool          `default:"true" usage:"Serve sample products when a brand yields nothing" flag:"sample-fallback"`
	Timeout        time.Duration `default:"20s" usage:"Per-request upstream timeout"`
	UserAgent      string        `default:"" usage:"User-Agent sent upstream" flag:"user-agent"`
	RatePerHost    float64       `default:"0" usage:"Requests per second per upstream host, 0 disables pacing" flag:"rate-per-host"`
	Burst          int           `default:"4" usage:"Burst for per-host pacing"`
	Concurrency    int           `default:"6" usage:"Brands fetched at once by multi-brand requests"`
}

// NaturaConfig configures the Natura backend and consultant login.
type NaturaConfig struct {
	APIKey string `usage:"Natura backend API key" flag:"natura-api-key"`
	Tenant string `usage:"Natura backend tenant" flag:"natura-tenant"`
	// RootSlugs are tried before category crawling; a root page with at
	// least MinRootProducts products is used as the whole catalog.
	RootSlugs       []string `usage:"Catalog-wide category ids tried first" flag:"natura-root-slugs"`
	MinRootProducts int      `usage:"Products a root page needs to skip category crawling" flag:"natura-min-root-products"`

	LoginURL      string   `usage:"Consultant login endpoint" flag:"natura-login-url"`
	LoginField    string   `default:"login" usage:"Login field name in the login request" flag:"natura-login-field"`
	PasswordField string   `default:"password" usage:"Password field name in the login request" flag:"natura-password-field"`
	Encoding      string   `default:"form" usage:"Login request encoding: form or json" flag:"natura-login-encoding"`
	TokenFields   []string `usage:"Login response fields searched for a bearer token" flag:"natura-token-fields"`
	// Login and Password default the consultant credentials
	// (NATURA_CONSULTANT_LOGIN, NATURA_CONSULTANT_PASSWORD).
	Login    string `usage:"Consultant login" flag:"natura-login"`
	Password string `usage:"Consultant password" flag:"natura-password"`
}

// Credentials returns the configured consultant credentials.
func (c NaturaConfig) Credentials() consultant.Credentials {
	return consultant.Credentials{Login: c.Login, Password: c.Password}
}

// Backend returns the storefront backend configuration.
func (c NaturaConfig) Backend() bff.Config {
	return bff.Config{
		APIKey:          c.APIKey,
		Tenant:          c.Tenant,
		RootSlugs:       c.RootSlugs,
		MinRootProducts: c.MinRootProducts,
	}
}

// Consultant returns the login flow configuration.
func (c NaturaConfig) Consultant() consultant.Config {
	return consultant.Config{
		LoginURL:      c.LoginURL,
		LoginField:    c.LoginField,
		PasswordField: c.PasswordField,
		Encoding:      consultant.Encoding(c.Encoding),
		TokenFields:   c.TokenFields,
	}
}

// MagazineConfig configures the PDF extractor.
type MagazineConfig struct {
	PythonBin  string        `usage:"Python interpreter (PYTHON_BIN)" flag:"python-bin"`
	ScriptPath string        `default:"scripts/extract_natura_magazine.py" usage:"Magazine extractor script" flag:"magazine-script"`
	Timeout    time.Duration `default:"180s" usage:"Extractor timeout" flag:"magazine-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"30s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/catalog/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	ac.EnvPrefix = "CATALOG"
	// CATALOG_ENABLE_UPSTREAM shares the prefix but is read by
	// applyPlatformDefaults.
	ac.AllowUnknownEnvs = true
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	loader := aconfig.LoaderFor(&cfg, ac)
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyPlatformDefaults(os.Getenv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the platform-wide variable names (PORT,
// DATABASE_URL, NATURA_CONSULTANT_*, PYTHON_BIN, CATALOG_ENABLE_UPSTREAM)
// onto the configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv(envDatabaseURL)
	}
	if port := getenv(envPort); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if raw := strings.TrimSpace(getenv(EnvEnableUpstream)); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.Wrapf(err, "parse %s", EnvEnableUpstream)
		}
		c.Upstream.Enabled = enabled
	}
	if c.Natura.Login == "" {
		c.Natura.Login = getenv(consultant.EnvLogin)
	}
	if c.Natura.Password == "" {
		c.Natura.Password = getenv(consultant.EnvPassword)
	}
	if c.Magazine.PythonBin == "" {
		c.Magazine.PythonBin = getenv(magazine.EnvPythonBin)
	}
	switch consultant.Encoding(c.Natura.Encoding) {
	case "", consultant.EncodingForm, consultant.EncodingJSON:
	default:
		return errors.Errorf("unknown login encoding %q", c.Natura.Encoding)
	}
	return nil
}
