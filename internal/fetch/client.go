// Package fetch implements the timeout-bounded HTTP primitives every catalog
// strategy is built on.
//
// Each call derives its own deadline from the caller's context, so the
// internal timeout and external cancellation race naturally: whichever fires
// first aborts the in-flight request. Callers tell the two apart with
// Canceled.
package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
)

// Defaults.
const (
	DefaultTimeout      = 8 * time.Second
	MinTimeout          = time.Second
	DefaultMaxBodyBytes = 10 << 20
	DefaultUserAgent    = "Mozilla/5.0 (compatible; RevendisCatalogBot/1.0)"
	DefaultLanguage     = "pt-BR,pt;q=0.9,en;q=0.8"

	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptJSON = "application/json,text/plain,*/*"
)

// Config configures a Client.
type Config struct {
	// Timeout bounds every request. Values below MinTimeout are raised to it.
	Timeout time.Duration
	// UserAgent and AcceptLanguage are sent unless a request overrides them.
	UserAgent      string
	AcceptLanguage string
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
	// RatePerHost limits requests per second to a single host. Zero disables
	// pacing.
	RatePerHost float64
	Burst       int
}

func (c *Config) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	c.Timeout = ClampTimeout(c.Timeout)
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = DefaultLanguage
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// ClampTimeout raises d to MinTimeout.
func ClampTimeout(d time.Duration) time.Duration {
	if d < MinTimeout {
		return MinTimeout
	}
	return d
}

// Client performs upstream requests.
type Client struct {
	cfg        Config
	http       *http.Client
	noRedirect *http.Client
	pacer      *hostPacer
}

// ClientOption customizes a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	transport      http.RoundTripper
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTransport sets the base round tripper (defaults to
// http.DefaultTransport). It is still wrapped with otelhttp.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.transport = rt }
}

// WithTelemetry sets the providers used to instrument outgoing requests.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) ClientOption {
	return func(o *clientOptions) {
		o.tracerProvider = tp
		o.meterProvider = mp
	}
}

// New creates a Client.
func New(cfg Config, opts ...ClientOption) *Client {
	cfg.setDefaults()

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	base := o.transport
	if base == nil {
		base = http.DefaultTransport
	}

	var otelOpts []otelhttp.Option
	if o.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracerProvider))
	}
	if o.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(o.meterProvider))
	}
	transport := otelhttp.NewTransport(base, otelOpts...)

	return &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
		noRedirect: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		pacer: newHostPacer(cfg.RatePerHost, cfg.Burst),
	}
}

// Timeout returns the effective default request timeout.
func (c *Client) Timeout() time.Duration { return c.cfg.Timeout }

// Request is a generic upstream request.
type Request struct {
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
	ContentType string
	// NoRedirect returns 3xx responses as-is instead of following them.
	NoRedirect bool
}

// Response is a fully read upstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Do sends req and reads the whole (capped) body. Non-2xx statuses are not
// errors at this level.
func (c *Client) Do(ctx context.Context, req Request, opts ...Option) (*Response, error) {
	o := c.options(opts)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := c.pacer.wait(ctx, req.URL); err != nil {
		return nil, errors.Wrap(err, "wait for rate limit")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	httpReq.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	copyHeader(httpReq.Header, req.Header)
	copyHeader(httpReq.Header, o.header)

	hc := c.http
	if req.NoRedirect {
		hc = c.noRedirect
	}

	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, redact(req.URL))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read body of %s", redact(req.URL))
	}
	if int64(len(data)) > c.cfg.MaxBodyBytes {
		return nil, errors.Wrapf(ErrBodyTooLarge, "%s %s: over %d bytes", method, redact(req.URL), c.cfg.MaxBodyBytes)
	}

	zctx.From(ctx).Debug("Upstream request",
		zap.String("method", method),
		zap.String("url", redact(req.URL)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}

// Text fetches url as text. Non-2xx statuses yield a *StatusError.
func (c *Client) Text(ctx context.Context, url string, opts ...Option) (string, error) {
	resp, err := c.Do(ctx, Request{
		URL:    url,
		Header: http.Header{"Accept": []string{acceptHTML}},
	}, opts...)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &StatusError{URL: url, Status: resp.Status}
	}
	return string(resp.Body), nil
}

// JSONResponse is the result of a JSON fetch.
type JSONResponse struct {
	OK     bool
	Status int
	// Body is the parsed payload, or null when the body was not valid JSON.
	Body jsonvalue.Value
	// Parsed reports whether Body came from a successful parse.
	Parsed bool
	Raw    []byte
}

// JSON fetches url and parses the body best-effort. It never fails because
// of the HTTP status; callers inspect Status to decide retry policy.
func (c *Client) JSON(ctx context.Context, url string, opts ...Option) (JSONResponse, error) {
	resp, err := c.Do(ctx, Request{
		URL:    url,
		Header: http.Header{"Accept": []string{acceptJSON}},
	}, opts...)
	if err != nil {
		return JSONResponse{}, err
	}

	out := JSONResponse{
		OK:     resp.OK(),
		Status: resp.Status,
		Raw:    resp.Body,
	}
	if v, err := jsonvalue.Parse(resp.Body); err == nil {
		out.Body = v
		out.Parsed = true
	}
	return out, nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		dst.Del(k)
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// redact drops the query string, which may carry API keys or credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
