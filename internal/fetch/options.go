package fetch

import (
	"net/http"
	"time"
)

// Option adjusts a single request.
type Option func(*requestOptions)

type requestOptions struct {
	timeout time.Duration
	header  http.Header
}

// WithTimeout overrides the client timeout for one request. The value is
// clamped to MinTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = ClampTimeout(d)
		}
	}
}

// WithHeader sets a request header, replacing defaults of the same name.
func WithHeader(key, value string) Option {
	return func(o *requestOptions) {
		if value == "" {
			return
		}
		o.header.Set(key, value)
	}
}

// WithHeaders sets several request headers.
func WithHeaders(h http.Header) Option {
	return func(o *requestOptions) {
		for k, vs := range h {
			o.header.Del(k)
			for _, v := range vs {
				o.header.Add(k, v)
			}
		}
	}
}

func (c *Client) options(opts []Option) requestOptions {
	o := requestOptions{
		timeout: c.cfg.Timeout,
		header:  make(http.Header),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
