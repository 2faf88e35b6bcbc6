package fetch

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/go-faster/errors"
)

// ErrBodyTooLarge is returned when a response body exceeds
// Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is returned by Text for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Status, redact(e.URL))
}

// Retryable reports whether status is worth retrying with another client
// profile: 403 and 429 (bot blocking, throttling) and every 5xx.
func Retryable(status int) bool {
	return status == 403 || status == 429 || status >= 500
}

// Canceled returns the cancellation cause when the caller's ctx is done, and
// nil otherwise. A request that failed only because of the internal
// per-request deadline is an ordinary upstream failure, not a cancellation.
func Canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "fetch canceled")
	}
	return nil
}

// IsCanceled reports whether err carries a context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Code returns a short machine-readable code for err, used in failure
// details: "http_<status>", "timeout", "network_error", "body_too_large" or
// "fetch_failed".
func Code(err error) string {
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &statusErr):
		return StatusCode(statusErr.Status)
	case errors.Is(err, ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "network_error"
	default:
		return "fetch_failed"
	}
}

// StatusCode formats an HTTP status as a failure code.
func StatusCode(status int) string {
	return "http_" + strconv.Itoa(status)
}
