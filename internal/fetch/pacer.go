package fetch

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// hostPacer hands out one token bucket per upstream host. A nil pacer never
// waits.
type hostPacer struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newHostPacer(perSecond float64, burst int) *hostPacer {
	if perSecond <= 0 {
		return nil
	}
	return &hostPacer{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *hostPacer) wait(ctx context.Context, rawURL string) error {
	if p == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	p.mu.Lock()
	l, ok := p.limiters[u.Host]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[u.Host] = l
	}
	p.mu.Unlock()

	return l.Wait(ctx)
}
