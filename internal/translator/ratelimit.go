package translator

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited holds every Translate call until the limiter admits it.
type RateLimited struct {
	Client
	limiter *rate.Limiter
}

// NewRateLimited wraps c so it makes at most rps calls per second. A
// non-positive rps returns c unchanged.
func NewRateLimited(c Client, rps float64, burst int) Client {
	if rps <= 0 {
		return c
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Client: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Translate(ctx context.Context, texts []string, d Directives) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Client.Translate(ctx, texts, d)
}
