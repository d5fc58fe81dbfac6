package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests to a single target host. The KYC crawl
// budget is small and fixed (one host, at most 20 pages, 10s total), so a
// single token-bucket is sufficient — no adaptive/circuit-breaking behavior
// is needed here.
type Limiter struct {
	lim    *rate.Limiter
	clock  Clock
	domain string
}

// New returns a Limiter allowing ratePerSec requests/sec with the given
// burst, for the given (normalized) domain.
func New(domain string, ratePerSec float64, burst int) (*Limiter, error) {
	d, err := normalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		lim:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		clock:  realClock{},
		domain: d,
	}, nil
}

// Wait blocks until a request may proceed, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Allow reports whether a request may proceed immediately, consuming a
// token if so.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Domain returns the normalized domain this limiter paces.
func (l *Limiter) Domain() string {
	return l.domain
}
