// Package ratelimit gates outbound WordPress REST calls with a
// per-site token bucket layered under one process-wide shared bucket,
// so a single noisy site cannot starve the others' fair share and the
// process as a whole never exceeds its configured ceiling.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// Config configures one token bucket: steady-state rate and burst size.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultSiteConfig is the default per-site outbound rate: 600 tokens
// per minute with a burst of 10, gentle enough to avoid tripping a
// host's own WAF rate limiting.
func DefaultSiteConfig() Config {
	return Config{RequestsPerSecond: 10, Burst: 10}
}

// DefaultProcessConfig is the default process-wide ceiling across all sites.
func DefaultProcessConfig() Config {
	return Config{RequestsPerSecond: 20, Burst: 40}
}

// Limiter gates per-site calls under a shared process-wide ceiling.
type Limiter struct {
	mu      sync.Mutex
	process *rate.Limiter
	perSite map[string]*rate.Limiter
	siteCfg Config
}

// New creates a Limiter with the given per-site and process-wide configs.
func New(siteCfg, processCfg Config) *Limiter {
	return &Limiter{
		process: rate.NewLimiter(rate.Limit(processCfg.RequestsPerSecond), processCfg.Burst),
		perSite: make(map[string]*rate.Limiter),
		siteCfg: siteCfg,
	}
}

func (l *Limiter) siteLimiter(siteID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.perSite[siteID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.siteCfg.RequestsPerSecond), l.siteCfg.Burst)
		l.perSite[siteID] = lim
	}
	return lim
}

// Acquire blocks until a token is available from both the site's bucket
// and the shared process bucket, or until ctx is done. A cancelled or
// expired ctx surfaces as a *wperrors.WPError with Kind KindCancelled or
// KindRateLimited respectively.
func (l *Limiter) Acquire(ctx context.Context, siteID string) error {
	if err := l.process.Wait(ctx); err != nil {
		return classify(err)
	}
	if err := l.siteLimiter(siteID).Wait(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	if err == context.Canceled {
		return wperrors.Wrap(wperrors.KindCancelled, "rate limit wait cancelled", err)
	}
	return wperrors.Wrap(wperrors.KindRateLimited, "rate limit wait exceeded deadline", err)
}
