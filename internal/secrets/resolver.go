// Package secrets resolves a credential-bundle secret reference
// ("secretsmanager://...", "vault://...", "gcpsm://...", or a plain
// literal) into the plaintext value the config loader needs at
// startup. It never writes secrets back; WordPress REST operations
// never need that capability.
package secrets

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// Resolver turns one secret reference into its plaintext value.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// MapResolver resolves refs from an in-memory map. The tests register it
// under a "mock://" scheme; cmd/mcpserver does not register it.
type MapResolver map[string]string

func (m MapResolver) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := m[ref]
	if !ok {
		return "", wperrors.New(wperrors.KindConfigInvalid, "no mock secret registered for "+ref)
	}
	return v, nil
}

// Registry dispatches a ref to the backend named by its URI scheme,
// treating a ref with no "scheme://" prefix as a plain literal. A ref
// whose scheme has no registered backend is an error.
type Registry struct {
	backends map[string]Resolver
	logger   *zap.Logger
}

// NewRegistry builds a Registry over the given scheme -> Resolver map.
func NewRegistry(backends map[string]Resolver, logger *zap.Logger) *Registry {
	return &Registry{backends: backends, logger: logger}
}

// Resolve dispatches ref by its "scheme://" prefix. A ref with no "://"
// is returned unchanged as a literal value; a scheme with no registered
// backend yields a KindConfigInvalid error.
func (r *Registry) Resolve(ctx context.Context, ref string) (string, error) {
	scheme, rest, ok := splitScheme(ref)
	if !ok {
		return ref, nil
	}

	backend, ok := r.backends[scheme]
	if !ok {
		return "", wperrors.New(wperrors.KindConfigInvalid, "no secret backend registered for scheme "+scheme)
	}

	r.logger.Debug("resolving secret reference", zap.String("scheme", scheme))
	return backend.Resolve(ctx, rest)
}

func splitScheme(ref string) (scheme, rest string, ok bool) {
	idx := strings.Index(ref, "://")
	if idx < 0 {
		return "", ref, false
	}
	return ref[:idx], ref[idx+3:], true
}

// cachedResolver wraps a Resolver with a short TTL cache so repeated
// resolution of the same ref (e.g. across several sites sharing one
// vault path) does not re-hit the backend on every config reload.
type cachedResolver struct {
	inner Resolver
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// WithCache wraps inner with an in-memory TTL cache.
func WithCache(inner Resolver, ttl time.Duration) Resolver {
	return &cachedResolver{inner: inner, ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *cachedResolver) Resolve(ctx context.Context, ref string) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[ref]; ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	value, err := c.inner.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[ref] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return value, nil
}
