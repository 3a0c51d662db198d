package wpcache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/docdyhr/mcp-wordpress/internal/clock"
	"github.com/docdyhr/mcp-wordpress/internal/operations"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
	"github.com/docdyhr/mcp-wordpress/pkg/observability"
)

// ttlByClass maps an operation's declared cache class to its TTL.
var ttlByClass = map[operations.CacheClass]time.Duration{
	operations.CacheShort:  60 * time.Second,
	operations.CacheMedium: 15 * time.Minute,
	operations.CacheLong:   60 * time.Minute,
	operations.CacheStatic: 24 * time.Hour,
}

// Validators carries the conditional-request headers a fresh fetch
// should send when revalidating a stale-but-not-yet-evicted entry.
type Validators struct {
	ETag         string
	LastModified string
}

// FetchResult is what a Loader returns from an actual upstream call.
type FetchResult struct {
	Value        []byte
	ETag         string
	LastModified string
	NotModified  bool // true if the upstream answered 304 against the sent Validators
	NotFound     bool // true if the upstream answered 404 (cached negatively)
}

// Loader performs the real upstream call. It receives the validators
// from any existing (possibly expired) cache entry so it can send a
// conditional request and receive a cheap 304 instead of a full body.
type Loader func(ctx context.Context, validators Validators) (FetchResult, error)

// negativeTTL bounds how long a 404 is cached, independent of the
// operation's normal cache class, per spec's negative-caching note.
const negativeTTL = 30 * time.Second

// Wrapper is the HTTP Cache Wrapper: it derives the cache key, serves
// hits straight from the Store, deduplicates concurrent misses for the
// same key with singleflight, and writes the loader's result back into
// the Store honoring the operation's cache class and negative-caching
// rules.
type Wrapper struct {
	store *Store
	sf    singleflight.Group
	clock clock.Clock

	inflight atomic.Int64
}

// NewWrapper builds a Wrapper over store.
func NewWrapper(store *Store, clk clock.Clock) *Wrapper {
	return &Wrapper{store: store, clock: clk}
}

// Get returns a cached or freshly loaded value for (siteID, op, params),
// along with whether the value was served from the Store rather than a
// fresh load. cacheClass of CacheNone bypasses the store entirely and
// always calls load (fromCache is always false in that case).
func (w *Wrapper) Get(ctx context.Context, siteID string, op operations.Operation, params map[string]interface{}, load Loader) ([]byte, bool, error) {
	if op.CacheClass == operations.CacheNone {
		result, err := load(ctx, Validators{})
		if err != nil {
			return nil, false, err
		}
		if result.NotFound {
			return nil, false, wperrors.FromUpstream(404, "")
		}
		return result.Value, false, nil
	}

	key := Key(siteID, op.Name, params)

	if entry, ok := w.store.Get(key); ok {
		observability.RecordCacheHit(siteID)
		if entry.Negative {
			return nil, true, wperrors.FromUpstream(404, "")
		}
		return entry.Value, true, nil
	}
	observability.RecordCacheMiss(siteID, "absent")

	// A stale-but-not-yet-evicted entry carries validators a conditional
	// request can use to earn a cheap 304 instead of a full refetch.
	var validators Validators
	if stale, ok := w.store.GetStale(key); ok && !stale.Negative {
		validators = Validators{ETag: stale.ETag, LastModified: stale.LastModified}
	}

	w.inflight.Add(1)
	observability.SetInflightSingleflight(siteID, float64(w.inflight.Load()))
	defer func() {
		w.inflight.Add(-1)
		observability.SetInflightSingleflight(siteID, float64(w.inflight.Load()))
	}()

	var revalidated bool
	v, err, _ := w.sf.Do(key, func() (interface{}, error) {
		result, err := load(ctx, validators)
		if err != nil {
			return nil, err
		}

		if result.NotModified {
			if stale, ok := w.store.GetStale(key); ok {
				ttl := ttlByClass[op.CacheClass]
				w.store.Refresh(key, ttl)
				observability.RecordCacheRevalidated(siteID)
				revalidated = true
				return stale.Value, nil
			}
		}

		if result.NotFound {
			w.store.Set(key, &Entry{Negative: true}, negativeTTL)
			return nil, wperrors.FromUpstream(404, "")
		}

		ttl := ttlByClass[op.CacheClass]
		w.store.Set(key, &Entry{
			Value:        result.Value,
			ETag:         result.ETag,
			LastModified: result.LastModified,
		}, ttl)
		return result.Value, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), revalidated, nil
}

// InvalidateKey removes one exact cache key, reporting whether it was
// present. The Invalidation Engine does not call it; it deletes by
// pattern through Store.DeletePattern.
func (w *Wrapper) InvalidateKey(key string) bool {
	return w.store.Delete(key)
}
