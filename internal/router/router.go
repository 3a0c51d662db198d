// Package router implements the Multi-Site Router: the single
// execute(siteId, opName, params, ctx) entrypoint the tool layer
// depends on. It owns one (Auth, Request, Cache) triple per configured
// site and fans every call out to the Cache Wrapper for cacheable
// reads or straight to the Request Manager for mutations, running the
// Invalidation Engine against a mutation's result before returning.
package router

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docdyhr/mcp-wordpress/internal/clock"
	"github.com/docdyhr/mcp-wordpress/internal/invalidation"
	"github.com/docdyhr/mcp-wordpress/internal/operations"
	"github.com/docdyhr/mcp-wordpress/internal/wpauth"
	"github.com/docdyhr/mcp-wordpress/internal/wpcache"
	"github.com/docdyhr/mcp-wordpress/internal/wpclient"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
	"github.com/docdyhr/mcp-wordpress/pkg/observability"
)

// Meta carries the per-call diagnostics the tool layer surfaces
// alongside a successful result.
type Meta struct {
	FromCache     bool
	StatusCode    int
	ElapsedMillis int64
	Retries       int
}

// Result is what Execute returns on success.
type Result struct {
	Body []byte
	Meta Meta
}

// siteEntry binds one configured site's request path together with
// the lazily-probed, cached detection of whether its SEO plugin
// namespace is available.
type siteEntry struct {
	site *wpclient.Site

	seoMu        sync.Mutex
	seoProbed    bool
	seoSupported bool
}

// Router owns every configured site and the shared Request Manager,
// Cache Wrapper, and Invalidation Engine they execute through.
type Router struct {
	mu    sync.RWMutex
	sites map[string]*siteEntry

	client       *wpclient.Client
	cache        *wpcache.Wrapper
	invalidation *invalidation.Engine
	clock        clock.Clock
	logger       *zap.Logger
}

// New builds a Router over the given shared collaborators. Sites are
// added afterward with AddSite.
func New(client *wpclient.Client, cache *wpcache.Wrapper, inv *invalidation.Engine, clk clock.Clock, logger *zap.Logger) *Router {
	return &Router{
		sites:        make(map[string]*siteEntry),
		client:       client,
		cache:        cache,
		invalidation: inv,
		clock:        clk,
		logger:       logger,
	}
}

// AddSite registers one site's base URL and Auth Manager. Call once
// per configured site at startup before Execute is used.
func (r *Router) AddSite(siteID, baseURL string, auth *wpauth.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[siteID] = &siteEntry{
		site: &wpclient.Site{ID: siteID, BaseURL: baseURL, Auth: auth},
	}
}

// Sites returns the ids of every registered site, for health probing
// and startup diagnostics.
func (r *Router) Sites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sites))
	for id := range r.sites {
		ids = append(ids, id)
	}
	return ids
}

func (r *Router) entry(siteID string) (*siteEntry, error) {
	r.mu.RLock()
	e, ok := r.sites[siteID]
	r.mu.RUnlock()
	if !ok {
		return nil, wperrors.New(wperrors.KindUnknownSite, "no site configured with id "+siteID)
	}
	return e, nil
}

// Execute is the core's single entrypoint: look up the site and
// operation, route through the Cache Wrapper for cacheable GETs or
// straight to the Request Manager for mutations, and run the
// Invalidation Engine after a successful mutation.
func (r *Router) Execute(ctx context.Context, siteID, opName string, params map[string]interface{}) (Result, error) {
	start := r.clock.Now()

	entry, err := r.entry(siteID)
	if err != nil {
		return Result{}, err
	}

	op, ok := operations.Lookup(opName)
	if !ok {
		return Result{}, wperrors.New(wperrors.KindUnknownOperation, "no operation named "+opName)
	}

	if op.RequiresSEOPlugin {
		if err := r.ensureSEOSupported(ctx, entry); err != nil {
			return Result{}, err
		}
	}

	var (
		body      []byte
		fromCache bool
		status    int
		attempts  int
	)

	if op.Method == operations.MethodGET && op.CacheClass != operations.CacheNone {
		body, fromCache, status, attempts, err = r.executeCached(ctx, siteID, entry, op, params)
	} else {
		body, status, attempts, err = r.executeDirect(ctx, entry, op, params)
	}
	if err != nil {
		observability.RecordRequest(siteID, opName, "error", r.clock.Now().Sub(start).Seconds())
		return Result{}, err
	}

	if op.InvalidationClass != operations.InvalidateNone {
		if _, invErr := r.invalidation.Invalidate(siteID, op.InvalidationClass); invErr != nil {
			r.logger.Warn("cache invalidation failed after mutation",
				zap.String("site_id", siteID), zap.String("op", opName), zap.Error(invErr))
		}
	}

	elapsed := r.clock.Now().Sub(start)
	observability.RecordRequest(siteID, opName, "ok", elapsed.Seconds())
	return Result{
		Body: body,
		Meta: Meta{
			FromCache:     fromCache,
			StatusCode:    status,
			ElapsedMillis: elapsed.Milliseconds(),
			Retries:       retriesFromAttempts(attempts),
		},
	}, nil
}

func retriesFromAttempts(attempts int) int {
	if attempts <= 1 {
		return 0
	}
	return attempts - 1
}

func (r *Router) executeCached(ctx context.Context, siteID string, entry *siteEntry, op operations.Operation, params map[string]interface{}) ([]byte, bool, int, int, error) {
	var status, attempts int

	loader := func(ctx context.Context, validators wpcache.Validators) (wpcache.FetchResult, error) {
		result, err := r.client.ExecuteConditional(ctx, entry.site, op, params, wpclient.Validators{
			ETag:         validators.ETag,
			LastModified: validators.LastModified,
		})
		if err != nil {
			var wpErr *wperrors.WPError
			if wperrors.As(err, &wpErr) && wpErr.HTTPStatus == 404 {
				return wpcache.FetchResult{NotFound: true}, nil
			}
			return wpcache.FetchResult{}, err
		}
		status = result.StatusCode
		attempts = result.Attempts
		return wpcache.FetchResult{
			Value:        result.Body,
			ETag:         result.ETag,
			LastModified: result.LastModified,
			NotModified:  result.NotModified,
		}, nil
	}

	body, fromCache, err := r.cache.Get(ctx, siteID, op, params, loader)
	if fromCache {
		status = 200
		attempts = 0
	}
	return body, fromCache, status, attempts, err
}

func (r *Router) executeDirect(ctx context.Context, entry *siteEntry, op operations.Operation, params map[string]interface{}) ([]byte, int, int, error) {
	result, err := r.client.Execute(ctx, entry.site, op, params)
	if err != nil {
		return nil, 0, 0, err
	}
	return result.Body, result.StatusCode, result.Attempts, nil
}

// ensureSEOSupported runs a one-time, best-effort GET /wp-json index
// probe per site, looking for the yoast/v1 namespace, and caches the
// result for the lifetime of the process. An op requiring the SEO
// plugin on a site where it is absent fails with KindFeatureUnsupported
// rather than attempting (and failing) the real call.
func (r *Router) ensureSEOSupported(ctx context.Context, entry *siteEntry) error {
	entry.seoMu.Lock()
	defer entry.seoMu.Unlock()

	if entry.seoProbed {
		if !entry.seoSupported {
			return wperrors.New(wperrors.KindFeatureUnsupported, "seo plugin namespace not detected on site "+entry.site.ID)
		}
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	supported := r.probeSEONamespace(probeCtx, entry)
	entry.seoProbed = true
	entry.seoSupported = supported

	if !supported {
		r.logger.Info("seo plugin namespace not detected, seo operations will be degraded", zap.String("site_id", entry.site.ID))
		return wperrors.New(wperrors.KindFeatureUnsupported, "seo plugin namespace not detected on site "+entry.site.ID)
	}
	return nil
}

func (r *Router) probeSEONamespace(ctx context.Context, entry *siteEntry) bool {
	probeOp := operations.Operation{
		Name:         "internal.wp_index_probe",
		Method:       operations.MethodGET,
		PathTemplate: "/wp-json",
		CacheClass:   operations.CacheNone,
	}
	result, err := r.client.Execute(ctx, entry.site, probeOp, nil)
	if err != nil {
		return false
	}
	return containsNamespace(result.Body, "yoast/v1")
}
