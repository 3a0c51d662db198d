package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docdyhr/mcp-wordpress/internal/breaker"
	"github.com/docdyhr/mcp-wordpress/internal/clock"
	"github.com/docdyhr/mcp-wordpress/internal/invalidation"
	"github.com/docdyhr/mcp-wordpress/internal/ratelimit"
	"github.com/docdyhr/mcp-wordpress/internal/wpauth"
	"github.com/docdyhr/mcp-wordpress/internal/wpcache"
	"github.com/docdyhr/mcp-wordpress/internal/wpclient"
)

func newTestRouter(t *testing.T, baseURL string) (*Router, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Now())
	logger := zap.NewNop()

	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000}, ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000})
	breakers := breaker.NewRegistry(breaker.DefaultConfig(), clk)
	client := wpclient.New(http.DefaultClient, limiter, breakers, clk, logger)

	store := wpcache.NewStore(1000, clk)
	cacheWrapper := wpcache.NewWrapper(store, clk)
	invEngine := invalidation.NewEngine(store, logger)

	r := New(client, cacheWrapper, invEngine, clk, logger)
	auth := wpauth.NewManager("s1", baseURL, wpauth.NewAppPassword("admin", "app-pass"), http.DefaultClient, clk, logger)
	r.AddSite("s1", baseURL, auth)
	return r, clk
}

func TestExecuteUnknownSite(t *testing.T) {
	r, _ := newTestRouter(t, "http://example.invalid")
	_, err := r.Execute(context.Background(), "ghost", "posts.get", map[string]interface{}{"id": 1})
	require.Error(t, err)
}

func TestExecuteUnknownOperation(t *testing.T) {
	r, _ := newTestRouter(t, "http://example.invalid")
	_, err := r.Execute(context.Background(), "s1", "posts.teleport", nil)
	require.Error(t, err)
}

func TestExecuteCachesGetAcrossCalls(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":42,"title":"Hi"}`))
	}))
	defer srv.Close()

	r, _ := newTestRouter(t, srv.URL)

	res1, err := r.Execute(context.Background(), "s1", "posts.get", map[string]interface{}{"id": 42})
	require.NoError(t, err)
	assert.False(t, res1.Meta.FromCache)
	assert.JSONEq(t, `{"id":42,"title":"Hi"}`, string(res1.Body))

	res2, err := r.Execute(context.Background(), "s1", "posts.get", map[string]interface{}{"id": 42})
	require.NoError(t, err)
	assert.True(t, res2.Meta.FromCache)
	assert.JSONEq(t, string(res1.Body), string(res2.Body))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteRevalidatesStaleCacheEntryOn304(t *testing.T) {
	var getCalls int32
	const etag = `"v1"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&getCalls, 1)
		if req.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":42,"title":"Hi"}`))
	}))
	defer srv.Close()

	r, clk := newTestRouter(t, srv.URL)
	ctx := context.Background()

	res1, err := r.Execute(ctx, "s1", "posts.get", map[string]interface{}{"id": 42})
	require.NoError(t, err)
	assert.False(t, res1.Meta.FromCache)
	require.Equal(t, int32(1), atomic.LoadInt32(&getCalls))

	clk.Advance(16 * time.Minute) // past the 15m medium-class TTL, within the 5m stale grace

	res2, err := r.Execute(ctx, "s1", "posts.get", map[string]interface{}{"id": 42})
	require.NoError(t, err)
	assert.True(t, res2.Meta.FromCache, "expected a 304 revalidation to be reported as served from cache")
	assert.JSONEq(t, string(res1.Body), string(res2.Body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&getCalls), "expected exactly one conditional revalidation request")
}

func TestExecuteMutationInvalidatesCache(t *testing.T) {
	var getCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if req.Method == http.MethodGet {
			atomic.AddInt32(&getCalls, 1)
			w.Write([]byte(`{"id":42,"title":"Hi"}`))
			return
		}
		w.Write([]byte(`{"id":42,"title":"Hi2"}`))
	}))
	defer srv.Close()

	r, _ := newTestRouter(t, srv.URL)
	ctx := context.Background()

	_, err := r.Execute(ctx, "s1", "posts.get", map[string]interface{}{"id": 42})
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&getCalls))

	_, err = r.Execute(ctx, "s1", "posts.update", map[string]interface{}{"id": 42, "title": "Hi2"})
	require.NoError(t, err)

	_, err = r.Execute(ctx, "s1", "posts.get", map[string]interface{}{"id": 42})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&getCalls))
}

func TestExecuteSEOOperationDegradesWhenPluginAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"namespaces":["wp/v2"]}`))
	}))
	defer srv.Close()

	r, _ := newTestRouter(t, srv.URL)
	_, err := r.Execute(context.Background(), "s1", "seo.get_meta", map[string]interface{}{"url": "https://example.com/post"})
	require.Error(t, err)
}

func TestExecuteSEOOperationSucceedsWhenPluginPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if req.URL.Path == "/wp-json" {
			w.Write([]byte(`{"namespaces":["wp/v2","yoast/v1"]}`))
			return
		}
		w.Write([]byte(`{"head":"<title>Hi</title>"}`))
	}))
	defer srv.Close()

	r, _ := newTestRouter(t, srv.URL)
	res, err := r.Execute(context.Background(), "s1", "seo.get_meta", map[string]interface{}{"url": "https://example.com/post"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"head":"<title>Hi</title>"}`, string(res.Body))
}
