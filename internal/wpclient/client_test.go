package wpclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docdyhr/mcp-wordpress/internal/breaker"
	"github.com/docdyhr/mcp-wordpress/internal/operations"
	"github.com/docdyhr/mcp-wordpress/internal/ratelimit"
	"github.com/docdyhr/mcp-wordpress/internal/wpauth"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// instantClock is a non-blocking clock.Clock double: Sleep records the
// requested duration instead of actually waiting, so retry/backoff
// tests run instantly while still letting assertions inspect what the
// client asked to wait for.
type instantClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newInstantClock() *instantClock {
	return &instantClock{now: time.Unix(0, 0)}
}

func (c *instantClock) Now() time.Time { return c.now }

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *instantClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

func testLimiter() *ratelimit.Limiter {
	wide := ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000}
	return ratelimit.New(wide, wide)
}

func appPasswordSite(t *testing.T, baseURL string, hc *http.Client, clk *instantClock) *Site {
	t.Helper()
	bundle := wpauth.NewAppPassword("alice", "app-pass")
	auth := wpauth.NewManager("s1", baseURL, bundle, hc, clk, zap.NewNop())
	return &Site{ID: "s1", BaseURL: baseURL, Auth: auth}
}

func TestExecuteRetriesBoundedThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	clk := newInstantClock()
	client := New(srv.Client(), testLimiter(), breaker.NewRegistry(breaker.DefaultConfig(), clk), clk, zap.NewNop(), WithMaxRetries(2))
	site := appPasswordSite(t, srv.URL, srv.Client(), clk)
	op, ok := operations.Lookup("posts.get")
	require.True(t, ok)

	_, err := client.Execute(context.Background(), site, op, map[string]interface{}{"id": 1})
	require.Error(t, err)
	assert.True(t, wperrors.Is(err, wperrors.KindUpstreamUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "expected maxRetries+1 total attempts")
	assert.Len(t, clk.Sleeps(), 2, "expected one backoff sleep between each retry")
}

func TestExecuteHonorsRetryAfterOverComputedBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	clk := newInstantClock()
	client := New(srv.Client(), testLimiter(), breaker.NewRegistry(breaker.DefaultConfig(), clk), clk, zap.NewNop(), WithMaxRetries(2))
	site := appPasswordSite(t, srv.URL, srv.Client(), clk)
	op, ok := operations.Lookup("posts.get")
	require.True(t, ok)

	result, err := client.Execute(context.Background(), site, op, map[string]interface{}{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)

	sleeps := clk.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 5*time.Second, sleeps[0], "a 5s Retry-After should win over the sub-second computed backoff")
}

func TestExecuteMutationDoesNotRetryOnBare500(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	clk := newInstantClock()
	client := New(srv.Client(), testLimiter(), breaker.NewRegistry(breaker.DefaultConfig(), clk), clk, zap.NewNop(), WithMaxRetries(2))
	site := appPasswordSite(t, srv.URL, srv.Client(), clk)
	op, ok := operations.Lookup("posts.create")
	require.True(t, ok)

	_, err := client.Execute(context.Background(), site, op, map[string]interface{}{"title": "Hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a non-idempotent mutation must not be retried on a bare 500")
}

func TestExecuteMutationRetriesOnConnectionFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	clk := newInstantClock()
	client := New(srv.Client(), testLimiter(), breaker.NewRegistry(breaker.DefaultConfig(), clk), clk, zap.NewNop(), WithMaxRetries(2))
	site := appPasswordSite(t, srv.URL, srv.Client(), clk)
	op, ok := operations.Lookup("posts.create")
	require.True(t, ok)

	result, err := client.Execute(context.Background(), site, op, map[string]interface{}{"title": "Hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "a connection failure before any response arrived must still earn a mutation a retry")
}

func TestExecute401TriggersOneRefreshThenRetry(t *testing.T) {
	var apiCalls, loginCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/jwt-auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&loginCalls, 1)
		exp := time.Now().Add(time.Hour).Unix()
		_ = json.NewEncoder(w).Encode(map[string]string{"token": fakeJWT(exp)})
	})
	mux.HandleFunc("/wp-json/wp/v2/posts/1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&apiCalls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	clk := newInstantClock()
	client := New(srv.Client(), testLimiter(), breaker.NewRegistry(breaker.DefaultConfig(), clk), clk, zap.NewNop(), WithMaxRetries(2))

	bundle := wpauth.NewJWTLogin("bob", "secret")
	auth := wpauth.NewManager("s1", srv.URL, bundle, srv.Client(), clk, zap.NewNop())
	site := &Site{ID: "s1", BaseURL: srv.URL, Auth: auth}

	op, ok := operations.Lookup("posts.get")
	require.True(t, ok)

	result, err := client.Execute(context.Background(), site, op, map[string]interface{}{"id": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(result.Body))
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&apiCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&loginCalls), "expected the initial login plus exactly one refresh login")
}

func TestExecuteConditionalGetReturns304WithoutBody(t *testing.T) {
	const etag = `"v1"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	clk := newInstantClock()
	client := New(srv.Client(), testLimiter(), breaker.NewRegistry(breaker.DefaultConfig(), clk), clk, zap.NewNop())
	site := appPasswordSite(t, srv.URL, srv.Client(), clk)
	op, ok := operations.Lookup("posts.get")
	require.True(t, ok)

	result, err := client.ExecuteConditional(context.Background(), site, op, map[string]interface{}{"id": 1}, Validators{ETag: etag})
	require.NoError(t, err)
	assert.True(t, result.NotModified)
	assert.Empty(t, result.Body)
}

// TestExecuteConcurrentRateLimiterDoesNotDeadlock exercises Execute
// under real concurrent goroutines sharing one Client/Limiter, the
// shape a singleflight-deduplicated Router miss produces under load.
func TestExecuteConcurrentRateLimiterDoesNotDeadlock(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	clk := newInstantClock()
	client := New(srv.Client(), testLimiter(), breaker.NewRegistry(breaker.DefaultConfig(), clk), clk, zap.NewNop())
	site := appPasswordSite(t, srv.URL, srv.Client(), clk)
	op, ok := operations.Lookup("posts.get")
	require.True(t, ok)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := client.Execute(context.Background(), site, op, map[string]interface{}{"id": i})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "call %d", i)
	}
	assert.Equal(t, int32(n), atomic.LoadInt32(&calls))
}

// fakeJWT builds an unsigned-but-structurally-valid JWT carrying only
// an exp claim, sufficient for the Auth Manager's ParseUnverified path.
func fakeJWT(exp int64) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp)))
	return header + "." + claims + "."
}
