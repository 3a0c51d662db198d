package wpcache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdyhr/mcp-wordpress/internal/clock"
	"github.com/docdyhr/mcp-wordpress/internal/operations"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

func testOp(class operations.CacheClass) operations.Operation {
	return operations.Operation{Name: "posts.get", Method: operations.MethodGET, CacheClass: class}
}

func TestWrapperGetMissThenHit(t *testing.T) {
	clk := clock.NewFake(time.Now())
	w := NewWrapper(NewStore(100, clk), clk)
	op := testOp(operations.CacheMedium)

	var calls int32
	load := func(ctx context.Context, v Validators) (FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		return FetchResult{Value: []byte(`{"id":1}`)}, nil
	}

	v1, hit1, err := w.Get(context.Background(), "s1", op, map[string]interface{}{"id": 1}, load)
	require.NoError(t, err)
	assert.False(t, hit1)
	assert.Equal(t, []byte(`{"id":1}`), v1)

	v2, hit2, err := w.Get(context.Background(), "s1", op, map[string]interface{}{"id": 1}, load)
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, []byte(`{"id":1}`), v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWrapperRevalidatesStaleEntryOn304(t *testing.T) {
	clk := clock.NewFake(time.Now())
	w := NewWrapper(NewStore(100, clk), clk)
	op := testOp(operations.CacheShort) // 60s TTL

	var calls int32
	load := func(ctx context.Context, v Validators) (FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		if v.ETag == `"v1"` {
			return FetchResult{NotModified: true}, nil
		}
		return FetchResult{Value: []byte(`{"id":1}`), ETag: `"v1"`}, nil
	}

	_, hit1, err := w.Get(context.Background(), "s1", op, map[string]interface{}{"id": 1}, load)
	require.NoError(t, err)
	assert.False(t, hit1)

	clk.Advance(61 * time.Second) // expired, but within the stale grace window

	v2, hit2, err := w.Get(context.Background(), "s1", op, map[string]interface{}{"id": 1}, load)
	require.NoError(t, err)
	assert.True(t, hit2, "expected a 304 revalidation to be reported as served from cache")
	assert.Equal(t, []byte(`{"id":1}`), v2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWrapperBypassesStoreForCacheNone(t *testing.T) {
	clk := clock.NewFake(time.Now())
	w := NewWrapper(NewStore(100, clk), clk)
	op := testOp(operations.CacheNone)

	var calls int32
	load := func(ctx context.Context, v Validators) (FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		return FetchResult{Value: []byte(`{}`)}, nil
	}

	_, hit, err := w.Get(context.Background(), "s1", op, nil, load)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = w.Get(context.Background(), "s1", op, nil, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWrapperCachesNegativeResultOn404(t *testing.T) {
	clk := clock.NewFake(time.Now())
	w := NewWrapper(NewStore(100, clk), clk)
	op := testOp(operations.CacheShort)

	var calls int32
	load := func(ctx context.Context, v Validators) (FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		return FetchResult{NotFound: true}, nil
	}

	_, _, err := w.Get(context.Background(), "s1", op, map[string]interface{}{"id": 404}, load)
	require.Error(t, err)
	assert.True(t, wperrors.Is(err, wperrors.KindUpstreamClient))

	_, hit, err := w.Get(context.Background(), "s1", op, map[string]interface{}{"id": 404}, load)
	require.Error(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWrapperInvalidateKeyRemovesEntry(t *testing.T) {
	clk := clock.NewFake(time.Now())
	w := NewWrapper(NewStore(100, clk), clk)
	op := testOp(operations.CacheMedium)

	_, _, err := w.Get(context.Background(), "s1", op, nil, func(ctx context.Context, v Validators) (FetchResult, error) {
		return FetchResult{Value: []byte(`{}`)}, nil
	})
	require.NoError(t, err)

	key := Key("s1", op.Name, nil)
	assert.True(t, w.InvalidateKey(key))
	assert.False(t, w.InvalidateKey(key))
}
