package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdyhr/mcp-wordpress/internal/clock"
)

func testConfig() Config {
	return Config{
		MaxFailures:         3,
		Timeout:             10 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	clk := clock.NewFake(time.Now())
	b := New(testConfig(), clk)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := b.Call(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerFailsFastWhileOpen(t *testing.T) {
	clk := clock.NewFake(time.Now())
	b := New(testConfig(), clk)
	for i := 0; i < 3; i++ {
		_ = b.Call(func() error { return errors.New("boom") })
	}
	require.Equal(t, StateOpen, b.State())

	err := b.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreakerHalfOpensAfterTimeoutAndCloses(t *testing.T) {
	clk := clock.NewFake(time.Now())
	b := New(testConfig(), clk)
	for i := 0; i < 3; i++ {
		_ = b.Call(func() error { return errors.New("boom") })
	}
	require.Equal(t, StateOpen, b.State())

	clk.Advance(11 * time.Second)

	err := b.Call(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	clk := clock.NewFake(time.Now())
	b := New(testConfig(), clk)
	for i := 0; i < 3; i++ {
		_ = b.Call(func() error { return errors.New("boom") })
	}
	clk.Advance(11 * time.Second)

	err := b.Call(func() error { return errors.New("still broken") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSuccessResetsFailureCountWhileClosed(t *testing.T) {
	clk := clock.NewFake(time.Now())
	b := New(testConfig(), clk)

	_ = b.Call(func() error { return errors.New("boom") })
	_ = b.Call(func() error { return errors.New("boom") })
	_ = b.Call(func() error { return nil })
	_ = b.Call(func() error { return errors.New("boom") })
	_ = b.Call(func() error { return errors.New("boom") })

	assert.Equal(t, StateClosed, b.State())
}

func TestRegistryReturnsDistinctBreakersPerSite(t *testing.T) {
	clk := clock.NewFake(time.Now())
	reg := NewRegistry(testConfig(), clk)

	a := reg.For("site-a")
	b := reg.For("site-b")
	aAgain := reg.For("site-a")

	assert.Same(t, a, aAgain)
	assert.NotSame(t, a, b)
}

func TestBreakerResetForcesClosed(t *testing.T) {
	clk := clock.NewFake(time.Now())
	b := New(testConfig(), clk)
	for i := 0; i < 3; i++ {
		_ = b.Call(func() error { return errors.New("boom") })
	}
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}
