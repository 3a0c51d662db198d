package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the timeout hierarchy used across a tool call.
//
// Timeout hierarchy (outermost to innermost):
//
//	Tool call (60s)
//	  ↓
//	Router execute() (50s)
//	  ↓
//	Upstream WordPress request (30s)
//	  ↓
//	Single retry attempt (10s)
//
// Each inner layer completes before its parent times out, so a retry
// budget never outlives the call that spawned it.
type TimeoutConfig struct {
	ToolCall     time.Duration // overall stdio tool-call timeout (default: 60s)
	RouterExecute time.Duration // router.Execute timeout (default: 50s)
	UpstreamCall time.Duration // single WordPress REST call (default: 30s)
	UploadCall   time.Duration // media.upload total timeout (default: 120s)
	SingleRetry  time.Duration // one retry attempt (default: 10s)
}

// DefaultTimeoutConfig returns production timeout values.
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		ToolCall:      60 * time.Second,
		RouterExecute: 50 * time.Second,
		UpstreamCall:  30 * time.Second,
		UploadCall:    120 * time.Second,
		SingleRetry:   10 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for tests.
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		ToolCall:      5 * time.Second,
		RouterExecute: 4 * time.Second,
		UpstreamCall:  2 * time.Second,
		UploadCall:    3 * time.Second,
		SingleRetry:   1 * time.Second,
	}
}

// ToolCallContext creates a context bounding an entire stdio tool call.
func (tc *TimeoutConfig) ToolCallContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ToolCall)
}

// RouterExecuteContext creates a context bounding one router.Execute call.
func (tc *TimeoutConfig) RouterExecuteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.RouterExecute)
}

// UpstreamCallContext creates a context bounding a single WordPress REST call.
func (tc *TimeoutConfig) UpstreamCallContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.UpstreamCall)
}

// UploadCallContext creates a context bounding a media.upload call,
// which needs more headroom than an ordinary REST call to stream a
// file to the upstream site.
func (tc *TimeoutConfig) UploadCallContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.UploadCall)
}

// RetryAttemptContext creates a context bounding one retry attempt.
func (tc *TimeoutConfig) RetryAttemptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.SingleRetry)
}
