package resilience

import (
	"context"
	"testing"
	"time"
)

func TestDefaultTimeoutConfig(t *testing.T) {
	config := DefaultTimeoutConfig()

	if config.ToolCall <= config.RouterExecute {
		t.Errorf("ToolCall (%v) must be > RouterExecute (%v)", config.ToolCall, config.RouterExecute)
	}
	if config.RouterExecute <= config.UpstreamCall {
		t.Errorf("RouterExecute (%v) must be > UpstreamCall (%v)", config.RouterExecute, config.UpstreamCall)
	}
	if config.UpstreamCall <= config.SingleRetry {
		t.Errorf("UpstreamCall (%v) must be > SingleRetry (%v)", config.UpstreamCall, config.SingleRetry)
	}

	if config.ToolCall != 60*time.Second {
		t.Errorf("expected ToolCall = 60s, got %v", config.ToolCall)
	}
	if config.RouterExecute != 50*time.Second {
		t.Errorf("expected RouterExecute = 50s, got %v", config.RouterExecute)
	}
	if config.UpstreamCall != 30*time.Second {
		t.Errorf("expected UpstreamCall = 30s, got %v", config.UpstreamCall)
	}
}

func TestTestTimeoutConfig(t *testing.T) {
	config := TestTimeoutConfig()

	if config.ToolCall >= 10*time.Second {
		t.Errorf("test timeouts should be < 10s, got %v", config.ToolCall)
	}
	if config.ToolCall <= config.RouterExecute {
		t.Errorf("ToolCall (%v) must be > RouterExecute (%v)", config.ToolCall, config.RouterExecute)
	}
	if config.RouterExecute <= config.UpstreamCall {
		t.Errorf("RouterExecute (%v) must be > UpstreamCall (%v)", config.RouterExecute, config.UpstreamCall)
	}
}

func TestToolCallContext(t *testing.T) {
	config := DefaultTimeoutConfig()
	parent := context.Background()

	ctx, cancel := config.ToolCallContext(parent)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("ToolCallContext should have deadline")
	}

	expectedDeadline := time.Now().Add(config.ToolCall)
	diff := deadline.Sub(expectedDeadline).Abs()
	if diff > 100*time.Millisecond {
		t.Errorf("deadline diff too large: %v", diff)
	}
}

func TestRouterExecuteContext(t *testing.T) {
	config := DefaultTimeoutConfig()
	parent := context.Background()

	ctx, cancel := config.RouterExecuteContext(parent)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("RouterExecuteContext should have deadline")
	}

	expectedDeadline := time.Now().Add(config.RouterExecute)
	diff := deadline.Sub(expectedDeadline).Abs()
	if diff > 100*time.Millisecond {
		t.Errorf("deadline diff too large: %v", diff)
	}
}

func TestTimeoutHierarchyPreservation(t *testing.T) {
	config := DefaultTimeoutConfig()

	parent, parentCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer parentCancel()

	child, childCancel := config.ToolCallContext(parent)
	defer childCancel()

	parentDeadline, _ := parent.Deadline()
	childDeadline, _ := child.Deadline()

	if childDeadline.After(parentDeadline) {
		t.Errorf("child deadline (%v) should not be after parent deadline (%v)",
			childDeadline, parentDeadline)
	}
}

func TestContextCancellationPropagation(t *testing.T) {
	config := DefaultTimeoutConfig()
	parent := context.Background()

	ctx, cancel := config.RouterExecuteContext(parent)

	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("context should be cancelled immediately")
	}

	if ctx.Err() != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", ctx.Err())
	}
}

func TestContextTimeout(t *testing.T) {
	config := TestTimeoutConfig()
	parent := context.Background()

	config.RouterExecute = 100 * time.Millisecond
	ctx, cancel := config.RouterExecuteContext(parent)
	defer cancel()

	select {
	case <-ctx.Done():
		if ctx.Err() != context.DeadlineExceeded {
			t.Errorf("expected context.DeadlineExceeded, got %v", ctx.Err())
		}
	case <-time.After(200 * time.Millisecond):
		t.Error("context should time out after 100ms")
	}
}

func TestAllContextCreators(t *testing.T) {
	config := DefaultTimeoutConfig()
	parent := context.Background()

	tests := []struct {
		name    string
		creator func(context.Context) (context.Context, context.CancelFunc)
		timeout time.Duration
	}{
		{"ToolCallContext", config.ToolCallContext, config.ToolCall},
		{"RouterExecuteContext", config.RouterExecuteContext, config.RouterExecute},
		{"UpstreamCallContext", config.UpstreamCallContext, config.UpstreamCall},
		{"RetryAttemptContext", config.RetryAttemptContext, config.SingleRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.creator(parent)
			defer cancel()

			deadline, ok := ctx.Deadline()
			if !ok {
				t.Fatalf("%s should have deadline", tt.name)
			}

			expectedDeadline := time.Now().Add(tt.timeout)
			diff := deadline.Sub(expectedDeadline).Abs()
			if diff > 100*time.Millisecond {
				t.Errorf("%s: deadline diff too large: %v (expected ~%v)",
					tt.name, diff, tt.timeout)
			}
		})
	}
}

func TestTimeoutBudget(t *testing.T) {
	config := DefaultTimeoutConfig()

	// UpstreamCall (30s) bounds one attempt; SingleRetry (10s) bounds a
	// single retry within that attempt's remaining budget.
	if config.SingleRetry < 5*time.Second {
		t.Errorf("SingleRetry (%v) should be >= 5s for reliable WordPress calls", config.SingleRetry)
	}
	if config.UpstreamCall < config.SingleRetry {
		t.Errorf("UpstreamCall (%v) must be >= SingleRetry (%v)", config.UpstreamCall, config.SingleRetry)
	}

	minRouterBudget := config.UpstreamCall + 10*time.Second
	if config.RouterExecute < minRouterBudget {
		t.Errorf("RouterExecute timeout (%v) insufficient for typical operations (need >= %v)",
			config.RouterExecute, minRouterBudget)
	}

	if config.ToolCall <= config.RouterExecute {
		t.Errorf("ToolCall (%v) must be > RouterExecute (%v)", config.ToolCall, config.RouterExecute)
	}
}
