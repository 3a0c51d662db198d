// Package breaker implements a per-site circuit breaker guarding
// WordPress REST calls from hammering an upstream that is already
// failing.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/docdyhr/mcp-wordpress/internal/clock"
)

// State is the circuit breaker's current state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned when the breaker is open and fails fast.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when too many probes are in flight in half-open.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config configures breaker behavior.
type Config struct {
	MaxFailures         uint32        // consecutive failures before opening
	Timeout             time.Duration // how long to stay open before probing
	MaxRequestsHalfOpen uint32        // concurrent probes allowed in half-open
}

// DefaultConfig returns the default breaker tuning for WordPress REST calls.
func DefaultConfig() Config {
	return Config{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

// Breaker is a single circuit breaker instance, one per site.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         uint32
	successes        uint32
	requestsHalfOpen uint32
	lastChange       time.Time
	config           Config
	clock            clock.Clock
}

// New creates a breaker using the given clock for its timeout window.
func New(config Config, clk clock.Clock) *Breaker {
	return &Breaker{
		state:      StateClosed,
		lastChange: clk.Now(),
		config:     config,
		clock:      clk,
	}
}

// Call executes fn if the breaker allows it, then records the outcome.
func (b *Breaker) Call(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}
	err := fn()
	b.afterCall(err)
	return err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock.Now().Sub(b.lastChange) > b.config.Timeout {
			b.setState(StateHalfOpen)
			b.requestsHalfOpen++
			return nil
		}
		return ErrOpen
	case StateHalfOpen:
		if b.requestsHalfOpen >= b.config.MaxRequestsHalfOpen {
			return ErrTooManyRequests
		}
		b.requestsHalfOpen++
		return nil
	default:
		return ErrOpen
	}
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onFailure() {
	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.config.MaxFailures {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

func (b *Breaker) onSuccess() {
	b.successes++
	switch b.state {
	case StateHalfOpen:
		b.setState(StateClosed)
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}
	b.state = newState
	b.lastChange = b.clock.Now()
	switch newState {
	case StateClosed, StateHalfOpen:
		b.failures = 0
		b.successes = 0
		b.requestsHalfOpen = 0
	case StateOpen:
		b.requestsHalfOpen = 0
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed. Used in tests and admin tooling.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.requestsHalfOpen = 0
	b.lastChange = b.clock.Now()
}

// Registry lazily creates and retains one Breaker per site.
type Registry struct {
	mu       sync.Mutex
	config   Config
	clock    clock.Clock
	breakers map[string]*Breaker
}

// NewRegistry creates a breaker registry sharing one config and clock.
func NewRegistry(config Config, clk clock.Clock) *Registry {
	return &Registry{
		config:   config,
		clock:    clk,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker for siteID, creating it on first use.
func (r *Registry) For(siteID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[siteID]
	if !ok {
		b = New(r.config, r.clock)
		r.breakers[siteID] = b
	}
	return b
}
