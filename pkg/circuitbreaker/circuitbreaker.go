// Package circuitbreaker implements the Circuit Breaker pattern.
// The ledger puts one in front of each optional read model: while a breaker
// is open, reads skip the read model and go straight to the store.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/alem-rewards/pkg/timeutil"
)

// State is the breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until the cool-down passes.
	StateOpen
	// StateHalfOpen lets a bounded number of probes through.
	StateHalfOpen
)

// String returns the string representation of the state.
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
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when every half-open probe is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err is the breaker refusing the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

type options struct {
	failureThreshold int
	successThreshold int
	openFor          time.Duration
	probes           int
	clock            timeutil.Clock
	onStateChange    func(name string, from, to State)
	isFailure        func(error) bool
}

// Option configures a CircuitBreaker.
type Option func(*options)

// WithFailureThreshold sets how many consecutive failures open the circuit.
// Default: 5.
func WithFailureThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close the circuit.
// Default: 2.
func WithSuccessThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.successThreshold = n
		}
	}
}

// WithTimeout sets how long the circuit stays open. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.openFor = d
		}
	}
}

// WithMaxHalfOpenRequests bounds concurrent probes. Default: 1.
func WithMaxHalfOpenRequests(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.probes = n
		}
	}
}

// WithClock replaces the system clock.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithOnStateChange is called, under the breaker's lock, on every transition.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(o *options) { o.onStateChange = fn }
}

// WithIsFailure decides whether an error counts against the circuit.
// By default every non-nil error does.
func WithIsFailure(fn func(error) bool) Option {
	return func(o *options) { o.isFailure = fn }
}

// ══════════════════════════════════════════════════════════════════════════════
// CIRCUIT BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// Counts are the breaker's counters. Consecutive counts reset on every
// state change.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards calls to one dependency. Safe for concurrent use.
type CircuitBreaker struct {
	name string
	opts options

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	inflight int
}

// New creates a closed CircuitBreaker.
func New(name string, opts ...Option) *CircuitBreaker {
	o := options{
		failureThreshold: 5,
		successThreshold: 2,
		openFor:          30 * time.Second,
		probes:           1,
		clock:            timeutil.SystemClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &CircuitBreaker{name: name, opts: o}
}

// ReadModelBreaker returns a breaker for a cache in front of the ledger
// store. It trips quickly: the store can always serve the read.
func ReadModelBreaker(name string, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		name,
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(15*time.Second),
		WithOnStateChange(onStateChange),
	)
}

// Execute runs fn unless the circuit rejects the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.record(probe, err)
	return err
}

// ExecuteWithFallback runs fallback instead of fn while the circuit rejects calls.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if IsRejected(err) {
		return fallback(err)
	}
	return err
}

// admit reports whether the call is a half-open probe.
func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.opts.clock.Now().Sub(cb.openedAt) < cb.opts.openFor {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateClosed {
		return false, nil
	}

	if cb.inflight >= cb.opts.probes {
		return false, ErrTooManyRequests
	}
	cb.inflight++
	return true, nil
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.state == StateHalfOpen {
		cb.inflight--
	}
	cb.counts.Requests++

	failed := err != nil
	if failed && cb.opts.isFailure != nil {
		failed = cb.opts.isFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.opts.successThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch {
	case cb.state == StateHalfOpen:
		cb.transition(StateOpen)
	case cb.state == StateClosed && cb.counts.ConsecutiveFailures >= cb.opts.failureThreshold:
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.inflight = 0
	if to == StateOpen {
		cb.openedAt = cb.opts.clock.Now()
	}

	if cb.opts.onStateChange != nil {
		cb.opts.onStateChange(cb.name, from, to)
	}
}

// State returns the current state. An open circuit whose cool-down has
// passed still reports open until the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the circuit and clears the counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.counts = Counts{}
	cb.inflight = 0
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// IsClosed returns true if the circuit is closed.
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.State() == StateClosed
}
