// Package retry re-runs transient operations with exponential backoff and jitter.
// The ledger stores use it to replay transactions that lost a serialization race.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// permanent marks an error that must not be retried even if the classifier
// would accept it.
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent stops the retry loop and returns err unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanent
	return errors.As(err, &p)
}

// Policy describes how many times and how fast to retry.
type Policy struct {
	// MaxAttempts counts the first attempt too.
	MaxAttempts int

	// InitialDelay is the pause before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps any single pause.
	MaxDelay time.Duration

	// Multiplier grows the pause after each attempt.
	Multiplier float64

	// Jitter spreads each pause by +/- Jitter*delay.
	Jitter float64

	// ShouldRetry classifies errors. A nil classifier retries nothing.
	ShouldRetry func(error) bool

	// OnRetry is called before each pause.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Option adjusts a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MaxAttempts = n
		}
	}
}

// WithBackoff sets the delay curve.
func WithBackoff(initial, max time.Duration, multiplier float64) Option {
	return func(p *Policy) {
		if initial > 0 {
			p.InitialDelay = initial
		}
		if max > 0 {
			p.MaxDelay = max
		}
		if multiplier >= 1 {
			p.Multiplier = multiplier
		}
	}
}

// WithJitter sets the jitter factor in [0, 1].
func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1 {
			p.Jitter = j
		}
	}
}

// WithRetryIf sets the error classifier.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) { p.ShouldRetry = fn }
}

// WithOnRetry sets the retry hook.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// Retrier runs operations under a Policy.
type Retrier struct {
	policy Policy
}

// New builds a Retrier from defaults plus opts.
func New(opts ...Option) *Retrier {
	p := Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// Transactions returns the Retrier the stores use for serialization and
// deadlock failures: short pauses, small budget.
func Transactions(retryIf func(error) bool, opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(4),
		WithBackoff(10*time.Millisecond, 250*time.Millisecond, 2),
		WithJitter(0.2),
		WithRetryIf(retryIf),
	}
	return New(append(base, opts...)...)
}

// Do runs op until it succeeds, fails permanently, the classifier rejects the
// error, attempts run out or ctx is done. The last error is returned.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var p *permanent
		if errors.As(err, &p) {
			return p.err
		}

		last = err
		if r.policy.ShouldRetry == nil || !r.policy.ShouldRetry(err) {
			return err
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}

	return last
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if max := float64(r.policy.MaxDelay); d > max {
		d = max
	}
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
