package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher sits between a bus and its subscribers. Every handler it
// registers runs through the middleware chain and is retried on failure;
// an event that still fails lands in the dead letter queue instead of
// being returned to the bus.
//
// Dispatcher implements shared.EventSubscriber, so read models subscribe
// to it exactly as they would to the bus.
type Dispatcher struct {
	bus         shared.EventSubscriber
	retrier     *retry.Retrier
	timeout     time.Duration
	middlewares []Middleware
	deadLetterQ *DeadLetterQueue
	logger      *slog.Logger

	mu    sync.RWMutex
	names map[string]int

	handled atomic.Int64
	retried atomic.Int64
	failed  atomic.Int64
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// Bus is the underlying event source.
	Bus shared.EventSubscriber

	// MaxAttempts per event, including the first. Defaults to 3.
	MaxAttempts int

	// InitialBackoff between attempts. Defaults to 50ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff. Defaults to 1s.
	MaxBackoff time.Duration

	// Timeout of one handler attempt. Defaults to 5s.
	Timeout time.Duration

	// DeadLetterQueueSize bounds the queue; the oldest entries are dropped.
	DeadLetterQueueSize int

	Logger *slog.Logger
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig(bus shared.EventSubscriber) DispatcherConfig {
	return DispatcherConfig{
		Bus:                 bus,
		MaxAttempts:         3,
		InitialBackoff:      50 * time.Millisecond,
		MaxBackoff:          time.Second,
		Timeout:             5 * time.Second,
		DeadLetterQueueSize: 1000,
	}
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Bus == nil {
		return nil, errors.New("event bus is required")
	}

	def := DefaultDispatcherConfig(config.Bus)
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.DeadLetterQueueSize <= 0 {
		config.DeadLetterQueueSize = def.DeadLetterQueueSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	d := &Dispatcher{
		bus:         config.Bus,
		timeout:     config.Timeout,
		deadLetterQ: NewDeadLetterQueue(config.DeadLetterQueueSize),
		logger:      config.Logger.With("component", "dispatcher"),
		names:       make(map[string]int),
	}

	d.retrier = retry.New(
		retry.WithMaxAttempts(config.MaxAttempts),
		retry.WithBackoff(config.InitialBackoff, config.MaxBackoff, 2),
		retry.WithRetryIf(func(error) bool { return true }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			d.retried.Add(1)
			d.logger.Debug("retrying event handler", "attempt", attempt, "delay", delay, "error", err)
		}),
	)

	return d, nil
}

var _ shared.EventSubscriber = (*Dispatcher)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register subscribes a named handler for one event type.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	return d.bus.Subscribe(eventType, d.wrap(d.uniqueName(name), handler))
}

// RegisterAll subscribes a named handler for every event.
func (d *Dispatcher) RegisterAll(name string, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	return d.bus.SubscribeAll(d.wrap(d.uniqueName(name), handler))
}

// Subscribe implements shared.EventSubscriber.
func (d *Dispatcher) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return d.Register(eventType, string(eventType), handler)
}

// SubscribeAll implements shared.EventSubscriber.
func (d *Dispatcher) SubscribeAll(handler shared.EventHandler) error {
	return d.RegisterAll("all", handler)
}

func (d *Dispatcher) uniqueName(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.names[name]++
	if n := d.names[name]; n > 1 {
		return fmt.Sprintf("%s#%d", name, n)
	}
	return name
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use adds middleware. It applies to handlers registered afterwards;
// the first added runs outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// RecoveryMiddleware turns handler panics into errors.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic recovered",
						"event_type", event.EventType(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs failed handler attempts and their duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)

			if err != nil {
				logger.Warn("handler attempt failed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", time.Since(start),
					"error", err,
				)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

func (d *Dispatcher) wrap(name string, handler shared.EventHandler) shared.EventHandler {
	d.mu.RLock()
	h := handler
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		h = d.middlewares[i](h)
	}
	d.mu.RUnlock()

	return func(event shared.Event) error {
		err := d.retrier.Do(context.Background(), func(ctx context.Context) error {
			return d.attempt(h, event)
		})
		if err != nil {
			d.failed.Add(1)
			d.deadLetterQ.Add(DeadLetterEntry{
				Handler:  name,
				Event:    event,
				Err:      err,
				FailedAt: time.Now(),
				retry:    h,
			})
			d.logger.Error("event moved to dead letter queue",
				"handler", name,
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
			return nil
		}

		d.handled.Add(1)
		return nil
	}
}

// attempt runs one try, bounded by the handler timeout. A handler that
// overruns keeps running in its goroutine; its result is discarded.
func (d *Dispatcher) attempt(h shared.EventHandler, event shared.Event) error {
	done := make(chan error, 1)
	go func() { done <- h(event) }()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("handler timed out after %s", d.timeout)
	}
}

// Replay reruns every dead letter once and returns how many succeeded.
// Entries that fail again are put back.
func (d *Dispatcher) Replay(ctx context.Context) (int, error) {
	ok := 0
	for _, entry := range d.deadLetterQ.Drain() {
		if err := ctx.Err(); err != nil {
			d.deadLetterQ.Add(entry)
			continue
		}
		if err := d.attempt(entry.retry, entry.Event); err != nil {
			entry.Err = err
			entry.Attempts++
			entry.FailedAt = time.Now()
			d.deadLetterQ.Add(entry)
			continue
		}
		ok++
	}
	return ok, ctx.Err()
}

// DeadLetterQueue returns the queue of events that exhausted their retries.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// DispatcherStats is a snapshot of dispatcher counters.
type DispatcherStats struct {
	Handled     int64
	Retried     int64
	Failed      int64
	DeadLetters int
}

// Stats returns the counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Handled:     d.handled.Load(),
		Retried:     d.retried.Load(),
		Failed:      d.failed.Load(),
		DeadLetters: d.deadLetterQ.Size(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is an event a handler could not process.
type DeadLetterEntry struct {
	Handler  string
	Event    shared.Event
	Err      error
	Attempts int
	FailedAt time.Time

	retry shared.EventHandler
}

// DeadLetterQueue is a bounded FIFO of failed events.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
	dropped int64
}

// NewDeadLetterQueue creates a new DLQ.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry, dropping the oldest when full.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
		q.dropped++
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the queued entries, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetterEntry(nil), q.entries...)
}

// Drain removes and returns every entry.
func (q *DeadLetterQueue) Drain() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.entries
	q.entries = nil
	return out
}

// Size returns the number of queued entries.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dropped returns how many entries were evicted by the size bound.
func (q *DeadLetterQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
