package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Async
// =============================================================================

// ErrEventDropped is returned when the queue is full or closed.
var ErrEventDropped = errors.New("event dropped")

// DefaultQueueSize is the queue capacity used when none is given.
const DefaultQueueSize = 256

// DefaultDeliveryTimeout bounds each delivery made by the worker.
const DefaultDeliveryTimeout = 10 * time.Second

// Async decouples event producers from a slow sink. Events are queued in a
// bounded buffer and delivered in order by one background worker. When the
// buffer is full the event is dropped and logged; Notify never blocks.
type Async struct {
	next    Notifier
	queue   chan Event
	logger  *slog.Logger
	timeout time.Duration
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

// NewAsync starts a worker delivering to next. A non-positive size uses
// DefaultQueueSize.
func NewAsync(next Notifier, size int, logger *slog.Logger) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		queue:   make(chan Event, size),
		logger:  logger,
		timeout: DefaultDeliveryTimeout,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify implements Notifier. It only enqueues.
func (a *Async) Notify(ctx context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.closed {
		select {
		case a.queue <- event:
			return nil
		default:
		}
	}

	a.dropped.Add(1)
	a.logger.Warn("dropping lifecycle event",
		"event_type", event.Type,
		"node", event.Node,
		"project_id", event.ProjectID,
	)
	return ErrEventDropped
}

// Dropped returns the number of events dropped so far.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Notify(ctx, event); err != nil {
			a.logger.Warn("event delivery failed",
				"event_type", event.Type,
				"error", err,
			)
		}
		cancel()
	}
}
