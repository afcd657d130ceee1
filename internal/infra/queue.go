package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Queue defaults: 30 calls per rolling second.
const (
	DefaultQueueLimit  = 30
	DefaultQueueWindow = time.Second
)

// ErrQueueClosed is returned when a task is submitted after Close.
var ErrQueueClosed = errors.New("infra: queue closed")

// Task is one unit of work run by the queue.
type Task func(ctx context.Context) (any, error)

type taskResult struct {
	value any
	err   error
}

type job struct {
	ctx    context.Context
	fn     Task
	result chan taskResult
}

// Queue runs submitted tasks strictly in submission order, one at a time,
// and never starts more than the limiter allows per window. A failing task
// does not affect the ones behind it. Submitted tasks always run.
type Queue struct {
	limiter *RateLimiter
	logger  *slog.Logger

	mu      sync.Mutex
	pending []*job
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*queueConfig)

type queueConfig struct {
	limit  int
	window time.Duration
	logger *slog.Logger
}

// WithLimit sets how many tasks may start per window.
func WithLimit(n int) QueueOption {
	return func(c *queueConfig) { c.limit = n }
}

// WithWindow sets the rolling window length.
func WithWindow(d time.Duration) QueueOption {
	return func(c *queueConfig) { c.window = d }
}

// WithQueueLogger sets the logger used for task failures.
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(c *queueConfig) { c.logger = l }
}

// NewQueue creates a queue and starts its worker.
func NewQueue(opts ...QueueOption) *Queue {
	cfg := queueConfig{limit: DefaultQueueLimit, window: DefaultQueueWindow}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	q := &Queue{
		limiter: NewRateLimiter(cfg.limit, cfg.window),
		logger:  cfg.logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit appends fn to the queue and waits for its result. If ctx ends
// first, Submit returns ctx.Err() but the task still runs in its turn.
func (q *Queue) Submit(ctx context.Context, fn Task) (any, error) {
	j := &job{ctx: ctx, fn: fn, result: make(chan taskResult, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.pending = append(q.pending, j)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case r := <-j.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue is the typed form of Submit.
func Enqueue[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// Pending returns the number of tasks waiting to start.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Limiter exposes the queue's rate limiter.
func (q *Queue) Limiter() *RateLimiter { return q.limiter }

// Close stops accepting tasks, lets the queued ones finish, and waits for
// the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		j := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		// The limiter context is never cancelled, so Wait only returns
		// once a slot is free.
		_ = q.limiter.Wait(context.Background())
		j.result <- q.exec(j)
	}
}

func (q *Queue) exec(j *job) (r taskResult) {
	defer func() {
		if p := recover(); p != nil {
			r = taskResult{err: fmt.Errorf("infra: task panicked: %v", p)}
			q.logger.Error("queue task panicked", "panic", p)
		}
	}()
	v, err := j.fn(context.WithoutCancel(j.ctx))
	if err != nil {
		q.logger.Debug("queue task failed", "error", err)
	}
	return taskResult{value: v, err: err}
}
