package tasks

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// WorkerQueue is an in-process Queue backed by a worker pool. It stands in
// for the host scheduler's task engine: tasks run asynchronously on any
// worker and a task that fails is logged the way host tooling would record
// it, not retried synchronously.
type WorkerQueue struct {
	pool   *ants.Pool
	logger *slog.Logger

	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
}

var _ Queue = (*WorkerQueue)(nil)

// ErrNoHandler is returned when a task is enqueued before Register is called.
var ErrNoHandler = errors.New("no task handler registered")

// WorkerQueueOption configures a WorkerQueue.
type WorkerQueueOption func(*WorkerQueue)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) WorkerQueueOption {
	return func(q *WorkerQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewWorkerQueue creates a worker queue with the given pool size.
// size <= 0 selects a default based on the CPU count.
func NewWorkerQueue(size int, opts ...WorkerQueueOption) (*WorkerQueue, error) {
	if size <= 0 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	q := &WorkerQueue{
		pool:   pool,
		logger: slog.Default().With("component", "worker-queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Register installs the task handler. The handler and the queue reference
// each other (handlers enqueue follow-up tasks), so registration happens
// after both are constructed.
func (q *WorkerQueue) Register(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

// Enqueue schedules a task on the pool.
func (q *WorkerQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}

	q.wg.Add(1)
	err := q.pool.Submit(func() {
		defer q.wg.Done()
		if err := handler.HandleTask(context.Background(), task); err != nil {
			q.logger.Error("task failed", "kind", task.Kind, "runId", task.RunId, "err", err)
		}
	})
	if err != nil {
		q.wg.Done()
	}
	return err
}

// Wait blocks until every enqueued task (including follow-ups enqueued by
// handlers) has finished.
func (q *WorkerQueue) Wait() {
	q.wg.Wait()
}

// Release shuts down the pool. Pending tasks are abandoned.
func (q *WorkerQueue) Release() {
	q.pool.Release()
}
