package tasks

import "context"

// SyncQueue is a Queue that executes tasks inline on the caller's goroutine.
// Tests and one-shot CLI commands use it to drive a run to completion
// deterministically: a handler's follow-up Enqueue recurses until no task
// reschedules itself.
type SyncQueue struct {
	handler Handler
}

var _ Queue = (*SyncQueue)(nil)

// NewSyncQueue creates a synchronous queue.
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// Register installs the task handler.
func (q *SyncQueue) Register(handler Handler) {
	q.handler = handler
}

// Enqueue runs the task immediately and returns its error.
func (q *SyncQueue) Enqueue(ctx context.Context, task Task) error {
	if q.handler == nil {
		return ErrNoHandler
	}
	return q.handler.HandleTask(ctx, task)
}
