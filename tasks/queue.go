package tasks

import (
	"context"

	"github.com/poiesic/vectorpool/core"
)

// Kind identifies the unit of work a task message requests.
type Kind string

const (
	// KindPrepare collects chunks for a queued run and submits batches.
	KindPrepare Kind = "prepare"

	// KindPollOrComplete polls a run's open batches and finalizes the run
	// once every batch is terminal.
	KindPollOrComplete Kind = "poll-or-complete"
)

// Task is one message on the host task queue. Tasks carry only the run id;
// everything else is loaded from storage, so a task may execute on any
// worker, at any time, more than once.
type Task struct {
	Kind  Kind
	RunId core.ID
}

// Queue dispatches task messages. Delivery is at-least-once: handlers must
// tolerate duplicate and concurrent execution for the same run id.
type Queue interface {
	// Enqueue schedules a task for execution.
	Enqueue(ctx context.Context, task Task) error
}

// Handler consumes task messages. A handler does bounded work and either
// finishes or enqueues a follow-up task; it never blocks waiting on the
// provider.
type Handler interface {
	HandleTask(ctx context.Context, task Task) error
}
