// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package bulk

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
	"github.com/poiesic/vectorpool/tasks"
)

// ErrBatchNotRetryable is returned when a retry names a batch that is not
// in failed status (and was not already retried).
var ErrBatchNotRetryable = errors.New("only failed batches can be retried")

// RetryCoordinator resubmits failed batches. The original batch's surviving
// metadata rows are rebuilt into a chunk set and streamed through the
// adapter again as one or more replacement batches; the old batch is marked
// retried with a reference to its replacement and the run reopens for
// polling. Retrying an already-retried batch is idempotent and returns the
// existing replacement.
type RetryCoordinator struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewRetryCoordinator creates a retry coordinator sharing the
// orchestrator's pools, repositories, collector, and queue.
func NewRetryCoordinator(orchestrator *Orchestrator, logger *slog.Logger) *RetryCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryCoordinator{
		orchestrator: orchestrator,
		logger:       logger.With("component", "retry"),
	}
}

// RetryBatch resubmits one failed batch.
//
// Refusals are reported in the result, not as errors: an unknown batch id
// sets NotFound, and a batch whose run is still active sets Conflict. A
// batch in any status other than failed or retried returns
// ErrBatchNotRetryable.
func (rc *RetryCoordinator) RetryBatch(ctx context.Context, batchId core.ID) (*RetryResult, error) {
	o := rc.orchestrator

	batch, err := o.batches.GetBatch(ctx, batchId)
	if errors.Is(err, storage.ErrNotFound) {
		return &RetryResult{
			BatchId:  batchId,
			NotFound: true,
			Message:  fmt.Sprintf("batch %d not found", batchId),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if batch.Status == core.BatchStatusRetried {
		return &RetryResult{
			RunId:      batch.RunId,
			BatchId:    batch.Id,
			NewBatchId: batch.RetriedBy,
			Message:    fmt.Sprintf("batch %d was already retried as batch %d", batch.Id, batch.RetriedBy),
		}, nil
	}
	if batch.Status != core.BatchStatusFailed {
		return nil, fmt.Errorf("%w: batch %d is %s", ErrBatchNotRetryable, batch.Id, batch.Status)
	}

	run, err := o.runs.GetRun(ctx, batch.RunId)
	if err != nil {
		return nil, err
	}
	if !run.Status.Terminal() {
		return &RetryResult{
			RunId:    run.Id,
			BatchId:  batch.Id,
			Conflict: true,
			Message:  fmt.Sprintf("run %d is still %s", run.Id, run.Status),
		}, nil
	}

	pool, err := o.Pool(run.Pool)
	if err != nil {
		return nil, err
	}

	inputs, err := rc.rebuildInputs(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("batch %d has no surviving metadata to resubmit", batch.Id)
	}

	replacements, err := o.collector.Submit(ctx, pool, run, inputs)
	if err != nil {
		return nil, fmt.Errorf("resubmitting batch %d: %w", batch.Id, err)
	}

	// Submission re-persisted the metadata rows under their replacement
	// batches; this clears the stale index entries left under the old one.
	if err := o.metadata.ReassignBatch(ctx, run.Id, batch.Id, replacements[0].Id); err != nil {
		return nil, err
	}

	// The old attempt's chunk failures are being retried; drop them from
	// the run's accumulated failure list before it settles again.
	rc.dropFailedChunks(run, inputs)

	batch.Status = core.BatchStatusRetried
	batch.RetriedBy = replacements[0].Id
	if err := o.batches.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}

	run.Status = core.RunStatusRunning
	run.CompletedAt = nil
	run.Error = ""
	run.TotalBatches += len(replacements)
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	if err := o.queue.Enqueue(ctx, tasks.Task{Kind: tasks.KindPollOrComplete, RunId: run.Id}); err != nil {
		return nil, err
	}

	rc.logger.Info("batch retried",
		"runId", run.Id, "batchId", batch.Id,
		"newBatchId", replacements[0].Id, "inputs", len(inputs))
	return &RetryResult{
		RunId:      run.Id,
		BatchId:    batch.Id,
		NewBatchId: replacements[0].Id,
	}, nil
}

// rebuildInputs reconstructs the batch's chunk set from its metadata rows,
// in document order.
func (rc *RetryCoordinator) rebuildInputs(ctx context.Context, batch *core.Batch) ([]pendingInput, error) {
	rows, err := rc.orchestrator.metadata.GetByBatch(ctx, batch.Id)
	if err != nil {
		return nil, err
	}

	inputs := make([]pendingInput, len(rows))
	for i, meta := range rows {
		inputs[i] = pendingInput{
			inputId:    meta.InputId,
			collection: meta.Collection,
			documentId: meta.DocumentId,
			chunkIndex: meta.ChunkIndex,
			chunk:      meta.Chunk,
			extensions: meta.Extensions,
		}
	}
	slices.SortFunc(inputs, func(a, b pendingInput) int {
		if c := cmp.Compare(a.collection, b.collection); c != 0 {
			return c
		}
		if c := cmp.Compare(a.documentId, b.documentId); c != 0 {
			return c
		}
		return cmp.Compare(a.chunkIndex, b.chunkIndex)
	})
	return inputs, nil
}

// dropFailedChunks removes the resubmitted chunks from the run's failure list.
func (rc *RetryCoordinator) dropFailedChunks(run *core.Run, inputs []pendingInput) {
	retried := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		retried[input.inputId] = true
	}
	kept := run.FailedChunks[:0]
	for _, fc := range run.FailedChunks {
		if !retried[core.InputId(fc.Collection, fc.DocumentId, fc.ChunkIndex)] {
			kept = append(kept, fc)
		}
	}
	run.FailedChunks = kept
}
