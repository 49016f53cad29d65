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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/provider"
	"github.com/poiesic/vectorpool/storage"
	"github.com/poiesic/vectorpool/tasks"
)

// Orchestrator drives bulk embedding runs through their lifecycle:
// queued -> running -> succeeded | failed. It does no blocking work of its
// own; every step is a bounded task that loads state from storage, advances
// it, and either finishes or enqueues a follow-up task. Tasks are delivered
// at least once, so every handler is written to tolerate replays.
type Orchestrator struct {
	pools      map[string]*Pool
	runs       storage.RunRepository
	batches    storage.BatchRepository
	metadata   storage.InputMetadataRepository
	embeddings storage.EmbeddingRepository
	collector  *Collector
	queue      tasks.Queue
	logger     *slog.Logger
}

var _ tasks.Handler = (*Orchestrator)(nil)

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the logger used by the orchestrator.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates a run orchestrator over the given pools.
func NewOrchestrator(
	pools []*Pool,
	runs storage.RunRepository,
	batches storage.BatchRepository,
	metadata storage.InputMetadataRepository,
	embeddings storage.EmbeddingRepository,
	collector *Collector,
	queue tasks.Queue,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if runs == nil {
		return nil, ErrRunRepositoryRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}

	registry := make(map[string]*Pool, len(pools))
	for _, pool := range pools {
		if err := pool.Validate(); err != nil {
			return nil, fmt.Errorf("pool %q: %w", pool.Name, err)
		}
		registry[pool.Name] = pool
	}

	o := &Orchestrator{
		pools:      registry,
		runs:       runs,
		batches:    batches,
		metadata:   metadata,
		embeddings: embeddings,
		collector:  collector,
		queue:      queue,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o, nil
}

// Pool returns a registered pool by name, or ErrUnknownPool.
func (o *Orchestrator) Pool(name string) (*Pool, error) {
	pool, ok := o.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, name)
	}
	return pool, nil
}

// StartRun creates a queued run for the named pool and enqueues its
// preparation task. At most one run per pool may be non-terminal; when
// another run is still active the result carries Conflict and describes it,
// with no state change.
func (o *Orchestrator) StartRun(ctx context.Context, poolName string) (*StartResult, error) {
	pool, err := o.Pool(poolName)
	if err != nil {
		return nil, err
	}

	run, err := o.runs.CreateRun(ctx, &core.Run{
		Pool:             pool.Name,
		EmbeddingVersion: pool.EmbeddingVersion,
		Status:           core.RunStatusQueued,
		SubmittedAt:      time.Now().UTC(),
	})
	if errors.Is(err, storage.ErrActiveRunExists) {
		active, findErr := o.runs.FindActiveRun(ctx, pool.Name)
		if findErr != nil {
			return nil, findErr
		}
		return &StartResult{
			RunId:    active.Id,
			Status:   active.Status,
			Conflict: true,
			Message:  fmt.Sprintf("run %d for pool %q is still %s", active.Id, pool.Name, active.Status),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := o.queue.Enqueue(ctx, tasks.Task{Kind: tasks.KindPrepare, RunId: run.Id}); err != nil {
		return nil, fmt.Errorf("enqueueing preparation for run %d: %w", run.Id, err)
	}

	o.logger.Info("run queued", "runId", run.Id, "pool", pool.Name)
	return &StartResult{RunId: run.Id, Status: run.Status}, nil
}

// HandleTask dispatches one task message.
func (o *Orchestrator) HandleTask(ctx context.Context, task tasks.Task) error {
	switch task.Kind {
	case tasks.KindPrepare:
		return o.prepare(ctx, task.RunId)
	case tasks.KindPollOrComplete:
		return o.pollOrComplete(ctx, task.RunId)
	default:
		return fmt.Errorf("unknown task kind %q for run %d", task.Kind, task.RunId)
	}
}

// prepare moves a queued run to running, collects and submits its chunk
// set, and hands off to the poll loop. A run with no eligible inputs
// succeeds immediately. A collection or submission failure marks the run
// failed and rethrows so the queue surfaces the task failure.
func (o *Orchestrator) prepare(ctx context.Context, runId core.ID) error {
	run, err := o.runs.GetRun(ctx, runId)
	if err != nil {
		return err
	}
	if run.Status != core.RunStatusQueued {
		// Duplicate delivery; a previous execution already advanced the run.
		o.logger.Debug("skipping preparation", "runId", runId, "status", run.Status)
		return nil
	}

	active, err := o.runs.FindActiveRun(ctx, run.Pool)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if active != nil && active.Id != run.Id {
		o.logger.Warn("refusing preparation, another run is active",
			"runId", runId, "activeRunId", active.Id, "pool", run.Pool)
		return nil
	}

	pool, err := o.Pool(run.Pool)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	run.Status = core.RunStatusRunning
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return err
	}

	result, err := o.collector.Collect(ctx, pool, run)
	if err != nil {
		if failErr := o.failRun(ctx, run, err); failErr != nil {
			return failErr
		}
		return fmt.Errorf("preparing run %d: %w", runId, err)
	}

	if result.Inputs == 0 {
		now := time.Now().UTC()
		run.Status = core.RunStatusSucceeded
		run.CompletedAt = &now
		if err := o.runs.UpdateRun(ctx, run); err != nil {
			return err
		}
		o.logger.Info("run succeeded with no eligible inputs", "runId", runId, "pool", run.Pool)
		return nil
	}

	run.TotalBatches = result.TotalBatches
	run.Inputs = result.Inputs
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return err
	}

	o.logger.Info("run prepared",
		"runId", runId, "pool", run.Pool,
		"batches", result.TotalBatches, "inputs", result.Inputs)
	return o.queue.Enqueue(ctx, tasks.Task{Kind: tasks.KindPollOrComplete, RunId: runId})
}

// pollOrComplete advances every open batch of a running run by one poll.
// Batches that completed get their outputs committed immediately; each
// document's embedding rows are replaced as soon as its first fresh chunk
// lands. While any batch is still open the task re-enqueues itself;
// otherwise the run is finalized.
func (o *Orchestrator) pollOrComplete(ctx context.Context, runId core.ID) error {
	run, err := o.runs.GetRun(ctx, runId)
	if err != nil {
		return err
	}
	if run.Status != core.RunStatusRunning {
		// Terminal or not yet prepared; nothing to poll.
		o.logger.Debug("skipping poll", "runId", runId, "status", run.Status)
		return nil
	}

	pool, err := o.Pool(run.Pool)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	batches, err := o.batches.GetBatchesByRun(ctx, runId)
	if err != nil {
		return err
	}

	anyOpen := false
	cleared := make(map[string]bool) // documents whose stale rows this invocation already dropped
	for _, batch := range batches {
		if batch.Status.Terminal() {
			continue
		}
		open, err := o.pollBatch(ctx, pool, run, batch, cleared)
		if err != nil {
			// Transport-level failure. The batch stays open; persist what
			// this invocation committed and let the queue redeliver.
			if updateErr := o.runs.UpdateRun(ctx, run); updateErr != nil {
				return errors.Join(err, updateErr)
			}
			return err
		}
		if open {
			anyOpen = true
		}
	}

	if anyOpen {
		if err := o.runs.UpdateRun(ctx, run); err != nil {
			return err
		}
		return o.queue.Enqueue(ctx, tasks.Task{Kind: tasks.KindPollOrComplete, RunId: runId})
	}
	return o.finalize(ctx, pool, run)
}

// pollBatch polls one open batch and commits its outputs if it completed.
// Returns true while the batch remains open.
func (o *Orchestrator) pollBatch(ctx context.Context, pool *Pool, run *core.Run, batch *core.Batch, cleared map[string]bool) (bool, error) {
	var succeeded, failed int

	status, err := pool.Adapter.PollOrCompleteBatch(ctx, batch.ProviderBatchId, func(out provider.Output) error {
		meta, err := o.metadata.FindByInputId(ctx, run.Id, out.Id)
		if err != nil {
			return fmt.Errorf("resolving output %q: %w", out.Id, err)
		}

		if out.Error != "" {
			failed++
			run.FailedChunks = append(run.FailedChunks, core.FailedChunk{
				Collection: meta.Collection,
				DocumentId: meta.DocumentId,
				ChunkIndex: meta.ChunkIndex,
			})
			return nil
		}

		if err := o.commitOutput(ctx, pool, run, meta, out.Embedding, cleared); err != nil {
			return err
		}
		succeeded++
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("polling batch %s: %w", batch.ProviderBatchId, err)
	}

	switch status {
	case core.BatchStatusQueued, core.BatchStatusRunning:
		return true, nil

	case core.BatchStatusSucceeded:
		now := time.Now().UTC()
		batch.Status = core.BatchStatusSucceeded
		batch.Succeeded = succeeded
		batch.Failed = failed
		batch.CompletedAt = &now
		if err := o.batches.UpdateBatch(ctx, batch); err != nil {
			return false, err
		}
		o.logger.Info("batch completed",
			"runId", run.Id, "batchId", batch.Id,
			"succeeded", succeeded, "failed", failed)
		return false, nil

	case core.BatchStatusFailed, core.BatchStatusCanceled:
		// No output stream for a dead batch: every chunk in it failed and
		// none of its embedding rows were written.
		now := time.Now().UTC()
		batch.Status = status
		batch.Succeeded = 0
		batch.Failed = batch.Inputs
		batch.CompletedAt = &now
		if err := o.batches.UpdateBatch(ctx, batch); err != nil {
			return false, err
		}
		rows, err := o.metadata.GetByBatch(ctx, batch.Id)
		if err != nil {
			return false, err
		}
		for _, meta := range rows {
			run.FailedChunks = append(run.FailedChunks, core.FailedChunk{
				Collection: meta.Collection,
				DocumentId: meta.DocumentId,
				ChunkIndex: meta.ChunkIndex,
			})
		}
		o.logger.Warn("batch failed",
			"runId", run.Id, "batchId", batch.Id,
			"providerBatchId", batch.ProviderBatchId, "status", status)
		return false, nil

	default:
		return false, fmt.Errorf("adapter returned unexpected status %q for batch %s", status, batch.ProviderBatchId)
	}
}

// commitOutput writes one fresh embedding row. The first committed chunk of
// a document in this invocation first drops the document's stale rows, so a
// re-embedding replaces the old set instead of mixing with it.
func (o *Orchestrator) commitOutput(ctx context.Context, pool *Pool, run *core.Run, meta *core.InputMetadata, vector []float32, cleared map[string]bool) error {
	docKey := meta.Collection + "/" + meta.DocumentId
	if !cleared[docKey] {
		chunkCount, err := o.metadata.CountByDocument(ctx, run.Id, meta.Collection, meta.DocumentId)
		if err != nil {
			return err
		}
		err = o.embeddings.DeleteStaleEmbeddings(ctx, pool.Name, meta.Collection, meta.DocumentId, run.EmbeddingVersion, chunkCount)
		if err != nil {
			return err
		}
		cleared[docKey] = true
	}

	now := time.Now().UTC()
	return o.embeddings.UpsertEmbedding(ctx, &core.Embedding{
		Pool:             pool.Name,
		Collection:       meta.Collection,
		DocumentId:       meta.DocumentId,
		ChunkIndex:       meta.ChunkIndex,
		Chunk:            meta.Chunk,
		EmbeddingVersion: meta.EmbeddingVersion,
		Vector:           NormalizeVector(vector),
		Extensions:       meta.Extensions,
		InsertedAt:       now,
		UpdatedAt:        now,
	})
}

// finalize settles a run once every batch is terminal. Counts are recomputed
// from the batch records so a replayed finalize lands on the same totals.
// Metadata is deleted only on full success; a failed run keeps its rows so
// failed batches can be retried.
func (o *Orchestrator) finalize(ctx context.Context, pool *Pool, run *core.Run) error {
	batches, err := o.batches.GetBatchesByRun(ctx, run.Id)
	if err != nil {
		return err
	}

	var succeeded, failed, dead int
	var affected []string
	for _, batch := range batches {
		switch batch.Status {
		case core.BatchStatusRetried:
			// Superseded; its replacement carries the counts.
		case core.BatchStatusSucceeded:
			succeeded += batch.Succeeded
			failed += batch.Failed
			if batch.Failed > 0 {
				affected = append(affected, batch.ProviderBatchId)
			}
		case core.BatchStatusFailed, core.BatchStatusCanceled:
			failed += batch.Inputs
			dead++
			affected = append(affected, batch.ProviderBatchId)
		default:
			return fmt.Errorf("finalizing run %d with non-terminal batch %d", run.Id, batch.Id)
		}
	}

	now := time.Now().UTC()
	run.Succeeded = succeeded
	run.Failed = failed
	run.CompletedAt = &now
	if dead > 0 {
		run.Status = core.RunStatusFailed
		run.Error = fmt.Sprintf("%d of %d batches failed", dead, run.TotalBatches)
	} else {
		run.Status = core.RunStatusSucceeded
	}
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return err
	}

	if run.Status == core.RunStatusSucceeded {
		if err := o.metadata.DeleteByRun(ctx, run.Id); err != nil {
			return err
		}
	}

	if failed > 0 {
		pool.Adapter.OnError(ctx, provider.ErrorNotice{
			ProviderBatchIds: affected,
			Err:              fmt.Errorf("run %d: %d of %d chunks failed to embed", run.Id, failed, run.Inputs),
			FailedChunks:     run.FailedChunks,
			FailedChunkCount: failed,
		})
	}

	o.logger.Info("run finalized",
		"runId", run.Id, "pool", run.Pool, "status", run.Status,
		"succeeded", succeeded, "failed", failed)
	return nil
}

// failRun marks a run failed with the given cause.
func (o *Orchestrator) failRun(ctx context.Context, run *core.Run, cause error) error {
	now := time.Now().UTC()
	run.Status = core.RunStatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &now
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return errors.Join(cause, err)
	}
	o.logger.Error("run failed", "runId", run.Id, "pool", run.Pool, "error", cause)
	return nil
}
