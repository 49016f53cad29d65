package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/provider"
	"github.com/poiesic/vectorpool/storage"
)

// Collector walks eligible source documents, chunks them, and streams the
// chunks through a pool's provider adapter, persisting Batch and
// InputMetadata records at every flush.
type Collector struct {
	filter   *Filter
	batches  storage.BatchRepository
	metadata storage.InputMetadataRepository
	logger   *slog.Logger
}

// CollectResult summarizes one preparation pass.
type CollectResult struct {
	TotalBatches int
	Inputs       int
}

// pendingInput is one validated chunk waiting for submission.
type pendingInput struct {
	inputId    string
	collection string
	documentId string
	chunkIndex int
	chunk      string
	extensions map[string]any
}

// NewCollector creates a chunk collector.
func NewCollector(filter *Filter, batches storage.BatchRepository, metadata storage.InputMetadataRepository, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		filter:   filter,
		batches:  batches,
		metadata: metadata,
		logger:   logger.With("component", "collector"),
	}
}

// Collect prepares a run: it chunks every eligible document, validates the
// whole set, and only then streams chunks into the adapter. Validation is
// all-or-nothing: a single malformed entry anywhere in the eligible set
// fails the pass before any chunk reaches the provider.
//
// On adapter failure mid-stream, batches already submitted in this pass are
// reported to the adapter's OnError hook and the error is returned; records
// persisted so far are left intact for diagnostics.
func (c *Collector) Collect(ctx context.Context, pool *Pool, run *core.Run) (*CollectResult, error) {
	inputs, err := c.gather(ctx, pool)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return &CollectResult{}, nil
	}

	batches, err := c.Submit(ctx, pool, run, inputs)
	if err != nil {
		return nil, err
	}

	return &CollectResult{TotalBatches: len(batches), Inputs: len(inputs)}, nil
}

// gather chunks and validates every eligible document. No provider
// interaction and no persistence happens here.
func (c *Collector) gather(ctx context.Context, pool *Pool) ([]pendingInput, error) {
	var inputs []pendingInput
	var invalid []error

	err := c.filter.ForEachEligible(ctx, pool, func(doc *core.Document) error {
		chunks, err := pool.Chunker.ChunkDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("chunking %s/%s: %w", doc.Collection, doc.Id, err)
		}

		if err := core.ValidateChunkInputs(doc.Collection, doc.Id, chunks); err != nil {
			invalid = append(invalid, err)
			return nil
		}

		for i, chunk := range chunks {
			inputs = append(inputs, pendingInput{
				inputId:    core.InputId(doc.Collection, doc.Id, i),
				collection: doc.Collection,
				documentId: doc.Id,
				chunkIndex: i,
				chunk:      chunk.Chunk,
				extensions: chunk.Extensions,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		return nil, errors.Join(invalid...)
	}
	return inputs, nil
}

// Submit streams validated chunks through the adapter's accumulation
// protocol, persisting a Batch record plus one InputMetadata row per chunk
// at every flush. The retry coordinator reuses this to resubmit a failed
// batch's surviving chunk set.
func (c *Collector) Submit(ctx context.Context, pool *Pool, run *core.Run, inputs []pendingInput) ([]*core.Batch, error) {
	var created []*core.Batch
	windowStart := 0

	for i, input := range inputs {
		isLast := i == len(inputs)-1

		submission, err := pool.Adapter.AddChunk(ctx, provider.Chunk{Id: input.inputId, Text: input.chunk}, isLast)
		if err != nil {
			c.cancel(ctx, pool, created, err)
			return nil, fmt.Errorf("submitting chunk %s: %w", input.inputId, err)
		}
		if submission == nil {
			if isLast {
				err := errors.New("adapter did not flush a batch on the last chunk")
				c.cancel(ctx, pool, created, err)
				return nil, err
			}
			continue
		}

		window := inputs[windowStart : i+1]
		batch, err := c.persistBatch(ctx, pool, run, submission, window)
		if err != nil {
			c.cancel(ctx, pool, created, err)
			return nil, err
		}
		created = append(created, batch)
		windowStart = i + 1

		c.logger.Debug("batch submitted",
			"runId", run.Id, "batchId", batch.Id,
			"providerBatchId", batch.ProviderBatchId, "inputs", batch.Inputs)
	}

	return created, nil
}

// persistBatch records one flushed submission and its window's metadata.
func (c *Collector) persistBatch(ctx context.Context, pool *Pool, run *core.Run, submission *provider.Submission, window []pendingInput) (*core.Batch, error) {
	batch, err := c.batches.CreateBatch(ctx, &core.Batch{
		RunId:           run.Id,
		Index:           -1, // next available index for the run
		ProviderBatchId: submission.ProviderBatchId,
		InputFileId:     submission.InputFileId,
		Status:          core.BatchStatusQueued,
		Inputs:          len(window),
	})
	if err != nil {
		return nil, err
	}

	rows := make([]*core.InputMetadata, len(window))
	for j, input := range window {
		rows[j] = &core.InputMetadata{
			RunId:            run.Id,
			BatchId:          batch.Id,
			InputId:          input.inputId,
			Chunk:            input.chunk,
			Collection:       input.collection,
			DocumentId:       input.documentId,
			ChunkIndex:       input.chunkIndex,
			EmbeddingVersion: run.EmbeddingVersion,
			Extensions:       input.extensions,
		}
	}
	if err := c.metadata.AddInputMetadata(ctx, rows...); err != nil {
		return nil, err
	}
	return batch, nil
}

// cancel reports already-submitted batches to the adapter so provider-side
// resources can be released after an aborted pass.
func (c *Collector) cancel(ctx context.Context, pool *Pool, created []*core.Batch, cause error) {
	if len(created) == 0 {
		return
	}
	ids := make([]string, len(created))
	for i, batch := range created {
		ids[i] = batch.ProviderBatchId
	}
	pool.Adapter.OnError(ctx, provider.ErrorNotice{
		ProviderBatchIds: ids,
		Err:              cause,
	})
}
