package storage

import (
	"context"

	"github.com/poiesic/vectorpool/core"
)

// RunRepository provides operations for managing bulk embedding runs.
// Implementations must be thread-safe and support concurrent access.
type RunRepository interface {
	// CreateRun persists a new run. An ID is generated from sequence when
	// the run's ID is zero. Refuses with ErrActiveRunExists when another
	// run for the same pool is still queued or running; the existence
	// check and the write happen in one transaction.
	CreateRun(ctx context.Context, run *core.Run) (*core.Run, error)

	// UpdateRun updates an existing run, including its (pool, status) index.
	// Returns ErrNotFound if the run doesn't exist.
	UpdateRun(ctx context.Context, run *core.Run) error

	// GetRun retrieves a run by ID.
	// Returns ErrNotFound if the run doesn't exist.
	GetRun(ctx context.Context, id core.ID) (*core.Run, error)

	// FindActiveRun returns the queued or running run for a pool, if any.
	// Returns ErrNotFound when the pool has no active run.
	FindActiveRun(ctx context.Context, pool string) (*core.Run, error)

	// ListRuns retrieves all runs for a pool, newest first.
	ListRuns(ctx context.Context, pool string) ([]*core.Run, error)

	// Close releases repository resources.
	Close() error
}

// BatchRepository provides operations for managing provider batches.
type BatchRepository interface {
	// CreateBatch persists a new batch, assigning the next zero-based
	// index within the run when the batch's Index is negative.
	CreateBatch(ctx context.Context, batch *core.Batch) (*core.Batch, error)

	// UpdateBatch updates an existing batch.
	// Returns ErrNotFound if the batch doesn't exist.
	UpdateBatch(ctx context.Context, batch *core.Batch) error

	// GetBatch retrieves a batch by ID.
	// Returns ErrNotFound if the batch doesn't exist.
	GetBatch(ctx context.Context, id core.ID) (*core.Batch, error)

	// GetBatchesByRun retrieves all batches for a run, ordered by batch index.
	GetBatchesByRun(ctx context.Context, runId core.ID) ([]*core.Batch, error)

	// Close releases repository resources.
	Close() error
}

// InputMetadataRepository provides operations for per-chunk input metadata.
type InputMetadataRepository interface {
	// AddInputMetadata persists metadata rows, one per submitted chunk.
	// IDs are derived from (run, inputID) content so replays overwrite
	// rather than duplicate.
	AddInputMetadata(ctx context.Context, rows ...*core.InputMetadata) error

	// FindByInputId retrieves the metadata row for a provider input id
	// within a run. Returns ErrNotFound if no such row exists.
	FindByInputId(ctx context.Context, runId core.ID, inputId string) (*core.InputMetadata, error)

	// GetByBatch retrieves all metadata rows currently assigned to a batch.
	GetByBatch(ctx context.Context, batchId core.ID) ([]*core.InputMetadata, error)

	// CountByDocument counts the metadata rows a run holds for one document.
	CountByDocument(ctx context.Context, runId core.ID, collection, documentId string) (int, error)

	// ReassignBatch re-points a failed batch's metadata rows to its
	// replacement. Rows already re-persisted under a newer batch keep
	// that assignment; only their stale index entries are cleared.
	ReassignBatch(ctx context.Context, runId, oldBatchId, newBatchId core.ID) error

	// DeleteByRun removes all metadata rows for a run. Called only after a
	// run succeeds; failed runs keep their metadata to support retry.
	DeleteByRun(ctx context.Context, runId core.ID) error

	// Close releases repository resources.
	Close() error
}

// EmbeddingRepository provides operations for knowledge pool embedding rows.
type EmbeddingRepository interface {
	// UpsertEmbedding writes an embedding row keyed by
	// (pool, collection, documentID, chunkIndex). Replays are idempotent.
	UpsertEmbedding(ctx context.Context, row *core.Embedding) error

	// DeleteStaleEmbeddings removes a document's rows whose embedding
	// version differs from version, or whose chunk index is >= chunkCount.
	// Together with UpsertEmbedding this gives replace-set semantics:
	// after a document's chunks are committed, exactly its fresh set remains.
	DeleteStaleEmbeddings(ctx context.Context, pool, collection, documentId, version string, chunkCount int) error

	// DeleteDocumentEmbeddings removes all of a document's rows in a pool.
	DeleteDocumentEmbeddings(ctx context.Context, pool, collection, documentId string) error

	// GetDocumentEmbeddings retrieves a document's rows in a pool,
	// ordered by chunk index.
	GetDocumentEmbeddings(ctx context.Context, pool, collection, documentId string) ([]*core.Embedding, error)

	// CountEmbeddings counts all rows in a pool.
	CountEmbeddings(ctx context.Context, pool string) (int, error)

	// FindSimilar finds embedding rows in a pool similar to the given vector.
	// Returns rows with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, pool string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Close releases repository resources.
	Close() error
}

// DocumentRepository provides paged access to source documents.
// In a host CMS deployment this is backed by the host's own collection
// storage; the badger implementation exists so the plugin runs end-to-end
// without one.
type DocumentRepository interface {
	// PutDocuments inserts or replaces source documents.
	PutDocuments(ctx context.Context, docs ...*core.Document) error

	// GetDocument retrieves one document.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, collection, id string) (*core.Document, error)

	// ListDocuments retrieves up to limit documents from a collection whose
	// id sorts strictly after afterId, in id order. Passing an empty afterId
	// starts from the beginning; an empty result means the scan is done.
	ListDocuments(ctx context.Context, collection, afterId string, limit int) ([]*core.Document, error)

	// Close releases repository resources.
	Close() error
}
