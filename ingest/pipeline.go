package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vectorpool/ai"
	"github.com/poiesic/vectorpool/bulk"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

// Pipeline keeps knowledge pools current as individual documents change.
// Saving a document validates and stores it synchronously, then re-embeds
// its chunks in the background through the pool's configured embedder;
// deleting a document drops its rows from every pool that watches the
// collection. This is the realtime counterpart to a bulk run, for hosts
// that propagate document events one at a time.
type Pipeline struct {
	documents  storage.DocumentRepository
	embeddings storage.EmbeddingRepository
	embedder   ai.Embedder
	pools      []*bulk.Pool
	workerPool *ants.Pool
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for background embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.workerPool != nil {
			p.workerPool.Release()
		}
		workerPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.workerPool = workerPool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a realtime ingestion pipeline over the given pools.
func NewPipeline(
	documents storage.DocumentRepository,
	embeddings storage.EmbeddingRepository,
	embedder ai.Embedder,
	pools []*bulk.Pool,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embeddings == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	workerPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documents:  documents,
		embeddings: embeddings,
		embedder:   embedder,
		pools:      pools,
		workerPool: workerPool,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingest")

	return p, nil
}

// SaveDocument validates and stores a document, then re-embeds it for every
// pool watching its collection. Chunking and validation happen synchronously
// so a malformed document is rejected before anything is written; the
// embedding calls run in the background, and their failures are logged
// rather than surfaced.
func (p *Pipeline) SaveDocument(ctx context.Context, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	type pendingEmbed struct {
		pool   *bulk.Pool
		chunks []core.ChunkInput
	}
	var pending []pendingEmbed

	for _, pool := range p.poolsForCollection(doc.Collection) {
		if pool.Eligibility != nil {
			ok, err := pool.Eligibility.ShouldEmbed(ctx, doc)
			if err != nil {
				return err
			}
			if !ok {
				// Skipped entirely: the document is still stored, but this
				// pool's existing rows are left untouched.
				continue
			}
		}

		chunks, err := pool.Chunker.ChunkDocument(ctx, doc)
		if err != nil {
			return err
		}
		if err := core.ValidateChunkInputs(doc.Collection, doc.Id, chunks); err != nil {
			return err
		}
		pending = append(pending, pendingEmbed{pool: pool, chunks: chunks})
	}

	if err := p.documents.PutDocuments(ctx, doc); err != nil {
		return err
	}

	for _, pe := range pending {
		pool, chunks := pe.pool, pe.chunks
		collection, documentId := doc.Collection, doc.Id
		p.wg.Add(1)
		err := p.workerPool.Submit(func() {
			defer p.wg.Done()
			if err := p.embed(context.Background(), pool, collection, documentId, chunks); err != nil {
				p.logger.Error("error embedding document",
					"pool", pool.Name, "collection", collection,
					"documentId", documentId, "err", err)
			}
		})
		if err != nil {
			p.wg.Done()
			return err
		}
	}

	return nil
}

// DeleteDocument removes a document's embedding rows from every pool
// watching its collection. The document record itself is owned by the host
// and is not touched here.
func (p *Pipeline) DeleteDocument(ctx context.Context, collection, documentId string) error {
	for _, pool := range p.poolsForCollection(collection) {
		if err := p.embeddings.DeleteDocumentEmbeddings(ctx, pool.Name, collection, documentId); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until all background embedding work has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.workerPool != nil {
		p.workerPool.Release()
	}
}

// embed replaces one document's embedding rows in one pool.
func (p *Pipeline) embed(ctx context.Context, pool *bulk.Pool, collection, documentId string, chunks []core.ChunkInput) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Chunk
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(chunks), len(vectors))
	}

	err = p.embeddings.DeleteStaleEmbeddings(ctx, pool.Name, collection, documentId, pool.EmbeddingVersion, len(chunks))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, chunk := range chunks {
		err := p.embeddings.UpsertEmbedding(ctx, &core.Embedding{
			Pool:             pool.Name,
			Collection:       collection,
			DocumentId:       documentId,
			ChunkIndex:       i,
			Chunk:            chunk.Chunk,
			EmbeddingVersion: pool.EmbeddingVersion,
			Vector:           bulk.NormalizeVector(vectors[i]),
			Extensions:       chunk.Extensions,
			InsertedAt:       now,
			UpdatedAt:        now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) poolsForCollection(collection string) []*bulk.Pool {
	var matched []*bulk.Pool
	for _, pool := range p.pools {
		for _, c := range pool.Collections {
			if c == collection {
				matched = append(matched, pool)
				break
			}
		}
	}
	return matched
}
