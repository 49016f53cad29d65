package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for BadgerDB.
// Rows live under natural keys (pool, collection, documentID, chunkIndex),
// which makes every write an idempotent upsert.
type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) *EmbeddingRepository {
	return &EmbeddingRepository{backend: backend}
}

// Close is a no-op; the repository holds no sequence.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// UpsertEmbedding writes an embedding row under its natural key.
func (r *EmbeddingRepository) UpsertEmbedding(ctx context.Context, row *core.Embedding) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEmbeddingKey(row.Pool, row.Collection, row.DocumentId, row.ChunkIndex)

		now := time.Now().UTC()
		row.UpdatedAt = now
		if row.InsertedAt.IsZero() {
			row.InsertedAt = now
		}
		if row.Id == 0 {
			row.Id = core.IDFromContent(fmt.Sprintf("%s:%s:%s:%d",
				row.Pool, row.Collection, row.DocumentId, row.ChunkIndex))
		}

		value, err := storage.MarshalEmbedding(row)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteStaleEmbeddings removes a document's rows whose version differs from
// version or whose chunk index is >= chunkCount.
func (r *EmbeddingRepository) DeleteStaleEmbeddings(ctx context.Context, pool, collection, documentId, version string, chunkCount int) error {
	return r.deleteDocumentRows(pool, collection, documentId, func(row *core.Embedding) bool {
		return row.EmbeddingVersion != version || row.ChunkIndex >= chunkCount
	})
}

// DeleteDocumentEmbeddings removes all of a document's rows in a pool.
func (r *EmbeddingRepository) DeleteDocumentEmbeddings(ctx context.Context, pool, collection, documentId string) error {
	return r.deleteDocumentRows(pool, collection, documentId, func(*core.Embedding) bool {
		return true
	})
}

func (r *EmbeddingRepository) deleteDocumentRows(pool, collection, documentId string, stale func(*core.Embedding) bool) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingDocumentPrefix(pool, collection, documentId)
		iter := tx.NewIterator(opts)

		var doomed [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var row *core.Embedding
			err := item.Value(func(val []byte) error {
				var err error
				row, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			if stale(row) {
				doomed = append(doomed, item.KeyCopy(nil))
			}
		}
		iter.Close()

		for _, key := range doomed {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocumentEmbeddings retrieves a document's rows, ordered by chunk index.
func (r *EmbeddingRepository) GetDocumentEmbeddings(ctx context.Context, pool, collection, documentId string) ([]*core.Embedding, error) {
	var rows []*core.Embedding
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingDocumentPrefix(pool, collection, documentId)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var row *core.Embedding
			err := iter.Item().Value(func(val []byte) error {
				var err error
				row, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountEmbeddings counts all rows in a pool.
func (r *EmbeddingRepository) CountEmbeddings(ctx context.Context, pool string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingPoolPrefix(pool)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindSimilar finds embedding rows in a pool similar to the given vector.
// Similarity is the dot product, which equals cosine similarity for the
// normalized vectors this plugin stores.
func (r *EmbeddingRepository) FindSimilar(ctx context.Context, pool string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingPoolPrefix(pool)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var row *core.Embedding
			err := iter.Item().Value(func(val []byte) error {
				var err error
				row, err = storage.UnmarshalEmbedding(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(row.Vector) == 0 {
				continue
			}

			similarity := dotProduct(vector, row.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Embedding: row,
					Score:     similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
