package badger

import (
	"context"
	"testing"

	"github.com/poiesic/vectorpool/core"
)

func embeddingRow(documentId string, chunkIndex int, version string, vector []float32) *core.Embedding {
	return &core.Embedding{
		Pool:             "pool-a",
		Collection:       "articles",
		DocumentId:       documentId,
		ChunkIndex:       chunkIndex,
		Chunk:            "chunk text",
		EmbeddingVersion: version,
		Vector:           vector,
	}
}

func TestUpsertEmbeddingReplacesByNaturalKey(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	if err := repos.Embeddings.UpsertEmbedding(ctx, embeddingRow("doc-1", 0, "v1", []float32{1, 0})); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := repos.Embeddings.UpsertEmbedding(ctx, embeddingRow("doc-1", 0, "v2", []float32{0, 1})); err != nil {
		t.Fatalf("Failed to upsert replacement: %v", err)
	}

	rows, err := repos.Embeddings.GetDocumentEmbeddings(ctx, "pool-a", "articles", "doc-1")
	if err != nil {
		t.Fatalf("Failed to get rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if rows[0].EmbeddingVersion != "v2" || rows[0].Vector[1] != 1 {
		t.Fatalf("Expected replacement to win, got %+v", rows[0])
	}
}

func TestDeleteStaleEmbeddings(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	// doc-1 previously had 3 chunks at v1; the new pass has 2 chunks at v2.
	for i := 0; i < 3; i++ {
		if err := repos.Embeddings.UpsertEmbedding(ctx, embeddingRow("doc-1", i, "v1", []float32{1, 0})); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
	}

	if err := repos.Embeddings.DeleteStaleEmbeddings(ctx, "pool-a", "articles", "doc-1", "v2", 2); err != nil {
		t.Fatalf("Failed to delete stale rows: %v", err)
	}

	rows, err := repos.Embeddings.GetDocumentEmbeddings(ctx, "pool-a", "articles", "doc-1")
	if err != nil {
		t.Fatalf("Failed to get rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("All v1 rows are stale at v2, got %d remaining", len(rows))
	}

	// Rows already at the target version survive up to the chunk count.
	for i := 0; i < 3; i++ {
		if err := repos.Embeddings.UpsertEmbedding(ctx, embeddingRow("doc-1", i, "v2", []float32{1, 0})); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
	}
	if err := repos.Embeddings.DeleteStaleEmbeddings(ctx, "pool-a", "articles", "doc-1", "v2", 2); err != nil {
		t.Fatalf("Failed to delete stale rows: %v", err)
	}
	rows, err = repos.Embeddings.GetDocumentEmbeddings(ctx, "pool-a", "articles", "doc-1")
	if err != nil {
		t.Fatalf("Failed to get rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected chunks 0 and 1 to survive, got %d rows", len(rows))
	}
	if rows[0].ChunkIndex != 0 || rows[1].ChunkIndex != 1 {
		t.Fatalf("Expected chunk-index order, got %+v", rows)
	}
}

func TestDeleteDocumentEmbeddings(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	if err := repos.Embeddings.UpsertEmbedding(ctx, embeddingRow("doc-1", 0, "v1", []float32{1, 0})); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := repos.Embeddings.UpsertEmbedding(ctx, embeddingRow("doc-2", 0, "v1", []float32{1, 0})); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	if err := repos.Embeddings.DeleteDocumentEmbeddings(ctx, "pool-a", "articles", "doc-1"); err != nil {
		t.Fatalf("Failed to delete document rows: %v", err)
	}

	count, err := repos.Embeddings.CountEmbeddings(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected only doc-2's row to remain, got %d", count)
	}
}

func TestFindSimilarOrdersAndLimits(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	vectors := map[string][]float32{
		"exact":      {1, 0, 0},
		"close":      {0.9, 0.43589, 0}, // unit vector, similarity 0.9
		"orthogonal": {0, 1, 0},
	}
	for id, vector := range vectors {
		if err := repos.Embeddings.UpsertEmbedding(ctx, embeddingRow(id, 0, "v1", vector)); err != nil {
			t.Fatalf("Failed to upsert %s: %v", id, err)
		}
	}

	results, err := repos.Embeddings.FindSimilar(ctx, "pool-a", []float32{1, 0, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results above threshold, got %d", len(results))
	}
	if results[0].Embedding.DocumentId != "exact" || results[1].Embedding.DocumentId != "close" {
		t.Fatalf("Expected score order, got %v then %v",
			results[0].Embedding.DocumentId, results[1].Embedding.DocumentId)
	}

	limited, err := repos.Embeddings.FindSimilar(ctx, "pool-a", []float32{1, 0, 0}, 0.5, 1)
	if err != nil {
		t.Fatalf("Failed to search with limit: %v", err)
	}
	if len(limited) != 1 || limited[0].Embedding.DocumentId != "exact" {
		t.Fatalf("Expected the top hit only, got %v", limited)
	}
}
