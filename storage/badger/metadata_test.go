package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

func metadataRow(runId, batchId core.ID, documentId string, chunkIndex int) *core.InputMetadata {
	return &core.InputMetadata{
		RunId:            runId,
		BatchId:          batchId,
		InputId:          core.InputId("articles", documentId, chunkIndex),
		Chunk:            "chunk text",
		Collection:       "articles",
		DocumentId:       documentId,
		ChunkIndex:       chunkIndex,
		EmbeddingVersion: "v1",
	}
}

func TestInputMetadataAddAndFind(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	runId, batchId := core.ID(1), core.ID(10)

	err = repos.Metadata.AddInputMetadata(ctx,
		metadataRow(runId, batchId, "doc-1", 0),
		metadataRow(runId, batchId, "doc-1", 1),
		metadataRow(runId, batchId, "doc-2", 0),
	)
	if err != nil {
		t.Fatalf("Failed to add metadata: %v", err)
	}

	meta, err := repos.Metadata.FindByInputId(ctx, runId, core.InputId("articles", "doc-1", 1))
	if err != nil {
		t.Fatalf("Failed to find metadata: %v", err)
	}
	if meta.DocumentId != "doc-1" || meta.ChunkIndex != 1 {
		t.Fatalf("Unexpected metadata: %+v", meta)
	}

	_, err = repos.Metadata.FindByInputId(ctx, runId, "articles:missing:0")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	count, err := repos.Metadata.CountByDocument(ctx, runId, "articles", "doc-1")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 rows for doc-1, got %d", count)
	}
}

func TestInputMetadataReAddOverwrites(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	runId := core.ID(1)

	if err := repos.Metadata.AddInputMetadata(ctx, metadataRow(runId, 10, "doc-1", 0)); err != nil {
		t.Fatalf("Failed to add metadata: %v", err)
	}

	// Same (run, inputID) re-added under a different batch.
	replacement := metadataRow(runId, 20, "doc-1", 0)
	replacement.Chunk = "revised chunk text"
	if err := repos.Metadata.AddInputMetadata(ctx, replacement); err != nil {
		t.Fatalf("Failed to re-add metadata: %v", err)
	}

	count, err := repos.Metadata.CountByDocument(ctx, runId, "articles", "doc-1")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected overwrite, got %d rows", count)
	}

	meta, err := repos.Metadata.FindByInputId(ctx, runId, core.InputId("articles", "doc-1", 0))
	if err != nil {
		t.Fatalf("Failed to find metadata: %v", err)
	}
	if meta.BatchId != 20 || meta.Chunk != "revised chunk text" {
		t.Fatalf("Expected replacement row, got %+v", meta)
	}
}

func TestInputMetadataReassignBatch(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	runId := core.ID(1)

	err = repos.Metadata.AddInputMetadata(ctx,
		metadataRow(runId, 10, "doc-1", 0),
		metadataRow(runId, 10, "doc-1", 1),
	)
	if err != nil {
		t.Fatalf("Failed to add metadata: %v", err)
	}

	if err := repos.Metadata.ReassignBatch(ctx, runId, 10, 20); err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}

	old, err := repos.Metadata.GetByBatch(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to get old batch rows: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("Expected old batch to be empty, got %d rows", len(old))
	}

	moved, err := repos.Metadata.GetByBatch(ctx, 20)
	if err != nil {
		t.Fatalf("Failed to get new batch rows: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("Expected 2 moved rows, got %d", len(moved))
	}
	for _, meta := range moved {
		if meta.BatchId != 20 {
			t.Fatalf("Row not re-pointed: %+v", meta)
		}
	}
}

func TestInputMetadataReassignKeepsResubmittedRows(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	runId := core.ID(1)

	if err := repos.Metadata.AddInputMetadata(ctx, metadataRow(runId, 10, "doc-1", 0)); err != nil {
		t.Fatalf("Failed to add metadata: %v", err)
	}
	// A resubmission already re-pointed the row at batch 30.
	if err := repos.Metadata.AddInputMetadata(ctx, metadataRow(runId, 30, "doc-1", 0)); err != nil {
		t.Fatalf("Failed to re-add metadata: %v", err)
	}

	if err := repos.Metadata.ReassignBatch(ctx, runId, 10, 20); err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}

	// The row keeps its newer assignment; only batch 10's index is cleared.
	old, err := repos.Metadata.GetByBatch(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to get old batch rows: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("Expected old batch to be empty, got %d rows", len(old))
	}
	kept, err := repos.Metadata.GetByBatch(ctx, 30)
	if err != nil {
		t.Fatalf("Failed to get batch 30 rows: %v", err)
	}
	if len(kept) != 1 || kept[0].BatchId != 30 {
		t.Fatalf("Expected row to stay with batch 30, got %+v", kept)
	}
}

func TestInputMetadataDeleteByRun(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	err = repos.Metadata.AddInputMetadata(ctx,
		metadataRow(1, 10, "doc-1", 0),
		metadataRow(1, 10, "doc-2", 0),
		metadataRow(2, 11, "doc-1", 0),
	)
	if err != nil {
		t.Fatalf("Failed to add metadata: %v", err)
	}

	if err := repos.Metadata.DeleteByRun(ctx, 1); err != nil {
		t.Fatalf("Failed to delete run metadata: %v", err)
	}

	count, err := repos.Metadata.CountByDocument(ctx, 1, "articles", "doc-1")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected run 1 metadata gone, got %d rows", count)
	}

	// Another run's rows are untouched.
	if _, err := repos.Metadata.FindByInputId(ctx, 2, core.InputId("articles", "doc-1", 0)); err != nil {
		t.Fatalf("Run 2 metadata should survive: %v", err)
	}
}
