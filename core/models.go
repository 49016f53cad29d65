package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// RunStatus is the lifecycle state of a bulk embedding run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether the run can no longer change state on its own.
// A terminal run may still be reopened by a batch retry.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCanceled
}

// BatchStatus is the lifecycle state of a provider-level batch.
// It mirrors RunStatus but adds "retried" for batches that have been
// superseded by a replacement.
type BatchStatus string

const (
	BatchStatusQueued    BatchStatus = "queued"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusSucceeded BatchStatus = "succeeded"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusCanceled  BatchStatus = "canceled"
	BatchStatusRetried   BatchStatus = "retried"
)

// Terminal reports whether the batch has reached a final state.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusSucceeded || s == BatchStatusFailed ||
		s == BatchStatusCanceled || s == BatchStatusRetried
}

// Run is one bulk embedding attempt for one knowledge pool.
// At most one run per pool may be in a non-terminal status at any time.
type Run struct {
	Id               ID
	Pool             string
	EmbeddingVersion string // version in effect at submission time
	Status           RunStatus
	TotalBatches     int
	Inputs           int
	Succeeded        int
	Failed           int
	SubmittedAt      time.Time
	CompletedAt      *time.Time
	Error            string
	FailedChunks     []FailedChunk // per-chunk failures accumulated across batches
}

// Batch is one provider-level submission unit within a run.
type Batch struct {
	Id              ID
	RunId           ID
	Index           int // zero-based, unique per run, monotonically assigned
	ProviderBatchId string
	InputFileId     string // optional provider-side input file reference
	Status          BatchStatus
	Inputs          int
	Succeeded       int
	Failed          int
	SubmittedAt     time.Time
	CompletedAt     *time.Time
	Error           string
	RetriedBy       ID // replacement batch id when status is retried
}

// InputMetadata is one record per submitted chunk. It carries everything
// needed to reconstruct the embedding row once the provider returns a result,
// and to rebuild the chunk set when a failed batch is retried.
type InputMetadata struct {
	Id               ID
	RunId            ID
	BatchId          ID
	InputId          string // "collection:documentID:chunkIndex", unique within the run
	Chunk            string
	Collection       string
	DocumentId       string
	ChunkIndex       int
	EmbeddingVersion string
	Extensions       map[string]any // opaque fields supplied by the chunking function
}

// InputId builds the stable provider input identifier for a chunk.
func InputId(collection, documentId string, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%d", collection, documentId, chunkIndex)
}

// FailedChunk identifies one chunk the provider failed to embed.
type FailedChunk struct {
	Collection string
	DocumentId string
	ChunkIndex int
}

// Embedding is one row in a knowledge pool. Rows are keyed by
// (pool, collection, documentID, chunkIndex); re-embedding a document
// replaces its full set of rows, never a partial mix of old and new.
type Embedding struct {
	Id               ID
	Pool             string
	Collection       string
	DocumentId       string
	ChunkIndex       int
	Chunk            string
	EmbeddingVersion string
	Vector           []float32
	Extensions       map[string]any
	InsertedAt       time.Time
	UpdatedAt        time.Time
}

// Document is a source record from a host collection. Only the fields this
// plugin needs are modeled; the host CMS owns the full document schema.
type Document struct {
	Collection string
	Id         string
	Fields     map[string]any
	UpdatedAt  time.Time
}

// ChunkInput is one entry produced by a pool's chunking function:
// the text to embed plus extension-field values merged into the
// resulting embedding row.
type ChunkInput struct {
	Chunk      string
	Extensions map[string]any
}

// SearchResult is an embedding row matched by similarity search.
type SearchResult struct {
	Embedding *Embedding
	Score     float32
}
