package provider

import (
	"context"

	"github.com/poiesic/vectorpool/core"
)

// Chunk is one unit of embeddable text handed to the adapter.
// The ID has the form "collection:documentID:chunkIndex" and is unique
// within the run.
type Chunk struct {
	Id   string
	Text string
}

// Submission describes a batch the adapter has flushed to the provider.
type Submission struct {
	// ProviderBatchId is the provider-assigned identifier for the batch.
	ProviderBatchId string

	// InputFileId optionally references a provider-side input file.
	InputFileId string
}

// Output is one per-input result streamed back from a completed batch.
// Exactly one of Embedding or Error is populated.
type Output struct {
	Id        string
	Embedding []float32
	Error     string
}

// ErrorNotice carries everything the adapter needs to release provider
// resources and let the caller react after a run completes with failures.
type ErrorNotice struct {
	ProviderBatchIds []string
	Err              error
	FailedChunks     []core.FailedChunk
	FailedChunkCount int
}

// Adapter is the contract an integrator supplies to talk to an external
// embedding batch API. The orchestration core drives it; the adapter owns
// all batching policy (when to flush, batch sizing, file uploads).
//
// Implementations must be safe for use by one logical task flow at a time
// per knowledge pool; the accumulation window in AddChunk is stateful.
type Adapter interface {
	// AddChunk accumulates one chunk. isLastChunk signals the end of the
	// whole stream. Returns a Submission once the adapter's internal policy
	// decides to flush (size, count, or last chunk), else nil.
	AddChunk(ctx context.Context, chunk Chunk, isLastChunk bool) (*Submission, error)

	// PollOrCompleteBatch checks a batch's status. When the batch has
	// terminally succeeded, the adapter must invoke onOutput once per input
	// before returning. Non-terminal statuses tell the caller to poll again
	// later.
	PollOrCompleteBatch(ctx context.Context, providerBatchId string, onOutput func(Output) error) (core.BatchStatus, error)

	// OnError is a best-effort cleanup/notification hook, called once per
	// run that completes with failures or aborts during preparation.
	OnError(ctx context.Context, notice ErrorNotice)
}
