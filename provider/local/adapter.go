package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/vectorpool/ai"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/provider"
)

const (
	// DefaultMaxChunks is the default number of chunks per batch.
	DefaultMaxChunks = 128

	// DefaultMaxBytes is the default total text size per batch.
	DefaultMaxBytes = 512 * 1024
)

// Adapter is a reference provider.Adapter that serves batches from an
// ai.Embedder. Flushed batches are held in memory and embedded on the
// first poll, so from the orchestrator's point of view it behaves like a
// very fast batch API.
type Adapter struct {
	embedder  ai.Embedder
	maxChunks int
	maxBytes  int
	logger    *slog.Logger

	mu           sync.Mutex
	pending      []provider.Chunk
	pendingBytes int
	submitted    map[string][]provider.Chunk
}

var _ provider.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithMaxChunks sets the chunk-count flush threshold.
func WithMaxChunks(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxChunks = n
		}
	}
}

// WithMaxBytes sets the accumulated-text-size flush threshold.
func WithMaxBytes(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxBytes = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter creates a local adapter backed by the given embedder.
func NewAdapter(embedder ai.Embedder, opts ...Option) *Adapter {
	a := &Adapter{
		embedder:  embedder,
		maxChunks: DefaultMaxChunks,
		maxBytes:  DefaultMaxBytes,
		logger:    slog.Default().With("component", "local-adapter"),
		submitted: make(map[string][]provider.Chunk),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddChunk accumulates one chunk, flushing a batch when the count or size
// threshold is reached or the stream ends.
func (a *Adapter) AddChunk(ctx context.Context, chunk provider.Chunk, isLastChunk bool) (*provider.Submission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = append(a.pending, chunk)
	a.pendingBytes += len(chunk.Text)

	if len(a.pending) >= a.maxChunks || a.pendingBytes >= a.maxBytes || isLastChunk {
		return a.flushLocked(), nil
	}
	return nil, nil
}

// flushLocked moves the accumulation window into a new submitted batch.
// Must be called with the mutex held.
func (a *Adapter) flushLocked() *provider.Submission {
	if len(a.pending) == 0 {
		return nil
	}

	batchId := "local-" + uuid.NewString()
	a.submitted[batchId] = a.pending
	a.pending = nil
	a.pendingBytes = 0

	a.logger.Debug("flushed batch", "providerBatchId", batchId, "chunks", len(a.submitted[batchId]))
	return &provider.Submission{ProviderBatchId: batchId}
}

// PollOrCompleteBatch embeds the batch's chunks and streams one output per
// input. Embedder failure marks the batch failed rather than erroring the
// poll, mirroring how a real batch API reports terminal failure.
func (a *Adapter) PollOrCompleteBatch(ctx context.Context, providerBatchId string, onOutput func(provider.Output) error) (core.BatchStatus, error) {
	a.mu.Lock()
	chunks, ok := a.submitted[providerBatchId]
	a.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown provider batch id %q", providerBatchId)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := a.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		a.logger.Error("embedding batch failed", "providerBatchId", providerBatchId, "err", err)
		return core.BatchStatusFailed, nil
	}

	for i, chunk := range chunks {
		out := provider.Output{Id: chunk.Id}
		if i < len(vectors) && len(vectors[i]) > 0 {
			out.Embedding = vectors[i]
		} else {
			out.Error = "embedder returned no vector"
		}
		if err := onOutput(out); err != nil {
			return "", err
		}
	}

	return core.BatchStatusSucceeded, nil
}

// OnError releases the in-memory batches the run touched.
func (a *Adapter) OnError(ctx context.Context, notice provider.ErrorNotice) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range notice.ProviderBatchIds {
		delete(a.submitted, id)
	}
	a.logger.Warn("run reported failures",
		"batches", len(notice.ProviderBatchIds),
		"failedChunks", notice.FailedChunkCount,
		"err", notice.Err)
}
