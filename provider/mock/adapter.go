package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/provider"
)

// MockAdapter is a scriptable test double for provider.Adapter.
// By default it flushes a batch every FlushEvery chunks (and at end of
// stream) and completes every batch successfully with a tiny vector per
// input. Function fields override individual behaviors.
type MockAdapter struct {
	// FlushEvery is the default batching policy: flush after this many
	// accumulated chunks. Zero means flush only at end of stream.
	FlushEvery int

	// AddChunkFunc overrides AddChunk entirely if set.
	AddChunkFunc func(ctx context.Context, chunk provider.Chunk, isLastChunk bool) (*provider.Submission, error)

	// PollFunc overrides PollOrCompleteBatch entirely if set.
	PollFunc func(ctx context.Context, providerBatchId string, onOutput func(provider.Output) error) (core.BatchStatus, error)

	// OutputFor customizes the output produced for one input id when the
	// default poll behavior runs. If nil, every input succeeds.
	OutputFor func(id string) provider.Output

	// PendingPolls makes the default poll behavior report "running" this
	// many times per batch before completing, to exercise rescheduling.
	PendingPolls int

	mu       sync.Mutex
	pending  []provider.Chunk
	batchSeq int
	batches  map[string][]provider.Chunk
	polls    map[string]int
	notices  []provider.ErrorNotice
}

var _ provider.Adapter = (*MockAdapter)(nil)

// NewMockAdapter creates a mock adapter with default behavior.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		batches: make(map[string][]provider.Chunk),
		polls:   make(map[string]int),
	}
}

// AddChunk accumulates chunks, flushing per FlushEvery and at end of stream.
func (m *MockAdapter) AddChunk(ctx context.Context, chunk provider.Chunk, isLastChunk bool) (*provider.Submission, error) {
	if m.AddChunkFunc != nil {
		return m.AddChunkFunc(ctx, chunk, isLastChunk)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append(m.pending, chunk)
	if (m.FlushEvery > 0 && len(m.pending) >= m.FlushEvery) || isLastChunk {
		m.batchSeq++
		id := fmt.Sprintf("mock-batch-%d", m.batchSeq)
		m.batches[id] = m.pending
		m.pending = nil
		return &provider.Submission{ProviderBatchId: id}, nil
	}
	return nil, nil
}

// PollOrCompleteBatch completes the batch, emitting one output per input.
func (m *MockAdapter) PollOrCompleteBatch(ctx context.Context, providerBatchId string, onOutput func(provider.Output) error) (core.BatchStatus, error) {
	if m.PollFunc != nil {
		return m.PollFunc(ctx, providerBatchId, onOutput)
	}

	m.mu.Lock()
	chunks, ok := m.batches[providerBatchId]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("unknown provider batch id %q", providerBatchId)
	}

	m.polls[providerBatchId]++
	if m.polls[providerBatchId] <= m.PendingPolls {
		m.mu.Unlock()
		return core.BatchStatusRunning, nil
	}
	m.mu.Unlock()

	for _, chunk := range chunks {
		out := provider.Output{Id: chunk.Id, Embedding: []float32{1, 0, 0}}
		if m.OutputFor != nil {
			out = m.OutputFor(chunk.Id)
		}
		if err := onOutput(out); err != nil {
			return "", err
		}
	}
	return core.BatchStatusSucceeded, nil
}

// OnError records the notice for assertions.
func (m *MockAdapter) OnError(ctx context.Context, notice provider.ErrorNotice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice)
}

// Batches returns the chunks flushed under each provider batch id.
func (m *MockAdapter) Batches() map[string][]provider.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]provider.Chunk, len(m.batches))
	for id, chunks := range m.batches {
		out[id] = chunks
	}
	return out
}

// Notices returns every ErrorNotice received.
func (m *MockAdapter) Notices() []provider.ErrorNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.ErrorNotice(nil), m.notices...)
}
