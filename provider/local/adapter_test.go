package local

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/poiesic/vectorpool/ai/mock"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/provider"
)

func TestAddChunkFlushesOnThresholdAndStreamEnd(t *testing.T) {
	adapter := NewAdapter(aimock.NewMockEmbedder(), WithMaxChunks(2))
	ctx := context.Background()

	sub, err := adapter.AddChunk(ctx, provider.Chunk{Id: "a", Text: "one"}, false)
	require.NoError(t, err)
	assert.Nil(t, sub, "below threshold, no flush")

	sub, err = adapter.AddChunk(ctx, provider.Chunk{Id: "b", Text: "two"}, false)
	require.NoError(t, err)
	require.NotNil(t, sub, "threshold reached")
	assert.NotEmpty(t, sub.ProviderBatchId)

	last, err := adapter.AddChunk(ctx, provider.Chunk{Id: "c", Text: "three"}, true)
	require.NoError(t, err)
	require.NotNil(t, last, "stream end flushes the remainder")
	assert.NotEqual(t, sub.ProviderBatchId, last.ProviderBatchId)
}

func TestAddChunkFlushesOnByteBudget(t *testing.T) {
	adapter := NewAdapter(aimock.NewMockEmbedder(), WithMaxBytes(8))

	sub, err := adapter.AddChunk(context.Background(), provider.Chunk{Id: "a", Text: "0123456789"}, false)
	require.NoError(t, err)
	assert.NotNil(t, sub, "oversized chunk flushes immediately")
}

func TestPollStreamsOneOutputPerInput(t *testing.T) {
	adapter := NewAdapter(aimock.NewMockEmbedder())
	ctx := context.Background()

	_, err := adapter.AddChunk(ctx, provider.Chunk{Id: "a", Text: "alpha"}, false)
	require.NoError(t, err)
	sub, err := adapter.AddChunk(ctx, provider.Chunk{Id: "b", Text: "beta"}, true)
	require.NoError(t, err)
	require.NotNil(t, sub)

	var got []provider.Output
	status, err := adapter.PollOrCompleteBatch(ctx, sub.ProviderBatchId, func(out provider.Output) error {
		got = append(got, out)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusSucceeded, status)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Id)
	assert.NotEmpty(t, got[0].Embedding)
	assert.Empty(t, got[0].Error)
}

func TestPollReportsEmbedderFailureAsFailedBatch(t *testing.T) {
	embedder := aimock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("endpoint unreachable")
	}
	adapter := NewAdapter(embedder)
	ctx := context.Background()

	sub, err := adapter.AddChunk(ctx, provider.Chunk{Id: "a", Text: "alpha"}, true)
	require.NoError(t, err)
	require.NotNil(t, sub)

	status, err := adapter.PollOrCompleteBatch(ctx, sub.ProviderBatchId, func(provider.Output) error {
		t.Fatal("failed batch must not stream outputs")
		return nil
	})
	require.NoError(t, err, "terminal batch failure is a status, not a poll error")
	assert.Equal(t, core.BatchStatusFailed, status)
}

func TestPollUnknownBatch(t *testing.T) {
	adapter := NewAdapter(aimock.NewMockEmbedder())

	_, err := adapter.PollOrCompleteBatch(context.Background(), "nope", func(provider.Output) error {
		return nil
	})
	assert.Error(t, err)
}

func TestOnErrorReleasesBatches(t *testing.T) {
	adapter := NewAdapter(aimock.NewMockEmbedder())
	ctx := context.Background()

	sub, err := adapter.AddChunk(ctx, provider.Chunk{Id: "a", Text: "alpha"}, true)
	require.NoError(t, err)
	require.NotNil(t, sub)

	adapter.OnError(ctx, provider.ErrorNotice{
		ProviderBatchIds: []string{sub.ProviderBatchId},
		Err:              errors.New("run aborted"),
	})

	_, err = adapter.PollOrCompleteBatch(ctx, sub.ProviderBatchId, func(provider.Output) error {
		return nil
	})
	assert.Error(t, err, "released batch is gone")
}
