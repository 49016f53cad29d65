package ai

import "context"

// Embedder turns chunk text into vector embeddings for similarity search.
// Implementations must be safe for concurrent use: the realtime ingest path
// and bulk batch polling both call into the same instance.
type Embedder interface {
	// EmbedText embeds a single text, typically a search query.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds a batch of chunk texts in one request. Results are
	// returned in input order, one vector per text; a short result set is
	// an error on the caller's side, never silently truncated here.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
