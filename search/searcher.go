package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/vectorpool/ai"
	"github.com/poiesic/vectorpool/bulk"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

const (
	defaultMinSimilarity = float32(0.60)
	defaultMaxHits       = 10

	// verbatimBoost is added when every query word appears in the chunk text.
	verbatimBoost = float32(0.3)
)

// Searcher answers similarity queries against a knowledge pool.
type Searcher struct {
	embeddings    storage.EmbeddingRepository
	embedder      ai.Embedder
	minSimilarity float32
	maxHits       int
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the similarity floor below which rows are excluded.
// Default is 0.60.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = min
		return nil
	}
}

// WithMaxHits sets the maximum number of results returned.
// Default is 10.
func WithMaxHits(max int) Option {
	return func(s *Searcher) error {
		if max < 1 {
			max = 1
		}
		s.maxHits = max
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(embeddings storage.EmbeddingRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if embeddings == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		embeddings:    embeddings,
		embedder:      embedder,
		minSimilarity: defaultMinSimilarity,
		maxHits:       defaultMaxHits,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// Search embeds the query and returns the pool's most similar chunks,
// highest score first. Chunks containing every query word verbatim get a
// small boost over pure vector similarity.
func (s *Searcher) Search(ctx context.Context, pool, query string) ([]*core.SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error embedding query", "pool", pool, "err", err)
		return nil, err
	}
	vector = bulk.NormalizeVector(vector)

	// Over-fetch so the verbatim boost can promote rows past the cutoff.
	results, err := s.embeddings.FindSimilar(ctx, pool, vector, s.minSimilarity, s.maxHits*2)
	if err != nil {
		s.logger.Error("error searching embeddings", "pool", pool, "err", err)
		return nil, err
	}

	for _, result := range results {
		if containsAllQueryWords(result.Embedding.Chunk, query) {
			result.Score += verbatimBoost
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > s.maxHits {
		results = results[:s.maxHits]
	}

	s.logger.Debug("search complete", "pool", pool, "hits", len(results))
	return results, nil
}
