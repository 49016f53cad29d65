package bulk

import (
	"context"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/provider"
)

// Chunker converts one source document into an ordered list of embeddable
// chunks. Entries with an empty Chunk string fail validation before anything
// is submitted to the provider.
type Chunker interface {
	ChunkDocument(ctx context.Context, doc *core.Document) ([]core.ChunkInput, error)
}

// ChunkerFunc adapts a function to the Chunker interface.
type ChunkerFunc func(ctx context.Context, doc *core.Document) ([]core.ChunkInput, error)

func (f ChunkerFunc) ChunkDocument(ctx context.Context, doc *core.Document) ([]core.ChunkInput, error) {
	return f(ctx, doc)
}

// Eligibility is an optional per-pool predicate. A document it rejects is
// skipped entirely: no embeddings are created and no pre-existing rows are
// deleted by that pass.
type Eligibility interface {
	ShouldEmbed(ctx context.Context, doc *core.Document) (bool, error)
}

// EligibilityFunc adapts a function to the Eligibility interface.
type EligibilityFunc func(ctx context.Context, doc *core.Document) (bool, error)

func (f EligibilityFunc) ShouldEmbed(ctx context.Context, doc *core.Document) (bool, error) {
	return f(ctx, doc)
}

// Pool binds one knowledge pool to its capabilities: the collections it
// watches, the version stamped on its rows, the chunking function, the
// optional eligibility predicate, and the provider adapter that owns all
// batching policy.
type Pool struct {
	Name             string
	EmbeddingVersion string
	Collections      []string
	Chunker          Chunker
	Adapter          provider.Adapter
	Eligibility      Eligibility // optional
}

// Validate checks that the pool definition is complete.
func (p *Pool) Validate() error {
	if p.Name == "" {
		return core.ErrEmptyPoolName
	}
	if p.EmbeddingVersion == "" {
		return core.ErrEmptyEmbeddingVersion
	}
	if len(p.Collections) == 0 {
		return ErrNoCollections
	}
	if p.Chunker == nil {
		return ErrChunkerRequired
	}
	if p.Adapter == nil {
		return ErrAdapterRequired
	}
	return nil
}
