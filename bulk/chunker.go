package bulk

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/vectorpool/core"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// FieldChunker is the default chunking function: it concatenates a
// document's configured text fields and splits the result with a recursive
// character splitter. Pools with richer needs supply their own Chunker.
type FieldChunker struct {
	fields   []string
	splitter textsplitter.RecursiveCharacter
}

var _ Chunker = (*FieldChunker)(nil)

// NewFieldChunker creates a chunker over the named document fields.
// Non-positive sizes fall back to the defaults (1000 runes, 100 overlap).
func NewFieldChunker(fields []string, chunkSize, chunkOverlap int) *FieldChunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	return &FieldChunker{
		fields: fields,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// ChunkDocument splits the document's configured fields into chunks.
// A document with no text in any configured field yields no chunks.
func (fc *FieldChunker) ChunkDocument(_ context.Context, doc *core.Document) ([]core.ChunkInput, error) {
	var parts []string
	for _, field := range fc.fields {
		if value, ok := doc.Fields[field].(string); ok && strings.TrimSpace(value) != "" {
			parts = append(parts, value)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	pieces, err := fc.splitter.SplitText(strings.Join(parts, "\n\n"))
	if err != nil {
		return nil, err
	}

	chunks := make([]core.ChunkInput, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, core.ChunkInput{Chunk: piece})
	}
	return chunks, nil
}
