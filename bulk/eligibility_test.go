package bulk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/vectorpool/core"
	providermock "github.com/poiesic/vectorpool/provider/mock"
)

func eligibleIds(t *testing.T, env *testEnv) []string {
	t.Helper()
	filter := NewFilter(env.repos.Documents, env.repos.Embeddings, 2)
	var ids []string
	err := filter.ForEachEligible(context.Background(), env.pool, func(doc *core.Document) error {
		ids = append(ids, doc.Id)
		return nil
	})
	require.NoError(t, err)
	return ids
}

func putRow(t *testing.T, env *testEnv, documentId, version string) {
	t.Helper()
	err := env.repos.Embeddings.UpsertEmbedding(context.Background(), &core.Embedding{
		Pool:             env.pool.Name,
		Collection:       "articles",
		DocumentId:       documentId,
		ChunkIndex:       0,
		Chunk:            "existing",
		EmbeddingVersion: version,
		Vector:           []float32{1, 0, 0},
		InsertedAt:       time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestFilterSelectsNewAndStaleDocuments(t *testing.T) {
	env := newTestEnv(t, providermock.NewMockAdapter())

	env.addDocument(t, "fresh", "already embedded at the current version")
	env.addDocument(t, "stale", "embedded with an older version")
	env.addDocument(t, "new", "never embedded")

	putRow(t, env, "fresh", "v1")
	putRow(t, env, "stale", "v0")

	assert.Equal(t, []string{"new", "stale"}, eligibleIds(t, env))
}

func TestFilterPredicateGatesEverything(t *testing.T) {
	env := newTestEnv(t, providermock.NewMockAdapter())
	env.pool.Eligibility = EligibilityFunc(func(_ context.Context, doc *core.Document) (bool, error) {
		return doc.Fields["draft"] != true, nil
	})

	env.addDocument(t, "published", "ready to embed")
	err := env.repos.Documents.PutDocuments(context.Background(), &core.Document{
		Collection: "articles",
		Id:         "draft",
		Fields:     map[string]any{"body": "not yet", "draft": true},
		UpdatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	// Even a stale row does not override the predicate.
	putRow(t, env, "draft", "v0")

	assert.Equal(t, []string{"published"}, eligibleIds(t, env))

	// The rejected document's rows are left untouched.
	rows, err := env.repos.Embeddings.GetDocumentEmbeddings(context.Background(), env.pool.Name, "articles", "draft")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFilterPagesThroughLargeCollections(t *testing.T) {
	env := newTestEnv(t, providermock.NewMockAdapter())

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		env.addDocument(t, id, "text for "+id)
	}

	// Page size 2 forces three pages.
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, eligibleIds(t, env))
}

func TestFilterStopsOnContextCancellation(t *testing.T) {
	env := newTestEnv(t, providermock.NewMockAdapter())
	env.addDocument(t, "doc-1", "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	filter := NewFilter(env.repos.Documents, env.repos.Embeddings, 2)
	err := filter.ForEachEligible(ctx, env.pool, func(*core.Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
