package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectorpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/vectorpool
workers: 4
embedding:
  host: http://localhost:11434
  model: embeddinggemma
pools:
  - name: articles-pool
    embedding_version: v3
    collections: [articles, pages]
    chunk_fields: [title, body]
    chunk_size: 800
    chunk_overlap: 80
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/vectorpool", cfg.DataDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "embeddinggemma", cfg.Embedding.Model)
	require.Len(t, cfg.Pools, 1)
	assert.Equal(t, "articles-pool", cfg.Pools[0].Name)
	assert.Equal(t, "v3", cfg.Pools[0].EmbeddingVersion)
	assert.Equal(t, []string{"articles", "pages"}, cfg.Pools[0].Collections)
	assert.Equal(t, 800, cfg.Pools[0].ChunkSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsIncompletePools(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing version",
			yaml: "data_dir: d\npools:\n  - name: p\n    collections: [a]\n    chunk_fields: [body]\n",
			want: "embedding_version",
		},
		{
			name: "missing collections",
			yaml: "data_dir: d\npools:\n  - name: p\n    embedding_version: v1\n    chunk_fields: [body]\n",
			want: "collection",
		},
		{
			name: "missing chunk fields",
			yaml: "data_dir: d\npools:\n  - name: p\n    embedding_version: v1\n    collections: [a]\n",
			want: "chunk field",
		},
		{
			name: "duplicate names",
			yaml: "data_dir: d\npools:\n  - name: p\n    embedding_version: v1\n    collections: [a]\n    chunk_fields: [body]\n  - name: p\n    embedding_version: v1\n    collections: [a]\n    chunk_fields: [body]\n",
			want: "duplicate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateRequiresDataDirUnlessInMemory(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.InMemory = true
	assert.NoError(t, cfg.Validate())
}
