// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import "github.com/poiesic/vectorpool/storage"

// MemoryRepositories bundles the in-memory repositories used by tests.
// Callers must Close when done.
type MemoryRepositories struct {
	Backend    *Backend
	Runs       storage.RunRepository
	Batches    storage.BatchRepository
	Metadata   storage.InputMetadataRepository
	Embeddings storage.EmbeddingRepository
	Documents  storage.DocumentRepository
}

// NewMemoryRepositories creates in-memory repositories for testing.
func NewMemoryRepositories() (*MemoryRepositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	runs, err := NewRunRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	batches, err := NewBatchRepository(backend)
	if err != nil {
		runs.Close()
		backend.Close()
		return nil, err
	}

	return &MemoryRepositories{
		Backend:    backend,
		Runs:       runs,
		Batches:    batches,
		Metadata:   NewInputMetadataRepository(backend),
		Embeddings: NewEmbeddingRepository(backend),
		Documents:  NewDocumentRepository(backend),
	}, nil
}

// Close releases all repositories and the backing store.
func (m *MemoryRepositories) Close() error {
	m.Metadata.Close()
	m.Embeddings.Close()
	m.Documents.Close()
	m.Batches.Close()
	m.Runs.Close()
	return m.Backend.Close()
}
