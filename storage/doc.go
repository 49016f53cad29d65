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


// Package storage provides the storage abstraction layer for vectorpool.
//
// This package defines repository interfaces that decouple storage
// implementation from orchestration logic. It allows different storage
// backends (BadgerDB, in-memory, a host CMS's own database) to be used
// interchangeably.
//
// # Records
//
//   - RunRepository: bulk embedding runs, indexed by (pool, status)
//   - BatchRepository: provider batches, indexed by (run, index)
//   - InputMetadataRepository: per-chunk metadata, indexed by (run, inputID)
//     and by batch
//   - EmbeddingRepository: knowledge pool rows keyed by
//     (pool, collection, documentID, chunkIndex), plus similarity search
//   - DocumentRepository: paged access to source documents
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and timeout
// support.
package storage
