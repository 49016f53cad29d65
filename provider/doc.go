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


// Package provider defines the adapter contract between the bulk embedding
// core and an external embedding batch API.
//
// The core streams chunks into Adapter.AddChunk one at a time; the adapter
// decides when to flush a batch and returns the provider's batch identifier.
// The core later drives Adapter.PollOrCompleteBatch until every batch is
// terminal, streaming per-input outputs as they become available.
//
// The local subpackage provides a reference adapter that serves batches from
// an ai.Embedder, useful for deployments without a true batch API and for
// exercising the full pipeline in development.
package provider
