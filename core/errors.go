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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunkData indicates a chunking function produced malformed entries.
	ErrInvalidChunkData = errors.New("invalid chunk data")

	// ErrEmptyPoolName indicates the knowledge pool name is empty.
	ErrEmptyPoolName = errors.New("pool name cannot be empty")

	// ErrEmptyEmbeddingVersion indicates the embedding version is empty.
	ErrEmptyEmbeddingVersion = errors.New("embedding version cannot be empty")

	// ErrEmptyCollection indicates a document has no collection name.
	ErrEmptyCollection = errors.New("collection cannot be empty")

	// ErrEmptyDocumentId indicates a document has no identifier.
	ErrEmptyDocumentId = errors.New("document id cannot be empty")
)
