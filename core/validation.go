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

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateChunkInputs validates the entries produced by a chunking function
// for one document.
//
// Validation rules:
//   - every entry must carry a non-empty Chunk string
//
// NOT validated:
//   - Extensions (opaque to this plugin, merged into rows as-is)
//
// The returned error names every offending zero-based index, e.g.
// "invalid chunk data for posts/42: Invalid indices: 1, 3".
func ValidateChunkInputs(collection, documentId string, inputs []ChunkInput) error {
	var invalid []string
	for i, input := range inputs {
		if input.Chunk == "" {
			invalid = append(invalid, strconv.Itoa(i))
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return fmt.Errorf("%w for %s/%s: Invalid indices: %s",
		ErrInvalidChunkData, collection, documentId, strings.Join(invalid, ", "))
}

// ValidateDocument validates the identity fields of a source document.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrEmptyDocumentId)
	}
	if doc.Collection == "" {
		return ErrEmptyCollection
	}
	if doc.Id == "" {
		return ErrEmptyDocumentId
	}
	return nil
}
