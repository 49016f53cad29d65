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


package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/poiesic/vectorpool/core"
)

// Records are stored as JSON. Run, batch, and metadata records are
// low-volume job-control state, so the decode cost is irrelevant next to
// the provider round trips they track.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id must be 8 bytes, got %d", ErrSerializationFailed, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// MarshalRun serializes a Run to bytes.
func MarshalRun(run *core.Run) ([]byte, error) {
	return marshal(run)
}

// UnmarshalRun deserializes a Run from bytes.
func UnmarshalRun(data []byte) (*core.Run, error) {
	return unmarshal[core.Run](data)
}

// MarshalBatch serializes a Batch to bytes.
func MarshalBatch(batch *core.Batch) ([]byte, error) {
	return marshal(batch)
}

// UnmarshalBatch deserializes a Batch from bytes.
func UnmarshalBatch(data []byte) (*core.Batch, error) {
	return unmarshal[core.Batch](data)
}

// MarshalInputMetadata serializes an InputMetadata to bytes.
func MarshalInputMetadata(meta *core.InputMetadata) ([]byte, error) {
	return marshal(meta)
}

// UnmarshalInputMetadata deserializes an InputMetadata from bytes.
func UnmarshalInputMetadata(data []byte) (*core.InputMetadata, error) {
	return unmarshal[core.InputMetadata](data)
}

// MarshalEmbedding serializes an Embedding to bytes.
func MarshalEmbedding(row *core.Embedding) ([]byte, error) {
	return marshal(row)
}

// UnmarshalEmbedding deserializes an Embedding from bytes.
func UnmarshalEmbedding(data []byte) (*core.Embedding, error) {
	return unmarshal[core.Embedding](data)
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	return marshal(doc)
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	return unmarshal[core.Document](data)
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}
