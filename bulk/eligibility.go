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


package bulk

import (
	"context"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

const (
	// DefaultPageSize is the default number of documents fetched per page.
	DefaultPageSize = 100
)

// Filter enumerates the documents of a pool's collections that need
// (re-)embedding. The scan is paged and keyed by document id, so it is
// resumable and never assumes the full document set fits in memory.
type Filter struct {
	documents  storage.DocumentRepository
	embeddings storage.EmbeddingRepository
	pageSize   int
}

// NewFilter creates an eligibility filter.
// pageSize: number of documents to fetch per page (must be > 0)
func NewFilter(documents storage.DocumentRepository, embeddings storage.EmbeddingRepository, pageSize int) *Filter {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Filter{
		documents:  documents,
		embeddings: embeddings,
		pageSize:   pageSize,
	}
}

// ForEachEligible calls fn for every document in the pool's collections that
// needs (re-)embedding. A document is eligible when the pool's predicate
// (if any) does not reject it, and it either has no embedding rows for the
// pool or any of its rows carries a different embedding version. Iteration
// stops on the first error from fn. Context cancellation is checked between
// pages.
func (f *Filter) ForEachEligible(ctx context.Context, pool *Pool, fn func(*core.Document) error) error {
	for _, collection := range pool.Collections {
		afterId := ""
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			page, err := f.documents.ListDocuments(ctx, collection, afterId, f.pageSize)
			if err != nil {
				return err
			}
			if len(page) == 0 {
				break
			}

			for _, doc := range page {
				eligible, err := f.eligible(ctx, pool, doc)
				if err != nil {
					return err
				}
				if !eligible {
					continue
				}
				if err := fn(doc); err != nil {
					return err
				}
			}

			afterId = page[len(page)-1].Id
		}
	}
	return nil
}

// eligible decides whether one document needs (re-)embedding.
func (f *Filter) eligible(ctx context.Context, pool *Pool, doc *core.Document) (bool, error) {
	if pool.Eligibility != nil {
		ok, err := pool.Eligibility.ShouldEmbed(ctx, doc)
		if err != nil {
			return false, err
		}
		if !ok {
			// Rejected documents are skipped entirely: no new rows,
			// no deletion of pre-existing ones.
			return false, nil
		}
	}

	rows, err := f.embeddings.GetDocumentEmbeddings(ctx, pool.Name, doc.Collection, doc.Id)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return true, nil
	}
	for _, row := range rows {
		if row.EmbeddingVersion != pool.EmbeddingVersion {
			return true, nil
		}
	}
	return false, nil
}
