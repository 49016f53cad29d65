package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

func TestDocumentPutAndGet(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	err = repos.Documents.PutDocuments(ctx, &core.Document{
		Collection: "articles",
		Id:         "doc-1",
		Fields:     map[string]any{"body": "hello"},
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}

	doc, err := repos.Documents.GetDocument(ctx, "articles", "doc-1")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if doc.Fields["body"] != "hello" {
		t.Fatalf("Unexpected document: %+v", doc)
	}

	_, err = repos.Documents.GetDocument(ctx, "articles", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListDocumentsPaginates(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		err := repos.Documents.PutDocuments(ctx, &core.Document{
			Collection: "articles", Id: id, UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Failed to put document %s: %v", id, err)
		}
	}
	// A document in another collection must not leak into the scan.
	err = repos.Documents.PutDocuments(ctx, &core.Document{
		Collection: "pages", Id: "a", UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}

	var got []string
	afterId := ""
	for {
		page, err := repos.Documents.ListDocuments(ctx, "articles", afterId, 2)
		if err != nil {
			t.Fatalf("Failed to list documents: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, doc := range page {
			got = append(got, doc.Id)
		}
		afterId = page[len(page)-1].Id
	}

	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}
