package core

import (
	"errors"
	"testing"
)

func TestValidateChunkInputs(t *testing.T) {
	valid := []ChunkInput{{Chunk: "one"}, {Chunk: "two"}}
	if err := ValidateChunkInputs("posts", "42", valid); err != nil {
		t.Fatalf("Expected valid inputs to pass, got %v", err)
	}

	if err := ValidateChunkInputs("posts", "42", nil); err != nil {
		t.Fatalf("Empty input set is valid, got %v", err)
	}

	invalid := []ChunkInput{{Chunk: "ok"}, {Chunk: ""}, {Chunk: "ok"}, {Chunk: ""}}
	err := ValidateChunkInputs("posts", "42", invalid)
	if err == nil {
		t.Fatal("Expected error for empty chunks")
	}
	if !errors.Is(err, ErrInvalidChunkData) {
		t.Fatalf("Expected ErrInvalidChunkData, got %v", err)
	}
	want := "invalid chunk data for posts/42: Invalid indices: 1, 3"
	if err.Error() != want {
		t.Fatalf("Expected %q, got %q", want, err.Error())
	}
}

func TestValidateDocument(t *testing.T) {
	if err := ValidateDocument(&Document{Collection: "posts", Id: "42"}); err != nil {
		t.Fatalf("Expected valid document, got %v", err)
	}
	if err := ValidateDocument(nil); err == nil {
		t.Fatal("Expected error for nil document")
	}
	if err := ValidateDocument(&Document{Id: "42"}); !errors.Is(err, ErrEmptyCollection) {
		t.Fatalf("Expected ErrEmptyCollection, got %v", err)
	}
	if err := ValidateDocument(&Document{Collection: "posts"}); !errors.Is(err, ErrEmptyDocumentId) {
		t.Fatalf("Expected ErrEmptyDocumentId, got %v", err)
	}
}

func TestInputIdFormat(t *testing.T) {
	got := InputId("posts", "42", 7)
	if got != "posts:42:7" {
		t.Fatalf("Expected posts:42:7, got %s", got)
	}
}

func TestIDFromContentIsDeterministic(t *testing.T) {
	a := IDFromContent("same input")
	b := IDFromContent("same input")
	c := IDFromContent("different input")

	if a != b {
		t.Fatal("Expected identical content to produce identical IDs")
	}
	if a == c {
		t.Fatal("Expected different content to produce different IDs")
	}
	if a == 0 {
		t.Fatal("Expected non-zero ID")
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, terminal := range map[RunStatus]bool{
		RunStatusQueued:    false,
		RunStatusRunning:   false,
		RunStatusSucceeded: true,
		RunStatusFailed:    true,
		RunStatusCanceled:  true,
	} {
		if status.Terminal() != terminal {
			t.Fatalf("RunStatus %s: expected Terminal()=%v", status, terminal)
		}
	}

	if BatchStatusRetried.Terminal() != true {
		t.Fatal("Retried batches are terminal")
	}
	if BatchStatusRunning.Terminal() {
		t.Fatal("Running batches are not terminal")
	}
}
