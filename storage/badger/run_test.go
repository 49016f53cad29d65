package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/storage"
)

func TestRunLifecycle(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	run, err := repos.Runs.CreateRun(ctx, &core.Run{
		Pool:             "pool-a",
		EmbeddingVersion: "v1",
		Status:           core.RunStatusQueued,
		SubmittedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if run.Id == 0 {
		t.Fatal("Expected non-zero run ID")
	}

	retrieved, err := repos.Runs.GetRun(ctx, run.Id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if retrieved.Pool != "pool-a" || retrieved.Status != core.RunStatusQueued {
		t.Fatalf("Unexpected run: %+v", retrieved)
	}

	retrieved.Status = core.RunStatusRunning
	if err := repos.Runs.UpdateRun(ctx, retrieved); err != nil {
		t.Fatalf("Failed to update run: %v", err)
	}

	active, err := repos.Runs.FindActiveRun(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Failed to find active run: %v", err)
	}
	if active.Id != run.Id || active.Status != core.RunStatusRunning {
		t.Fatalf("Unexpected active run: %+v", active)
	}
}

func TestCreateRunEnforcesSingleFlight(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	first, err := repos.Runs.CreateRun(ctx, &core.Run{
		Pool: "pool-a", EmbeddingVersion: "v1", Status: core.RunStatusQueued,
	})
	if err != nil {
		t.Fatalf("Failed to create first run: %v", err)
	}

	_, err = repos.Runs.CreateRun(ctx, &core.Run{
		Pool: "pool-a", EmbeddingVersion: "v1", Status: core.RunStatusQueued,
	})
	if !errors.Is(err, storage.ErrActiveRunExists) {
		t.Fatalf("Expected ErrActiveRunExists, got %v", err)
	}

	// A different pool is unaffected.
	if _, err := repos.Runs.CreateRun(ctx, &core.Run{
		Pool: "pool-b", EmbeddingVersion: "v1", Status: core.RunStatusQueued,
	}); err != nil {
		t.Fatalf("Create for other pool failed: %v", err)
	}

	// Completing the first run frees the slot.
	first.Status = core.RunStatusSucceeded
	if err := repos.Runs.UpdateRun(ctx, first); err != nil {
		t.Fatalf("Failed to update run: %v", err)
	}
	if _, err := repos.Runs.CreateRun(ctx, &core.Run{
		Pool: "pool-a", EmbeddingVersion: "v1", Status: core.RunStatusQueued,
	}); err != nil {
		t.Fatalf("Create after completion failed: %v", err)
	}
}

func TestFindActiveRunNotFound(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	_, err = repos.Runs.FindActiveRun(context.Background(), "empty-pool")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	var ids []core.ID
	for i := 0; i < 3; i++ {
		run, err := repos.Runs.CreateRun(ctx, &core.Run{
			Pool: "pool-a", EmbeddingVersion: "v1", Status: core.RunStatusQueued,
		})
		if err != nil {
			t.Fatalf("Failed to create run %d: %v", i, err)
		}
		ids = append(ids, run.Id)

		run.Status = core.RunStatusSucceeded
		if err := repos.Runs.UpdateRun(ctx, run); err != nil {
			t.Fatalf("Failed to complete run %d: %v", i, err)
		}
	}

	runs, err := repos.Runs.ListRuns(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	for i, run := range runs {
		if run.Id != ids[len(ids)-1-i] {
			t.Fatalf("Expected newest-first order, got %v", runs)
		}
	}
}

func TestUpdateRunNotFound(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	err = repos.Runs.UpdateRun(context.Background(), &core.Run{Id: 12345, Pool: "pool-a"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
