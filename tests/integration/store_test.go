//go:build integration

package integration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/RunForge/internal/adapter/postgres"
	"github.com/Strob0t/RunForge/internal/domain"
	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/domain/run"
)

func testDocument() *prd.Document {
	return prd.New("Checkout flow", "Implement checkout", []prd.UserStory{
		{Title: "Add to cart", Description: "d", AcceptanceCriteria: []string{"a"}},
		{Title: "Pay", Description: "d", AcceptanceCriteria: []string{"a"}},
	})
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewStore(testPool)

	r := run.New(testDocument(), "github", 10)
	if err := store.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := store.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != run.StatusPending || got.Branch != r.Branch || got.Provider != "github" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if len(got.Stories) != 2 || got.PRD.Title != "Checkout flow" {
		t.Errorf("embedded documents not restored: %+v", got)
	}

	got.Status = run.StatusRunning
	got.Iteration = 3
	got.AppendProgress("story run-1 passed")
	if err := store.UpdateRun(ctx, got); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err = store.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun after update: %v", err)
	}
	if got.Status != run.StatusRunning || got.Iteration != 3 || len(got.ProgressLog) != 1 {
		t.Errorf("update not persisted: %+v", got)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) == 0 {
		t.Error("ListRuns returned nothing")
	}

	if err := store.DeleteRun(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := store.GetRun(ctx, r.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_RunNotFound(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewStore(testPool)

	if _, err := store.GetRun(ctx, "run-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRun: expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateRun(ctx, run.New(testDocument(), "", 10)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateRun: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteRun(ctx, "run-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteRun: expected ErrNotFound, got %v", err)
	}
}

func TestStore_PRDLifecycle(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewStore(testPool)

	doc := testDocument()
	doc.TechnicalRequirements = []string{"idempotent charges"}
	doc.Dependencies = []string{"payment-gateway"}
	if err := store.CreatePRD(ctx, doc); err != nil {
		t.Fatalf("CreatePRD: %v", err)
	}

	got, err := store.GetPRD(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetPRD: %v", err)
	}
	if got.Title != doc.Title || got.BranchName != doc.BranchName || len(got.UserStories) != 2 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if len(got.TechnicalRequirements) != 1 || got.Dependencies[0] != "payment-gateway" {
		t.Errorf("text arrays not restored: %+v", got)
	}

	got.UserStories[0].Passes = true
	got.UserStories[0].Attempts = 1
	if err := store.UpdatePRD(ctx, got); err != nil {
		t.Fatalf("UpdatePRD: %v", err)
	}

	got, err = store.GetPRD(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetPRD after update: %v", err)
	}
	if !got.UserStories[0].Passes {
		t.Error("story update not persisted")
	}

	docs, err := store.ListPRDs(ctx)
	if err != nil {
		t.Fatalf("ListPRDs: %v", err)
	}
	if len(docs) == 0 {
		t.Error("ListPRDs returned nothing")
	}

	if err := store.DeletePRD(ctx, doc.ID); err != nil {
		t.Fatalf("DeletePRD: %v", err)
	}
	if _, err := store.GetPRD(ctx, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
