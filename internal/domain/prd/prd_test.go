package prd_test

import (
	"errors"
	"testing"

	"github.com/Strob0t/RunForge/internal/domain/prd"
)

func sampleDoc() *prd.Document {
	return prd.New("Payments API", "Card payments service", []prd.UserStory{
		{
			ID:                 "s1",
			Title:              "Charge a card",
			Description:        "As a merchant I can charge a card",
			AcceptanceCriteria: []string{"charge succeeds", "receipt is issued"},
			Priority:           prd.PriorityHigh,
			MaxAttempts:        3,
		},
		{
			ID:                 "s2",
			Title:              "Refund a charge",
			Description:        "As a merchant I can refund",
			AcceptanceCriteria: []string{"refund succeeds"},
			Priority:           prd.PriorityMedium,
			MaxAttempts:        3,
		},
	})
}

func TestUpdateStory_PatchesTargetOnly(t *testing.T) {
	doc := sampleDoc()

	passes := true
	attempts := 2
	updated, err := prd.UpdateStory(doc, "s1", prd.StoryPatch{Passes: &passes, Attempts: &attempts})
	if err != nil {
		t.Fatalf("update story: %v", err)
	}

	if !updated.UserStories[0].Passes || updated.UserStories[0].Attempts != 2 {
		t.Errorf("patch not applied: %+v", updated.UserStories[0])
	}
	if updated.UserStories[1].Passes || updated.UserStories[1].Attempts != 0 {
		t.Errorf("sibling story changed: %+v", updated.UserStories[1])
	}
}

func TestUpdateStory_DoesNotMutateInput(t *testing.T) {
	doc := sampleDoc()

	passes := true
	if _, err := prd.UpdateStory(doc, "s2", prd.StoryPatch{Passes: &passes}); err != nil {
		t.Fatalf("update story: %v", err)
	}
	if doc.UserStories[1].Passes {
		t.Error("input document was mutated")
	}
}

func TestUpdateStory_NilFieldsUnchanged(t *testing.T) {
	doc := sampleDoc()
	doc.UserStories[0].Attempts = 2
	doc.UserStories[0].LastError = "flaky test"

	passes := true
	updated, err := prd.UpdateStory(doc, "s1", prd.StoryPatch{Passes: &passes})
	if err != nil {
		t.Fatalf("update story: %v", err)
	}
	if updated.UserStories[0].Attempts != 2 {
		t.Errorf("attempts changed without a patch: %d", updated.UserStories[0].Attempts)
	}
	if updated.UserStories[0].LastError != "flaky test" {
		t.Errorf("last error changed without a patch: %q", updated.UserStories[0].LastError)
	}
}

func TestUpdateStory_UnknownID(t *testing.T) {
	doc := sampleDoc()

	_, err := prd.UpdateStory(doc, "nope", prd.StoryPatch{})
	var notFound *prd.StoryNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected StoryNotFoundError, got %v", err)
	}
	if notFound.StoryID != "nope" {
		t.Errorf("expected story id in error, got %q", notFound.StoryID)
	}
}

func TestStoryExhausted(t *testing.T) {
	s := prd.UserStory{Attempts: 3, MaxAttempts: 3}
	if !s.Exhausted() {
		t.Error("expected exhausted at max attempts")
	}
	s.Passes = true
	if s.Exhausted() {
		t.Error("passing story can never be exhausted")
	}
	s = prd.UserStory{Attempts: 1, MaxAttempts: 3}
	if s.Exhausted() {
		t.Error("story with remaining attempts is not exhausted")
	}
}
