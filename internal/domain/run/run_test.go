package run_test

import (
	"strings"
	"testing"

	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/domain/run"
)

func TestNew(t *testing.T) {
	doc := prd.New("Checkout flow", "desc", []prd.UserStory{
		{Title: "s", Description: "d", AcceptanceCriteria: []string{"a"}},
	})

	r := run.New(doc, "github", 10)

	if !strings.HasPrefix(r.ID, "run-") {
		t.Errorf("unexpected run id %q", r.ID)
	}
	if r.Status != run.StatusPending {
		t.Errorf("expected pending, got %s", r.Status)
	}
	if r.Branch != doc.BranchName {
		t.Errorf("branch %q does not match document %q", r.Branch, doc.BranchName)
	}
	if len(r.Stories) != 1 {
		t.Fatalf("expected 1 story copy, got %d", len(r.Stories))
	}

	// Iteration bookkeeping works on the copy, not the PRD.
	r.Stories[0].Attempts = 2
	if doc.UserStories[0].Attempts != 0 {
		t.Error("mutating run stories leaked into the source document")
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []run.Status{run.StatusCompleted, run.StatusFailed, run.StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []run.Status{run.StatusPending, run.StatusInitializing, run.StatusRunning, run.StatusPaused}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestAppendProgress(t *testing.T) {
	doc := prd.New("t", "d", []prd.UserStory{{Title: "s", Description: "d", AcceptanceCriteria: []string{"a"}}})
	r := run.New(doc, "", 1)

	r.AppendProgress("first")
	r.AppendProgress("second")

	if len(r.ProgressLog) != 2 || r.ProgressLog[1].Message != "second" {
		t.Errorf("unexpected progress log %+v", r.ProgressLog)
	}
	if r.ProgressLog[0].At.IsZero() {
		t.Error("log entry missing timestamp")
	}
}
