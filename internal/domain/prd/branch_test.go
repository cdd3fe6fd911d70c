package prd_test

import (
	"strings"
	"testing"

	"github.com/Strob0t/RunForge/internal/domain/prd"
)

func TestGenerateBranchName_Shape(t *testing.T) {
	name := prd.GenerateBranchName("Add OAuth2 Login!")

	if !strings.HasPrefix(name, "runforge/add-oauth2-login-") {
		t.Errorf("unexpected branch name %q", name)
	}
	if len(name) > 60 {
		t.Errorf("branch name exceeds 60 chars: %q (%d)", name, len(name))
	}
}

func TestGenerateBranchName_TruncatesLongTitles(t *testing.T) {
	title := strings.Repeat("very long product requirements title ", 5)
	name := prd.GenerateBranchName(title)

	if len(name) > 60 {
		t.Errorf("branch name exceeds 60 chars: %q (%d)", name, len(name))
	}
	if strings.Contains(name, "--") {
		t.Errorf("double hyphen in %q", name)
	}
}

func TestGenerateBranchName_EmptyTitle(t *testing.T) {
	name := prd.GenerateBranchName("!!!")
	if !strings.HasPrefix(name, "runforge/prd-") {
		t.Errorf("expected fallback slug, got %q", name)
	}
}

func TestGenerateBranchName_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		name := prd.GenerateBranchName("Same Title")
		if seen[name] {
			t.Fatalf("duplicate branch name %q", name)
		}
		seen[name] = true
	}
}
