package markdownprd

import (
	"reflect"
	"testing"

	"github.com/Strob0t/RunForge/internal/domain/prd"
)

const sample = `# Inventory Service

## Overview

Track warehouse stock levels in real time.

## User Stories

### Record stock movement

As an operator I can record incoming and outgoing stock.

Acceptance Criteria:

- Movements adjust the on-hand quantity
- Negative on-hand is rejected

### Low-stock alert

Acceptance Criteria:

- Items under threshold appear on the alert list

## Technical Requirements

- PostgreSQL persistence
- Exactly-once movement processing

## Dependencies

- warehouse-gateway
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if doc.Title != "Inventory Service" {
		t.Errorf("title: %q", doc.Title)
	}
	if doc.Description != "Track warehouse stock levels in real time." {
		t.Errorf("description: %q", doc.Description)
	}
	if len(doc.UserStories) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(doc.UserStories))
	}

	first := doc.UserStories[0]
	if first.Title != "Record stock movement" {
		t.Errorf("story title: %q", first.Title)
	}
	if first.Description != "As an operator I can record incoming and outgoing stock." {
		t.Errorf("story description: %q", first.Description)
	}
	if len(first.AcceptanceCriteria) != 2 || first.AcceptanceCriteria[1] != "Negative on-hand is rejected" {
		t.Errorf("criteria: %v", first.AcceptanceCriteria)
	}
	if first.Attempts != 0 || first.Passes {
		t.Errorf("run state must start fresh: %+v", first)
	}
	if first.MaxAttempts != prd.DefaultMaxAttempts {
		t.Errorf("max attempts: %d", first.MaxAttempts)
	}

	if len(doc.TechnicalRequirements) != 2 || len(doc.Dependencies) != 1 {
		t.Errorf("extra sections: %v / %v", doc.TechnicalRequirements, doc.Dependencies)
	}
	if doc.ID == "" || doc.BranchName == "" {
		t.Error("parsed document must get an id and branch name")
	}
}

func TestRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	again, err := Parse(Render(doc))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	if again.Title != doc.Title || again.Description != doc.Description {
		t.Errorf("title/description drifted: %q %q", again.Title, again.Description)
	}
	if len(again.UserStories) != len(doc.UserStories) {
		t.Fatalf("story count drifted: %d vs %d", len(again.UserStories), len(doc.UserStories))
	}
	for i := range doc.UserStories {
		want, got := doc.UserStories[i], again.UserStories[i]
		if got.Title != want.Title || got.Description != want.Description {
			t.Errorf("story %d drifted: %+v vs %+v", i, got, want)
		}
		if !reflect.DeepEqual(got.AcceptanceCriteria, want.AcceptanceCriteria) {
			t.Errorf("story %d criteria drifted: %v vs %v", i, got.AcceptanceCriteria, want.AcceptanceCriteria)
		}
	}
	if !reflect.DeepEqual(again.TechnicalRequirements, doc.TechnicalRequirements) {
		t.Errorf("technical requirements drifted: %v", again.TechnicalRequirements)
	}
	if !reflect.DeepEqual(again.Dependencies, doc.Dependencies) {
		t.Errorf("dependencies drifted: %v", again.Dependencies)
	}
}

func TestParse_MissingStoriesSection(t *testing.T) {
	doc, err := Parse([]byte("# Title\n\n## Overview\n\nJust text.\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.UserStories) != 0 {
		t.Errorf("expected no stories, got %d", len(doc.UserStories))
	}
}
