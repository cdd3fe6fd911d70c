// Package prd defines the Product Requirements Document entity and the pure
// operations the rest of the system derives run state from.
package prd

import (
	"fmt"
	"time"
)

// Priority orders user stories by importance.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// DefaultMaxAttempts bounds how often a single story is retried.
const DefaultMaxAttempts = 3

// UserStory is one acceptance-criteria-bounded unit of work with
// attempt/pass tracking.
type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Priority           Priority `json:"priority"`
	Passes             bool     `json:"passes"`
	Attempts           int      `json:"attempts"`
	MaxAttempts        int      `json:"max_attempts"`
	LastError          string   `json:"last_error,omitempty"`
	EstimatedEffort    string   `json:"estimated_effort,omitempty"`
}

// Resolved reports whether the story has been accepted.
func (s *UserStory) Resolved() bool { return s.Passes }

// Exhausted reports whether the story has used all attempts without passing.
func (s *UserStory) Exhausted() bool {
	return !s.Passes && s.Attempts >= s.MaxAttempts
}

// Document is a task specification decomposed into user stories.
type Document struct {
	ID                    string      `json:"id"`
	Title                 string      `json:"title"`
	Description           string      `json:"description"`
	Version               string      `json:"version"`
	BranchName            string      `json:"branch_name"`
	UserStories           []UserStory `json:"user_stories"`
	TechnicalRequirements []string    `json:"technical_requirements,omitempty"`
	Dependencies          []string    `json:"dependencies,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// StoryNotFoundError reports a story id absent from a document.
type StoryNotFoundError struct {
	PRDID   string
	StoryID string
}

func (e *StoryNotFoundError) Error() string {
	return fmt.Sprintf("prd %s: story %s not found", e.PRDID, e.StoryID)
}

// StoryPatch is a partial update applied to a single story. Nil fields are
// left unchanged.
type StoryPatch struct {
	Passes    *bool
	Attempts  *int
	LastError *string
}

// UpdateStory returns a copy of doc with the identified story patched.
// The input document is never mutated.
func UpdateStory(doc *Document, storyID string, patch StoryPatch) (*Document, error) {
	idx := -1
	for i := range doc.UserStories {
		if doc.UserStories[i].ID == storyID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &StoryNotFoundError{PRDID: doc.ID, StoryID: storyID}
	}

	out := *doc
	out.UserStories = make([]UserStory, len(doc.UserStories))
	copy(out.UserStories, doc.UserStories)

	story := &out.UserStories[idx]
	if patch.Passes != nil {
		story.Passes = *patch.Passes
	}
	if patch.Attempts != nil {
		story.Attempts = *patch.Attempts
	}
	if patch.LastError != nil {
		story.LastError = *patch.LastError
	}
	out.UpdatedAt = time.Now().UTC()

	return &out, nil
}
