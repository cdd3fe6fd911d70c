package prd

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var errTemplateNotFound = errors.New("template not found")

// Template is a reusable PRD skeleton. Story ids inside a template are
// relative; NewFromTemplate re-prefixes them with the new document id.
type Template struct {
	ID          string      `json:"id"`
	Category    string      `json:"category"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Stories     []UserStory `json:"stories"`
}

// templates is the built-in catalog, keyed by template id.
var templates = map[string]Template{
	"api-service": {
		ID:          "api-service",
		Category:    "backend",
		Title:       "REST API Service",
		Description: "A REST API service with persistence and health checks.",
		Stories: []UserStory{
			{
				ID:          "story-1",
				Title:       "CRUD endpoints",
				Description: "Expose create, read, update and delete endpoints for the primary resource.",
				AcceptanceCriteria: []string{
					"All four endpoints return JSON",
					"Invalid payloads return 400 with an error body",
				},
				Priority: PriorityHigh,
			},
			{
				ID:          "story-2",
				Title:       "Health endpoint",
				Description: "Expose a liveness endpoint reporting service and dependency health.",
				AcceptanceCriteria: []string{
					"GET /healthz returns 200 when dependencies are reachable",
				},
				Priority: PriorityMedium,
			},
		},
	},
	"web-app": {
		ID:          "web-app",
		Category:    "frontend",
		Title:       "Web Application",
		Description: "A browser application talking to an existing API.",
		Stories: []UserStory{
			{
				ID:          "story-1",
				Title:       "List view",
				Description: "Render the primary resource collection with pagination.",
				AcceptanceCriteria: []string{
					"Collection renders from the API",
					"Pagination controls change the visible page",
				},
				Priority: PriorityHigh,
			},
			{
				ID:          "story-2",
				Title:       "Detail view",
				Description: "Render a single resource with edit support.",
				AcceptanceCriteria: []string{
					"Detail page loads by id",
					"Edits persist through the API",
				},
				Priority: PriorityMedium,
			},
			{
				ID:          "story-3",
				Title:       "Error states",
				Description: "Surface API failures to the user without losing state.",
				AcceptanceCriteria: []string{
					"Failed requests show a retryable error banner",
				},
				Priority: PriorityLow,
			},
		},
	},
	"cli-tool": {
		ID:          "cli-tool",
		Category:    "tooling",
		Title:       "Command-Line Tool",
		Description: "A single-binary command-line tool.",
		Stories: []UserStory{
			{
				ID:          "story-1",
				Title:       "Core command",
				Description: "Implement the primary command with flag parsing and exit codes.",
				AcceptanceCriteria: []string{
					"Command succeeds on valid input with exit code 0",
					"Usage text prints on --help",
				},
				Priority: PriorityHigh,
			},
			{
				ID:          "story-2",
				Title:       "Machine-readable output",
				Description: "Add a JSON output mode for scripting.",
				AcceptanceCriteria: []string{
					"--json emits valid JSON on stdout",
				},
				Priority: PriorityMedium,
			},
		},
	},
	"bugfix": {
		ID:          "bugfix",
		Category:    "maintenance",
		Title:       "Bug Fix",
		Description: "Reproduce, fix and regression-test a reported defect.",
		Stories: []UserStory{
			{
				ID:          "story-1",
				Title:       "Fix with regression test",
				Description: "Write a failing test reproducing the defect, then make it pass.",
				AcceptanceCriteria: []string{
					"New test fails before the fix and passes after",
					"Existing test suite stays green",
				},
				Priority: PriorityCritical,
			},
		},
	},
}

// GetTemplate looks up a template by id.
func GetTemplate(id string) (Template, bool) {
	t, ok := templates[id]
	return t, ok
}

// ListTemplates returns every built-in template, optionally filtered by
// category. An empty category returns the full catalog.
func ListTemplates(category string) []Template {
	var out []Template
	for _, t := range templates {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// NewFromTemplate constructs a document from a template. Template stories
// are cloned and their ids re-prefixed with the new document id.
func NewFromTemplate(templateID, title, description string) (*Document, error) {
	t, ok := GetTemplate(templateID)
	if !ok {
		return nil, fmt.Errorf("prd template %q: %w", templateID, errTemplateNotFound)
	}

	doc := newDocument(title, description)
	doc.UserStories = make([]UserStory, len(t.Stories))
	for i, s := range t.Stories {
		s.ID = doc.ID + "-" + s.ID
		s.Passes = false
		s.Attempts = 0
		if s.MaxAttempts == 0 {
			s.MaxAttempts = DefaultMaxAttempts
		}
		doc.UserStories[i] = s
	}
	return doc, nil
}

// New constructs a document from caller-supplied stories. Stories without a
// max-attempts ceiling get DefaultMaxAttempts; stories without an id get a
// generated one.
func New(title, description string, stories []UserStory) *Document {
	doc := newDocument(title, description)
	doc.UserStories = make([]UserStory, len(stories))
	for i, s := range stories {
		if s.ID == "" {
			s.ID = fmt.Sprintf("%s-story-%d", doc.ID, i+1)
		}
		if s.MaxAttempts == 0 {
			s.MaxAttempts = DefaultMaxAttempts
		}
		doc.UserStories[i] = s
	}
	return doc
}

func newDocument(title, description string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:          "prd-" + uuid.New().String()[:8],
		Title:       title,
		Description: description,
		Version:     "1.0.0",
		BranchName:  GenerateBranchName(title),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
