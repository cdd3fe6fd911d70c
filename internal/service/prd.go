package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/RunForge/internal/adapter/markdownprd"
	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/port/database"
)

// PRDService manages the PRD catalog: template instantiation, markdown
// import/export, story bookkeeping and progress queries.
type PRDService struct {
	store database.Store
	log   *slog.Logger
}

// NewPRDService wires the PRD manager to its store.
func NewPRDService(store database.Store, log *slog.Logger) *PRDService {
	return &PRDService{store: store, log: log}
}

// CreateFromTemplate instantiates a catalog template and persists the
// resulting document.
func (s *PRDService) CreateFromTemplate(ctx context.Context, templateID, title, description string) (*prd.Document, error) {
	doc, err := prd.NewFromTemplate(templateID, title, description)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePRD(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("prd created", "prd", doc.ID, "template", templateID, "stories", len(doc.UserStories))
	return doc, nil
}

// Create persists a document built from explicit stories.
func (s *PRDService) Create(ctx context.Context, title, description string, stories []prd.UserStory) (*prd.Document, error) {
	doc := prd.New(title, description, stories)
	if err := s.store.CreatePRD(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("prd created", "prd", doc.ID, "stories", len(doc.UserStories))
	return doc, nil
}

// Get returns a document by id.
func (s *PRDService) Get(ctx context.Context, id string) (*prd.Document, error) {
	return s.store.GetPRD(ctx, id)
}

// List returns all documents, newest first.
func (s *PRDService) List(ctx context.Context) ([]prd.Document, error) {
	return s.store.ListPRDs(ctx)
}

// Delete removes a document.
func (s *PRDService) Delete(ctx context.Context, id string) error {
	return s.store.DeletePRD(ctx, id)
}

// Import parses a markdown PRD, validates it and persists it.
func (s *PRDService) Import(ctx context.Context, content []byte) (*prd.Document, error) {
	doc, err := markdownprd.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("import prd: %w", err)
	}
	if result := prd.Validate(doc); !result.Valid {
		return nil, fmt.Errorf("import prd: invalid document: %s", strings.Join(result.Errors, "; "))
	}
	if err := s.store.CreatePRD(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("prd imported", "prd", doc.ID, "stories", len(doc.UserStories))
	return doc, nil
}

// Export renders a stored document back to markdown.
func (s *PRDService) Export(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.store.GetPRD(ctx, id)
	if err != nil {
		return nil, err
	}
	return markdownprd.Render(doc), nil
}

// UpdateStory applies a patch to one story and persists the new document
// revision. The stored document is replaced, never mutated in place.
func (s *PRDService) UpdateStory(ctx context.Context, prdID, storyID string, patch prd.StoryPatch) (*prd.Document, error) {
	doc, err := s.store.GetPRD(ctx, prdID)
	if err != nil {
		return nil, err
	}

	updated, err := prd.UpdateStory(doc, storyID, patch)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdatePRD(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Progress summarizes story state for one document.
func (s *PRDService) Progress(ctx context.Context, id string) (prd.Progress, error) {
	doc, err := s.store.GetPRD(ctx, id)
	if err != nil {
		return prd.Progress{}, err
	}
	return prd.GetProgress(doc), nil
}

// Validate checks a stored document against the structural rules.
func (s *PRDService) Validate(ctx context.Context, id string) (prd.ValidationResult, error) {
	doc, err := s.store.GetPRD(ctx, id)
	if err != nil {
		return prd.ValidationResult{}, err
	}
	return prd.Validate(doc), nil
}

// Templates lists catalog templates, optionally filtered by category.
func (s *PRDService) Templates(category string) []prd.Template {
	return prd.ListTemplates(category)
}
