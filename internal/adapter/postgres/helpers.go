package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/domain/run"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// pgTextArray converts a string slice to a pgx-compatible text array.
// nil slices become empty arrays to avoid SQL NULL.
func pgTextArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil.
// Useful to ensure JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func marshalRun(r *run.Run) (prdJSON, storiesJSON, progressJSON, qualityJSON []byte, err error) {
	if prdJSON, err = json.Marshal(r.PRD); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal prd: %w", err)
	}
	if storiesJSON, err = json.Marshal(orEmpty(r.Stories)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal stories: %w", err)
	}
	if progressJSON, err = json.Marshal(orEmpty(r.ProgressLog)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal progress log: %w", err)
	}
	if qualityJSON, err = json.Marshal(orEmpty(r.QualityLog)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal quality log: %w", err)
	}
	return prdJSON, storiesJSON, progressJSON, qualityJSON, nil
}

func scanRun(row scannable) (run.Run, error) {
	var (
		r           run.Run
		status      string
		prdJSON     []byte
		storiesJSON []byte
		progJSON    []byte
		qualJSON    []byte
		completedAt *time.Time
	)

	err := row.Scan(&r.ID, &r.Name, &status, &prdJSON, &r.EnvironmentID,
		&r.Iteration, &r.MaxIterations, &r.Branch, &r.Provider,
		&storiesJSON, &progJSON, &qualJSON, &r.Error,
		&r.CreatedAt, &r.UpdatedAt, &completedAt)
	if err != nil {
		return run.Run{}, err
	}

	r.Status = run.Status(status)
	r.CompletedAt = completedAt
	if err := json.Unmarshal(prdJSON, &r.PRD); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal prd: %w", err)
	}
	if err := json.Unmarshal(storiesJSON, &r.Stories); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal stories: %w", err)
	}
	if err := json.Unmarshal(progJSON, &r.ProgressLog); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal progress log: %w", err)
	}
	if err := json.Unmarshal(qualJSON, &r.QualityLog); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal quality log: %w", err)
	}
	return r, nil
}

func scanPRD(row scannable) (prd.Document, error) {
	var (
		doc         prd.Document
		storiesJSON []byte
	)

	err := row.Scan(&doc.ID, &doc.Title, &doc.Description, &doc.Version, &doc.BranchName,
		&storiesJSON, &doc.TechnicalRequirements, &doc.Dependencies,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return prd.Document{}, err
	}

	if err := json.Unmarshal(storiesJSON, &doc.UserStories); err != nil {
		return prd.Document{}, fmt.Errorf("unmarshal stories: %w", err)
	}
	return doc, nil
}
