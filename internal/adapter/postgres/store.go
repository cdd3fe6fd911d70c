package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/RunForge/internal/domain"
	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/domain/run"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Runs ---

const runColumns = `id, name, status, prd, environment_id, iteration, max_iterations,
	branch, provider, stories, progress_log, quality_log, error, created_at, updated_at, completed_at`

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	prdJSON, storiesJSON, progressJSON, qualityJSON, err := marshalRun(r)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, name, status, prd, environment_id, iteration, max_iterations,
		                   branch, provider, stories, progress_log, quality_log, error,
		                   created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.Name, string(r.Status), prdJSON, r.EnvironmentID, r.Iteration, r.MaxIterations,
		r.Branch, r.Provider, storiesJSON, progressJSON, qualityJSON, r.Error,
		r.CreatedAt, r.UpdatedAt, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("create run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*run.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) UpdateRun(ctx context.Context, r *run.Run) error {
	prdJSON, storiesJSON, progressJSON, qualityJSON, err := marshalRun(r)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET name = $2, status = $3, prd = $4, environment_id = $5,
		        iteration = $6, max_iterations = $7, branch = $8, provider = $9,
		        stories = $10, progress_log = $11, quality_log = $12, error = $13,
		        updated_at = $14, completed_at = $15
		 WHERE id = $1`,
		r.ID, r.Name, string(r.Status), prdJSON, r.EnvironmentID,
		r.Iteration, r.MaxIterations, r.Branch, r.Provider,
		storiesJSON, progressJSON, qualityJSON, r.Error,
		r.UpdatedAt, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context) ([]run.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []run.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete run %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- PRDs ---

const prdColumns = `id, title, description, version, branch_name, stories,
	technical_requirements, dependencies, created_at, updated_at`

func (s *Store) CreatePRD(ctx context.Context, doc *prd.Document) error {
	storiesJSON, err := json.Marshal(orEmpty(doc.UserStories))
	if err != nil {
		return fmt.Errorf("marshal stories: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO prds (id, title, description, version, branch_name, stories,
		                   technical_requirements, dependencies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.Title, doc.Description, doc.Version, doc.BranchName, storiesJSON,
		pgTextArray(doc.TechnicalRequirements), pgTextArray(doc.Dependencies),
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create prd %s: %w", doc.ID, err)
	}
	return nil
}

func (s *Store) GetPRD(ctx context.Context, id string) (*prd.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+prdColumns+` FROM prds WHERE id = $1`, id)

	doc, err := scanPRD(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get prd %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get prd %s: %w", id, err)
	}
	return &doc, nil
}

func (s *Store) UpdatePRD(ctx context.Context, doc *prd.Document) error {
	storiesJSON, err := json.Marshal(orEmpty(doc.UserStories))
	if err != nil {
		return fmt.Errorf("marshal stories: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE prds SET title = $2, description = $3, version = $4, branch_name = $5,
		        stories = $6, technical_requirements = $7, dependencies = $8, updated_at = $9
		 WHERE id = $1`,
		doc.ID, doc.Title, doc.Description, doc.Version, doc.BranchName, storiesJSON,
		pgTextArray(doc.TechnicalRequirements), pgTextArray(doc.Dependencies), doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update prd %s: %w", doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update prd %s: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPRDs(ctx context.Context) ([]prd.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+prdColumns+` FROM prds ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list prds: %w", err)
	}
	defer rows.Close()

	var docs []prd.Document
	for rows.Next() {
		doc, err := scanPRD(rows)
		if err != nil {
			return nil, fmt.Errorf("list prds: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) DeletePRD(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM prds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prd %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete prd %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
