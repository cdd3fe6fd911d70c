// Package database defines the persistence port for runs and PRDs.
package database

import (
	"context"

	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/domain/run"
)

// Store is the port interface for durable run and PRD state. Implementations
// wrap domain.ErrNotFound for unknown ids.
type Store interface {
	CreateRun(ctx context.Context, r *run.Run) error
	GetRun(ctx context.Context, id string) (*run.Run, error)
	UpdateRun(ctx context.Context, r *run.Run) error
	ListRuns(ctx context.Context) ([]run.Run, error)
	DeleteRun(ctx context.Context, id string) error

	CreatePRD(ctx context.Context, doc *prd.Document) error
	GetPRD(ctx context.Context, id string) (*prd.Document, error)
	UpdatePRD(ctx context.Context, doc *prd.Document) error
	ListPRDs(ctx context.Context) ([]prd.Document, error)
	DeletePRD(ctx context.Context, id string) error
}
