// Package run defines the Run domain entity: one execution of a PRD against
// an execution environment and a source-control branch.
package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/RunForge/internal/domain/prd"
)

// Status represents the current state of a run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusPaused       Status = "paused"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// LogEntry is one append-only progress or quality-check record.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Run binds a PRD to an execution environment and a source-control branch.
// The Run owns its PRD and story copies; the environment and branch are
// referenced by id/name only and are reclaimed independently.
type Run struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Status        Status          `json:"status"`
	PRD           prd.Document    `json:"prd"`
	EnvironmentID string          `json:"environment_id,omitempty"`
	Iteration     int             `json:"iteration"`
	MaxIterations int             `json:"max_iterations"`
	Branch        string          `json:"branch"`
	Provider      string          `json:"provider"`
	Stories       []prd.UserStory `json:"stories"`
	ProgressLog   []LogEntry      `json:"progress_log,omitempty"`
	QualityLog    []LogEntry      `json:"quality_log,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// New constructs a pending run from a PRD. The run takes a live copy of the
// document's stories; iteration bookkeeping mutates the copy, never the PRD.
func New(doc *prd.Document, provider string, maxIterations int) *Run {
	now := time.Now().UTC()
	stories := make([]prd.UserStory, len(doc.UserStories))
	copy(stories, doc.UserStories)

	return &Run{
		ID:            "run-" + uuid.New().String()[:8],
		Name:          doc.Title,
		Status:        StatusPending,
		PRD:           *doc,
		MaxIterations: maxIterations,
		Branch:        doc.BranchName,
		Provider:      provider,
		Stories:       stories,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AppendProgress records a progress log entry.
func (r *Run) AppendProgress(msg string) {
	r.ProgressLog = append(r.ProgressLog, LogEntry{At: time.Now().UTC(), Message: msg})
	r.UpdatedAt = time.Now().UTC()
}

// AppendQuality records a quality-check log entry.
func (r *Run) AppendQuality(msg string) {
	r.QualityLog = append(r.QualityLog, LogEntry{At: time.Now().UTC(), Message: msg})
	r.UpdatedAt = time.Now().UTC()
}
