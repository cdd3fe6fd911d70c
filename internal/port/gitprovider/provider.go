// Package gitprovider defines the source-control provider port and the
// normalized entity shapes shared by all providers. Provider-specific
// response fields are translated at the adapter boundary and never leak
// past it.
package gitprovider

import (
	"context"
	"time"
)

// Credentials is an opaque personal-access token. This library never
// persists or encrypts it; storage is the embedding process's concern.
type Credentials struct {
	Token string `json:"token"`
}

// Token is the bearer wrapper returned by Authenticate.
type Token struct {
	Bearer   string `json:"bearer"`
	Username string `json:"username"`
}

// Branch is the normalized view of a repository branch.
type Branch struct {
	Name    string `json:"name"`
	SHA     string `json:"sha"`
	Default bool   `json:"default"`
}

// Commit is the normalized view of a commit.
type Commit struct {
	SHA        string    `json:"sha"`
	Message    string    `json:"message"`
	Author     string    `json:"author"`
	AuthoredAt time.Time `json:"authored_at"`
}

// PRState filters pull request listings.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
	PRStateAll    PRState = "all"
)

// MergeMethod selects how a pull request is merged. Each adapter maps it to
// the provider's native merge semantics.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

// PullRequest is the normalized view of a pull/merge request.
type PullRequest struct {
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	State      string    `json:"state"` // "open" or "closed"
	Draft      bool      `json:"draft"`
	Merged     bool      `json:"merged"`
	HeadBranch string    `json:"head_branch"`
	BaseBranch string    `json:"base_branch"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreatePROptions holds the fields for opening a pull request.
type CreatePROptions struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Head      string   `json:"head"`
	Base      string   `json:"base"`
	Draft     bool     `json:"draft"`
	Labels    []string `json:"labels,omitempty"`
	Reviewers []string `json:"reviewers,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// PipelineStatus is the shared 6-value CI status enum.
type PipelineStatus string

const (
	PipelinePending   PipelineStatus = "pending"
	PipelineRunning   PipelineStatus = "running"
	PipelineSuccess   PipelineStatus = "success"
	PipelineFailure   PipelineStatus = "failure"
	PipelineCancelled PipelineStatus = "cancelled"
	PipelineSkipped   PipelineStatus = "skipped"
)

// PipelineRun is the normalized view of one CI pipeline execution. ID is
// provider-scoped: a numeric pipeline id on GitLab, a ref on GitHub.
type PipelineRun struct {
	ID     string         `json:"id"`
	Ref    string         `json:"ref"`
	SHA    string         `json:"sha,omitempty"`
	Status PipelineStatus `json:"status"`
	URL    string         `json:"url,omitempty"`
}

// Provider is the port interface for a source-control hosting platform.
// All calls are single HTTP invocations; a non-success response surfaces as
// an error carrying the response body verbatim, with no automatic retry.
type Provider interface {
	// Name returns the unique identifier for this provider.
	Name() string

	// Authenticate validates the token against the provider's identity
	// endpoint and returns a bearer token wrapper.
	Authenticate(ctx context.Context, creds Credentials) (*Token, error)

	// ValidateCredentials re-checks the stored token's liveness.
	ValidateCredentials(ctx context.Context) error

	// CreateBranch creates a branch named name from the head of from.
	CreateBranch(ctx context.Context, repo, name, from string) (*Branch, error)

	// DeleteBranch removes a branch.
	DeleteBranch(ctx context.Context, repo, name string) error

	// ListBranches returns every branch with its head commit and default
	// flag.
	ListBranches(ctx context.Context, repo string) ([]Branch, error)

	// ListCommits returns the commits reachable from ref, newest first.
	ListCommits(ctx context.Context, repo, ref string) ([]Commit, error)

	// GetCommit returns a single commit by SHA.
	GetCommit(ctx context.Context, repo, sha string) (*Commit, error)

	// CreatePullRequest opens a pull/merge request.
	CreatePullRequest(ctx context.Context, repo string, opts CreatePROptions) (*PullRequest, error)

	// GetPullRequest returns a pull request by number.
	GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)

	// UpdatePullRequest changes a pull request's title and/or body. Empty
	// strings leave the field unchanged.
	UpdatePullRequest(ctx context.Context, repo string, number int, title, body string) (*PullRequest, error)

	// MergePullRequest merges using the given method.
	MergePullRequest(ctx context.Context, repo string, number int, method MergeMethod) error

	// ClosePullRequest closes without merging.
	ClosePullRequest(ctx context.Context, repo string, number int) error

	// ListPullRequests returns pull requests filtered by state.
	ListPullRequests(ctx context.Context, repo string, state PRState) ([]PullRequest, error)

	// TriggerPipeline starts a CI run for ref.
	TriggerPipeline(ctx context.Context, repo, ref string) (*PipelineRun, error)

	// GetPipeline polls the status of a pipeline run.
	GetPipeline(ctx context.Context, repo, id string) (*PipelineRun, error)
}
