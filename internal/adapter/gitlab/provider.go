// Package gitlab implements a gitprovider.Provider for GitLab instances
// using their REST API v4. GitLab's merge requests embed a head pipeline
// object, so CI status for an MR needs no separate query.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/RunForge/internal/port/gitprovider"
)

const providerName = "gitlab"

// Provider implements gitprovider.Provider for GitLab.
type Provider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewProvider creates a GitLab provider with the given base URL and private
// token.
func NewProvider(baseURL, token string) *Provider {
	return &Provider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
	}
}

func (p *Provider) Name() string { return providerName }

type glUser struct {
	Username string `json:"username"`
}

func (p *Provider) Authenticate(ctx context.Context, creds gitprovider.Credentials) (*gitprovider.Token, error) {
	p.token = creds.Token

	body, err := p.doRequest(ctx, http.MethodGet, p.baseURL+"/api/v4/user", nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab authenticate: %w", err)
	}

	var user glUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	return &gitprovider.Token{Bearer: creds.Token, Username: user.Username}, nil
}

func (p *Provider) ValidateCredentials(ctx context.Context) error {
	_, err := p.doRequest(ctx, http.MethodGet, p.baseURL+"/api/v4/user", nil)
	if err != nil {
		return fmt.Errorf("gitlab validate credentials: %w", err)
	}
	return nil
}

// --- Branches ---

type glBranch struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
	Commit  struct {
		ID string `json:"id"`
	} `json:"commit"`
}

func (p *Provider) CreateBranch(ctx context.Context, repo, name, from string) (*gitprovider.Branch, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/branches?branch=%s&ref=%s",
		p.baseURL, url.PathEscape(repo), url.QueryEscape(name), url.QueryEscape(from))
	body, err := p.doRequest(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab create branch: %w", err)
	}

	var b glBranch
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	return &gitprovider.Branch{Name: b.Name, SHA: b.Commit.ID, Default: b.Default}, nil
}

func (p *Provider) DeleteBranch(ctx context.Context, repo, name string) error {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/branches/%s",
		p.baseURL, url.PathEscape(repo), url.PathEscape(name))
	if _, err := p.doRequest(ctx, http.MethodDelete, reqURL, nil); err != nil {
		return fmt.Errorf("gitlab delete branch: %w", err)
	}
	return nil
}

func (p *Provider) ListBranches(ctx context.Context, repo string) ([]gitprovider.Branch, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/branches?per_page=100",
		p.baseURL, url.PathEscape(repo))
	body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab list branches: %w", err)
	}

	var branches []glBranch
	if err := json.Unmarshal(body, &branches); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}

	out := make([]gitprovider.Branch, 0, len(branches))
	for _, b := range branches {
		out = append(out, gitprovider.Branch{Name: b.Name, SHA: b.Commit.ID, Default: b.Default})
	}
	return out, nil
}

// --- Commits ---

type glCommit struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
	CreatedAt  string `json:"created_at"`
}

func (p *Provider) ListCommits(ctx context.Context, repo, ref string) ([]gitprovider.Commit, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits?ref_name=%s&per_page=50",
		p.baseURL, url.PathEscape(repo), url.QueryEscape(ref))
	body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab list commits: %w", err)
	}

	var commits []glCommit
	if err := json.Unmarshal(body, &commits); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}

	out := make([]gitprovider.Commit, 0, len(commits))
	for i := range commits {
		out = append(out, commitToDomain(&commits[i]))
	}
	return out, nil
}

func (p *Provider) GetCommit(ctx context.Context, repo, sha string) (*gitprovider.Commit, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits/%s",
		p.baseURL, url.PathEscape(repo), sha)
	body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab get commit: %w", err)
	}

	var c glCommit
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	out := commitToDomain(&c)
	return &out, nil
}

func commitToDomain(c *glCommit) gitprovider.Commit {
	authoredAt, _ := time.Parse(time.RFC3339, c.CreatedAt)
	return gitprovider.Commit{
		SHA:        c.ID,
		Message:    c.Message,
		Author:     c.AuthorName,
		AuthoredAt: authoredAt,
	}
}

// --- Merge requests ---

type glMergeRequest struct {
	IID          int         `json:"iid"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	State        string      `json:"state"` // opened, closed, merged, locked
	Draft        bool        `json:"draft"`
	SourceBranch string      `json:"source_branch"`
	TargetBranch string      `json:"target_branch"`
	WebURL       string      `json:"web_url"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
	HeadPipeline *glPipeline `json:"head_pipeline"`
}

func (p *Provider) CreatePullRequest(ctx context.Context, repo string, opts gitprovider.CreatePROptions) (*gitprovider.PullRequest, error) {
	title := opts.Title
	// GitLab marks drafts through a title prefix, not a field.
	if opts.Draft && !strings.HasPrefix(title, "Draft:") {
		title = "Draft: " + title
	}

	payload := map[string]any{
		"title":         title,
		"description":   opts.Body,
		"source_branch": opts.Head,
		"target_branch": opts.Base,
	}
	if len(opts.Labels) > 0 {
		payload["labels"] = strings.Join(opts.Labels, ",")
	}
	if len(opts.Reviewers) > 0 {
		ids, err := p.userIDs(ctx, opts.Reviewers)
		if err != nil {
			return nil, fmt.Errorf("gitlab resolve reviewers: %w", err)
		}
		payload["reviewer_ids"] = ids
	}
	if len(opts.Assignees) > 0 {
		ids, err := p.userIDs(ctx, opts.Assignees)
		if err != nil {
			return nil, fmt.Errorf("gitlab resolve assignees: %w", err)
		}
		payload["assignee_ids"] = ids
	}
	data, _ := json.Marshal(payload)

	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests", p.baseURL, url.PathEscape(repo))
	body, err := p.doRequest(ctx, http.MethodPost, reqURL, strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("gitlab create merge request: %w", err)
	}

	var mr glMergeRequest
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	out := mrToDomain(&mr)
	return &out, nil
}

// userIDs resolves usernames to numeric ids. GitLab's merge request API
// takes reviewer_ids and assignee_ids, not usernames.
func (p *Provider) userIDs(ctx context.Context, usernames []string) ([]int64, error) {
	ids := make([]int64, 0, len(usernames))
	for _, name := range usernames {
		reqURL := fmt.Sprintf("%s/api/v4/users?username=%s", p.baseURL, url.QueryEscape(name))
		body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		var users []struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(body, &users); err != nil {
			return nil, fmt.Errorf("gitlab parse response: %w", err)
		}
		if len(users) == 0 {
			return nil, fmt.Errorf("gitlab user %q not found", name)
		}
		ids = append(ids, users[0].ID)
	}
	return ids, nil
}

func (p *Provider) GetPullRequest(ctx context.Context, repo string, number int) (*gitprovider.PullRequest, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d", p.baseURL, url.PathEscape(repo), number)
	body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab get merge request: %w", err)
	}

	var mr glMergeRequest
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	out := mrToDomain(&mr)
	return &out, nil
}

func (p *Provider) UpdatePullRequest(ctx context.Context, repo string, number int, title, body string) (*gitprovider.PullRequest, error) {
	payload := map[string]string{}
	if title != "" {
		payload["title"] = title
	}
	if body != "" {
		payload["description"] = body
	}
	data, _ := json.Marshal(payload)

	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d", p.baseURL, url.PathEscape(repo), number)
	respBody, err := p.doRequest(ctx, http.MethodPut, reqURL, strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("gitlab update merge request: %w", err)
	}

	var mr glMergeRequest
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	out := mrToDomain(&mr)
	return &out, nil
}

func (p *Provider) MergePullRequest(ctx context.Context, repo string, number int, method gitprovider.MergeMethod) error {
	payload := map[string]any{}
	switch method {
	case gitprovider.MergeMethodSquash:
		payload["squash"] = true
	case gitprovider.MergeMethodRebase:
		// GitLab rebases through a separate endpoint before merging.
		rebaseURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d/rebase",
			p.baseURL, url.PathEscape(repo), number)
		if _, err := p.doRequest(ctx, http.MethodPut, rebaseURL, nil); err != nil {
			return fmt.Errorf("gitlab rebase merge request: %w", err)
		}
	}
	data, _ := json.Marshal(payload)

	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d/merge", p.baseURL, url.PathEscape(repo), number)
	if _, err := p.doRequest(ctx, http.MethodPut, reqURL, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("gitlab merge merge request: %w", err)
	}
	return nil
}

func (p *Provider) ClosePullRequest(ctx context.Context, repo string, number int) error {
	payload, _ := json.Marshal(map[string]string{"state_event": "close"})
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d", p.baseURL, url.PathEscape(repo), number)
	if _, err := p.doRequest(ctx, http.MethodPut, reqURL, strings.NewReader(string(payload))); err != nil {
		return fmt.Errorf("gitlab close merge request: %w", err)
	}
	return nil
}

func (p *Provider) ListPullRequests(ctx context.Context, repo string, state gitprovider.PRState) ([]gitprovider.PullRequest, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests?per_page=50", p.baseURL, url.PathEscape(repo))
	if s := mapListState(state); s != "" {
		reqURL += "&state=" + s
	}
	body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab list merge requests: %w", err)
	}

	var mrs []glMergeRequest
	if err := json.Unmarshal(body, &mrs); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}

	out := make([]gitprovider.PullRequest, 0, len(mrs))
	for i := range mrs {
		out = append(out, mrToDomain(&mrs[i]))
	}
	return out, nil
}

func mrToDomain(mr *glMergeRequest) gitprovider.PullRequest {
	createdAt, _ := time.Parse(time.RFC3339, mr.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, mr.UpdatedAt)

	state := "open"
	if mr.State == "closed" || mr.State == "merged" {
		state = "closed"
	}

	return gitprovider.PullRequest{
		Number:     mr.IID,
		Title:      strings.TrimPrefix(mr.Title, "Draft: "),
		Body:       mr.Description,
		State:      state,
		Draft:      mr.Draft || strings.HasPrefix(mr.Title, "Draft:"),
		Merged:     mr.State == "merged",
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
		URL:        mr.WebURL,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

func mapListState(state gitprovider.PRState) string {
	switch state {
	case gitprovider.PRStateOpen:
		return "opened"
	case gitprovider.PRStateClosed:
		return "closed"
	default:
		return ""
	}
}

// --- Pipelines ---

type glPipeline struct {
	ID     int64  `json:"id"`
	Ref    string `json:"ref"`
	SHA    string `json:"sha"`
	Status string `json:"status"`
	WebURL string `json:"web_url"`
}

// glStatusMap translates GitLab pipeline statuses into the shared 6-value
// enum.
var glStatusMap = map[string]gitprovider.PipelineStatus{
	"created":              gitprovider.PipelinePending,
	"waiting_for_resource": gitprovider.PipelinePending,
	"preparing":            gitprovider.PipelinePending,
	"pending":              gitprovider.PipelinePending,
	"manual":               gitprovider.PipelinePending,
	"scheduled":            gitprovider.PipelinePending,
	"running":              gitprovider.PipelineRunning,
	"success":              gitprovider.PipelineSuccess,
	"failed":               gitprovider.PipelineFailure,
	"canceled":             gitprovider.PipelineCancelled,
	"skipped":              gitprovider.PipelineSkipped,
}

func (p *Provider) TriggerPipeline(ctx context.Context, repo, ref string) (*gitprovider.PipelineRun, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/pipeline?ref=%s",
		p.baseURL, url.PathEscape(repo), url.QueryEscape(ref))
	body, err := p.doRequest(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab trigger pipeline: %w", err)
	}

	var pl glPipeline
	if err := json.Unmarshal(body, &pl); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	out := pipelineToDomain(&pl)
	return &out, nil
}

func (p *Provider) GetPipeline(ctx context.Context, repo, id string) (*gitprovider.PipelineRun, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/pipelines/%s", p.baseURL, url.PathEscape(repo), id)
	body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab get pipeline: %w", err)
	}

	var pl glPipeline
	if err := json.Unmarshal(body, &pl); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	out := pipelineToDomain(&pl)
	return &out, nil
}

// PipelineForMergeRequest reads CI status from the merge request's embedded
// head pipeline, saving the separate status query GitHub needs.
func (p *Provider) PipelineForMergeRequest(ctx context.Context, repo string, number int) (*gitprovider.PipelineRun, error) {
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d", p.baseURL, url.PathEscape(repo), number)
	body, err := p.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab get merge request: %w", err)
	}

	var mr glMergeRequest
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("gitlab parse response: %w", err)
	}
	if mr.HeadPipeline == nil {
		return nil, nil
	}
	out := pipelineToDomain(mr.HeadPipeline)
	return &out, nil
}

func pipelineToDomain(pl *glPipeline) gitprovider.PipelineRun {
	mapped, ok := glStatusMap[pl.Status]
	if !ok {
		mapped = gitprovider.PipelinePending
	}
	return gitprovider.PipelineRun{
		ID:     fmt.Sprintf("%d", pl.ID),
		Ref:    pl.Ref,
		SHA:    pl.SHA,
		Status: mapped,
		URL:    pl.WebURL,
	}
}

// --- Transport ---

func (p *Provider) doRequest(ctx context.Context, method, reqURL string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("PRIVATE-TOKEN", p.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gitlab API %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
