// Package github implements a gitprovider.Provider for GitHub using the
// REST API v3.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/RunForge/internal/port/gitprovider"
)

const providerName = "github"

// Provider implements gitprovider.Provider for GitHub.
type Provider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewProvider creates a GitHub provider with the given API base URL and
// personal-access token.
func NewProvider(baseURL, token string) *Provider {
	return &Provider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
	}
}

func (p *Provider) Name() string { return providerName }

type ghUser struct {
	Login string `json:"login"`
}

func (p *Provider) Authenticate(ctx context.Context, creds gitprovider.Credentials) (*gitprovider.Token, error) {
	p.token = creds.Token

	body, err := p.doRequest(ctx, http.MethodGet, p.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("github authenticate: %w", err)
	}

	var user ghUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}
	return &gitprovider.Token{Bearer: creds.Token, Username: user.Login}, nil
}

func (p *Provider) ValidateCredentials(ctx context.Context) error {
	_, err := p.doRequest(ctx, http.MethodGet, p.baseURL+"/user", nil)
	if err != nil {
		return fmt.Errorf("github validate credentials: %w", err)
	}
	return nil
}

// --- Branches ---

type ghRef struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type ghBranch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type ghRepo struct {
	DefaultBranch string `json:"default_branch"`
}

func (p *Provider) CreateBranch(ctx context.Context, repo, name, from string) (*gitprovider.Branch, error) {
	refURL := fmt.Sprintf("%s/repos/%s/git/ref/heads/%s", p.baseURL, repo, from)
	body, err := p.doRequest(ctx, http.MethodGet, refURL, nil)
	if err != nil {
		return nil, fmt.Errorf("github resolve base %s: %w", from, err)
	}

	var base ghRef
	if err := json.Unmarshal(body, &base); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{
		"ref": "refs/heads/" + name,
		"sha": base.Object.SHA,
	})
	createURL := fmt.Sprintf("%s/repos/%s/git/refs", p.baseURL, repo)
	if _, err := p.doRequest(ctx, http.MethodPost, createURL, strings.NewReader(string(payload))); err != nil {
		return nil, fmt.Errorf("github create branch: %w", err)
	}

	return &gitprovider.Branch{Name: name, SHA: base.Object.SHA}, nil
}

func (p *Provider) DeleteBranch(ctx context.Context, repo, name string) error {
	url := fmt.Sprintf("%s/repos/%s/git/refs/heads/%s", p.baseURL, repo, name)
	if _, err := p.doRequest(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("github delete branch: %w", err)
	}
	return nil
}

func (p *Provider) ListBranches(ctx context.Context, repo string) ([]gitprovider.Branch, error) {
	repoBody, err := p.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s", p.baseURL, repo), nil)
	if err != nil {
		return nil, fmt.Errorf("github get repo: %w", err)
	}
	var meta ghRepo
	if err := json.Unmarshal(repoBody, &meta); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}

	body, err := p.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s/branches?per_page=100", p.baseURL, repo), nil)
	if err != nil {
		return nil, fmt.Errorf("github list branches: %w", err)
	}

	var branches []ghBranch
	if err := json.Unmarshal(body, &branches); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}

	out := make([]gitprovider.Branch, 0, len(branches))
	for _, b := range branches {
		out = append(out, gitprovider.Branch{
			Name:    b.Name,
			SHA:     b.Commit.SHA,
			Default: b.Name == meta.DefaultBranch,
		})
	}
	return out, nil
}

// --- Commits ---

type ghCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

func (p *Provider) ListCommits(ctx context.Context, repo, ref string) ([]gitprovider.Commit, error) {
	url := fmt.Sprintf("%s/repos/%s/commits?sha=%s&per_page=50", p.baseURL, repo, ref)
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github list commits: %w", err)
	}

	var commits []ghCommit
	if err := json.Unmarshal(body, &commits); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}

	out := make([]gitprovider.Commit, 0, len(commits))
	for i := range commits {
		out = append(out, commitToDomain(&commits[i]))
	}
	return out, nil
}

func (p *Provider) GetCommit(ctx context.Context, repo, sha string) (*gitprovider.Commit, error) {
	url := fmt.Sprintf("%s/repos/%s/commits/%s", p.baseURL, repo, sha)
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github get commit: %w", err)
	}

	var c ghCommit
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}
	out := commitToDomain(&c)
	return &out, nil
}

func commitToDomain(c *ghCommit) gitprovider.Commit {
	authoredAt, _ := time.Parse(time.RFC3339, c.Commit.Author.Date)
	return gitprovider.Commit{
		SHA:        c.SHA,
		Message:    c.Commit.Message,
		Author:     c.Commit.Author.Name,
		AuthoredAt: authoredAt,
	}
}

// --- Pull requests ---

type ghPull struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	State    string `json:"state"`
	Draft    bool   `json:"draft"`
	Merged   bool   `json:"merged"`
	MergedAt string `json:"merged_at"`
	HTMLURL  string `json:"html_url"`
	Head     struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (p *Provider) CreatePullRequest(ctx context.Context, repo string, opts gitprovider.CreatePROptions) (*gitprovider.PullRequest, error) {
	payload, _ := json.Marshal(map[string]any{
		"title": opts.Title,
		"body":  opts.Body,
		"head":  opts.Head,
		"base":  opts.Base,
		"draft": opts.Draft,
	})
	url := fmt.Sprintf("%s/repos/%s/pulls", p.baseURL, repo)
	body, err := p.doRequest(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("github create pull request: %w", err)
	}

	var pr ghPull
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}

	// Labels, reviewers and assignees live on separate endpoints.
	if len(opts.Labels) > 0 || len(opts.Assignees) > 0 {
		issuePayload := map[string]any{}
		if len(opts.Labels) > 0 {
			issuePayload["labels"] = opts.Labels
		}
		if len(opts.Assignees) > 0 {
			issuePayload["assignees"] = opts.Assignees
		}
		data, _ := json.Marshal(issuePayload)
		issueURL := fmt.Sprintf("%s/repos/%s/issues/%d", p.baseURL, repo, pr.Number)
		if _, err := p.doRequest(ctx, http.MethodPatch, issueURL, strings.NewReader(string(data))); err != nil {
			return nil, fmt.Errorf("github set labels/assignees: %w", err)
		}
	}
	if len(opts.Reviewers) > 0 {
		data, _ := json.Marshal(map[string]any{"reviewers": opts.Reviewers})
		revURL := fmt.Sprintf("%s/repos/%s/pulls/%d/requested_reviewers", p.baseURL, repo, pr.Number)
		if _, err := p.doRequest(ctx, http.MethodPost, revURL, strings.NewReader(string(data))); err != nil {
			return nil, fmt.Errorf("github request reviewers: %w", err)
		}
	}

	out := pullToDomain(&pr)
	return &out, nil
}

func (p *Provider) GetPullRequest(ctx context.Context, repo string, number int) (*gitprovider.PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/pulls/%d", p.baseURL, repo, number)
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github get pull request: %w", err)
	}

	var pr ghPull
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}
	out := pullToDomain(&pr)
	return &out, nil
}

func (p *Provider) UpdatePullRequest(ctx context.Context, repo string, number int, title, body string) (*gitprovider.PullRequest, error) {
	payload := map[string]string{}
	if title != "" {
		payload["title"] = title
	}
	if body != "" {
		payload["body"] = body
	}
	data, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/repos/%s/pulls/%d", p.baseURL, repo, number)
	respBody, err := p.doRequest(ctx, http.MethodPatch, url, strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("github update pull request: %w", err)
	}

	var pr ghPull
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}
	out := pullToDomain(&pr)
	return &out, nil
}

func (p *Provider) MergePullRequest(ctx context.Context, repo string, number int, method gitprovider.MergeMethod) error {
	payload, _ := json.Marshal(map[string]string{
		"merge_method": string(method), // GitHub's vocabulary matches: merge, squash, rebase
	})
	url := fmt.Sprintf("%s/repos/%s/pulls/%d/merge", p.baseURL, repo, number)
	if _, err := p.doRequest(ctx, http.MethodPut, url, strings.NewReader(string(payload))); err != nil {
		return fmt.Errorf("github merge pull request: %w", err)
	}
	return nil
}

func (p *Provider) ClosePullRequest(ctx context.Context, repo string, number int) error {
	payload, _ := json.Marshal(map[string]string{"state": "closed"})
	url := fmt.Sprintf("%s/repos/%s/pulls/%d", p.baseURL, repo, number)
	if _, err := p.doRequest(ctx, http.MethodPatch, url, strings.NewReader(string(payload))); err != nil {
		return fmt.Errorf("github close pull request: %w", err)
	}
	return nil
}

func (p *Provider) ListPullRequests(ctx context.Context, repo string, state gitprovider.PRState) ([]gitprovider.PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/pulls?state=%s&per_page=50", p.baseURL, repo, mapListState(state))
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github list pull requests: %w", err)
	}

	var pulls []ghPull
	if err := json.Unmarshal(body, &pulls); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}

	out := make([]gitprovider.PullRequest, 0, len(pulls))
	for i := range pulls {
		out = append(out, pullToDomain(&pulls[i]))
	}
	return out, nil
}

func pullToDomain(pr *ghPull) gitprovider.PullRequest {
	createdAt, _ := time.Parse(time.RFC3339, pr.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, pr.UpdatedAt)
	return gitprovider.PullRequest{
		Number:     pr.Number,
		Title:      pr.Title,
		Body:       pr.Body,
		State:      pr.State,
		Draft:      pr.Draft,
		Merged:     pr.Merged || pr.MergedAt != "",
		HeadBranch: pr.Head.Ref,
		BaseBranch: pr.Base.Ref,
		URL:        pr.HTMLURL,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

func mapListState(state gitprovider.PRState) string {
	switch state {
	case gitprovider.PRStateClosed:
		return "closed"
	case gitprovider.PRStateAll:
		return "all"
	default:
		return "open"
	}
}

// --- Pipelines ---

// GitHub has no pipeline object embedded on the pull request; CI status
// comes from a separate combined-status query per ref.

type ghCombinedStatus struct {
	State string `json:"state"`
	SHA   string `json:"sha"`
}

// ghStatusMap translates GitHub combined-status states into the shared
// 6-value enum.
var ghStatusMap = map[string]gitprovider.PipelineStatus{
	"pending": gitprovider.PipelinePending,
	"success": gitprovider.PipelineSuccess,
	"failure": gitprovider.PipelineFailure,
	"error":   gitprovider.PipelineFailure,
}

func (p *Provider) TriggerPipeline(ctx context.Context, repo, ref string) (*gitprovider.PipelineRun, error) {
	payload, _ := json.Marshal(map[string]any{
		"event_type":     "runforge-pipeline",
		"client_payload": map[string]string{"ref": ref},
	})
	url := fmt.Sprintf("%s/repos/%s/dispatches", p.baseURL, repo)
	if _, err := p.doRequest(ctx, http.MethodPost, url, strings.NewReader(string(payload))); err != nil {
		return nil, fmt.Errorf("github trigger pipeline: %w", err)
	}

	return &gitprovider.PipelineRun{ID: ref, Ref: ref, Status: gitprovider.PipelinePending}, nil
}

func (p *Provider) GetPipeline(ctx context.Context, repo, id string) (*gitprovider.PipelineRun, error) {
	url := fmt.Sprintf("%s/repos/%s/commits/%s/status", p.baseURL, repo, id)
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github get pipeline: %w", err)
	}

	var status ghCombinedStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}

	mapped, ok := ghStatusMap[status.State]
	if !ok {
		mapped = gitprovider.PipelinePending
	}
	return &gitprovider.PipelineRun{ID: id, Ref: id, SHA: status.SHA, Status: mapped}, nil
}

// --- Transport ---

func (p *Provider) doRequest(ctx context.Context, method, reqURL string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
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
		return nil, fmt.Errorf("github API %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
