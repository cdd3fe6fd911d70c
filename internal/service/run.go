package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/RunForge/internal/adapter/otel"
	"github.com/Strob0t/RunForge/internal/config"
	"github.com/Strob0t/RunForge/internal/domain/prd"
	"github.com/Strob0t/RunForge/internal/domain/run"
	"github.com/Strob0t/RunForge/internal/port/database"
	"github.com/Strob0t/RunForge/internal/port/engine"
	"github.com/Strob0t/RunForge/internal/port/eventbus"
	"github.com/Strob0t/RunForge/internal/port/gitprovider"
)

// RunService drives the run lifecycle: environment acquisition, branch
// creation, story iteration, quality checks and pull request handoff.
// The event bus is optional and advisory; publish failures are logged,
// never surfaced.
type RunService struct {
	store    database.Store
	engines  *EngineService
	provider gitprovider.Provider
	bus      eventbus.Publisher
	cfg      config.Run
	log      *slog.Logger
}

// NewRunService wires the run lifecycle to its ports.
func NewRunService(store database.Store, engines *EngineService, provider gitprovider.Provider, bus eventbus.Publisher, cfg config.Run, log *slog.Logger) *RunService {
	return &RunService{
		store:    store,
		engines:  engines,
		provider: provider,
		bus:      bus,
		cfg:      cfg,
		log:      log,
	}
}

// Create validates the PRD and persists a pending run for it.
func (s *RunService) Create(ctx context.Context, doc *prd.Document) (*run.Run, error) {
	if result := prd.Validate(doc); !result.Valid {
		return nil, fmt.Errorf("invalid prd %s: %s", doc.ID, strings.Join(result.Errors, "; "))
	}

	providerName := ""
	if s.provider != nil {
		providerName = s.provider.Name()
	}

	r := run.New(doc, providerName, s.cfg.MaxIterations)
	if err := s.store.CreateRun(ctx, r); err != nil {
		return nil, err
	}

	s.log.Info("run created", "run", r.ID, "prd", doc.ID, "stories", len(r.Stories))
	s.publish(ctx, eventbus.SubjectRunCreated, r)
	return r, nil
}

// Get returns a run by id.
func (s *RunService) Get(ctx context.Context, id string) (*run.Run, error) {
	return s.store.GetRun(ctx, id)
}

// List returns all runs, newest first.
func (s *RunService) List(ctx context.Context) ([]run.Run, error) {
	return s.store.ListRuns(ctx)
}

// Start moves a pending run to running: it creates the sandbox environment
// and the work branch, then persists the transition. The environment is
// released again if branch creation fails.
func (s *RunService) Start(ctx context.Context, id, repo, baseBranch, user, project string) (*run.Run, error) {
	ctx, span := otel.StartRunSpan(ctx, "start", id)
	defer span.End()

	r, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != run.StatusPending {
		return nil, fmt.Errorf("start run %s: status is %s, want %s", id, r.Status, run.StatusPending)
	}

	r.Status = run.StatusInitializing
	r.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateRun(ctx, r); err != nil {
		return nil, err
	}

	env, err := s.engines.CreateForRun(ctx, r, user, project)
	if err != nil {
		return nil, s.fail(ctx, r, fmt.Errorf("acquire environment: %w", err))
	}
	r.EnvironmentID = env.ID

	if s.provider != nil {
		if _, err := s.provider.CreateBranch(ctx, repo, r.Branch, baseBranch); err != nil {
			s.releaseEnvironment(ctx, r)
			return nil, s.fail(ctx, r, fmt.Errorf("create branch %s: %w", r.Branch, err))
		}
	}

	r.Status = run.StatusRunning
	r.UpdatedAt = time.Now().UTC()
	r.AppendProgress(fmt.Sprintf("run started in environment %s on branch %s", env.ID, r.Branch))
	if err := s.store.UpdateRun(ctx, r); err != nil {
		return nil, err
	}

	s.log.Info("run started", "run", r.ID, "environment", env.ID, "branch", r.Branch)
	s.publish(ctx, eventbus.SubjectRunStarted, r)
	return r, nil
}

// RecordIteration applies one story attempt outcome: attempts increment,
// passes flip on success, and the run completes or fails when the stories
// are exhausted or the iteration budget runs out.
func (s *RunService) RecordIteration(ctx context.Context, id, storyID string, passed bool, attemptErr string) (*run.Run, error) {
	r, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != run.StatusRunning {
		return nil, fmt.Errorf("record iteration on run %s: status is %s, want %s", id, r.Status, run.StatusRunning)
	}

	story := findStory(r.Stories, storyID)
	if story == nil {
		return nil, &prd.StoryNotFoundError{PRDID: r.PRD.ID, StoryID: storyID}
	}

	story.Attempts++
	story.Passes = passed
	story.LastError = attemptErr
	if passed {
		story.LastError = ""
	}

	r.Iteration++
	if passed {
		r.AppendProgress(fmt.Sprintf("story %s passed (attempt %d)", storyID, story.Attempts))
	} else {
		r.AppendProgress(fmt.Sprintf("story %s failed (attempt %d/%d): %s", storyID, story.Attempts, story.MaxAttempts, attemptErr))
	}

	progress := s.Progress(r)
	switch {
	case progress.Complete():
		s.finish(r, run.StatusCompleted, "")
	case allSettled(r.Stories):
		s.finish(r, run.StatusFailed, "all remaining stories exhausted their attempts")
	case r.Iteration >= r.MaxIterations:
		s.finish(r, run.StatusFailed, fmt.Sprintf("iteration budget of %d exhausted", r.MaxIterations))
	}

	if err := s.store.UpdateRun(ctx, r); err != nil {
		return nil, err
	}

	switch r.Status {
	case run.StatusCompleted:
		s.log.Info("run completed", "run", r.ID, "iterations", r.Iteration)
		s.publish(ctx, eventbus.SubjectRunCompleted, r)
		s.releaseEnvironment(ctx, r)
	case run.StatusFailed:
		s.log.Warn("run failed", "run", r.ID, "error", r.Error)
		s.publish(ctx, eventbus.SubjectRunFailed, r)
		s.releaseEnvironment(ctx, r)
	}
	return r, nil
}

// RunQualityChecks executes the configured check commands inside the run's
// environment and appends the outcomes to the quality log. It returns an
// error when any check exits non-zero.
func (s *RunService) RunQualityChecks(ctx context.Context, id string) (*run.Run, error) {
	r, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.EnvironmentID == "" {
		return nil, fmt.Errorf("quality checks on run %s: no environment attached", id)
	}

	eng := s.engines.Engine()
	var failed []string
	for _, check := range s.cfg.QualityChecks {
		res, err := eng.Exec(ctx, r.EnvironmentID, []string{"sh", "-c", check}, engine.ExecOptions{
			Timeout: s.cfg.ExecTimeout,
		})
		if err != nil {
			r.AppendQuality(fmt.Sprintf("%s: invocation failed: %v", check, err))
			failed = append(failed, check)
			continue
		}
		if res.ExitCode != 0 {
			r.AppendQuality(fmt.Sprintf("%s: exit %d: %s", check, res.ExitCode, strings.TrimSpace(res.Stderr)))
			failed = append(failed, check)
			continue
		}
		r.AppendQuality(check + ": ok")
	}

	if err := s.store.UpdateRun(ctx, r); err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return r, fmt.Errorf("quality checks failed: %s", strings.Join(failed, ", "))
	}
	return r, nil
}

// OpenPullRequest opens a PR from the run's branch. The body carries the
// PRD title and the per-story outcome summary.
func (s *RunService) OpenPullRequest(ctx context.Context, id, repo, base string, draft bool) (*gitprovider.PullRequest, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("open pull request: no provider configured")
	}

	r, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartProviderSpan(ctx, s.provider.Name(), "create_pr", repo)
	defer span.End()

	pr, err := s.provider.CreatePullRequest(ctx, repo, gitprovider.CreatePROptions{
		Title: r.PRD.Title,
		Body:  pullRequestBody(r),
		Head:  r.Branch,
		Base:  base,
		Draft: draft,
	})
	if err != nil {
		return nil, fmt.Errorf("open pull request for run %s: %w", id, err)
	}

	r.AppendProgress(fmt.Sprintf("pull request #%d opened: %s", pr.Number, pr.URL))
	if err := s.store.UpdateRun(ctx, r); err != nil {
		return nil, err
	}
	return pr, nil
}

// Pause suspends a running run.
func (s *RunService) Pause(ctx context.Context, id string) (*run.Run, error) {
	return s.transition(ctx, id, run.StatusRunning, run.StatusPaused, "run paused")
}

// Resume continues a paused run.
func (s *RunService) Resume(ctx context.Context, id string) (*run.Run, error) {
	return s.transition(ctx, id, run.StatusPaused, run.StatusRunning, "run resumed")
}

// Cancel terminates a run that has not reached a terminal state and
// releases its environment.
func (s *RunService) Cancel(ctx context.Context, id string) (*run.Run, error) {
	r, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status.Terminal() {
		return nil, fmt.Errorf("cancel run %s: already %s", id, r.Status)
	}

	s.finish(r, run.StatusCancelled, "")
	r.AppendProgress("run cancelled")
	if err := s.store.UpdateRun(ctx, r); err != nil {
		return nil, err
	}

	s.log.Info("run cancelled", "run", r.ID)
	s.publish(ctx, eventbus.SubjectRunCancelled, r)
	s.releaseEnvironment(ctx, r)
	return r, nil
}

// Progress derives story progress from the run's live story copies.
func (s *RunService) Progress(r *run.Run) prd.Progress {
	doc := r.PRD
	doc.UserStories = r.Stories
	return prd.GetProgress(&doc)
}

func (s *RunService) transition(ctx context.Context, id string, from, to run.Status, msg string) (*run.Run, error) {
	r, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != from {
		return nil, fmt.Errorf("transition run %s to %s: status is %s, want %s", id, to, r.Status, from)
	}

	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	r.AppendProgress(msg)
	if err := s.store.UpdateRun(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info(msg, "run", r.ID)
	return r, nil
}

func (s *RunService) finish(r *run.Run, status run.Status, errMsg string) {
	now := time.Now().UTC()
	r.Status = status
	r.Error = errMsg
	r.UpdatedAt = now
	r.CompletedAt = &now
}

// fail marks the run failed and persists it; the original error is returned
// for the caller to propagate.
func (s *RunService) fail(ctx context.Context, r *run.Run, cause error) error {
	s.finish(r, run.StatusFailed, cause.Error())
	if err := s.store.UpdateRun(ctx, r); err != nil {
		s.log.Error("persist failed run", "run", r.ID, "error", err)
	}
	s.publish(ctx, eventbus.SubjectRunFailed, r)
	return cause
}

// releaseEnvironment stops the run's sandbox so the GC retention rules take
// over. Removal stays with the sweeper; the stopped environment remains
// inspectable until its preserve window lapses.
func (s *RunService) releaseEnvironment(ctx context.Context, r *run.Run) {
	if r.EnvironmentID == "" {
		return
	}
	if err := s.engines.Engine().StopContainer(ctx, r.EnvironmentID, s.cfg.StopTimeout); err != nil {
		s.log.Warn("stop environment failed", "run", r.ID, "environment", r.EnvironmentID, "error", err)
	}
}

func (s *RunService) publish(ctx context.Context, subject string, r *run.Run) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		s.log.Warn("event publish failed", "subject", subject, "run", r.ID, "error", err)
	}
}

func findStory(stories []prd.UserStory, id string) *prd.UserStory {
	for i := range stories {
		if stories[i].ID == id {
			return &stories[i]
		}
	}
	return nil
}

// allSettled reports whether every story either passed or exhausted its
// attempts, leaving nothing workable.
func allSettled(stories []prd.UserStory) bool {
	for i := range stories {
		if !stories[i].Passes && !stories[i].Exhausted() {
			return false
		}
	}
	return true
}

func pullRequestBody(r *run.Run) string {
	var b strings.Builder
	b.WriteString(r.PRD.Description)
	b.WriteString("\n\n## Stories\n")
	for i := range r.Stories {
		story := &r.Stories[i]
		mark := " "
		if story.Passes {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s (%d attempts)\n", mark, story.Title, story.Attempts)
	}
	return b.String()
}
