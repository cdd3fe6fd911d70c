package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/RunForge/internal/adapter/otel"
	"github.com/Strob0t/RunForge/internal/config"
	"github.com/Strob0t/RunForge/internal/domain/environment"
	"github.com/Strob0t/RunForge/internal/domain/gc"
	"github.com/Strob0t/RunForge/internal/domain/run"
	"github.com/Strob0t/RunForge/internal/port/archive"
	"github.com/Strob0t/RunForge/internal/port/database"
	"github.com/Strob0t/RunForge/internal/port/engine"
	"github.com/Strob0t/RunForge/internal/port/eventbus"
)

// GCService reclaims managed environments on a schedule. One sweep runs at a
// time: a trigger arriving while a sweep is in flight is dropped, not queued.
// Store, archiver and bus are optional; a nil value disables that concern.
type GCService struct {
	eng      engine.Engine
	store    database.Store
	archiver archive.Archiver
	bus      eventbus.Publisher
	log      *slog.Logger

	interval    time.Duration
	stopTimeout time.Duration

	policyMu sync.RWMutex
	policy   gc.Policy

	sweepMu sync.Mutex // single sweep slot

	lifecycleMu sync.Mutex
	stopCh      chan struct{}
	doneCh      chan struct{}

	now func() time.Time // test hook
}

// NewGCService builds the GC engine from the configured policy.
func NewGCService(eng engine.Engine, store database.Store, archiver archive.Archiver, bus eventbus.Publisher, cfg config.GC, log *slog.Logger) *GCService {
	return &GCService{
		eng:         eng,
		store:       store,
		archiver:    archiver,
		bus:         bus,
		log:         log,
		interval:    cfg.Interval,
		stopTimeout: 10 * time.Second,
		policy: gc.Policy{
			Enabled:              cfg.Enabled,
			MaxIdleTime:          cfg.MaxIdleTime,
			MaxContainersPerUser: cfg.MaxContainersPerUser,
			MaxContainersPerProj: cfg.MaxContainersPerProj,
			MaxDiskMB:            cfg.MaxDiskMB,
			MaxMemoryMB:          cfg.MaxMemoryMB,
			PreserveCompleted:    cfg.PreserveCompleted,
			PreserveFailed:       cfg.PreserveFailed,
			BackupBeforeDelete:   cfg.BackupBeforeDelete,
		},
		now: time.Now,
	}
}

// Policy returns the current reclamation policy.
func (s *GCService) Policy() gc.Policy {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	return s.policy
}

// UpdatePolicy replaces the policy. The next sweep picks it up; a sweep in
// progress finishes under the policy it started with.
func (s *GCService) UpdatePolicy(p gc.Policy) {
	s.policyMu.Lock()
	s.policy = p
	s.policyMu.Unlock()
	s.log.Info("gc policy updated",
		"max_idle", p.MaxIdleTime,
		"max_per_user", p.MaxContainersPerUser,
		"enabled", p.Enabled)
}

// Start launches the periodic sweeper: one immediate sweep, then one per
// interval. Calling Start on a started service is a no-op.
func (s *GCService) Start(ctx context.Context) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)
	s.log.Info("gc sweeper started", "interval", s.interval)
}

// Stop halts the periodic sweeper and waits for a sweep in progress to
// finish. Calling Stop on a stopped service is a no-op.
func (s *GCService) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
	s.doneCh = nil
	s.log.Info("gc sweeper stopped")
}

func (s *GCService) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	if _, err := s.RunGC(ctx); err != nil {
		s.log.Error("gc sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunGC(ctx); err != nil {
				s.log.Error("gc sweep failed", "error", err)
			}
		}
	}
}

// RunGC performs one sweep under the current policy. A call arriving while
// another sweep holds the slot returns (nil, nil) without sweeping. Per-item
// failures are collected in the report and never abort the sweep.
func (s *GCService) RunGC(ctx context.Context) (*gc.Report, error) {
	if !s.sweepMu.TryLock() {
		s.log.Debug("gc sweep already in progress, skipping")
		return nil, nil
	}
	defer s.sweepMu.Unlock()

	policy := s.Policy()
	report := &gc.Report{SweptAt: s.now().UTC()}
	if !policy.Enabled {
		return report, nil
	}

	ctx, span := otel.StartSweepSpan(ctx, s.eng.Name())
	defer span.End()

	envs := s.listManaged(ctx)
	removed := make(map[string]bool)

	// Idle and retention pass.
	for i := range envs {
		env := &envs[i]
		if env.Status == environment.StatusRunning {
			continue
		}
		reason, ok := s.expired(ctx, env, policy)
		if !ok {
			continue
		}
		s.reclaim(ctx, env, policy, reason, report)
		removed[env.ID] = true
	}

	// Capacity pass: oldest non-running environments beyond the per-user
	// and per-project limits.
	s.enforceCapacity(ctx, envs, removed, policy, environment.LabelUser, policy.MaxContainersPerUser, report)
	s.enforceCapacity(ctx, envs, removed, policy, environment.LabelProject, policy.MaxContainersPerProj, report)

	if len(report.Removed) > 0 || len(report.Errors) > 0 {
		s.log.Info("gc sweep finished",
			"removed", len(report.Removed),
			"archived", len(report.Archived),
			"errors", len(report.Errors))
	}
	s.publishReport(ctx, report)
	return report, nil
}

// CleanupAll removes every managed environment regardless of status or
// policy. Running environments are stopped first.
func (s *GCService) CleanupAll(ctx context.Context) (*gc.Report, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	policy := s.Policy()
	report := &gc.Report{SweptAt: s.now().UTC()}

	envs := s.listManaged(ctx)
	for i := range envs {
		s.reclaim(ctx, &envs[i], policy, "cleanup_all", report)
	}

	s.log.Info("gc cleanup-all finished", "removed", len(report.Removed), "errors", len(report.Errors))
	s.publishReport(ctx, report)
	return report, nil
}

func (s *GCService) listManaged(ctx context.Context) []environment.Environment {
	return s.eng.ListContainers(ctx, engine.Filters{
		Labels: map[string]string{environment.LabelManaged: "true"},
	})
}

// expired decides whether the idle and retention rules reclaim env. The
// caller has already excluded running environments.
func (s *GCService) expired(ctx context.Context, env *environment.Environment, policy gc.Policy) (string, bool) {
	age := s.now().Sub(env.LastActivity())

	switch s.resolveRunStatus(ctx, env) {
	case run.StatusCompleted:
		if age > policy.PreserveCompleted {
			return "completed_expired", true
		}
	case run.StatusFailed:
		if age > policy.PreserveFailed {
			return "failed_expired", true
		}
	}

	if policy.MaxIdleTime > 0 && age > policy.MaxIdleTime {
		return "idle", true
	}
	return "", false
}

// resolveRunStatus prefers the run record over the creation-time label: the
// label is stamped once and goes stale when the run reaches a terminal state.
func (s *GCService) resolveRunStatus(ctx context.Context, env *environment.Environment) run.Status {
	labelled := run.Status(env.Labels[environment.LabelRunStatus])
	if s.store == nil || env.RunID() == "" {
		return labelled
	}
	r, err := s.store.GetRun(ctx, env.RunID())
	if err != nil {
		return labelled
	}
	return r.Status
}

// enforceCapacity removes the oldest non-running environments of each label
// group until the group is back under limit. Environments already removed
// this sweep count as gone.
func (s *GCService) enforceCapacity(ctx context.Context, envs []environment.Environment, removed map[string]bool, policy gc.Policy, labelKey string, limit int, report *gc.Report) {
	if limit <= 0 {
		return
	}

	groups := make(map[string][]*environment.Environment)
	for i := range envs {
		env := &envs[i]
		if removed[env.ID] || env.Status == environment.StatusRunning {
			continue
		}
		groups[env.Labels[labelKey]] = append(groups[env.Labels[labelKey]], env)
	}

	for _, group := range groups {
		excess := len(group) - limit
		if excess <= 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].LastActivity().Before(group[j].LastActivity())
		})
		for _, env := range group[:excess] {
			s.reclaim(ctx, env, policy, "capacity", report)
			removed[env.ID] = true
		}
	}
}

// reclaim archives (best-effort) then removes one environment. Failures are
// recorded on the report. Backups apply only to environments carrying a
// run-id label; unlabelled strays are removed without one.
func (s *GCService) reclaim(ctx context.Context, env *environment.Environment, policy gc.Policy, reason string, report *gc.Report) {
	if policy.BackupBeforeDelete && s.archiver != nil && env.RunID() != "" {
		if key, err := s.archive(ctx, env, reason); err != nil {
			s.log.Warn("gc archive failed", "environment", env.ID, "error", err)
		} else {
			report.Archived = append(report.Archived, key)
		}
	}

	if env.Status == environment.StatusRunning || env.Status == environment.StatusPaused || env.Status == environment.StatusRestarting {
		if err := s.eng.StopContainer(ctx, env.ID, s.stopTimeout); err != nil {
			s.log.Warn("gc stop failed, forcing removal", "environment", env.ID, "error", err)
		}
	}

	if err := s.eng.RemoveContainer(ctx, env.ID, true); err != nil {
		report.Errors = append(report.Errors, gc.SweepError{EnvironmentID: env.ID, Err: err.Error()})
		return
	}

	report.Removed = append(report.Removed, env.ID)
	s.log.Info("environment reclaimed", "environment", env.ID, "run", env.RunID(), "reason", reason)
}

// archiveRecord is the JSON snapshot written before an environment is removed.
type archiveRecord struct {
	Environment *environment.Environment `json:"environment"`
	Run         *run.Run                 `json:"run,omitempty"`
	Reason      string                   `json:"reason"`
	CapturedAt  time.Time                `json:"captured_at"`
}

func (s *GCService) archive(ctx context.Context, env *environment.Environment, reason string) (string, error) {
	rec := archiveRecord{Environment: env, Reason: reason, CapturedAt: s.now().UTC()}
	if s.store != nil && env.RunID() != "" {
		if r, err := s.store.GetRun(ctx, env.RunID()); err == nil {
			rec.Run = r
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal archive record: %w", err)
	}

	key := fmt.Sprintf("gc/%s/%d.json", env.RunID(), s.now().UnixNano())
	if err := s.archiver.Archive(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *GCService) publishReport(ctx context.Context, report *gc.Report) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, eventbus.SubjectGCSweep, data); err != nil {
		s.log.Warn("gc report publish failed", "error", err)
	}
}
