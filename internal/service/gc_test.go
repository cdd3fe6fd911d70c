package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/RunForge/internal/config"
	"github.com/Strob0t/RunForge/internal/domain/environment"
	"github.com/Strob0t/RunForge/internal/port/engine"
)

// fakeEngine keeps environments in memory and records removals.
type fakeEngine struct {
	mu      sync.Mutex
	envs    map[string]*environment.Environment
	removed []string
	stopped []string
	failOn  map[string]error // RemoveContainer failures by id
	execFn  func(command []string) *environment.ExecResult
	pulls   int
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine(envs ...*environment.Environment) *fakeEngine {
	f := &fakeEngine{envs: make(map[string]*environment.Environment), failOn: make(map[string]error)}
	for _, e := range envs {
		f.envs[e.ID] = e
	}
	return f
}

func (f *fakeEngine) Name() string                     { return "fake" }
func (f *fakeEngine) IsAvailable(context.Context) bool { return true }

func (f *fakeEngine) CreateContainer(_ context.Context, cfg environment.Config) (*environment.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env := &environment.Environment{
		ID:        fmt.Sprintf("env-%d", len(f.envs)+1),
		Name:      cfg.Name,
		Image:     cfg.Image,
		Status:    environment.StatusCreated,
		CreatedAt: time.Now().UTC(),
		Labels:    cfg.Labels,
	}
	f.envs[env.ID] = env
	return env, nil
}

func (f *fakeEngine) StartContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env, ok := f.envs[id]; ok {
		env.Status = environment.StatusRunning
	}
	return nil
}

func (f *fakeEngine) StopContainer(_ context.Context, id string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	if env, ok := f.envs[id]; ok {
		env.Status = environment.StatusExited
	}
	return nil
}

func (f *fakeEngine) RemoveContainer(_ context.Context, id string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[id]; ok {
		return err
	}
	delete(f.envs, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeEngine) ListContainers(_ context.Context, filters engine.Filters) []environment.Environment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []environment.Environment
	for _, env := range f.envs {
		match := true
		for k, v := range filters.Labels {
			if env.Labels[k] != v {
				match = false
			}
		}
		if match {
			out = append(out, *env)
		}
	}
	return out
}

func (f *fakeEngine) GetContainer(_ context.Context, id string) (*environment.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.envs[id]
	if !ok {
		return nil, nil
	}
	cp := *env
	return &cp, nil
}

func (f *fakeEngine) GetStats(context.Context, string) (*environment.Stats, error) {
	return &environment.Stats{}, nil
}

func (f *fakeEngine) Exec(_ context.Context, _ string, command []string, _ engine.ExecOptions) (*environment.ExecResult, error) {
	if f.execFn != nil {
		return f.execFn(command), nil
	}
	return &environment.ExecResult{}, nil
}

func (f *fakeEngine) PullImage(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	return nil
}

// fakeArchiver records archived keys and can be told to fail.
type fakeArchiver struct {
	keys []string
	err  error
}

func (a *fakeArchiver) Archive(_ context.Context, key string, _ []byte) error {
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func managedEnv(id string, status environment.Status, runStatus string, finished time.Time) *environment.Environment {
	env := &environment.Environment{
		ID:        id,
		Name:      "runforge-" + id,
		Status:    status,
		CreatedAt: finished.Add(-time.Hour),
		Labels: map[string]string{
			environment.LabelManaged:   "true",
			environment.LabelRunID:     "run-" + id,
			environment.LabelRunStatus: runStatus,
			environment.LabelUser:      "u1",
		},
	}
	if status != environment.StatusCreated {
		started := finished.Add(-30 * time.Minute)
		env.StartedAt = &started
	}
	if status == environment.StatusExited {
		env.FinishedAt = &finished
	}
	return env
}

func gcConfig() config.GC {
	return config.GC{
		Enabled:              true,
		Interval:             time.Minute,
		MaxIdleTime:          time.Minute,
		MaxContainersPerUser: 5,
		PreserveCompleted:    0,
		PreserveFailed:       4 * time.Hour,
		BackupBeforeDelete:   false,
	}
}

func TestRunGC_RemovesExpiredCompleted(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var envs []*environment.Environment
	for i := range 7 {
		envs = append(envs, managedEnv(fmt.Sprintf("c%d", i), environment.StatusExited, "completed", now.Add(-10*time.Minute)))
	}
	eng := newFakeEngine(envs...)

	svc := NewGCService(eng, nil, nil, nil, gcConfig(), testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 7 {
		t.Errorf("expected 7 removals, got %d: %v", len(report.Removed), report.Removed)
	}
	if len(eng.envs) != 0 {
		t.Errorf("environments left behind: %d", len(eng.envs))
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors %v", report.Errors)
	}
}

func TestRunGC_NeverRemovesRunning(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	running := managedEnv("r1", environment.StatusRunning, "running", now)
	ancient := now.Add(-24 * time.Hour)
	running.StartedAt = &ancient

	eng := newFakeEngine(running)
	svc := NewGCService(eng, nil, nil, nil, gcConfig(), testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 0 {
		t.Errorf("running environment was removed: %v", report.Removed)
	}
	if _, ok := eng.envs["r1"]; !ok {
		t.Error("running environment vanished")
	}
}

func TestRunGC_IdleRule(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	idle := managedEnv("i1", environment.StatusExited, "running", now.Add(-5*time.Minute))
	fresh := managedEnv("f1", environment.StatusExited, "running", now.Add(-10*time.Second))

	eng := newFakeEngine(idle, fresh)
	svc := NewGCService(eng, nil, nil, nil, gcConfig(), testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != "i1" {
		t.Errorf("expected only the idle environment removed, got %v", report.Removed)
	}
}

func TestRunGC_PreservesRecentFailed(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Failed 30s ago: inside both the failure preserve window and the
	// idle window, so it must survive.
	recent := managedEnv("f1", environment.StatusExited, "failed", now.Add(-30*time.Second))
	// Failed five hours ago: past the 4h preserve window.
	old := managedEnv("f2", environment.StatusExited, "failed", now.Add(-5*time.Hour))

	eng := newFakeEngine(recent, old)
	svc := NewGCService(eng, nil, nil, nil, gcConfig(), testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != "f2" {
		t.Errorf("expected only the old failure removed, got %v", report.Removed)
	}
}

func TestRunGC_CapacityRemovesOldest(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Eight stopped environments inside every preserve and idle window;
	// only the per-user cap of 5 applies. The three oldest must go.
	var envs []*environment.Environment
	for i := range 8 {
		e := managedEnv(fmt.Sprintf("c%d", i), environment.StatusExited, "running", now.Add(-time.Duration(i+1)*time.Second))
		envs = append(envs, e)
	}
	eng := newFakeEngine(envs...)

	cfg := gcConfig()
	cfg.MaxIdleTime = time.Hour
	svc := NewGCService(eng, nil, nil, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 3 {
		t.Fatalf("expected exactly 3 removals, got %d: %v", len(report.Removed), report.Removed)
	}
	// c7, c6, c5 have the oldest last-activity stamps.
	want := map[string]bool{"c7": true, "c6": true, "c5": true}
	for _, id := range report.Removed {
		if !want[id] {
			t.Errorf("removed %s, expected one of the three oldest", id)
		}
	}
}

func TestRunGC_DisabledPolicy(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	eng := newFakeEngine(managedEnv("c1", environment.StatusExited, "completed", now.Add(-time.Hour)))

	cfg := gcConfig()
	cfg.Enabled = false
	svc := NewGCService(eng, nil, nil, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 0 || len(eng.envs) != 1 {
		t.Errorf("disabled policy must not remove anything: %v", report.Removed)
	}
}

func TestRunGC_ArchivesBeforeDelete(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	eng := newFakeEngine(managedEnv("c1", environment.StatusExited, "completed", now.Add(-time.Hour)))
	arch := &fakeArchiver{}

	cfg := gcConfig()
	cfg.BackupBeforeDelete = true
	svc := NewGCService(eng, nil, arch, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Archived) != 1 || len(arch.keys) != 1 {
		t.Fatalf("expected one archive, got %v / %v", report.Archived, arch.keys)
	}
	if arch.keys[0] != fmt.Sprintf("gc/run-c1/%d.json", now.UnixNano()) {
		t.Errorf("unexpected archive key %q", arch.keys[0])
	}
	if len(report.Removed) != 1 {
		t.Errorf("environment not removed after archive: %v", report.Removed)
	}
}

func TestRunGC_PreserveWindowIsStrict(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Exactly at the window boundary the environment survives; one second
	// past it goes.
	boundary := managedEnv("c1", environment.StatusExited, "completed", now.Add(-10*time.Minute))
	past := managedEnv("c2", environment.StatusExited, "completed", now.Add(-10*time.Minute-time.Second))

	cfg := gcConfig()
	cfg.PreserveCompleted = 10 * time.Minute
	cfg.MaxIdleTime = time.Hour
	eng := newFakeEngine(boundary, past)
	svc := NewGCService(eng, nil, nil, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != "c2" {
		t.Errorf("expected only the past-window environment removed, got %v", report.Removed)
	}
}

func TestRunGC_NoBackupWithoutRunLabel(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// A managed stray without a run-id label is removed but not archived.
	finished := now.Add(-time.Hour)
	stray := &environment.Environment{
		ID:         "s1",
		Status:     environment.StatusExited,
		CreatedAt:  finished.Add(-time.Hour),
		FinishedAt: &finished,
		Labels:     map[string]string{environment.LabelManaged: "true"},
	}
	eng := newFakeEngine(stray)
	arch := &fakeArchiver{}

	cfg := gcConfig()
	cfg.BackupBeforeDelete = true
	svc := NewGCService(eng, nil, arch, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != "s1" {
		t.Errorf("stray not removed: %v", report.Removed)
	}
	if len(report.Archived) != 0 || len(arch.keys) != 0 {
		t.Errorf("stray must not be archived: %v / %v", report.Archived, arch.keys)
	}
}

func TestRunGC_ArchiveFailureStillRemoves(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	eng := newFakeEngine(managedEnv("c1", environment.StatusExited, "completed", now.Add(-time.Hour)))
	arch := &fakeArchiver{err: errors.New("bucket gone")}

	cfg := gcConfig()
	cfg.BackupBeforeDelete = true
	svc := NewGCService(eng, nil, arch, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if len(report.Removed) != 1 {
		t.Errorf("archival failure must not block removal: %v", report.Removed)
	}
	if len(report.Archived) != 0 {
		t.Errorf("failed archive reported as success: %v", report.Archived)
	}
}

func TestRunGC_CollectsPerItemErrors(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	bad := managedEnv("b1", environment.StatusExited, "completed", now.Add(-time.Hour))
	good := managedEnv("g1", environment.StatusExited, "completed", now.Add(-time.Hour))

	eng := newFakeEngine(bad, good)
	eng.failOn["b1"] = errors.New("device busy")

	svc := NewGCService(eng, nil, nil, nil, gcConfig(), testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.RunGC(context.Background())
	if err != nil {
		t.Fatalf("sweep must not fail on per-item errors: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != "g1" {
		t.Errorf("healthy environment not removed: %v", report.Removed)
	}
	if len(report.Errors) != 1 || report.Errors[0].EnvironmentID != "b1" {
		t.Errorf("per-item error not collected: %v", report.Errors)
	}
}

func TestCleanupAll_IgnoresPolicy(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	running := managedEnv("r1", environment.StatusRunning, "running", now)
	stopped := managedEnv("s1", environment.StatusExited, "running", now)

	cfg := gcConfig()
	cfg.Enabled = false // cleanupAll works even with sweeps disabled
	eng := newFakeEngine(running, stopped)
	svc := NewGCService(eng, nil, nil, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, err := svc.CleanupAll(context.Background())
	if err != nil {
		t.Fatalf("cleanup all: %v", err)
	}
	if len(report.Removed) != 2 {
		t.Errorf("expected full reclaim, got %v", report.Removed)
	}
	// The running environment gets a stop before removal.
	found := false
	for _, id := range eng.stopped {
		if id == "r1" {
			found = true
		}
	}
	if !found {
		t.Error("running environment was not stopped before removal")
	}
}

func TestUpdatePolicy_TakesEffectNextSweep(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	env := managedEnv("c1", environment.StatusExited, "running", now.Add(-30*time.Second))

	cfg := gcConfig()
	cfg.MaxIdleTime = time.Hour
	eng := newFakeEngine(env)
	svc := NewGCService(eng, nil, nil, nil, cfg, testLogger())
	svc.now = func() time.Time { return now }

	report, _ := svc.RunGC(context.Background())
	if len(report.Removed) != 0 {
		t.Fatalf("environment removed under the lenient policy: %v", report.Removed)
	}

	p := svc.Policy()
	p.MaxIdleTime = 10 * time.Second
	svc.UpdatePolicy(p)

	report, _ = svc.RunGC(context.Background())
	if len(report.Removed) != 1 {
		t.Errorf("tightened policy not applied: %v", report.Removed)
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	eng := newFakeEngine()
	svc := NewGCService(eng, nil, nil, nil, gcConfig(), testLogger())

	ctx := context.Background()
	svc.Start(ctx)
	svc.Start(ctx) // second start is a no-op
	svc.Stop()
	svc.Stop() // second stop is a no-op
}

func TestSweepSlot_DropsConcurrentTrigger(t *testing.T) {
	eng := newFakeEngine()
	svc := NewGCService(eng, nil, nil, nil, gcConfig(), testLogger())

	svc.sweepMu.Lock()
	report, err := svc.RunGC(context.Background())
	svc.sweepMu.Unlock()
	if err != nil {
		t.Fatalf("run gc: %v", err)
	}
	if report != nil {
		t.Errorf("expected dropped sweep to return nil, got %+v", report)
	}
}
