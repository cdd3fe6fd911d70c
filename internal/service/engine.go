// Package service wires domain logic to the engine, provider, storage and
// event ports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/RunForge/internal/adapter/otel"
	"github.com/Strob0t/RunForge/internal/config"
	"github.com/Strob0t/RunForge/internal/domain/environment"
	"github.com/Strob0t/RunForge/internal/domain/run"
	"github.com/Strob0t/RunForge/internal/port/cache"
	"github.com/Strob0t/RunForge/internal/port/engine"
)

// EngineService owns the selected container backend and the environment
// creation defaults. Image presence is cached so repeated environment
// creation does not re-probe the engine, and concurrent pulls of the same
// image collapse into one invocation.
type EngineService struct {
	eng      engine.Engine
	cache    cache.Cache
	imageTTL time.Duration
	sandbox  config.Sandbox
	group    singleflight.Group
	log      *slog.Logger
}

// NewEngineService selects a backend per cfg.Engine ("auto" probes docker,
// podman then apple) and returns the service bound to it.
func NewEngineService(ctx context.Context, cfg config.Config, c cache.Cache, log *slog.Logger) (*EngineService, error) {
	eng, err := engine.Detect(ctx, cfg.Engine.Backend)
	if err != nil {
		return nil, fmt.Errorf("select engine backend: %w", err)
	}
	log.Info("engine backend selected", "engine", eng.Name())

	return &EngineService{
		eng:      eng,
		cache:    c,
		imageTTL: cfg.Cache.ImageTTL,
		sandbox:  cfg.Sandbox,
		log:      log,
	}, nil
}

// NewEngineServiceWith binds the service to an already-constructed engine.
func NewEngineServiceWith(eng engine.Engine, cfg config.Config, c cache.Cache, log *slog.Logger) *EngineService {
	return &EngineService{
		eng:      eng,
		cache:    c,
		imageTTL: cfg.Cache.ImageTTL,
		sandbox:  cfg.Sandbox,
		log:      log,
	}
}

// Engine exposes the underlying backend.
func (s *EngineService) Engine() engine.Engine { return s.eng }

// EnsureImage pulls the image unless the cache records it as present.
// Concurrent calls for the same image share a single pull.
func (s *EngineService) EnsureImage(ctx context.Context, image string) error {
	key := "image:" + s.eng.Name() + ":" + image
	if s.cache != nil {
		if _, ok, _ := s.cache.Get(ctx, key); ok {
			return nil
		}
	}

	_, err, _ := s.group.Do(key, func() (any, error) {
		spanCtx, span := otel.StartEngineSpan(ctx, s.eng.Name(), "pull")
		defer span.End()
		return nil, s.eng.PullImage(spanCtx, image)
	})
	if err != nil {
		return fmt.Errorf("ensure image %s: %w", image, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte("1"), s.imageTTL); err != nil {
			s.log.Debug("image cache set failed", "image", image, "error", err)
		}
	}
	return nil
}

// CreateForRun creates and starts a sandbox environment for the run, stamped
// with the management labels the GC engine filters on.
func (s *EngineService) CreateForRun(ctx context.Context, r *run.Run, user, project string) (*environment.Environment, error) {
	if err := s.EnsureImage(ctx, s.sandbox.Image); err != nil {
		return nil, err
	}

	cfg := s.environmentConfig(r, user, project)

	spanCtx, span := otel.StartEngineSpan(ctx, s.eng.Name(), "create")
	defer span.End()

	env, err := s.eng.CreateContainer(spanCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create environment for run %s: %w", r.ID, err)
	}

	if env.Status != environment.StatusRunning {
		if err := s.eng.StartContainer(spanCtx, env.ID); err != nil {
			return nil, fmt.Errorf("start environment %s: %w", env.ID, err)
		}
	}

	s.log.Info("environment created", "run", r.ID, "environment", env.ID, "engine", s.eng.Name())
	return env, nil
}

// environmentConfig assembles creation parameters from the sandbox defaults.
func (s *EngineService) environmentConfig(r *run.Run, user, project string) environment.Config {
	labels := map[string]string{
		environment.LabelManaged:   "true",
		environment.LabelRunID:     r.ID,
		environment.LabelRunStatus: string(run.StatusRunning),
	}
	if user != "" {
		labels[environment.LabelUser] = user
	}
	if project != "" {
		labels[environment.LabelProject] = project
	}

	sec := environment.Security{
		ReadOnlyRoot:    s.sandbox.ReadOnlyRoot,
		NoNewPrivileges: s.sandbox.NoNewPrivileges,
		Profile:         s.sandbox.SecurityProfile,
		User:            s.sandbox.User,
	}
	if s.sandbox.DropCaps {
		sec.DropCaps = []string{"ALL"}
		sec.AddCaps = []string{"CHOWN", "SETUID", "SETGID"}
	}

	return environment.Config{
		Name:  "runforge-" + strings.TrimPrefix(r.ID, "run-"),
		Image: s.sandbox.Image,
		// Keep the sandbox alive until the run releases it.
		Command: []string{"sleep", "infinity"},
		Resources: environment.Resources{
			CPUShares:       s.sandbox.CPUShares,
			CPUs:            s.sandbox.CPUs,
			MemoryMB:        s.sandbox.MemoryMB,
			MemoryReserveMB: s.sandbox.MemoryReserveMB,
			PidsLimit:       s.sandbox.PidsLimit,
		},
		Security:    sec,
		NetworkMode: s.sandbox.NetworkMode,
		WorkDir:     s.sandbox.WorkDir,
		Labels:      labels,
	}
}
