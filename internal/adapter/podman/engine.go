// Package podman implements the engine port for the Podman CLI, a drop-in
// replacement for the Docker CLI surface.
package podman

import (
	"github.com/Strob0t/RunForge/internal/adapter/enginecli"
	"github.com/Strob0t/RunForge/internal/domain/environment"
)

const engineName = "podman"

// statusMap translates libpod's native status vocabulary, which is wider
// than Docker's. Unlisted statuses fall through to exited.
var statusMap = map[string]environment.Status{
	"configured":  environment.StatusCreated,
	"initialized": environment.StatusCreated,
	"created":     environment.StatusCreated,
	"running":     environment.StatusRunning,
	"paused":      environment.StatusPaused,
	"restarting":  environment.StatusRestarting,
	"stopping":    environment.StatusRemoving,
	"removing":    environment.StatusRemoving,
	"stopped":     environment.StatusExited,
	"exited":      environment.StatusExited,
	"dead":        environment.StatusDead,
}

// New creates a Podman-backed engine.
func New() *enginecli.CLIEngine {
	return enginecli.New(engineName, "podman", statusMap, true)
}
