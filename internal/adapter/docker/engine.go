// Package docker implements the engine port for the Docker CLI.
package docker

import (
	"github.com/Strob0t/RunForge/internal/adapter/enginecli"
	"github.com/Strob0t/RunForge/internal/domain/environment"
)

const engineName = "docker"

// statusMap translates Docker's native status vocabulary. Docker's
// vocabulary already matches the shared enum; the table exists so an
// unlisted status falls through to exited.
var statusMap = map[string]environment.Status{
	"created":    environment.StatusCreated,
	"running":    environment.StatusRunning,
	"paused":     environment.StatusPaused,
	"restarting": environment.StatusRestarting,
	"removing":   environment.StatusRemoving,
	"exited":     environment.StatusExited,
	"dead":       environment.StatusDead,
}

// New creates a Docker-backed engine.
func New() *enginecli.CLIEngine {
	return enginecli.New(engineName, "docker", statusMap, true)
}
