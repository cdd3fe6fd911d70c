// Package engine defines the container engine port (interface) shared by all
// execution backends.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/RunForge/internal/domain/environment"
)

// Filters narrows ListContainers results. Zero values mean "any".
type Filters struct {
	Labels map[string]string
	Status environment.Status
	Name   string
}

// ExecOptions controls command execution inside an environment.
type ExecOptions struct {
	WorkDir string
	Env     map[string]string
	User    string
	Timeout time.Duration // zero means no timeout beyond ctx
}

// Engine is the port interface implemented by every container backend. All
// methods shell out to the engine binary and block until it returns; callers
// apply their own timeouts through ctx except where an explicit timeout
// parameter exists.
type Engine interface {
	// Name returns the backend identifier ("docker", "podman", "apple").
	Name() string

	// IsAvailable probes for the engine binary and platform support.
	// It never returns an error; any detection failure reports false.
	IsAvailable(ctx context.Context) bool

	// CreateContainer pulls the image if absent and creates an environment
	// from cfg. The returned environment is in status "created", or
	// "running" for engines that start on create.
	CreateContainer(ctx context.Context, cfg environment.Config) (*environment.Environment, error)

	// StartContainer starts a created or stopped environment.
	StartContainer(ctx context.Context, id string) error

	// StopContainer stops a running environment, waiting up to timeout
	// before the engine force-kills it.
	StopContainer(ctx context.Context, id string, timeout time.Duration) error

	// RemoveContainer deletes an environment. With force set, a running
	// environment is killed first. Removing an unknown id is a no-op.
	RemoveContainer(ctx context.Context, id string, force bool) error

	// ListContainers returns best-effort results matching the filters.
	// Invocation failures yield an empty list, never an error.
	ListContainers(ctx context.Context, filters Filters) []environment.Environment

	// GetContainer returns the environment with the given id, or nil when
	// the id is unknown.
	GetContainer(ctx context.Context, id string) (*environment.Environment, error)

	// GetStats returns a resource usage snapshot. Engines without a stats
	// endpoint return a zero snapshot.
	GetStats(ctx context.Context, id string) (*environment.Stats, error)

	// Exec runs a command inside a running environment and returns its
	// exit code and captured output.
	Exec(ctx context.Context, id string, command []string, opts ExecOptions) (*environment.ExecResult, error)

	// PullImage fetches an image. Pulling a present image is a no-op
	// success.
	PullImage(ctx context.Context, image string) error
}

// InvocationError reports a failed engine binary invocation with the
// underlying process's stderr attached.
type InvocationError struct {
	Engine string
	Op     string
	Stderr string
	Err    error
}

func (e *InvocationError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s %s: %s", e.Engine, e.Op, e.Stderr)
	}
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
