package enginecli

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/RunForge/internal/domain/environment"
	"github.com/Strob0t/RunForge/internal/port/engine"
)

// CLIEngine implements engine.Engine for a docker-compatible CLI. Backends
// differ only in binary name, status table and stats support.
type CLIEngine struct {
	engineName string
	binary     string
	statusMap  map[string]environment.Status
	hasStats   bool
}

// New creates a CLIEngine for the given binary. statusMap translates the
// backend's native status vocabulary into the shared enum.
func New(engineName, binary string, statusMap map[string]environment.Status, hasStats bool) *CLIEngine {
	return &CLIEngine{
		engineName: engineName,
		binary:     binary,
		statusMap:  statusMap,
		hasStats:   hasStats,
	}
}

var _ engine.Engine = (*CLIEngine)(nil)

func (c *CLIEngine) Name() string { return c.engineName }

// IsAvailable probes for the binary and a responding daemon. Any failure
// reports false, never an error.
func (c *CLIEngine) IsAvailable(ctx context.Context) bool {
	if !binaryPresent(c.binary) {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := run(probeCtx, c.engineName, c.binary, "version")
	return err == nil
}

// CreateContainer pulls the image if absent and issues the engine's create
// invocation. The returned environment reflects a follow-up inspect, so
// engines that start on create report running.
func (c *CLIEngine) CreateContainer(ctx context.Context, cfg environment.Config) (*environment.Environment, error) {
	if err := c.PullImage(ctx, cfg.Image); err != nil {
		return nil, err
	}

	out, err := run(ctx, c.engineName, c.binary, createArgs(cfg)...)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(out)

	env, err := c.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if env == nil {
		// Created but already gone; report what we know.
		return &environment.Environment{
			ID:     id,
			Name:   cfg.Name,
			Image:  cfg.Image,
			Status: environment.StatusCreated,
			Labels: cfg.Labels,
		}, nil
	}
	return env, nil
}

func (c *CLIEngine) StartContainer(ctx context.Context, id string) error {
	_, err := run(ctx, c.engineName, c.binary, "start", id)
	return err
}

func (c *CLIEngine) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	_, err := run(ctx, c.engineName, c.binary, stopArgs(id, timeout)...)
	return err
}

// RemoveContainer deletes an environment. Removing an id the engine no
// longer knows is a no-op, so concurrent manual and GC removals tolerate
// each other.
func (c *CLIEngine) RemoveContainer(ctx context.Context, id string, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, id)

	_, err := run(ctx, c.engineName, c.binary, args...)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// ListContainers returns best-effort results. Any invocation failure yields
// an empty list: listing feeds supervisory sweeps where liveness matters
// more than completeness.
func (c *CLIEngine) ListContainers(ctx context.Context, filters engine.Filters) []environment.Environment {
	out, err := run(ctx, c.engineName, c.binary, listArgs(filters)...)
	if err != nil {
		slog.Debug("engine list failed", "engine", c.engineName, "error", err)
		return nil
	}

	ids := strings.Fields(out)
	if len(ids) == 0 {
		return nil
	}

	inspectOut, err := run(ctx, c.engineName, c.binary, append([]string{"inspect"}, ids...)...)
	if err != nil {
		slog.Debug("engine inspect failed", "engine", c.engineName, "error", err)
		return nil
	}

	envs, err := parseInspect([]byte(inspectOut), c.statusMap)
	if err != nil {
		slog.Debug("engine inspect parse failed", "engine", c.engineName, "error", err)
		return nil
	}
	return envs
}

// GetContainer returns nil (not an error) when the id is unknown.
func (c *CLIEngine) GetContainer(ctx context.Context, id string) (*environment.Environment, error) {
	out, err := run(ctx, c.engineName, c.binary, "inspect", id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	envs, err := parseInspect([]byte(out), c.statusMap)
	if err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, nil
	}
	return &envs[0], nil
}

// GetStats returns a usage snapshot, or a zero snapshot for backends
// without a stats endpoint.
func (c *CLIEngine) GetStats(ctx context.Context, id string) (*environment.Stats, error) {
	if !c.hasStats {
		return &environment.Stats{}, nil
	}

	out, err := run(ctx, c.engineName, c.binary, "stats", "--no-stream", "--format", "{{json .}}", id)
	if err != nil {
		return nil, err
	}
	return parseStats(out)
}

// Exec runs a command inside a running environment. opts.Timeout bounds the
// command; the exit code is reported in the result, not as an error.
func (c *CLIEngine) Exec(ctx context.Context, id string, command []string, opts engine.ExecOptions) (*environment.ExecResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	stdout, stderr, code, err := runExit(ctx, c.binary, execArgs(id, command, opts)...)
	if err != nil {
		return nil, &engine.InvocationError{
			Engine: c.engineName,
			Op:     "exec",
			Stderr: strings.TrimSpace(stderr),
			Err:    err,
		}
	}
	return &environment.ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}, nil
}

// PullImage fetches the image unless it is already present.
func (c *CLIEngine) PullImage(ctx context.Context, image string) error {
	if _, err := run(ctx, c.engineName, c.binary, "image", "inspect", image); err == nil {
		return nil
	}
	_, err := run(ctx, c.engineName, c.binary, "pull", image)
	return err
}

// isNotFound recognizes the engine's "no such container" stderr across the
// docker-compatible backends.
func isNotFound(err error) bool {
	var inv *engine.InvocationError
	if !errors.As(err, &inv) {
		return false
	}
	msg := strings.ToLower(inv.Stderr)
	return strings.Contains(msg, "no such container") ||
		strings.Contains(msg, "no such object") ||
		strings.Contains(msg, "no container with name or id") ||
		strings.Contains(msg, "not found")
}
