// Package applecontainer implements the engine port for Apple's `container`
// CLI, which runs each environment in a lightweight VM. Available only on
// macOS/arm64.
package applecontainer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/Strob0t/RunForge/internal/domain/environment"
	"github.com/Strob0t/RunForge/internal/port/engine"
)

const (
	engineName = "apple"
	binary     = "container"
)

// statusMap translates the container CLI's status vocabulary. Unlisted
// statuses fall through to exited.
var statusMap = map[string]environment.Status{
	"created":  environment.StatusCreated,
	"running":  environment.StatusRunning,
	"stopping": environment.StatusRemoving,
	"stopped":  environment.StatusExited,
}

// Engine implements engine.Engine over the `container` CLI.
type Engine struct{}

// New creates an Apple container engine.
func New() *Engine { return &Engine{} }

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) Name() string { return engineName }

// IsAvailable reports true only on macOS/arm64 with the binary present and
// the container system service responding.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return false
	}
	if _, err := exec.LookPath(binary); err != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := run(probeCtx, "system", "status")
	return err == nil
}

// CreateContainer pulls the image if absent and creates the VM-backed
// environment. Capability and seccomp hardening flags have no equivalent
// here; VM isolation covers them, so they are not translated.
func (e *Engine) CreateContainer(ctx context.Context, cfg environment.Config) (*environment.Environment, error) {
	if err := e.PullImage(ctx, cfg.Image); err != nil {
		return nil, err
	}

	args := []string{"create", "--name", cfg.Name}
	for k, v := range cfg.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range cfg.Env {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, v))
	}
	for _, m := range cfg.Mounts {
		spec := m.Source + ":" + m.Target
		if m.Mode != "" {
			spec += ":" + m.Mode
		}
		args = append(args, "--volume", spec)
	}
	if cfg.Resources.MemoryMB > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dM", cfg.Resources.MemoryMB))
	}
	if cfg.Resources.CPUs > 0 {
		args = append(args, "--cpus", fmt.Sprintf("%d", cfg.Resources.CPUs))
	}
	if cfg.Security.User != "" {
		args = append(args, "--user", cfg.Security.User)
	}
	if cfg.WorkDir != "" {
		args = append(args, "--workdir", cfg.WorkDir)
	}
	args = append(args, cfg.Image)
	args = append(args, cfg.Command...)

	out, err := run(ctx, args...)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		id = cfg.Name
	}

	env, err := e.GetContainer(ctx, id)
	if err != nil || env == nil {
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

func (e *Engine) StartContainer(ctx context.Context, id string) error {
	_, err := run(ctx, "start", id)
	return err
}

func (e *Engine) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	_, err := run(ctx, "stop", "--time", fmt.Sprintf("%d", secs), id)
	return err
}

func (e *Engine) RemoveContainer(ctx context.Context, id string, force bool) error {
	args := []string{"delete"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, id)

	_, err := run(ctx, args...)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// ListContainers returns best-effort results; the CLI has no server-side
// label filters, so filtering happens here.
func (e *Engine) ListContainers(ctx context.Context, filters engine.Filters) []environment.Environment {
	out, err := run(ctx, "list", "--all", "--format", "json")
	if err != nil {
		slog.Debug("engine list failed", "engine", engineName, "error", err)
		return nil
	}

	entries, err := parseList([]byte(out))
	if err != nil {
		slog.Debug("engine list parse failed", "engine", engineName, "error", err)
		return nil
	}

	var envs []environment.Environment
	for _, env := range entries {
		if !matches(&env, filters) {
			continue
		}
		envs = append(envs, env)
	}
	return envs
}

func (e *Engine) GetContainer(ctx context.Context, id string) (*environment.Environment, error) {
	out, err := run(ctx, "inspect", id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	entries, err := parseList([]byte(out))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// GetStats returns a zero snapshot: the container CLI exposes no stats
// endpoint.
func (e *Engine) GetStats(_ context.Context, _ string) (*environment.Stats, error) {
	return &environment.Stats{}, nil
}

func (e *Engine) Exec(ctx context.Context, id string, command []string, opts engine.ExecOptions) (*environment.ExecResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := []string{"exec"}
	if opts.WorkDir != "" {
		args = append(args, "--workdir", opts.WorkDir)
	}
	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}
	for k, v := range opts.Env {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, id)
	args = append(args, command...)

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // G204: args are constructed internally, not from user input
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if runErr == nil {
		return &environment.ExecResult{ExitCode: 0, Stdout: outBuf.String(), Stderr: errBuf.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && ctx.Err() == nil {
		return &environment.ExecResult{
			ExitCode: exitErr.ExitCode(),
			Stdout:   outBuf.String(),
			Stderr:   errBuf.String(),
		}, nil
	}
	return nil, &engine.InvocationError{
		Engine: engineName,
		Op:     "exec",
		Stderr: strings.TrimSpace(errBuf.String()),
		Err:    runErr,
	}
}

func (e *Engine) PullImage(ctx context.Context, image string) error {
	if _, err := run(ctx, "image", "inspect", image); err == nil {
		return nil
	}
	_, err := run(ctx, "image", "pull", image)
	return err
}

// listEntry mirrors the container CLI's JSON list/inspect output.
type listEntry struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Image         string            `json:"image"`
	Labels        map[string]string `json:"labels"`
	CreatedAt     string            `json:"createdAt"`
	StartedAt     string            `json:"startedAt"`
	TerminatedAt  string            `json:"terminatedAt"`
	ExitCode      *int              `json:"exitCode"`
	Configuration struct {
		ID    string `json:"id"`
		Image struct {
			Reference string `json:"reference"`
		} `json:"image"`
	} `json:"configuration"`
}

func parseList(data []byte) ([]environment.Environment, error) {
	var entries []listEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse list output: %w", err)
	}

	envs := make([]environment.Environment, 0, len(entries))
	for _, le := range entries {
		id := le.ID
		if id == "" {
			id = le.Configuration.ID
		}
		image := le.Image
		if image == "" {
			image = le.Configuration.Image.Reference
		}

		env := environment.Environment{
			ID:     id,
			Name:   id, // the container CLI uses the name as the id
			Image:  image,
			Status: mapStatus(le.Status),
			Labels: le.Labels,
		}
		if t := parseTime(le.CreatedAt); !t.IsZero() {
			env.CreatedAt = t
		}
		if t := parseTime(le.StartedAt); !t.IsZero() {
			env.StartedAt = &t
		}
		if t := parseTime(le.TerminatedAt); !t.IsZero() {
			env.FinishedAt = &t
			env.ExitCode = le.ExitCode
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// mapStatus translates a native status; unrecognized statuses map to exited
// so no environment stays invisible to the GC engine.
func mapStatus(native string) environment.Status {
	if s, ok := statusMap[strings.ToLower(native)]; ok {
		return s
	}
	return environment.StatusExited
}

func matches(env *environment.Environment, filters engine.Filters) bool {
	for k, v := range filters.Labels {
		if env.Labels[k] != v {
			return false
		}
	}
	if filters.Status != "" && env.Status != filters.Status {
		return false
	}
	if filters.Name != "" && !strings.Contains(env.Name, filters.Name) {
		return false
	}
	return true
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.Year() <= 1 {
		return time.Time{}
	}
	return t
}

// run executes the container binary and returns trimmed stdout.
func run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // G204: args are constructed internally, not from user input

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &engine.InvocationError{
			Engine: engineName,
			Op:     args[0],
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func isNotFound(err error) bool {
	var inv *engine.InvocationError
	if !errors.As(err, &inv) {
		return false
	}
	return strings.Contains(strings.ToLower(inv.Stderr), "not found")
}
