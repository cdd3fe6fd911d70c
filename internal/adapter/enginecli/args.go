package enginecli

import (
	"fmt"
	"sort"
	"time"

	"github.com/Strob0t/RunForge/internal/domain/environment"
	"github.com/Strob0t/RunForge/internal/port/engine"
)

// createArgs translates an environment.Config into docker-compatible
// `create` arguments.
func createArgs(cfg environment.Config) []string {
	args := []string{"create", "--name", cfg.Name}

	for _, k := range sortedKeys(cfg.Labels) {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, cfg.Labels[k]))
	}
	for _, k := range sortedKeys(cfg.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, cfg.Env[k]))
	}
	for _, m := range cfg.Mounts {
		spec := m.Source + ":" + m.Target
		if m.Mode != "" {
			spec += ":" + m.Mode
		}
		args = append(args, "-v", spec)
	}

	r := cfg.Resources
	if r.MemoryMB > 0 {
		args = append(args, fmt.Sprintf("--memory=%dm", r.MemoryMB))
	}
	if r.MemoryReserveMB > 0 {
		args = append(args, fmt.Sprintf("--memory-reservation=%dm", r.MemoryReserveMB))
	}
	if r.CPUShares > 0 {
		args = append(args, fmt.Sprintf("--cpu-shares=%d", r.CPUShares))
	}
	if r.CPUs > 0 {
		args = append(args, fmt.Sprintf("--cpus=%d", r.CPUs))
	}
	if r.PidsLimit > 0 {
		args = append(args, fmt.Sprintf("--pids-limit=%d", r.PidsLimit))
	}

	if cfg.NetworkMode != "" {
		args = append(args, fmt.Sprintf("--network=%s", cfg.NetworkMode))
	}

	sec := cfg.Security
	if sec.ReadOnlyRoot {
		args = append(args, "--read-only", "--tmpfs", "/tmp")
	}
	if sec.NoNewPrivileges {
		args = append(args, "--security-opt=no-new-privileges")
	}
	for _, c := range sec.DropCaps {
		args = append(args, "--cap-drop="+c)
	}
	for _, c := range sec.AddCaps {
		args = append(args, "--cap-add="+c)
	}
	if sec.Profile != "" {
		args = append(args, "--security-opt=apparmor="+sec.Profile)
	}
	if sec.User != "" {
		args = append(args, "--user", sec.User)
	}

	if cfg.WorkDir != "" {
		args = append(args, "-w", cfg.WorkDir)
	}

	args = append(args, cfg.Image)
	args = append(args, cfg.Command...)
	return args
}

// execArgs translates exec options into docker-compatible `exec` arguments.
func execArgs(id string, command []string, opts engine.ExecOptions) []string {
	args := []string{"exec"}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}
	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}
	args = append(args, id)
	args = append(args, command...)
	return args
}

// listArgs translates filters into docker-compatible `ps` arguments. Only
// ids are requested; details come from a follow-up inspect.
func listArgs(filters engine.Filters) []string {
	args := []string{"ps", "-aq", "--no-trunc"}
	for _, k := range sortedKeys(filters.Labels) {
		args = append(args, "--filter", fmt.Sprintf("label=%s=%s", k, filters.Labels[k]))
	}
	if filters.Status != "" {
		args = append(args, "--filter", "status="+string(filters.Status))
	}
	if filters.Name != "" {
		args = append(args, "--filter", "name="+filters.Name)
	}
	return args
}

// stopArgs builds the `stop` invocation honoring the grace timeout.
func stopArgs(id string, timeout time.Duration) []string {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	return []string{"stop", "-t", fmt.Sprintf("%d", secs), id}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
