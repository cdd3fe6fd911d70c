// Package environment defines the execution environment domain entity:
// an isolated, engine-managed sandbox in which agent work runs.
package environment

import "time"

// Status represents the lifecycle state of an environment.
// Transitions are monotonic: created → running → {paused ⇄ running} → {exited, dead}.
// Restarting and removing are transient states surfaced by the engine during
// start/stop races.
type Status string

const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusRestarting Status = "restarting"
	StatusRemoving   Status = "removing"
	StatusExited     Status = "exited"
	StatusDead       Status = "dead"
)

// Label keys stamped on every environment this system creates. The run id
// label is the sole linkage from an environment back to its Run.
const (
	LabelManaged   = "runforge.managed"
	LabelRunID     = "runforge.run.id"
	LabelRunStatus = "runforge.run.status"
	LabelUser      = "runforge.user"
	LabelProject   = "runforge.project"
)

// Environment is a point-in-time view of an engine-managed sandbox.
// The engine owns the underlying resource; holders of an Environment value
// must re-fetch by id rather than assume the snapshot stays valid.
type Environment struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Image      string            `json:"image"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	ExitCode   *int              `json:"exit_code,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// RunID returns the run id label, or "" for environments not created by
// this system.
func (e *Environment) RunID() string {
	return e.Labels[LabelRunID]
}

// LastActivity returns the most recent lifecycle timestamp, used by the GC
// engine for idle and capacity decisions.
func (e *Environment) LastActivity() time.Time {
	if e.FinishedAt != nil {
		return *e.FinishedAt
	}
	if e.StartedAt != nil {
		return *e.StartedAt
	}
	return e.CreatedAt
}

// Mount describes a volume mount inside the environment.
type Mount struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Mode   string `json:"mode,omitempty"` // "ro" or "rw"; empty means engine default
}

// Resources holds resource limits applied at creation.
type Resources struct {
	CPUShares       int `json:"cpu_shares,omitempty"`
	CPUs            int `json:"cpus,omitempty"`
	MemoryMB        int `json:"memory_mb,omitempty"`
	MemoryReserveMB int `json:"memory_reserve_mb,omitempty"`
	PidsLimit       int `json:"pids_limit,omitempty"`
}

// Security holds sandbox hardening flags applied at creation.
type Security struct {
	ReadOnlyRoot    bool     `json:"read_only_root,omitempty"`
	NoNewPrivileges bool     `json:"no_new_privileges,omitempty"`
	DropCaps        []string `json:"drop_caps,omitempty"`
	AddCaps         []string `json:"add_caps,omitempty"`
	Profile         string   `json:"profile,omitempty"` // AppArmor/SELinux profile name
	User            string   `json:"user,omitempty"`    // uid[:gid]
}

// Config holds the immutable creation parameters for an environment.
type Config struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Command     []string          `json:"command,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Mounts      []Mount           `json:"mounts,omitempty"`
	Resources   Resources         `json:"resources"`
	Security    Security          `json:"security"`
	NetworkMode string            `json:"network_mode,omitempty"`
	WorkDir     string            `json:"work_dir,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Stats is a point-in-time resource usage snapshot. Engines without a stats
// endpoint report a zero value.
type Stats struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryBytes    int64   `json:"memory_bytes"`
	MemoryLimit    int64   `json:"memory_limit"`
	DiskReadBytes  int64   `json:"disk_read_bytes"`
	DiskWriteBytes int64   `json:"disk_write_bytes"`
	NetRxBytes     int64   `json:"net_rx_bytes"`
	NetTxBytes     int64   `json:"net_tx_bytes"`
	PIDs           int     `json:"pids"`
}

// ExecResult holds the outcome of a command executed inside an environment.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}
