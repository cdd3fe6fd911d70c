// Package gc defines the garbage collection policy and sweep report.
package gc

import "time"

// Policy controls which environments a sweep reclaims. The GC engine reads
// the latest value at the start of each sweep; updates never interrupt a
// sweep in progress.
type Policy struct {
	Enabled              bool          `json:"enabled"`
	MaxIdleTime          time.Duration `json:"max_idle_time"`
	MaxContainersPerUser int           `json:"max_containers_per_user"`
	MaxContainersPerProj int           `json:"max_containers_per_project"`
	// MaxDiskMB and MaxMemoryMB are accepted and round-tripped but no
	// sweep pass enforces them yet; a usage-based pass would need an
	// agreed stats sampling window first.
	MaxDiskMB   int64 `json:"max_disk_mb"`
	MaxMemoryMB int64 `json:"max_memory_mb"`
	PreserveCompleted    time.Duration `json:"preserve_completed"`
	PreserveFailed       time.Duration `json:"preserve_failed"`
	BackupBeforeDelete   bool          `json:"backup_before_delete"`
}
