package gc

import "time"

// SweepError records a per-environment failure during a sweep. Failures are
// collected, never fatal to the sweep.
type SweepError struct {
	EnvironmentID string `json:"environment_id"`
	Err           string `json:"error"`
}

// Report is the immutable outcome of one sweep.
type Report struct {
	Removed  []string     `json:"removed"`
	Archived []string     `json:"archived"`
	Errors   []SweepError `json:"errors"`
	SweptAt  time.Time    `json:"swept_at"`
}
