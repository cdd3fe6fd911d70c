package enginecli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/RunForge/internal/domain/environment"
)

// inspectEntry mirrors the subset of `inspect` JSON output shared by
// docker-compatible engines.
type inspectEntry struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	State   struct {
		Status     string `json:"Status"`
		ExitCode   int    `json:"ExitCode"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
	} `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
}

// parseInspect decodes `inspect` output (a JSON array) into normalized
// environments using the backend's status table.
func parseInspect(data []byte, statusMap map[string]environment.Status) ([]environment.Environment, error) {
	var entries []inspectEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse inspect output: %w", err)
	}

	envs := make([]environment.Environment, 0, len(entries))
	for i := range entries {
		envs = append(envs, normalizeEntry(&entries[i], statusMap))
	}
	return envs, nil
}

func normalizeEntry(e *inspectEntry, statusMap map[string]environment.Status) environment.Environment {
	env := environment.Environment{
		ID:        e.ID,
		Name:      strings.TrimPrefix(e.Name, "/"),
		Image:     e.Config.Image,
		Status:    MapStatus(statusMap, e.State.Status),
		CreatedAt: parseTime(e.Created),
		Labels:    e.Config.Labels,
	}
	if t := parseTime(e.State.StartedAt); !t.IsZero() {
		env.StartedAt = &t
	}
	if t := parseTime(e.State.FinishedAt); !t.IsZero() {
		env.FinishedAt = &t
		code := e.State.ExitCode
		env.ExitCode = &code
	}
	return env
}

// MapStatus translates a native engine status into the shared enum.
// Unrecognized statuses map to exited so no environment stays invisible
// to the GC engine.
func MapStatus(statusMap map[string]environment.Status, native string) environment.Status {
	if s, ok := statusMap[strings.ToLower(native)]; ok {
		return s
	}
	return environment.StatusExited
}

// parseTime parses an engine timestamp. Engines report "not happened yet"
// as the zero RFC3339 instant, which comes back as a zero time.Time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.Year() <= 1 {
		return time.Time{}
	}
	return t
}
