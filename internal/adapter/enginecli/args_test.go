package enginecli

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/RunForge/internal/domain/environment"
	"github.com/Strob0t/RunForge/internal/port/engine"
)

func TestCreateArgs_Hardening(t *testing.T) {
	cfg := environment.Config{
		Name:  "runforge-abc",
		Image: "ubuntu:22.04",
		Security: environment.Security{
			ReadOnlyRoot:    true,
			NoNewPrivileges: true,
			DropCaps:        []string{"ALL"},
			AddCaps:         []string{"CHOWN"},
			Profile:         "runforge-default",
			User:            "1000:1000",
		},
	}

	args := createArgs(cfg)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--read-only",
		"--tmpfs /tmp",
		"--security-opt=no-new-privileges",
		"--cap-drop=ALL",
		"--cap-add=CHOWN",
		"--security-opt=apparmor=runforge-default",
		"--user 1000:1000",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "ubuntu:22.04" {
		t.Errorf("image must come last when no command is set, got %v", args)
	}
}

func TestCreateArgs_ResourcesAndLabels(t *testing.T) {
	cfg := environment.Config{
		Name:  "runforge-abc",
		Image: "ubuntu:22.04",
		Labels: map[string]string{
			environment.LabelRunID:   "run-1",
			environment.LabelManaged: "true",
		},
		Resources: environment.Resources{
			MemoryMB:        2048,
			MemoryReserveMB: 512,
			CPUShares:       1024,
			CPUs:            2,
			PidsLimit:       256,
		},
		NetworkMode: "none",
		Command:     []string{"sleep", "infinity"},
	}

	args := createArgs(cfg)
	joined := strings.Join(args, " ")

	// Labels are emitted in sorted key order for stable invocations.
	managed := slices.Index(args, "runforge.managed=true")
	runID := slices.Index(args, "runforge.run.id=run-1")
	if managed == -1 || runID == -1 || managed > runID {
		t.Errorf("labels missing or unsorted in %v", args)
	}

	for _, want := range []string{
		"--memory=2048m",
		"--memory-reservation=512m",
		"--cpu-shares=1024",
		"--cpus=2",
		"--pids-limit=256",
		"--network=none",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %q", want, joined)
		}
	}
	if !strings.HasSuffix(joined, "ubuntu:22.04 sleep infinity") {
		t.Errorf("image and command must come last, got %q", joined)
	}
}

func TestListArgs_Filters(t *testing.T) {
	args := listArgs(engine.Filters{
		Labels: map[string]string{environment.LabelManaged: "true"},
		Status: environment.StatusExited,
	})

	joined := strings.Join(args, " ")
	if !strings.HasPrefix(joined, "ps -aq --no-trunc") {
		t.Errorf("unexpected list invocation %q", joined)
	}
	if !strings.Contains(joined, "--filter label=runforge.managed=true") {
		t.Errorf("missing label filter in %q", joined)
	}
	if !strings.Contains(joined, "--filter status=exited") {
		t.Errorf("missing status filter in %q", joined)
	}
}

func TestStopArgs_MinimumGrace(t *testing.T) {
	args := stopArgs("abc", 0)
	if !slices.Equal(args, []string{"stop", "-t", "1", "abc"}) {
		t.Errorf("expected 1s floor, got %v", args)
	}

	args = stopArgs("abc", 30*time.Second)
	if !slices.Equal(args, []string{"stop", "-t", "30", "abc"}) {
		t.Errorf("unexpected args %v", args)
	}
}

func TestExecArgs(t *testing.T) {
	args := execArgs("abc", []string{"sh", "-c", "make test"}, engine.ExecOptions{
		WorkDir: "/workspace",
		User:    "1000:1000",
		Env:     map[string]string{"CI": "1"},
	})

	joined := strings.Join(args, " ")
	if joined != "exec -w /workspace -u 1000:1000 -e CI=1 abc sh -c make test" {
		t.Errorf("unexpected exec invocation %q", joined)
	}
}
