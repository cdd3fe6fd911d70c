package podman

import (
	"testing"

	"github.com/Strob0t/RunForge/internal/adapter/enginecli"
	"github.com/Strob0t/RunForge/internal/domain/environment"
)

func TestStatusTable(t *testing.T) {
	cases := map[string]environment.Status{
		"configured":  environment.StatusCreated,
		"initialized": environment.StatusCreated,
		"stopping":    environment.StatusRemoving,
		"stopped":     environment.StatusExited,
		"running":     environment.StatusRunning,
		"unknown":     environment.StatusExited, // unknown falls through
	}
	for native, want := range cases {
		if got := enginecli.MapStatus(statusMap, native); got != want {
			t.Errorf("%s: expected %s, got %s", native, want, got)
		}
	}
}

func TestNew(t *testing.T) {
	eng := New()
	if eng.Name() != "podman" {
		t.Errorf("unexpected engine name %q", eng.Name())
	}
}
