package docker

import (
	"testing"

	"github.com/Strob0t/RunForge/internal/adapter/enginecli"
	"github.com/Strob0t/RunForge/internal/domain/environment"
)

func TestStatusTable(t *testing.T) {
	cases := map[string]environment.Status{
		"created":    environment.StatusCreated,
		"running":    environment.StatusRunning,
		"restarting": environment.StatusRestarting,
		"dead":       environment.StatusDead,
		"zombie":     environment.StatusExited, // unknown falls through
	}
	for native, want := range cases {
		if got := enginecli.MapStatus(statusMap, native); got != want {
			t.Errorf("%s: expected %s, got %s", native, want, got)
		}
	}
}

func TestNew(t *testing.T) {
	eng := New()
	if eng.Name() != "docker" {
		t.Errorf("unexpected engine name %q", eng.Name())
	}
}
