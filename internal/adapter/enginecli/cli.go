// Package enginecli implements the engine port for docker-compatible
// command-line container engines. A backend supplies its binary name and a
// status-mapping table; everything else (argument construction, JSON
// normalization) is shared.
package enginecli

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/Strob0t/RunForge/internal/port/engine"
)

// run executes the engine binary and returns trimmed stdout. A non-zero exit
// is wrapped in an InvocationError carrying the process's stderr.
func run(ctx context.Context, engineName, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // G204: args are constructed internally, not from user input

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &engine.InvocationError{
			Engine: engineName,
			Op:     firstArg(args),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// runExit executes the engine binary and returns stdout, stderr and the exit
// code. A command that ran and exited non-zero is not an error; only a
// failure to run it is.
func runExit(ctx context.Context, bin string, args ...string) (stdout, stderr string, code int, err error) {
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // G204: args are constructed internally, not from user input

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	if runErr == nil {
		return stdout, stderr, 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && ctx.Err() == nil {
		return stdout, stderr, exitErr.ExitCode(), nil
	}
	return stdout, stderr, -1, runErr
}

// binaryPresent reports whether the engine binary is on PATH.
func binaryPresent(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
