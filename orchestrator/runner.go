package orchestrator

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ProcessRunner executes the external benchmark. It exists so tests can
// replace real processes with scripted outcomes.
type ProcessRunner interface {
	// Run executes name with args in dir and waits for it to exit or for ctx
	// to expire. A non-zero exit is reported as an error.
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs processes with os/exec
type ExecRunner struct {
	// WaitDelay bounds how long output pipes are drained after the process is
	// killed on timeout.
	WaitDelay time.Duration
}

// Run implements ProcessRunner
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// resolveBinary returns the absolute path of the benchmark binary or an error
// wrapping os.ErrNotExist when it is absent
func resolveBinary(binary string) (string, error) {
	if !strings.ContainsRune(binary, filepath.Separator) {
		path, err := exec.LookPath(binary)
		if err != nil {
			return "", errors.Wrapf(os.ErrNotExist, "benchmark binary %s not found in PATH", binary)
		}
		return path, nil
	}

	info, err := os.Stat(binary)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(os.ErrNotExist, "benchmark binary %s not found", binary)
		}
		return "", errors.Wrapf(err, "stat %s", binary)
	}
	if info.IsDir() {
		return "", errors.Wrapf(os.ErrNotExist, "benchmark binary %s is a directory", binary)
	}

	abs, err := filepath.Abs(binary)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", binary)
	}
	return abs, nil
}

// isMissingBinary reports whether a runner error means the executable vanished
func isMissingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}
