// Package local runs agent commands with bash directly on the host.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spachava753/coderun/internal/models"
)

// DefaultTimeout applies when the config does not set timeout_sec.
const DefaultTimeout = 30 * time.Second

// Environment executes commands on the host.
type Environment struct {
	cfg models.EnvironmentConfig
}

// New creates a host environment.
func New(cfg models.EnvironmentConfig) *Environment {
	return &Environment{cfg: cfg}
}

func (e *Environment) Config() any { return e.cfg }

// TemplateVars exposes the config along with host details, so templates can
// tell the model which platform it is working on.
func (e *Environment) TemplateVars() map[string]any {
	vars := models.Vars(e.cfg)
	vars["system"] = runtime.GOOS
	vars["machine"] = runtime.GOARCH
	if host, err := os.Hostname(); err == nil {
		vars["node"] = host
	}
	return vars
}

// Execute runs command with bash -c. The working directory is cwd, falling
// back to the configured cwd and then the process's own. A non-zero exit is
// reported in the result, not as an error.
func (e *Environment) Execute(ctx context.Context, command, cwd string) (models.ExecResult, error) {
	if cwd == "" {
		cwd = e.cfg.Cwd
	}

	timeout := DefaultTimeout
	if e.cfg.TimeoutSec > 0 {
		timeout = time.Duration(e.cfg.TimeoutSec * float64(time.Second))
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "bash", "-c", command)
	cmd.Dir = cwd
	cmd.Env = e.environ()
	// Background children may keep the output pipe open after bash exits.
	cmd.WaitDelay = time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	slog.Debug("executing command on host", "cwd", cwd, "timeout", timeout)

	err := cmd.Run()
	switch {
	case err == nil:
		return models.ExecResult{Output: output.String()}, nil
	case ctx.Err() != nil:
		return models.ExecResult{}, ctx.Err()
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		return models.ExecResult{}, &models.TimeoutError{Command: command, Output: output.String()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return models.ExecResult{Output: output.String(), ReturnCode: exitErr.ExitCode()}, nil
	}
	return models.ExecResult{}, fmt.Errorf("executing command: %w", err)
}

// environ is the host environment overlaid with the configured variables.
func (e *Environment) environ() []string {
	env := os.Environ()
	for k, v := range e.cfg.Env {
		env = append(env, k+"="+v)
	}
	return env
}
