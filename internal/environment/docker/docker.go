// Package docker runs agent commands inside a long-lived container managed
// through the docker CLI.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spachava753/coderun/internal/models"
)

const (
	DefaultExecutable       = "docker"
	DefaultContainerTimeout = "2h"
	DefaultCwd              = "/"
	DefaultTimeout          = 30 * time.Second
)

// Environment is a running container. Commands are executed with docker exec.
type Environment struct {
	cfg         models.EnvironmentConfig
	executable  string
	containerID string
}

// New starts a container from cfg.Image, building it from cfg.Dockerfile first
// when one is set. The container sleeps for container_timeout so it is reaped
// even if Cleanup never runs.
func New(ctx context.Context, cfg models.EnvironmentConfig) (*Environment, error) {
	e := &Environment{
		cfg:        cfg,
		executable: cfg.Executable,
	}
	if e.executable == "" {
		e.executable = DefaultExecutable
	}
	if e.cfg.Cwd == "" {
		e.cfg.Cwd = DefaultCwd
	}
	if e.cfg.ContainerTimeout == "" {
		e.cfg.ContainerTimeout = DefaultContainerTimeout
	}

	if e.cfg.Dockerfile != "" {
		if err := e.buildImage(ctx); err != nil {
			return nil, err
		}
	}
	if e.cfg.Image == "" {
		return nil, fmt.Errorf("docker environment requires an image or a dockerfile")
	}

	name := "coderun-" + shortID()
	cmd := exec.CommandContext(ctx, e.executable, runArgs(e.cfg, name)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("starting docker container", "image", e.cfg.Image, "name", name)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("creating docker container: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	e.containerID = strings.TrimSpace(stdout.String())
	if e.containerID == "" {
		e.containerID = name
	}
	slog.Info("started docker container", "container_id", e.containerID, "image", e.cfg.Image)
	return e, nil
}

// buildImage builds cfg.Dockerfile with its directory as the build context and
// points cfg.Image at the result.
func (e *Environment) buildImage(ctx context.Context) error {
	tag := e.cfg.Image
	if tag == "" {
		tag = "coderun-env:" + shortID()
	}
	contextDir := filepath.Dir(e.cfg.Dockerfile)

	cmd := exec.CommandContext(ctx, e.executable, "build", "-t", tag, "-f", e.cfg.Dockerfile, contextDir)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	slog.Info("building docker image", "dockerfile", e.cfg.Dockerfile, "tag", tag)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("building docker image: %w", err)
	}
	e.cfg.Image = tag
	return nil
}

func runArgs(cfg models.EnvironmentConfig, name string) []string {
	args := []string{"run", "-d", "--name", name, "-w", cfg.Cwd}
	if cfg.CPUs > 0 {
		args = append(args, "--cpus", fmt.Sprintf("%g", cfg.CPUs))
	}
	if cfg.Memory != "" {
		args = append(args, "--memory", cfg.Memory)
	}
	args = append(args, cfg.RunArgs...)
	return append(args, cfg.Image, "sleep", cfg.ContainerTimeout)
}

func execArgs(cfg models.EnvironmentConfig, containerID, command, cwd string) []string {
	args := []string{"exec", "-w", cwd}
	for _, key := range cfg.ForwardEnv {
		if v, ok := os.LookupEnv(key); ok {
			args = append(args, "-e", key+"="+v)
		}
	}
	for k, v := range cfg.Env {
		args = append(args, "-e", k+"="+v)
	}
	return append(args, containerID, "bash", "-lc", command)
}

func (e *Environment) Config() any { return e.cfg }

// ID returns the container ID.
func (e *Environment) ID() string { return e.containerID }

func (e *Environment) TemplateVars() map[string]any {
	vars := models.Vars(e.cfg)
	vars["container_id"] = e.containerID
	return vars
}

// Execute runs command in the container. Configured variables override
// forwarded host variables of the same name.
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

	cmd := exec.CommandContext(execCtx, e.executable, execArgs(e.cfg, e.containerID, command, cwd)...)
	cmd.WaitDelay = time.Second
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

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

// Cleanup force removes the container.
func (e *Environment) Cleanup(ctx context.Context) error {
	if e.containerID == "" {
		return nil
	}
	slog.Debug("removing docker container", "container_id", e.containerID)

	cmd := exec.CommandContext(ctx, e.executable, "rm", "-f", e.containerID)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if !strings.Contains(stderr.String(), "No such container") {
			return fmt.Errorf("removing container: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
	}
	return nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
