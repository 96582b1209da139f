package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/spachava753/coderun/internal/models"
	"github.com/spachava753/coderun/internal/util"
)

// TaskConfigFile is the optional per-task settings file.
const TaskConfigFile = "task.toml"

// DefaultTaskConfig returns a TaskConfig with default values.
func DefaultTaskConfig() models.TaskConfig {
	return models.TaskConfig{Version: "1.0"}
}

// LoadTaskConfig loads and parses task.toml from the given filesystem. It
// returns nil without error when the task has no task.toml.
func LoadTaskConfig(fsys fs.FS) (*models.TaskConfig, error) {
	data, err := fs.ReadFile(fsys, TaskConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", TaskConfigFile, err)
	}

	cfg := DefaultTaskConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", TaskConfigFile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing %s: unknown keys %v", TaskConfigFile, undecoded)
	}

	if md.IsDefined("environment", "memory") {
		if _, err := util.ParseMemory(cfg.Environment.Memory); err != nil {
			return nil, fmt.Errorf("parsing memory %q: %w", cfg.Environment.Memory, err)
		}
	}

	return &cfg, nil
}

// ApplyTask layers a task's settings over the run config. A relative
// dockerfile is resolved against taskDir.
func ApplyTask(cfg models.RunConfig, tc *models.TaskConfig, taskDir string) models.RunConfig {
	if tc == nil {
		return cfg
	}

	if tc.Agent.StepLimit > 0 {
		cfg.Agent.StepLimit = tc.Agent.StepLimit
	}
	if tc.Agent.CostLimit > 0 {
		cfg.Agent.CostLimit = tc.Agent.CostLimit
	}

	env := tc.Environment
	if env.Image != "" {
		cfg.Environment.Image = env.Image
	}
	if env.Dockerfile != "" {
		dockerfile := env.Dockerfile
		if !filepath.IsAbs(dockerfile) && taskDir != "" {
			dockerfile = filepath.Join(taskDir, dockerfile)
		}
		cfg.Environment.Dockerfile = dockerfile
	}
	if env.Cwd != "" {
		cfg.Environment.Cwd = env.Cwd
	}
	if env.TimeoutSec > 0 {
		cfg.Environment.TimeoutSec = env.TimeoutSec
	}
	if env.CPUs > 0 {
		cfg.Environment.CPUs = env.CPUs
	}
	if env.Memory != "" {
		cfg.Environment.Memory = env.Memory
	}
	return cfg
}
