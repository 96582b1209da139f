package models

import (
	"io/fs"
)

// Task is a problem statement loaded from disk.
type Task struct {
	Name        string
	Path        string      // filesystem path to the task file or directory
	FS          fs.FS       // filesystem rooted at the task directory, nil for single files
	Text        string      // the problem statement handed to the agent
	Config      *TaskConfig // parsed task.toml, nil if the task has none
	GitCommitID *string     // resolved git SHA, nil if not in git repo
	GitURL      string      // repository the task was cloned from, if any
}

// Source describes where the task came from, for provenance in trajectories.
func (t *Task) Source() map[string]any {
	src := map[string]any{
		"name": t.Name,
		"path": t.Path,
	}
	if t.GitURL != "" {
		src["git_url"] = t.GitURL
	}
	if t.GitCommitID != nil {
		src["git_commit_id"] = *t.GitCommitID
	}
	if t.Config != nil && len(t.Config.Metadata) > 0 {
		src["metadata"] = t.Config.Metadata
	}
	return src
}

// TaskConfig represents a task.toml file. It adjusts the run for one task;
// zero values leave the run's own settings alone.
type TaskConfig struct {
	Version     string                `toml:"version" json:"version"`
	Metadata    map[string]any        `toml:"metadata" json:"metadata,omitempty"`
	Agent       TaskAgentConfig       `toml:"agent" json:"agent"`
	Environment TaskEnvironmentConfig `toml:"environment" json:"environment"`
}

// TaskAgentConfig holds per-task agent limits.
type TaskAgentConfig struct {
	StepLimit int     `toml:"step_limit" json:"step_limit,omitempty"`
	CostLimit float64 `toml:"cost_limit" json:"cost_limit,omitempty"`
}

// TaskEnvironmentConfig holds per-task environment settings.
type TaskEnvironmentConfig struct {
	Image      string  `toml:"image" json:"image,omitempty"`
	Dockerfile string  `toml:"dockerfile" json:"dockerfile,omitempty"` // relative to the task directory
	Cwd        string  `toml:"cwd" json:"cwd,omitempty"`
	TimeoutSec float64 `toml:"timeout_sec" json:"timeout_sec,omitempty"`
	CPUs       float64 `toml:"cpus" json:"cpus,omitempty"`
	Memory     string  `toml:"memory" json:"memory,omitempty"`
}
