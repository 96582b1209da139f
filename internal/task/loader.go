// Package task loads problem statements from task files and task directories.
package task

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spachava753/coderun/internal/config"
	"github.com/spachava753/coderun/internal/models"
)

// InstructionFile holds the problem statement of a task directory.
const InstructionFile = "instruction.md"

// Loader loads tasks from the filesystem and from git repositories.
type Loader struct {
	cacheDir string // where repositories of git task refs are cloned
}

// NewLoader creates a new task loader. Repositories are cloned under
// cacheDir, or under the system temp dir when cacheDir is empty.
func NewLoader(cacheDir string) *Loader {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "coderun-tasks")
	}
	return &Loader{cacheDir: cacheDir}
}

// LoadTask loads a task from taskPath. A regular file is read as the problem
// statement; a directory must contain instruction.md and may contain
// task.toml.
func (l *Loader) LoadTask(ctx context.Context, taskPath string) (*models.Task, error) {
	// Get absolute path for git operations
	absPath, err := filepath.Abs(taskPath)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading task: %w", err)
	}

	task := &models.Task{Path: absPath}
	gitDir := absPath

	if info.IsDir() {
		task.Name = filepath.Base(absPath)
		task.FS = os.DirFS(absPath)

		data, err := fs.ReadFile(task.FS, InstructionFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", InstructionFile, err)
		}
		task.Text = string(data)

		task.Config, err = config.LoadTaskConfig(task.FS)
		if err != nil {
			return nil, fmt.Errorf("loading task config: %w", err)
		}
	} else {
		task.Name = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
		gitDir = filepath.Dir(absPath)

		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("reading task file: %w", err)
		}
		task.Text = string(data)
	}

	if strings.TrimSpace(task.Text) == "" {
		return nil, fmt.Errorf("task %s is empty", task.Name)
	}

	if sha := resolveGitSHA(ctx, gitDir); sha != "" {
		task.GitCommitID = &sha
	}

	return task, nil
}

// ValidateTask checks that files a task refers to exist.
func (l *Loader) ValidateTask(task *models.Task) error {
	if task.FS == nil {
		return nil
	}

	if _, err := fs.Stat(task.FS, InstructionFile); err != nil {
		return fmt.Errorf("%s not found: %w", InstructionFile, err)
	}

	if task.Config != nil && task.Config.Environment.Dockerfile != "" {
		dockerfile := task.Config.Environment.Dockerfile
		var err error
		if filepath.IsAbs(dockerfile) {
			_, err = os.Stat(dockerfile)
		} else {
			_, err = fs.Stat(task.FS, filepath.ToSlash(dockerfile))
		}
		if err != nil {
			return fmt.Errorf("dockerfile not found: %w", err)
		}
	}

	return nil
}

// resolveGitSHA attempts to get the current HEAD commit SHA.
func resolveGitSHA(ctx context.Context, path string) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
