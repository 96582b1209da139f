package task_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/spachava753/coderun/internal/models"
	"github.com/spachava753/coderun/internal/task"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTaskDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hello-world")
	writeFile(t, filepath.Join(dir, "instruction.md"), "Create hello.txt containing 'Hello, world!'\n")
	writeFile(t, filepath.Join(dir, "task.toml"), `version = "1.0"

[metadata]
difficulty = "easy"

[agent]
step_limit = 10
`)

	loader := task.NewLoader("")
	loaded, err := loader.LoadTask(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadTask failed: %v", err)
	}

	if loaded.Name != "hello-world" {
		t.Errorf("expected task name hello-world, got %s", loaded.Name)
	}
	if !strings.Contains(loaded.Text, "hello.txt") {
		t.Errorf("unexpected task text %q", loaded.Text)
	}
	if loaded.FS == nil {
		t.Error("expected task filesystem")
	}
	if loaded.Config == nil || loaded.Config.Agent.StepLimit != 10 {
		t.Errorf("expected task config with step limit 10, got %+v", loaded.Config)
	}

	src := loaded.Source()
	if src["name"] != "hello-world" || src["path"] != dir {
		t.Errorf("unexpected source %v", src)
	}
	if meta, ok := src["metadata"].(map[string]any); !ok || meta["difficulty"] != "easy" {
		t.Errorf("expected metadata in source, got %v", src["metadata"])
	}
}

func TestLoadTaskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix-bug.md")
	writeFile(t, path, "Fix the off-by-one in main.go")

	loaded, err := task.NewLoader("").LoadTask(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadTask failed: %v", err)
	}

	if loaded.Name != "fix-bug" {
		t.Errorf("expected name fix-bug, got %s", loaded.Name)
	}
	if loaded.Text != "Fix the off-by-one in main.go" {
		t.Errorf("unexpected text %q", loaded.Text)
	}
	if loaded.FS != nil || loaded.Config != nil {
		t.Error("single-file tasks have no filesystem or config")
	}
}

func TestLoadTaskErrors(t *testing.T) {
	root := t.TempDir()

	emptyFile := filepath.Join(root, "empty.md")
	writeFile(t, emptyFile, "  \n\t")

	noInstruction := filepath.Join(root, "no-instruction")
	writeFile(t, filepath.Join(noInstruction, "README.md"), "hi")

	badToml := filepath.Join(root, "bad-toml")
	writeFile(t, filepath.Join(badToml, "instruction.md"), "do it")
	writeFile(t, filepath.Join(badToml, "task.toml"), "version = ")

	tests := []struct {
		name        string
		path        string
		errContains string
	}{
		{name: "missing path", path: filepath.Join(root, "missing"), errContains: "reading task"},
		{name: "empty file", path: emptyFile, errContains: "is empty"},
		{name: "no instruction", path: noInstruction, errContains: "instruction.md"},
		{name: "bad task.toml", path: badToml, errContains: "loading task config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := task.NewLoader("").LoadTask(context.Background(), tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("LoadTask() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestValidateTask(t *testing.T) {
	loader := task.NewLoader("")

	tests := []struct {
		name    string
		task    *models.Task
		wantErr bool
	}{
		{
			name: "single file",
			task: &models.Task{Name: "t", Text: "x"},
		},
		{
			name: "directory with dockerfile",
			task: &models.Task{
				FS: fstest.MapFS{
					"instruction.md":         &fstest.MapFile{Data: []byte("x")},
					"environment/Dockerfile": &fstest.MapFile{Data: []byte("FROM alpine")},
				},
				Config: &models.TaskConfig{Environment: models.TaskEnvironmentConfig{Dockerfile: "environment/Dockerfile"}},
			},
		},
		{
			name: "missing instruction",
			task: &models.Task{
				FS: fstest.MapFS{"task.toml": &fstest.MapFile{Data: []byte("")}},
			},
			wantErr: true,
		},
		{
			name: "missing dockerfile",
			task: &models.Task{
				FS:     fstest.MapFS{"instruction.md": &fstest.MapFile{Data: []byte("x")}},
				Config: &models.TaskConfig{Environment: models.TaskEnvironmentConfig{Dockerfile: "Dockerfile"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.ValidateTask(tt.task)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTask() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTaskGitCommit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping git test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "task.md"), "x")
	for _, args := range [][]string{
		{"init", "-q"},
		{"-c", "user.email=test@example.com", "-c", "user.name=test", "commit", "-q", "--allow-empty", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}

	loaded, err := task.NewLoader("").LoadTask(context.Background(), filepath.Join(dir, "task.md"))
	if err != nil {
		t.Fatalf("LoadTask failed: %v", err)
	}
	if loaded.GitCommitID == nil || len(*loaded.GitCommitID) != 40 {
		t.Errorf("expected a resolved commit sha, got %v", loaded.GitCommitID)
	}
	if loaded.Source()["git_commit_id"] == nil {
		t.Error("expected git_commit_id in source")
	}
}
