package task

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		spec    string
		want    Ref
		wantErr bool
	}{
		{
			spec: "git+https://github.com/example/tasks.git",
			want: Ref{GitURL: "https://github.com/example/tasks.git"},
		},
		{
			spec: "git+https://github.com/example/tasks.git//hello-world",
			want: Ref{GitURL: "https://github.com/example/tasks.git", Path: "hello-world"},
		},
		{
			spec: "git+https://github.com/example/tasks.git//suite/fix-tests@abc123",
			want: Ref{GitURL: "https://github.com/example/tasks.git", Path: "suite/fix-tests", GitCommitID: "abc123"},
		},
		{
			spec: "git+https://github.com/example/tasks.git@v1.2",
			want: Ref{GitURL: "https://github.com/example/tasks.git", GitCommitID: "v1.2"},
		},
		{
			spec: "git+git@github.com:example/tasks.git//hello",
			want: Ref{GitURL: "git@github.com:example/tasks.git", Path: "hello"},
		},
		{
			spec: "git+/srv/repos/tasks//hello@main",
			want: Ref{GitURL: "/srv/repos/tasks", Path: "hello", GitCommitID: "main"},
		},
		{spec: "https://github.com/example/tasks.git", wantErr: true},
		{spec: "git+", wantErr: true},
		{spec: "git+https://github.com/example/tasks.git//../outside", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseRef(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRef() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRef() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCloneDirName(t *testing.T) {
	tests := []struct {
		name     string
		ref      Ref
		wantPart string
	}{
		{
			name:     "with commit",
			ref:      Ref{GitURL: "https://github.com/example/repo.git", GitCommitID: "abc123def456789"},
			wantPart: "abc123def456", // First 12 chars
		},
		{
			name:     "HEAD",
			ref:      Ref{GitURL: "https://github.com/example/repo.git"},
			wantPart: "HEAD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cloneDirName(tt.ref)
			if !strings.HasPrefix(got, "repo-") {
				t.Errorf("cloneDirName() = %q, want repo name prefix", got)
			}
			if !strings.HasSuffix(got, tt.wantPart) {
				t.Errorf("cloneDirName() = %q, want suffix %q", got, tt.wantPart)
			}
		})
	}

	a := cloneDirName(Ref{GitURL: "https://a.example/repo.git"})
	b := cloneDirName(Ref{GitURL: "https://b.example/repo.git"})
	if a == b {
		t.Error("different urls must not share a clone dir")
	}
}

func TestNewLoaderCacheDir(t *testing.T) {
	if got := NewLoader("").cacheDir; got != filepath.Join(os.TempDir(), "coderun-tasks") {
		t.Errorf("default cache dir = %q", got)
	}
	if got := NewLoader("/cache").cacheDir; got != "/cache" {
		t.Errorf("cache dir = %q", got)
	}
}

// initRepo creates a git repository holding one task directory and returns
// the repo path and the commit sha.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	repo := t.TempDir()
	taskDir := filepath.Join(repo, "tasks", "hello")
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(taskDir, "instruction.md"), []byte("print hello"), 0644); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
		return strings.TrimSpace(string(out))
	}
	run("init", "-q")
	run("add", ".")
	run("-c", "user.email=test@example.com", "-c", "user.name=test", "commit", "-q", "-m", "init")
	return repo, run("rev-parse", "HEAD")
}

func TestLoadFromGit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping git test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo, sha := initRepo(t)
	cache := t.TempDir()
	loader := NewLoader(cache)
	ctx := context.Background()

	tests := []struct {
		name string
		spec string
	}{
		{name: "head", spec: "git+" + repo + "//tasks/hello"},
		{name: "pinned commit", spec: "git+" + repo + "//tasks/hello@" + sha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := loader.Load(ctx, tt.spec)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if loaded.Name != "hello" || loaded.Text != "print hello" {
				t.Errorf("unexpected task %+v", loaded)
			}
			if !strings.HasPrefix(loaded.Path, cache) {
				t.Errorf("task path %q is outside the cache", loaded.Path)
			}
			if loaded.GitCommitID == nil || *loaded.GitCommitID != sha {
				t.Errorf("GitCommitID = %v, want %s", loaded.GitCommitID, sha)
			}
			if loaded.Source()["git_url"] != repo {
				t.Errorf("source git_url = %v", loaded.Source()["git_url"])
			}
		})
	}

	// A pinned clone is reused
	if _, err := loader.Load(ctx, "git+"+repo+"//tasks/hello@"+sha); err != nil {
		t.Fatalf("reloading pinned task: %v", err)
	}

	if _, err := loader.Load(ctx, "git+"+repo+"//tasks/missing"); err == nil {
		t.Error("expected error for a missing task path")
	}
	if _, err := loader.Load(ctx, "git+"+filepath.Join(repo, "nope")); err == nil {
		t.Error("expected error for a missing repository")
	}
}
