package task

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spachava753/coderun/internal/models"
)

// RefPrefix marks a task that lives in a git repository:
//
//	git+<url>[//<path>][@<commit>]
//
// The path is relative to the repository root; without a commit the default
// branch is used.
const RefPrefix = "git+"

// Ref locates a task inside a git repository.
type Ref struct {
	GitURL      string
	Path        string // empty = repo root
	GitCommitID string // empty = HEAD
}

// IsRef reports whether spec names a task in a git repository.
func IsRef(spec string) bool {
	return strings.HasPrefix(spec, RefPrefix)
}

// ParseRef parses a git task reference.
func ParseRef(spec string) (Ref, error) {
	if !IsRef(spec) {
		return Ref{}, fmt.Errorf("task ref %q must start with %q", spec, RefPrefix)
	}
	rest := strings.TrimPrefix(spec, RefPrefix)

	var ref Ref
	// An @ after the last / or : is a commit, not scp-style user@host.
	if i := strings.LastIndex(rest, "@"); i > strings.LastIndex(rest, "/") && i > strings.LastIndex(rest, ":") {
		ref.GitCommitID = rest[i+1:]
		rest = rest[:i]
	}

	start := 0
	if i := strings.Index(rest, "://"); i >= 0 {
		start = i + len("://")
	}
	if i := strings.Index(rest[start:], "//"); i >= 0 {
		ref.Path = rest[start+i+2:]
		rest = rest[:start+i]
	}
	ref.GitURL = rest

	if ref.GitURL == "" {
		return Ref{}, fmt.Errorf("task ref %q has no repository url", spec)
	}
	if ref.Path != "" && !filepath.IsLocal(ref.Path) {
		return Ref{}, fmt.Errorf("task ref %q: path %q leaves the repository", spec, ref.Path)
	}
	return ref, nil
}

// Load loads a task from a local path or, for specs starting with RefPrefix,
// from a git repository cloned under the loader's cache dir. The task is
// validated before it is returned.
func (l *Loader) Load(ctx context.Context, spec string) (*models.Task, error) {
	if !IsRef(spec) {
		t, err := l.LoadTask(ctx, spec)
		if err != nil {
			return nil, err
		}
		if err := l.ValidateTask(t); err != nil {
			return nil, fmt.Errorf("validating task %s: %w", t.Name, err)
		}
		return t, nil
	}

	ref, err := ParseRef(spec)
	if err != nil {
		return nil, err
	}
	return l.Fetch(ctx, ref)
}

// Fetch clones ref's repository, if it is not cached yet, and loads the task
// at ref.Path.
func (l *Loader) Fetch(ctx context.Context, ref Ref) (*models.Task, error) {
	clonePath, err := l.cloneRepo(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", ref.GitURL, err)
	}

	taskPath := clonePath
	if ref.Path != "" {
		taskPath = filepath.Join(clonePath, ref.Path)
	}

	slog.Debug("loading task from clone", "url", ref.GitURL, "path", taskPath)

	t, err := l.LoadTask(ctx, taskPath)
	if err != nil {
		return nil, err
	}
	if err := l.ValidateTask(t); err != nil {
		return nil, fmt.Errorf("validating task %s: %w", t.Name, err)
	}

	t.GitURL = ref.GitURL
	return t, nil
}

// cloneRepo clones a repository to the cache dir. For specific commits, it does a full
// clone then checks out the commit. For HEAD, it does a shallow clone.
func (l *Loader) cloneRepo(ctx context.Context, ref Ref) (string, error) {
	clonePath := filepath.Join(l.cacheDir, cloneDirName(ref))

	// Pinned commits never change, so an existing clone is reused
	if ref.GitCommitID != "" {
		if _, err := os.Stat(clonePath); err == nil {
			slog.Debug("repository already cloned", "url", ref.GitURL, "path", clonePath)
			return clonePath, nil
		}
	} else if err := os.RemoveAll(clonePath); err != nil {
		return "", fmt.Errorf("removing stale clone: %w", err)
	}

	if err := os.MkdirAll(l.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	if ref.GitCommitID == "" {
		slog.Debug("cloning repository (shallow)", "url", ref.GitURL, "dest", clonePath)
		if err := git(ctx, "", "clone", "--depth", "1", ref.GitURL, clonePath); err != nil {
			os.RemoveAll(clonePath)
			return "", err
		}
	} else {
		slog.Debug("cloning repository (full)", "url", ref.GitURL, "commit", ref.GitCommitID, "dest", clonePath)
		if err := git(ctx, "", "clone", ref.GitURL, clonePath); err != nil {
			os.RemoveAll(clonePath)
			return "", err
		}

		slog.Debug("checking out commit", "commit", ref.GitCommitID)
		if err := git(ctx, clonePath, "checkout", "-q", ref.GitCommitID); err != nil {
			os.RemoveAll(clonePath)
			return "", err
		}
	}

	slog.Debug("repository cloned successfully", "url", ref.GitURL, "path", clonePath)
	return clonePath, nil
}

func git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// cloneDirName generates a unique directory name for a repository at a
// commit.
func cloneDirName(ref Ref) string {
	// Hash the URL to get a short, filesystem-safe name
	h := sha256.Sum256([]byte(ref.GitURL))
	urlHash := fmt.Sprintf("%x", h[:8])

	commitPart := "HEAD"
	if ref.GitCommitID != "" {
		commitPart = ref.GitCommitID
		if len(commitPart) > 12 {
			commitPart = commitPart[:12]
		}
	}

	repoName := filepath.Base(strings.TrimSuffix(ref.GitURL, ".git"))

	return fmt.Sprintf("%s-%s-%s", repoName, urlHash, commitPart)
}
