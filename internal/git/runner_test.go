package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initTestRepo creates a git repository with one commit on main.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	commands := [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
		{"commit", "--allow-empty", "-m", "initial"},
	}
	for _, args := range commands {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	return dir
}

func TestCurrentBranch(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("branch = %q, want main", branch)
	}
}

func TestBaseBranchFallsBackToMain(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	base, err := r.BaseBranch()
	if err != nil {
		t.Fatalf("BaseBranch: %v", err)
	}
	if base != "main" {
		t.Errorf("base = %q, want main", base)
	}
}

func TestBranchExists(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	exists, err := r.BranchExists("main")
	if err != nil || !exists {
		t.Errorf("BranchExists(main) = %v, %v; want true", exists, err)
	}

	exists, err = r.BranchExists("story/1-2-login")
	if err != nil {
		t.Fatalf("BranchExists: %v", err)
	}
	if exists {
		t.Error("BranchExists returned true for missing branch")
	}
}

func TestHasChanges(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	clean, err := r.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if clean {
		t.Error("fresh repo reported changes")
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	dirty, err := r.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if !dirty {
		t.Error("untracked file not reported as a change")
	}
}

func TestIsRepo(t *testing.T) {
	dir := initTestRepo(t)
	if !NewRunner(dir).IsRepo() {
		t.Error("IsRepo = false for a repository")
	}
	if NewRunner(t.TempDir()).IsRepo() {
		t.Error("IsRepo = true outside a repository")
	}
}

func TestBranchReaderOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	state := NewBranchReader(NewRunner(t.TempDir())).Branch()
	if state.Current != "" || state.Base != "" {
		t.Errorf("state = %+v, want empty outside a repo", state)
	}
}

func TestBranchReaderInRepo(t *testing.T) {
	dir := initTestRepo(t)
	state := NewBranchReader(NewRunner(dir)).Branch()
	if state.Current != "main" || state.Base != "main" {
		t.Errorf("state = %+v, want main/main", state)
	}
}
