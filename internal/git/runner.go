// Package git provides the version-control view Helmsman includes in
// orchestrator snapshots: the current branch and the repository's base
// branch.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Runner defines the git operations the snapshot builder needs.
type Runner interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// BaseBranch returns the repository's main development branch.
	BaseBranch() (string, error)
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
	// IsRepo returns true if the path is inside a git work tree.
	IsRepo() bool
}

// ExecRunner implements Runner using exec.Command.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// run executes a git command and returns its output.
func (r *ExecRunner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo returns true if the path is inside a git work tree.
func (r *ExecRunner) IsRepo() bool {
	out, err := r.run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// BaseBranch returns the repository's main development branch. It prefers
// the remote HEAD when one is configured and falls back to main or master.
func (r *ExecRunner) BaseBranch() (string, error) {
	if out, err := r.run("symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil {
		return strings.TrimPrefix(out, "origin/"), nil
	}

	for _, candidate := range []string{"main", "master"} {
		exists, err := r.BranchExists(candidate)
		if err != nil {
			return "", err
		}
		if exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no base branch found in %s", r.repoPath)
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err != nil {
		// Exit code 1 means branch doesn't exist (not an error)
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges() (bool, error) {
	out, err := r.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(out) > 0, nil
}
