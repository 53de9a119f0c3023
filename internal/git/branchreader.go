package git

import (
	"github.com/avickers/helmsman/internal/orchestrator"
)

// BranchReader adapts a Runner to the snapshot builder's branch source.
// Lookups failing (not a repo, detached HEAD mid-rebase) yield an empty
// state rather than an error; the snapshot simply omits the branch section.
type BranchReader struct {
	runner Runner
}

// NewBranchReader wraps a Runner.
func NewBranchReader(runner Runner) *BranchReader {
	return &BranchReader{runner: runner}
}

// Branch returns the current and base branch names.
func (b *BranchReader) Branch() orchestrator.BranchState {
	if !b.runner.IsRepo() {
		return orchestrator.BranchState{}
	}

	var state orchestrator.BranchState
	if current, err := b.runner.CurrentBranch(); err == nil {
		state.Current = current
	}
	if base, err := b.runner.BaseBranch(); err == nil {
		state.Base = base
	}
	return state
}
