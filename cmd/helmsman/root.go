package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// CheckClaudeCLI verifies that the 'claude' CLI is available in PATH.
// Returns an error with installation instructions if not found.
func CheckClaudeCLI() error {
	_, err := exec.LookPath("claude")
	if err != nil {
		return fmt.Errorf("claude CLI not found in PATH\n\n" +
			"Helmsman drives agents through the Claude Code CLI.\n\n" +
			"Install it with:\n" +
			"  npm install -g @anthropic-ai/claude-code\n\n" +
			"Alternatively, run with --api to use the Anthropic API directly.")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "helmsman",
	Short: "Multi-agent orchestration sessions for Claude Code",
	Long: `Helmsman runs a team of named Claude Code agents and routes work
between them. An orchestrator agent receives project events one at a
time, each framed with a snapshot of current state, and replies with
delegations to worker agents or questions for a human.

With no arguments, starts a session with the live watch view.

Core capabilities:
- One live subprocess per agent slot, with conversation continuity
- Event-driven dispatch bounded by debounce and chain-depth governors
- Delegation syntax (@agent or "delegate to") parsed from replies
- Human questions collected, persisted, and fed back as events
- File-based signals to pause, resume, trigger, or answer from a
  second terminal`,
	RunE: runSession,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addSessionFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(versionCmd)
}
