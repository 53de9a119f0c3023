package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avickers/helmsman/internal/signals"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause automated dispatch in the running session",
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := signals.SendPause(workDir); err != nil {
			return fmt.Errorf("send pause signal: %w", err)
		}
		color.New(color.FgYellow).Println("Automation paused. Resume with: helmsman resume")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume automated dispatch in the running session",
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := signals.SendResume(workDir); err != nil {
			return fmt.Errorf("send resume signal: %w", err)
		}
		color.New(color.FgGreen).Println("Automation resumed.")
		return nil
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger [reason...]",
	Short: "Queue a manual orchestration pass in the running session",
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		reason := strings.Join(args, " ")
		if err := signals.SendTrigger(workDir, reason); err != nil {
			return fmt.Errorf("send trigger signal: %w", err)
		}
		color.New(color.FgCyan).Println("Trigger queued.")
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <question-id> <answer...>",
	Short: "Answer a pending orchestrator question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		id := args[0]
		answer := strings.Join(args[1:], " ")
		if err := signals.SendAnswer(workDir, id, answer); err != nil {
			return fmt.Errorf("send answer signal: %w", err)
		}
		color.New(color.FgGreen).Printf("Answer recorded for %s.\n", id)
		return nil
	},
}
