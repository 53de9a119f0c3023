package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avickers/helmsman/internal/orchestrator"
	"github.com/avickers/helmsman/internal/signals"
	"github.com/avickers/helmsman/internal/state"
	"github.com/avickers/helmsman/pkg/models"
)

const statusEventLimit = 15

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending questions and recent session events",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	if signals.PauseRequested(workDir) {
		color.New(color.FgYellow, color.Bold).Println("Automation is PAUSED (helmsman resume to continue)")
		fmt.Println()
	}

	dbPath := state.ProjectDBPath(workDir)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Println("No session state found in this directory.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}

	questions, err := db.LoadQuestions()
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	printPendingQuestions(questions)

	events, err := db.RecentEvents(statusEventLimit)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	printRecentEvents(events)
	return nil
}

func printPendingQuestions(questions []orchestrator.HumanQuestion) {
	pending := make([]orchestrator.HumanQuestion, 0, len(questions))
	for _, q := range questions {
		if q.Status == models.QuestionPending {
			pending = append(pending, q)
		}
	}

	header := color.New(color.Bold)
	if len(pending) == 0 {
		header.Println("No pending questions.")
		return
	}

	header.Printf("Pending questions (%d):\n", len(pending))
	idColor := color.New(color.FgCyan)
	for _, q := range pending {
		idColor.Printf("  %s", q.ID)
		fmt.Printf("  %s\n", q.Question)
		if q.Context.StoryTitle != "" {
			fmt.Printf("      story: %s\n", q.Context.StoryTitle)
		}
	}
	fmt.Println("\nAnswer with: helmsman answer <id> <answer>")
}

func printRecentEvents(events []state.JournalEntry) {
	fmt.Println()
	if len(events) == 0 {
		fmt.Println("No recorded events.")
		return
	}

	color.New(color.Bold).Printf("Recent events (newest first):\n")
	typeColor := color.New(color.FgGreen)
	for _, e := range events {
		fmt.Printf("  %s  ", e.Timestamp.Local().Format("Jan 02 15:04:05"))
		typeColor.Printf("%-18s", e.Type)
		fmt.Printf("  %s\n", e.Summary)
	}
}
