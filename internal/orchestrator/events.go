// Package orchestrator drives the autonomous delegation loop: it drains
// board events, builds a context snapshot, sends directives to the
// orchestrator agent slot, and parses its replies into delegations and
// human questions.
package orchestrator

import (
	"fmt"
	"time"

	"github.com/avickers/helmsman/pkg/models"
)

// EventType represents the kind of orchestration event.
type EventType string

const (
	// EventStatusChange indicates a story moved between board columns.
	EventStatusChange EventType = "status_change"
	// EventAgentCompletion indicates an agent slot finished a turn.
	EventAgentCompletion EventType = "agent_completion"
	// EventManualTrigger indicates a human asked for an orchestration pass.
	EventManualTrigger EventType = "manual_trigger"
	// EventTimerTick indicates the periodic timer fired.
	EventTimerTick EventType = "timer_tick"
	// EventHumanResponse indicates a pending question was answered.
	EventHumanResponse EventType = "human_response"
)

// Event is a single orchestration trigger. The payload fields populated are
// selected by Type; the rest stay zero.
type Event struct {
	// Type selects the variant.
	Type EventType
	// Timestamp is when the event was created.
	Timestamp time.Time

	// StoryID, OldStatus and NewStatus describe a status change.
	StoryID   string
	OldStatus models.StoryStatus
	NewStatus models.StoryStatus

	// AgentID, AgentName, ExitCode and LastMessage describe a completion.
	AgentID     string
	AgentName   string
	ExitCode    int
	LastMessage string

	// QuestionID and Answer describe a human response.
	QuestionID string
	Answer     string

	// Reason carries free text for manual triggers.
	Reason string
}

// Summary renders a one-line description suitable for directives and logs.
func (e Event) Summary() string {
	switch e.Type {
	case EventStatusChange:
		return fmt.Sprintf("story %s moved %s -> %s", e.StoryID, e.OldStatus, e.NewStatus)
	case EventAgentCompletion:
		name := e.AgentName
		if name == "" {
			name = e.AgentID
		}
		return fmt.Sprintf("agent %s completed (exit %d)", name, e.ExitCode)
	case EventManualTrigger:
		if e.Reason != "" {
			return "manual trigger: " + e.Reason
		}
		return "manual trigger"
	case EventTimerTick:
		return "periodic check"
	case EventHumanResponse:
		return fmt.Sprintf("question %s answered: %s", e.QuestionID, e.Answer)
	default:
		return string(e.Type)
	}
}
