package orchestrator

import (
	"fmt"
	"strings"
)

// operatingInstructions is the fixed trailer appended to every directive.
// It tells the orchestrator how to express decisions so the Response
// Parser can extract them.
const operatingInstructions = `## Operating instructions
You are the board orchestrator. Review the event and the project state
above, then decide what (if anything) should happen next.

To delegate work, write one directive per line:
  @agentId message describing the work
  delegate to agentId: message describing the work

To ask a human for clarification, write:
  [QUESTION]: your question
  [QUESTION for story-id]: your question

Only delegate to the agents listed under available actions. Do not
delegate to yourself. If nothing needs doing, say so briefly and stop.`

// ComposeDirective assembles the text sent to the orchestrator slot for
// one dispatch: the triggering event, the state snapshot, and the fixed
// operating instructions.
func ComposeDirective(ev Event, snapshot string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Event\n%s\n\n", ev.Summary())
	if ev.Type == EventAgentCompletion && ev.LastMessage != "" {
		fmt.Fprintf(&b, "Last message from %s:\n%s\n\n", ev.AgentID, ev.LastMessage)
	}
	if ev.Type == EventHumanResponse {
		fmt.Fprintf(&b, "The human answered question %s with: %s\n\n", ev.QuestionID, ev.Answer)
	}

	b.WriteString("## Project state\n")
	b.WriteString(snapshot)
	b.WriteString("\n\n")
	b.WriteString(operatingInstructions)

	return b.String()
}
