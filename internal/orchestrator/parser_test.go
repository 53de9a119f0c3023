package orchestrator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/avickers/helmsman/pkg/models"
)

func TestParseResponseValidAndUnknown(t *testing.T) {
	result := ParseResponse("@dev fix bug\n@unknownagent do X", ParseOptions{
		ValidAgentIDs:  []string{"dev", "pm"},
		OrchestratorID: "orchestrator",
	})

	if len(result.Delegations) != 1 {
		t.Fatalf("delegations = %d, want 1", len(result.Delegations))
	}
	d := result.Delegations[0]
	if d.TargetAgentID != "dev" || d.Message != "fix bug" {
		t.Errorf("delegation = %+v, want dev/fix bug", d)
	}

	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "unknown agent") {
		t.Errorf("warnings = %v, want one unknown-agent entry", result.Warnings)
	}

	// Only successfully validated matches are excised.
	if strings.Contains(result.CleanContent, "fix bug") {
		t.Errorf("clean content retains validated delegation: %q", result.CleanContent)
	}
	if !strings.Contains(result.CleanContent, "@unknownagent do X") {
		t.Errorf("clean content lost the rejected line: %q", result.CleanContent)
	}
}

func TestParseResponseCaseInsensitiveIDs(t *testing.T) {
	result := ParseResponse("@DEV fix the build", ParseOptions{
		ValidAgentIDs: []string{"dev"},
	})

	if len(result.Delegations) != 1 {
		t.Fatalf("delegations = %d, want 1", len(result.Delegations))
	}
	if result.Delegations[0].TargetAgentID != "dev" {
		t.Errorf("target = %q, want canonical %q", result.Delegations[0].TargetAgentID, "dev")
	}
}

func TestParseResponseSelfDelegation(t *testing.T) {
	result := ParseResponse("@orchestrator review everything", ParseOptions{
		ValidAgentIDs:  []string{"dev", "orchestrator"},
		OrchestratorID: "orchestrator",
	})

	if len(result.Delegations) != 0 {
		t.Errorf("delegations = %v, want none", result.Delegations)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "itself") {
		t.Errorf("warnings = %v, want one self-delegation entry", result.Warnings)
	}
	if !strings.Contains(result.CleanContent, "@orchestrator review everything") {
		t.Errorf("rejected self-delegation excised: %q", result.CleanContent)
	}
}

func TestParseResponseDelegateToSyntax(t *testing.T) {
	result := ParseResponse("Delegate to PM: groom the backlog", ParseOptions{
		ValidAgentIDs: []string{"dev", "pm"},
	})

	if len(result.Delegations) != 1 {
		t.Fatalf("delegations = %d, want 1", len(result.Delegations))
	}
	d := result.Delegations[0]
	if d.TargetAgentID != "pm" || d.Message != "groom the backlog" {
		t.Errorf("delegation = %+v", d)
	}
}

func TestParseResponseDuplicateDroppedSilently(t *testing.T) {
	reply := "@dev fix bug\ndelegate to dev: Fix Bug"
	result := ParseResponse(reply, ParseOptions{ValidAgentIDs: []string{"dev"}})

	if len(result.Delegations) != 1 {
		t.Fatalf("delegations = %d, want 1 (duplicate kept)", len(result.Delegations))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings = %v, want none for silent dedupe", result.Warnings)
	}
}

func TestParseResponseDelegationCap(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("@dev task number %d", i))
	}
	result := ParseResponse(strings.Join(lines, "\n"), ParseOptions{
		ValidAgentIDs:  []string{"dev"},
		MaxDelegations: 5,
	})

	if len(result.Delegations) != 5 {
		t.Errorf("delegations = %d, want exactly 5", len(result.Delegations))
	}
	var truncWarnings int
	for _, w := range result.Warnings {
		if strings.Contains(w, "truncated") {
			truncWarnings++
		}
	}
	if truncWarnings != 1 {
		t.Errorf("truncation warnings = %d, want 1", truncWarnings)
	}
}

func TestParseResponseQuestionAmbientContext(t *testing.T) {
	result := ParseResponse("[QUESTION]: Should we use X or Y?", ParseOptions{})

	if len(result.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(result.Questions))
	}
	q := result.Questions[0]
	if q.Question != "Should we use X or Y?" {
		t.Errorf("question text = %q", q.Question)
	}
	if q.Context.StoryID != "" {
		t.Errorf("StoryID = %q, want empty without ambient context", q.Context.StoryID)
	}
	if q.Status != models.QuestionPending {
		t.Errorf("status = %q, want pending", q.Status)
	}
	if strings.Contains(result.CleanContent, "[QUESTION]") {
		t.Errorf("question not excised: %q", result.CleanContent)
	}
}

func TestParseResponseQuestionExplicitStoryOverridesAmbient(t *testing.T) {
	result := ParseResponse("[QUESTION for 1-2-login]: Which auth provider?", ParseOptions{
		StoryID:    "9-9-other",
		StoryTitle: "Other story",
	})

	if len(result.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(result.Questions))
	}
	q := result.Questions[0]
	if q.Context.StoryID != "1-2-login" {
		t.Errorf("StoryID = %q, want explicit ref to override ambient", q.Context.StoryID)
	}
	if q.Context.StoryTitle != "" {
		t.Errorf("StoryTitle = %q, want empty for explicit ref", q.Context.StoryTitle)
	}
}

func TestParseResponseQuestionAmbientApplied(t *testing.T) {
	result := ParseResponse("[QUESTION]: Is the schema final?", ParseOptions{
		StoryID:    "3-1-schema",
		StoryTitle: "Design schema",
	})

	q := result.Questions[0]
	if q.Context.StoryID != "3-1-schema" || q.Context.StoryTitle != "Design schema" {
		t.Errorf("context = %+v, want ambient story", q.Context)
	}
}

func TestParseResponsePlainTextUntouched(t *testing.T) {
	reply := "I reviewed the board.\nNothing needs delegation right now."
	result := ParseResponse(reply, ParseOptions{ValidAgentIDs: []string{"dev"}})

	if len(result.Delegations) != 0 || len(result.Questions) != 0 || len(result.Warnings) != 0 {
		t.Errorf("plain text produced extractions: %+v", result)
	}
	if result.CleanContent != reply {
		t.Errorf("clean content = %q, want original", result.CleanContent)
	}
}

func TestParseResponseUniqueQuestionIDs(t *testing.T) {
	result := ParseResponse("[QUESTION]: one?\n[QUESTION]: two?", ParseOptions{})

	if len(result.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(result.Questions))
	}
	if result.Questions[0].ID == result.Questions[1].ID {
		t.Error("question IDs not unique")
	}
}
