package signals

import (
	"testing"
	"time"

	"github.com/avickers/helmsman/internal/orchestrator"
	"github.com/avickers/helmsman/pkg/models"
)

func TestDispatcherControl(t *testing.T) {
	d := orchestrator.NewDispatcher(
		orchestrator.Config{OrchestratorID: "orchestrator"},
		orchestrator.DefaultGovernors(),
		nil,
		orchestrator.NewQuestionStore(nil),
		nil,
		nil,
	)
	c := NewDispatcherControl(d)

	c.Pause()
	if d.Governors().AutomationEnabled {
		t.Error("automation still enabled after Pause")
	}

	c.Resume()
	if !d.Governors().AutomationEnabled {
		t.Error("automation still disabled after Resume")
	}

	c.Trigger("")
	if d.QueueLen() != 1 {
		t.Errorf("QueueLen = %d after Trigger, want 1", d.QueueLen())
	}

	d.Questions().Add(orchestrator.HumanQuestion{
		ID: "q-1", Timestamp: time.Now(), Question: "which db?", Status: models.QuestionPending,
	})
	c.Answer("q-1", "sqlite")
	q, ok := d.Questions().Get("q-1")
	if !ok || q.Status != models.QuestionAnswered || q.Answer != "sqlite" {
		t.Errorf("question after Answer = %+v, %v", q, ok)
	}
}
