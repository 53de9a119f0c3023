package signals

import (
	"log"

	"github.com/avickers/helmsman/internal/orchestrator"
)

// DispatcherControl adapts a Dispatcher to the signal Handler surface.
// Pause and resume toggle the automation governor; the rest of the
// governors keep their configured values.
type DispatcherControl struct {
	d *orchestrator.Dispatcher
}

// NewDispatcherControl wraps a Dispatcher.
func NewDispatcherControl(d *orchestrator.Dispatcher) *DispatcherControl {
	return &DispatcherControl{d: d}
}

// Pause disables automated dispatch.
func (c *DispatcherControl) Pause() {
	g := c.d.Governors()
	g.AutomationEnabled = false
	c.d.SetGovernors(g)
}

// Resume re-enables automated dispatch.
func (c *DispatcherControl) Resume() {
	g := c.d.Governors()
	g.AutomationEnabled = true
	c.d.SetGovernors(g)
}

// Trigger enqueues a manual orchestration pass.
func (c *DispatcherControl) Trigger(reason string) {
	if reason == "" {
		reason = "signal file"
	}
	c.d.TriggerManual(reason)
}

// Answer records a human answer and feeds it back into orchestration.
func (c *DispatcherControl) Answer(questionID, answer string) {
	if !c.d.AnswerQuestion(questionID, answer) {
		log.Printf("[signals] answer for unknown or resolved question %s", questionID)
	}
}
