package orchestrator

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avickers/helmsman/internal/agent"
	"github.com/avickers/helmsman/pkg/models"
)

type call struct {
	agentID string
	prompt  string
}

// fakeRunner records lifecycle calls and lets tests inject agent events.
type fakeRunner struct {
	mu      sync.Mutex
	events  chan agent.Event
	loads   []call
	sends   []call
	cleared []string
	running map[string]bool
	loadErr error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		events:  make(chan agent.Event, 64),
		running: make(map[string]bool),
	}
}

func (f *fakeRunner) LoadAgent(agentID, workDir, prompt, continuityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loads = append(f.loads, call{agentID, prompt})
	return nil
}

func (f *fakeRunner) SendMessage(agentID, workDir, message, continuityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, call{agentID, message})
	return nil
}

func (f *fakeRunner) IsRunning(agentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[agentID]
}

func (f *fakeRunner) AnyRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.running {
		if r {
			return true
		}
	}
	return false
}

func (f *fakeRunner) ClearContinuity(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, agentID)
}

func (f *fakeRunner) Events() <-chan agent.Event { return f.events }

func (f *fakeRunner) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

// resultRecord builds a decoded terminal record carrying reply text.
func resultRecord(t *testing.T, text string) *agent.Record {
	t.Helper()
	d := agent.NewDecoder()
	records := d.Feed([]byte(`{"type":"result","session_id":"s1","result":` + quoteJSON(text) + "}\n"))
	if len(records) != 1 {
		t.Fatalf("building result record: got %d records", len(records))
	}
	return &records[0]
}

func quoteJSON(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func testConfig() Config {
	return Config{
		OrchestratorID: "orchestrator",
		WorkDir:        "/tmp",
		Agents: []models.AgentProfile{
			{ID: "orchestrator", Name: "Orchestrator"},
			{ID: "dev", Name: "Developer"},
			{ID: "pm", Name: "PM"},
		},
	}
}

func testGovernors() Governors {
	g := DefaultGovernors()
	g.Debounce = 0
	return g
}

func newTestDispatcher(g Governors, runner AgentRunner) *Dispatcher {
	return NewDispatcher(testConfig(), g, runner, NewQuestionStore(nil), nil, nil)
}

func TestDispatchSendsDirective(t *testing.T) {
	runner := newFakeRunner()
	d := newTestDispatcher(testGovernors(), runner)

	d.NotifyStatusChange("1-2-login", models.StatusReady, models.StatusInProgress)
	d.pollTick()

	if runner.loadCount() != 1 {
		t.Fatalf("loads = %d, want 1", runner.loadCount())
	}
	load := runner.loads[0]
	if load.agentID != "orchestrator" {
		t.Errorf("dispatched to %q, want orchestrator", load.agentID)
	}
	if !strings.Contains(load.prompt, "story 1-2-login moved ready -> in_progress") {
		t.Errorf("directive missing event summary:\n%s", load.prompt)
	}
	if !strings.Contains(load.prompt, "Operating instructions") {
		t.Errorf("directive missing operating instructions:\n%s", load.prompt)
	}
	if len(runner.cleared) != 1 || runner.cleared[0] != "orchestrator" {
		t.Errorf("continuity cleared = %v, want [orchestrator]", runner.cleared)
	}
}

func TestDispatchSkipsWhileProcessing(t *testing.T) {
	runner := newFakeRunner()
	d := newTestDispatcher(testGovernors(), runner)

	d.TriggerManual("first")
	d.pollTick()
	d.TriggerManual("second")
	d.pollTick()

	if runner.loadCount() != 1 {
		t.Errorf("loads = %d, want 1 (second tick must skip while mid-turn)", runner.loadCount())
	}
}

func TestDispatchDebounce(t *testing.T) {
	runner := newFakeRunner()
	g := testGovernors()
	g.Debounce = time.Hour
	d := newTestDispatcher(g, runner)

	d.TriggerManual("first")
	d.pollTick()
	// Finish the turn so only the debounce gate applies.
	d.handleAgentEvent(agent.Event{Type: agent.EventExit, AgentID: "orchestrator"})

	d.TriggerManual("second")
	d.pollTick()

	if runner.loadCount() != 1 {
		t.Errorf("loads = %d, want 1 within debounce window", runner.loadCount())
	}
}

func TestDispatchAutomationDisabled(t *testing.T) {
	runner := newFakeRunner()
	g := testGovernors()
	g.AutomationEnabled = false
	d := newTestDispatcher(g, runner)

	d.TriggerManual("go")
	d.pollTick()

	if runner.loadCount() != 0 {
		t.Errorf("loads = %d, want 0 with automation disabled", runner.loadCount())
	}
	if d.QueueLen() != 1 {
		t.Errorf("queue drained while disabled")
	}
}

func TestChainDepthGovernor(t *testing.T) {
	runner := newFakeRunner()
	g := testGovernors()
	g.MaxChainDepth = 2
	d := newTestDispatcher(g, runner)

	finishTurn := func() {
		d.handleAgentEvent(agent.Event{Type: agent.EventExit, AgentID: "orchestrator"})
	}

	for i := 0; i < 4; i++ {
		d.TriggerManual("again")
		d.pollTick()
		finishTurn()
	}

	if runner.loadCount() != 2 {
		t.Fatalf("loads = %d, want exactly MaxChainDepth=2", runner.loadCount())
	}
	if d.ChainDepth() != 2 {
		t.Errorf("ChainDepth = %d, want 2", d.ChainDepth())
	}

	// Drain the queue and simulate the idle window elapsing.
	for d.QueueLen() > 0 {
		d.queue.Pop()
	}
	d.mu.Lock()
	d.lastActivity = time.Now().Add(-time.Minute)
	d.mu.Unlock()
	d.idleTick()

	if d.ChainDepth() != 0 {
		t.Fatalf("ChainDepth after idle reset = %d, want 0", d.ChainDepth())
	}

	d.TriggerManual("after idle")
	d.pollTick()
	if runner.loadCount() != 3 {
		t.Errorf("loads after idle reset = %d, want 3", runner.loadCount())
	}
}

func TestIdleTickRequiresEmptyQueue(t *testing.T) {
	runner := newFakeRunner()
	d := newTestDispatcher(testGovernors(), runner)

	d.TriggerManual("go")
	d.pollTick()
	d.handleAgentEvent(agent.Event{Type: agent.EventExit, AgentID: "orchestrator"})

	d.TriggerManual("pending")
	d.mu.Lock()
	d.lastActivity = time.Now().Add(-time.Minute)
	d.mu.Unlock()
	d.idleTick()

	if d.ChainDepth() == 0 {
		t.Error("chain depth reset with events still queued")
	}
}

func TestOrchestratorReplyDelegatesAndRecordsQuestions(t *testing.T) {
	runner := newFakeRunner()
	d := newTestDispatcher(testGovernors(), runner)

	d.TriggerManual("go")
	d.pollTick()

	reply := "@dev fix the login bug\n[QUESTION]: Should sessions expire?\nAll set."
	d.handleAgentEvent(agent.Event{
		Type:    agent.EventOutput,
		AgentID: "orchestrator",
		Channel: agent.ChannelStdout,
		Record:  resultRecord(t, reply),
	})
	d.handleAgentEvent(agent.Event{Type: agent.EventExit, AgentID: "orchestrator"})

	runner.mu.Lock()
	sends := append([]call(nil), runner.sends...)
	runner.mu.Unlock()
	if len(sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(sends))
	}
	if sends[0].agentID != "dev" || sends[0].prompt != "fix the login bug" {
		t.Errorf("delegation = %+v", sends[0])
	}

	pending := d.Questions().Pending()
	if len(pending) != 1 || pending[0].Question != "Should sessions expire?" {
		t.Errorf("pending questions = %+v", pending)
	}
}

func TestWorkerExitEnqueuesCompletion(t *testing.T) {
	runner := newFakeRunner()
	d := newTestDispatcher(testGovernors(), runner)

	d.handleAgentEvent(agent.Event{
		Type:    agent.EventOutput,
		AgentID: "dev",
		Channel: agent.ChannelStdout,
		Record:  resultRecord(t, "implemented login"),
	})
	d.handleAgentEvent(agent.Event{Type: agent.EventExit, AgentID: "dev", ExitCode: 0})

	ev, ok := d.queue.Pop()
	if !ok {
		t.Fatal("no completion event enqueued")
	}
	if ev.Type != EventAgentCompletion || ev.AgentID != "dev" {
		t.Errorf("event = %+v", ev)
	}
	if ev.AgentName != "Developer" {
		t.Errorf("AgentName = %q, want Developer", ev.AgentName)
	}
	if ev.LastMessage != "implemented login" {
		t.Errorf("LastMessage = %q", ev.LastMessage)
	}
}

func TestTimerTickEnqueuesAndExpires(t *testing.T) {
	runner := newFakeRunner()
	g := testGovernors()
	g.TimerEnabled = true
	g.TimerInterval = time.Millisecond
	g.QuestionMaxAge = time.Hour
	d := newTestDispatcher(g, runner)

	d.Questions().Add(pendingQuestion("stale", 2*time.Hour))
	time.Sleep(2 * time.Millisecond)
	d.timerTick()

	ev, ok := d.queue.Pop()
	if !ok || ev.Type != EventTimerTick {
		t.Fatalf("event = %+v, %v; want timer_tick", ev, ok)
	}
	if _, ok := d.Questions().Get("stale"); ok {
		t.Error("stale question survived timer hygiene")
	}
}

func TestTimerTickSkipsWhenBusy(t *testing.T) {
	runner := newFakeRunner()
	runner.running["dev"] = true
	g := testGovernors()
	g.TimerEnabled = true
	g.TimerInterval = time.Millisecond
	d := newTestDispatcher(g, runner)

	time.Sleep(2 * time.Millisecond)
	d.timerTick()

	if d.QueueLen() != 0 {
		t.Error("timer enqueued while an agent was mid-turn")
	}
}

func TestAnswerQuestionFeedsBack(t *testing.T) {
	runner := newFakeRunner()
	d := newTestDispatcher(testGovernors(), runner)

	d.Questions().Add(pendingQuestion("q1", 0))
	if !d.AnswerQuestion("q1", "use X") {
		t.Fatal("AnswerQuestion returned false")
	}

	ev, ok := d.queue.Pop()
	if !ok || ev.Type != EventHumanResponse {
		t.Fatalf("event = %+v, %v; want human_response", ev, ok)
	}
	if ev.QuestionID != "q1" || ev.Answer != "use X" {
		t.Errorf("event payload = %+v", ev)
	}

	if d.AnswerQuestion("missing", "x") {
		t.Error("AnswerQuestion on missing id succeeded")
	}
}

func TestDispatchSpawnFailureClearsProcessing(t *testing.T) {
	runner := newFakeRunner()
	runner.loadErr = errors.New("binary missing")
	d := newTestDispatcher(testGovernors(), runner)

	d.TriggerManual("go")
	d.pollTick()

	// A spawn failure must not wedge the dispatcher: the next event still
	// dispatches once the spawn works again.
	runner.mu.Lock()
	runner.loadErr = nil
	runner.mu.Unlock()

	d.TriggerManual("retry")
	d.pollTick()
	if runner.loadCount() != 1 {
		t.Errorf("loads = %d, want 1 after recovery", runner.loadCount())
	}
}

func TestEnqueueNotifiesObserver(t *testing.T) {
	runner := newFakeRunner()
	var seen []Event
	cfg := testConfig()
	cfg.OnEvent = func(ev Event) { seen = append(seen, ev) }
	d := NewDispatcher(cfg, testGovernors(), runner, NewQuestionStore(nil), nil, nil)

	d.TriggerManual("observe me")
	if len(seen) != 1 || seen[0].Type != EventManualTrigger {
		t.Errorf("observed = %+v", seen)
	}
	if seen[0].Timestamp.IsZero() {
		t.Error("observer saw zero timestamp")
	}
}

func TestSetGovernorsLive(t *testing.T) {
	runner := newFakeRunner()
	d := newTestDispatcher(testGovernors(), runner)

	g := d.Governors()
	g.MaxChainDepth = 99
	d.SetGovernors(g)

	if d.Governors().MaxChainDepth != 99 {
		t.Errorf("MaxChainDepth = %d, want 99", d.Governors().MaxChainDepth)
	}
}
