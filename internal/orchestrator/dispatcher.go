package orchestrator

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/avickers/helmsman/internal/agent"
	"github.com/avickers/helmsman/pkg/models"
)

// AgentRunner is the process-lifecycle surface the dispatcher drives.
// *agent.Manager satisfies it; tests substitute fakes.
type AgentRunner interface {
	LoadAgent(agentID, workDir, prompt, continuityID string) error
	SendMessage(agentID, workDir, message, continuityID string) error
	IsRunning(agentID string) bool
	AnyRunning() bool
	ClearContinuity(agentID string)
	Events() <-chan agent.Event
}

// StorySource provides the current board contents. The board artifacts
// themselves (markdown/YAML files, watchers) live outside this core.
type StorySource interface {
	Stories() []models.Story
	Epics() []models.Epic
}

// BranchReader provides the version-control view for snapshots.
type BranchReader interface {
	Branch() BranchState
}

// Governors are the runtime tunables bounding automated dispatch. All of
// them can change while the dispatcher runs (config live-reload).
type Governors struct {
	// AutomationEnabled gates the whole poll loop.
	AutomationEnabled bool `mapstructure:"automation_enabled"`
	// Debounce is the minimum gap between two automated dispatches.
	Debounce time.Duration `mapstructure:"debounce"`
	// MaxChainDepth bounds consecutive automated dispatches without an
	// intervening idle period (runaway breaker).
	MaxChainDepth int `mapstructure:"max_chain_depth"`
	// PollInterval is the dispatcher's own tick cadence.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// IdleReset is how long the queue must stay empty and idle before the
	// chain depth resets.
	IdleReset time.Duration `mapstructure:"idle_reset"`
	// TimerEnabled gates the periodic timer loop.
	TimerEnabled bool `mapstructure:"timer_enabled"`
	// TimerInterval is the period between timer_tick events.
	TimerInterval time.Duration `mapstructure:"timer_interval"`
	// QuestionMaxAge is the age threshold for expiring stale questions.
	QuestionMaxAge time.Duration `mapstructure:"question_max_age"`
}

// DefaultGovernors returns conservative defaults.
func DefaultGovernors() Governors {
	return Governors{
		AutomationEnabled: true,
		Debounce:          5 * time.Second,
		MaxChainDepth:     10,
		PollInterval:      time.Second,
		IdleReset:         5 * time.Second,
		TimerEnabled:      false,
		TimerInterval:     5 * time.Minute,
		QuestionMaxAge:    24 * time.Hour,
	}
}

// Config holds the dispatcher's static wiring.
type Config struct {
	// OrchestratorID is the slot that receives directives.
	OrchestratorID string
	// WorkDir is the working directory for spawned turns.
	WorkDir string
	// Agents are the slots delegations may target.
	Agents []models.AgentProfile
	// EpicFilter narrows snapshots to one epic when set.
	EpicFilter string
	// NextActions lists per-status actions offered to the orchestrator.
	NextActions map[models.StoryStatus][]models.NextAction
	// Limits bounds the snapshot.
	Limits SnapshotLimits
	// OnEvent, when set, observes every enqueued event (journaling, UI).
	// It is called synchronously from Enqueue and must not block.
	OnEvent func(Event)
}

// Dispatcher turns orchestration events into directives for the
// orchestrator slot. One event is consumed per poll tick, subject to the
// governors; orchestrator replies are parsed into delegations and
// questions, and delegated agents' completions feed back as new events.
type Dispatcher struct {
	cfg       Config
	queue     *EventQueue
	questions *QuestionStore
	runner    AgentRunner
	source    StorySource
	branch    BranchReader

	mu           sync.Mutex
	governors    Governors
	processing   bool
	lastDispatch time.Time
	lastTimer    time.Time
	lastActivity time.Time
	chainDepth   int
	lastStory    QuestionContext

	// replies accumulates per-slot turn output for completion handling.
	replies map[string]*replyBuffer

	wg sync.WaitGroup
}

// replyBuffer collects one turn's reply text: the terminal result when the
// tool emits one, assistant text otherwise.
type replyBuffer struct {
	assistant strings.Builder
	result    string
}

func (r *replyBuffer) text() string {
	if r.result != "" {
		return r.result
	}
	return strings.TrimSpace(r.assistant.String())
}

// NewDispatcher wires a Dispatcher. source and branch may be nil; the
// snapshot sections they feed are simply omitted.
func NewDispatcher(cfg Config, governors Governors, runner AgentRunner, questions *QuestionStore, source StorySource, branch BranchReader) *Dispatcher {
	if cfg.Limits == (SnapshotLimits{}) {
		cfg.Limits = DefaultSnapshotLimits()
	}
	return &Dispatcher{
		cfg:          cfg,
		queue:        NewEventQueue(64, 32),
		questions:    questions,
		runner:       runner,
		source:       source,
		branch:       branch,
		governors:    governors,
		lastActivity: time.Now(),
		replies:      make(map[string]*replyBuffer),
	}
}

// SetGovernors replaces the runtime tunables (config live-reload).
func (d *Dispatcher) SetGovernors(g Governors) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.governors = g
	log.Printf("[dispatcher] governors updated: debounce=%s chain=%d timer=%v/%s",
		g.Debounce, g.MaxChainDepth, g.TimerEnabled, g.TimerInterval)
}

// Governors returns the current tunables.
func (d *Dispatcher) Governors() Governors {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.governors
}

// Enqueue is the public entry point for event producers: status-change
// detectors, the human-answer submitter, manual triggers, and the timer.
func (d *Dispatcher) Enqueue(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	d.queue.Enqueue(ev)

	d.mu.Lock()
	d.lastActivity = time.Now()
	d.mu.Unlock()

	if d.cfg.OnEvent != nil {
		d.cfg.OnEvent(ev)
	}
}

// AnswerQuestion records a human answer and feeds it back as an event.
func (d *Dispatcher) AnswerQuestion(id, answer string) bool {
	q, ok := d.questions.Answer(id, answer)
	if !ok {
		return false
	}
	d.Enqueue(Event{Type: EventHumanResponse, QuestionID: q.ID, Answer: answer})
	return true
}

// DismissQuestion dismisses a pending question without an answer.
func (d *Dispatcher) DismissQuestion(id string) bool {
	return d.questions.Dismiss(id)
}

// TriggerManual enqueues a manual orchestration pass.
func (d *Dispatcher) TriggerManual(reason string) {
	d.Enqueue(Event{Type: EventManualTrigger, Reason: reason})
}

// NotifyStatusChange enqueues a board status change.
func (d *Dispatcher) NotifyStatusChange(storyID string, oldStatus, newStatus models.StoryStatus) {
	d.Enqueue(Event{
		Type:      EventStatusChange,
		StoryID:   storyID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
}

// QueueLen returns the number of pending events.
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

// ChainDepth returns the current chain depth.
func (d *Dispatcher) ChainDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chainDepth
}

// Questions returns the question store.
func (d *Dispatcher) Questions() *QuestionStore {
	return d.questions
}

// Run starts the poll, timer, and idle-reset loops plus the agent-event
// consumer, and blocks until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.wg.Add(4)
	go func() { defer d.wg.Done(); d.pollLoop(ctx) }()
	go func() { defer d.wg.Done(); d.timerLoop(ctx) }()
	go func() { defer d.wg.Done(); d.idleLoop(ctx) }()
	go func() { defer d.wg.Done(); d.consumeAgentEvents(ctx) }()

	<-ctx.Done()
	d.wg.Wait()
}

// pollLoop is the dispatch loop: one event per tick, governors permitting.
func (d *Dispatcher) pollLoop(ctx context.Context) {
	for {
		interval := d.Governors().PollInterval
		if interval <= 0 {
			interval = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			d.pollTick()
		}
	}
}

// pollTick applies the governor gates in order and dispatches at most one
// event.
func (d *Dispatcher) pollTick() {
	g := d.Governors()
	if !g.AutomationEnabled {
		return
	}

	d.mu.Lock()
	if d.processing || time.Since(d.lastDispatch) < g.Debounce {
		d.mu.Unlock()
		return
	}
	if d.chainDepth >= g.MaxChainDepth {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if d.cfg.OrchestratorID == "" || d.queue.Len() == 0 {
		return
	}
	ev, ok := d.queue.Pop()
	if !ok {
		return
	}
	d.dispatch(ev)
}

// dispatch sends one event to the orchestrator slot. The slot's prior turn
// state is cleared so the event is processed first, with fresh context.
func (d *Dispatcher) dispatch(ev Event) {
	d.mu.Lock()
	d.processing = true
	d.lastDispatch = time.Now()
	d.chainDepth++
	depth := d.chainDepth
	d.lastStory = d.storyContext(ev.StoryID)
	d.mu.Unlock()

	snapshot := d.buildSnapshot()
	directive := ComposeDirective(ev, snapshot)

	orch := d.cfg.OrchestratorID
	d.runner.ClearContinuity(orch)
	d.resetReply(orch)

	log.Printf("[dispatcher] dispatching %s (chain depth %d)", ev.Type, depth)
	if err := d.runner.LoadAgent(orch, d.cfg.WorkDir, directive, ""); err != nil {
		log.Printf("[dispatcher] orchestrator spawn failed: %v", err)
		d.mu.Lock()
		d.processing = false
		d.mu.Unlock()
	}
}

// timerLoop produces periodic timer_tick events and performs queue
// hygiene. It skips whole periods while any slot is mid-turn.
func (d *Dispatcher) timerLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.timerTick()
		}
	}
}

func (d *Dispatcher) timerTick() {
	g := d.Governors()
	if !g.AutomationEnabled || !g.TimerEnabled {
		return
	}

	d.mu.Lock()
	due := time.Since(d.lastTimer) >= g.TimerInterval
	if due {
		d.lastTimer = time.Now()
	}
	d.mu.Unlock()
	if !due {
		return
	}

	if d.runner.AnyRunning() {
		log.Printf("[dispatcher] timer skipped: agent mid-turn")
		return
	}

	if d.questions != nil && g.QuestionMaxAge > 0 {
		d.questions.Expire(g.QuestionMaxAge)
	}
	d.Enqueue(Event{Type: EventTimerTick})
}

// idleLoop resets the chain depth once the queue has been empty and idle
// for the grace window, distinguishing a chained automation burst from
// settled steady state.
func (d *Dispatcher) idleLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.idleTick()
		}
	}
}

func (d *Dispatcher) idleTick() {
	g := d.Governors()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chainDepth == 0 || d.processing {
		return
	}
	if d.queue.Len() != 0 {
		return
	}
	if time.Since(d.lastActivity) < g.IdleReset {
		return
	}
	log.Printf("[dispatcher] idle for %s, chain depth %d -> 0", g.IdleReset, d.chainDepth)
	d.chainDepth = 0
}

// consumeAgentEvents watches the process manager's event stream:
// orchestrator replies are parsed and acted on, worker completions feed
// back into the queue.
func (d *Dispatcher) consumeAgentEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.runner.Events():
			if !ok {
				return
			}
			d.handleAgentEvent(ev)
		}
	}
}

func (d *Dispatcher) handleAgentEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventOutput:
		if ev.Channel != agent.ChannelStdout || ev.Record == nil {
			return
		}
		buf := d.reply(ev.AgentID)
		d.mu.Lock()
		if text := ev.Record.ResultText(); text != "" {
			buf.result = text
		} else if text := ev.Record.AssistantText(); text != "" {
			buf.assistant.WriteString(text)
		}
		d.mu.Unlock()

	case agent.EventExit:
		reply := d.takeReply(ev.AgentID)
		if ev.AgentID == d.cfg.OrchestratorID {
			d.handleOrchestratorReply(reply)
			return
		}
		d.Enqueue(Event{
			Type:        EventAgentCompletion,
			AgentID:     ev.AgentID,
			AgentName:   d.agentName(ev.AgentID),
			ExitCode:    ev.ExitCode,
			LastMessage: reply,
		})

	case agent.EventError:
		log.Printf("[dispatcher] agent %s error: %s", ev.AgentID, ev.Message)
		if ev.AgentID == d.cfg.OrchestratorID {
			d.mu.Lock()
			d.processing = false
			d.mu.Unlock()
		}
	}
}

// handleOrchestratorReply parses the reply and applies its side effects:
// delegations become messages to target slots, questions are recorded.
func (d *Dispatcher) handleOrchestratorReply(reply string) {
	d.mu.Lock()
	story := d.lastStory
	d.processing = false
	d.lastActivity = time.Now()
	d.mu.Unlock()

	result := ParseResponse(reply, ParseOptions{
		ValidAgentIDs:  d.agentIDs(),
		OrchestratorID: d.cfg.OrchestratorID,
		StoryID:        story.StoryID,
		StoryTitle:     story.StoryTitle,
	})

	for _, w := range result.Warnings {
		log.Printf("[dispatcher] parse warning: %s", w)
	}
	for _, q := range result.Questions {
		log.Printf("[dispatcher] question %s: %s", q.ID, q.Question)
		if d.questions != nil {
			d.questions.Add(q)
		}
	}
	for _, del := range result.Delegations {
		log.Printf("[dispatcher] delegating to %s: %s", del.TargetAgentID, del.Message)
		d.resetReply(del.TargetAgentID)
		if err := d.runner.SendMessage(del.TargetAgentID, d.cfg.WorkDir, del.Message, ""); err != nil {
			log.Printf("[dispatcher] delegation to %s failed: %v", del.TargetAgentID, err)
		}
	}
}

// buildSnapshot re-derives the context snapshot from current state.
func (d *Dispatcher) buildSnapshot() string {
	in := ContextInput{
		EpicFilter:  d.cfg.EpicFilter,
		NextActions: d.cfg.NextActions,
		History:     d.queue.History(),
	}
	if d.source != nil {
		in.Stories = d.source.Stories()
		in.Epics = d.source.Epics()
	}
	if d.questions != nil {
		in.Questions = d.questions.Pending()
	}
	if d.branch != nil {
		in.Branch = d.branch.Branch()
	}
	return BuildSnapshot(in, d.cfg.Limits)
}

// storyContext resolves ambient question context for a story id.
func (d *Dispatcher) storyContext(storyID string) QuestionContext {
	if storyID == "" || d.source == nil {
		return QuestionContext{}
	}
	for _, s := range d.source.Stories() {
		if s.ID == storyID {
			return QuestionContext{StoryID: s.ID, StoryTitle: s.Title}
		}
	}
	return QuestionContext{StoryID: storyID}
}

func (d *Dispatcher) agentIDs() []string {
	ids := make([]string, 0, len(d.cfg.Agents))
	for _, a := range d.cfg.Agents {
		ids = append(ids, a.ID)
	}
	return ids
}

func (d *Dispatcher) agentName(id string) string {
	for _, a := range d.cfg.Agents {
		if a.ID == id {
			return a.Name
		}
	}
	return ""
}

func (d *Dispatcher) reply(agentID string) *replyBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.replies[agentID]
	if !ok {
		buf = &replyBuffer{}
		d.replies[agentID] = buf
	}
	return buf
}

func (d *Dispatcher) resetReply(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies[agentID] = &replyBuffer{}
}

func (d *Dispatcher) takeReply(agentID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.replies[agentID]
	if !ok {
		return ""
	}
	delete(d.replies, agentID)
	return buf.text()
}
