package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/avickers/helmsman/internal/agent"
)

// DefaultTurnTimeout bounds a single API turn.
const DefaultTurnTimeout = 5 * time.Minute

// messageFunc performs one Messages API call. Tests substitute a fake.
type messageFunc func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)

// Runner drives agent turns through the Messages API instead of the claude
// CLI. It emits the same event stream the process manager does, so the
// dispatcher works unchanged against either backend. Conversation history
// per slot stands in for the CLI's session resume.
type Runner struct {
	client      *Client
	emitter     *agent.Emitter
	system      string
	turnTimeout time.Duration
	call        messageFunc

	mu    sync.Mutex
	slots map[string]*apiSlot
	wg    sync.WaitGroup
}

// apiSlot tracks one agent's conversation and in-flight turn.
type apiSlot struct {
	gen     int
	convo   []anthropic.MessageParam
	cancel  context.CancelFunc
	running bool
}

// NewRunner creates a Runner backed by the given client. system is the
// system prompt applied to every turn; it may be empty.
func NewRunner(client *Client, system string) *Runner {
	r := &Runner{
		client:      client,
		emitter:     agent.NewEmitter(100),
		system:      system,
		turnTimeout: DefaultTurnTimeout,
		slots:       make(map[string]*apiSlot),
	}
	r.call = func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		return client.sdk().Messages.New(ctx, params)
	}
	return r
}

// Events returns the channel turn output and completions arrive on.
func (r *Runner) Events() <-chan agent.Event {
	return r.emitter.Events()
}

// LoadAgent starts a fresh conversation for the slot. A turn already in
// flight is superseded.
func (r *Runner) LoadAgent(agentID, workDir, prompt, continuityID string) error {
	if agentID == "" {
		return fmt.Errorf("agent id required")
	}
	r.startTurn(agentID, prompt, true)
	return nil
}

// SendMessage continues the slot's conversation, or starts one if none
// exists.
func (r *Runner) SendMessage(agentID, workDir, message, continuityID string) error {
	if agentID == "" {
		return fmt.Errorf("agent id required")
	}
	r.startTurn(agentID, message, false)
	return nil
}

func (r *Runner) startTurn(agentID, prompt string, fresh bool) {
	r.mu.Lock()
	s, ok := r.slots[agentID]
	if !ok {
		s = &apiSlot{}
		r.slots[agentID] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	if fresh {
		s.convo = nil
	}
	s.convo = append(s.convo, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
	s.gen++
	gen := s.gen
	s.running = true

	ctx, cancel := context.WithTimeout(context.Background(), r.turnTimeout)
	s.cancel = cancel

	messages := make([]anthropic.MessageParam, len(s.convo))
	copy(messages, s.convo)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.runTurn(ctx, agentID, gen, messages)
	}()
}

func (r *Runner) runTurn(ctx context.Context, agentID string, gen int, messages []anthropic.MessageParam) {
	params := anthropic.MessageNewParams{
		Model:     r.client.Model(),
		MaxTokens: 8192,
		Messages:  messages,
	}
	if r.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: r.system}}
	}

	resp, err := r.call(ctx, params)

	r.mu.Lock()
	s := r.slots[agentID]
	if s == nil || s.gen != gen {
		// A newer turn superseded this one while the call was in flight.
		r.mu.Unlock()
		return
	}
	s.running = false
	s.cancel = nil
	if err != nil {
		r.mu.Unlock()
		r.emitter.Emit(agent.Event{
			Type:      agent.EventError,
			AgentID:   agentID,
			Message:   fmt.Sprintf("API turn failed: %v", err),
			Timestamp: time.Now(),
		})
		return
	}

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	s.convo = append(s.convo, resp.ToParam())
	r.mu.Unlock()

	r.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	record := agent.Record{
		Kind: agent.RecordJSON,
		Text: text,
		Fields: map[string]any{
			"type":   "result",
			"result": text,
		},
	}
	r.emitter.Emit(agent.Event{
		Type:      agent.EventOutput,
		AgentID:   agentID,
		Channel:   agent.ChannelStdout,
		Text:      text,
		Record:    &record,
		Timestamp: time.Now(),
	})
	r.emitter.Emit(agent.Event{
		Type:      agent.EventExit,
		AgentID:   agentID,
		ExitCode:  0,
		Timestamp: time.Now(),
	})
}

// IsRunning reports whether the slot has a turn in flight.
func (r *Runner) IsRunning(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[agentID]
	return s != nil && s.running
}

// AnyRunning reports whether any slot has a turn in flight.
func (r *Runner) AnyRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.running {
			return true
		}
	}
	return false
}

// ClearContinuity drops the slot's conversation history. The next turn
// starts a fresh conversation.
func (r *Runner) ClearContinuity(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[agentID]; ok {
		s.convo = nil
	}
}

// Shutdown cancels in-flight turns and waits for their goroutines.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for _, s := range r.slots {
		if s.cancel != nil {
			s.cancel()
		}
		s.gen++ // orphan in-flight turns so they emit nothing
	}
	r.mu.Unlock()
	r.wg.Wait()
}
