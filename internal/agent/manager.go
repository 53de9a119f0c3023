package agent

import (
	"bufio"
	"fmt"
	"log"
	"sync"
	"time"
)

// defaultKillGrace is how long a superseded or canceled process gets to
// exit after SIGTERM before it is force-killed.
const defaultKillGrace = 3 * time.Second

// Manager owns at most one live process per named agent slot. Replacing a
// slot's process deregisters the old handle synchronously before the new
// one is registered, and terminal events from superseded processes are
// ignored, so a late exit from an old process is never misapplied to its
// replacement.
type Manager struct {
	mu    sync.Mutex
	slots map[string]*slot

	emitter   *Emitter
	factory   CommandFactory
	killGrace time.Duration

	wg sync.WaitGroup
}

// slot tracks one named agent: the live process handle (nil when idle), the
// continuity id carried across turns, and the current turn's start time.
type slot struct {
	proc         *Process
	continuityID string
	startedAt    time.Time
}

// NewManager creates a Manager that spawns processes via factory.
func NewManager(factory CommandFactory) *Manager {
	return &Manager{
		slots:     make(map[string]*slot),
		emitter:   NewEmitter(256),
		factory:   factory,
		killGrace: defaultKillGrace,
	}
}

// Events returns the channel on which process events are delivered.
func (m *Manager) Events() <-chan Event {
	return m.emitter.Events()
}

// DroppedCount returns how many events were dropped under backpressure.
func (m *Manager) DroppedCount() uint64 {
	return m.emitter.DroppedCount()
}

// LoadAgent starts a fresh turn for the slot, superseding any live process.
// An empty continuityID starts a new conversational context.
func (m *Manager) LoadAgent(agentID, workDir, prompt, continuityID string) error {
	return m.start(agentID, workDir, prompt, continuityID)
}

// SendMessage starts a turn that continues the slot's conversation. When
// continuityID is empty the slot's tracked id from the previous turn is
// used, so callers normally just pass the message.
func (m *Manager) SendMessage(agentID, workDir, message, continuityID string) error {
	if continuityID == "" {
		continuityID = m.ContinuityID(agentID)
	}
	return m.start(agentID, workDir, message, continuityID)
}

// start terminates and deregisters any existing process for the slot, then
// spawns and registers a new one. The supersede happens synchronously under
// the lock: no reader can observe the old handle once start returns.
func (m *Manager) start(agentID, workDir, prompt, continuityID string) error {
	inv := Invocation{
		AgentID:      agentID,
		WorkDir:      workDir,
		Prompt:       prompt,
		ContinuityID: continuityID,
	}

	m.mu.Lock()
	s, ok := m.slots[agentID]
	if !ok {
		s = &slot{}
		m.slots[agentID] = s
	}
	if s.proc != nil {
		old := s.proc
		s.proc = nil
		old.Kill(m.killGrace)
	}

	p := newProcess(m.factory(inv))
	if err := p.Start(); err != nil {
		// Slot stays unregistered; the caller may retry.
		m.mu.Unlock()
		m.emitter.Emit(Event{
			Type:      EventError,
			AgentID:   agentID,
			Message:   fmt.Sprintf("spawn failed: %v", err),
			Timestamp: time.Now(),
		})
		return fmt.Errorf("load agent %s: %w", agentID, err)
	}

	s.proc = p
	s.continuityID = continuityID
	s.startedAt = time.Now()
	m.mu.Unlock()

	log.Printf("[agent] started %s (pid %d, resume=%v)", agentID, p.PID(), continuityID != "")

	var readers sync.WaitGroup
	readers.Add(2)
	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		defer readers.Done()
		m.readStdout(agentID, p)
	}()
	go func() {
		defer m.wg.Done()
		defer readers.Done()
		m.readStderr(agentID, p)
	}()
	go func() {
		defer m.wg.Done()
		readers.Wait()
		m.observeExit(agentID, p)
	}()

	return nil
}

// CancelMessage terminates the slot's process and deregisters it. The late
// exit of the canceled process is ignored by the stale-event guard, so no
// exit event is emitted for it. Returns an error if nothing is tracked.
func (m *Manager) CancelMessage(agentID string) error {
	m.mu.Lock()
	s, ok := m.slots[agentID]
	if !ok || s.proc == nil {
		m.mu.Unlock()
		return fmt.Errorf("no running process for agent %s", agentID)
	}
	p := s.proc
	s.proc = nil
	m.mu.Unlock()

	p.Kill(m.killGrace)
	log.Printf("[agent] canceled %s", agentID)
	return nil
}

// IsRunning reports whether the slot has a live process.
func (m *Manager) IsRunning(agentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[agentID]
	return ok && s.proc != nil
}

// AnyRunning reports whether any slot has a live process.
func (m *Manager) AnyRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.proc != nil {
			return true
		}
	}
	return false
}

// RunningSlots returns the ids of slots with a live process.
func (m *Manager) RunningSlots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.slots {
		if s.proc != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// SendInput writes text to the slot's stdin. Write failures are reported as
// a boolean, never raised: the process may have exited at any moment.
func (m *Manager) SendInput(agentID, text string) bool {
	m.mu.Lock()
	s, ok := m.slots[agentID]
	if !ok || s.proc == nil {
		m.mu.Unlock()
		return false
	}
	p := s.proc
	m.mu.Unlock()

	if err := p.WriteInput(text); err != nil {
		log.Printf("[agent] input write to %s failed: %v", agentID, err)
		return false
	}
	return true
}

// ContinuityID returns the slot's tracked continuity id, or "".
func (m *Manager) ContinuityID(agentID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[agentID]; ok {
		return s.continuityID
	}
	return ""
}

// ClearContinuity forgets the slot's tracked continuity id so the next turn
// starts a fresh conversational context.
func (m *Manager) ClearContinuity(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[agentID]; ok {
		s.continuityID = ""
	}
}

// Shutdown cancels all live processes and waits for their goroutines.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for id, s := range m.slots {
		if s.proc != nil {
			p := s.proc
			s.proc = nil
			p.Kill(0)
			log.Printf("[agent] shutdown killed %s", id)
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// readStdout pumps the process's stdout through a Decoder, emitting one
// output event per record. The decoder is owned exclusively by this
// goroutine; its pending buffer is flushed exactly once at stream close.
func (m *Manager) readStdout(agentID string, p *Process) {
	d := NewDecoder()
	buf := make([]byte, 32*1024)

	emit := func(rec Record) {
		if id := rec.SessionID(); id != "" {
			m.updateContinuity(agentID, p, id)
		}
		r := rec
		m.emitter.Emit(Event{
			Type:      EventOutput,
			AgentID:   agentID,
			Channel:   ChannelStdout,
			Text:      rec.Text,
			Record:    &r,
			Timestamp: time.Now(),
		})
	}

	for {
		n, err := p.stdout.Read(buf)
		if n > 0 {
			for _, rec := range d.Feed(buf[:n]) {
				emit(rec)
			}
		}
		if err != nil {
			break
		}
	}

	if rec, ok := d.Flush(); ok {
		emit(rec)
	}
}

// readStderr pumps diagnostic lines through as opaque output events.
func (m *Manager) readStderr(agentID string, p *Process) {
	scanner := bufio.NewScanner(p.stderr)
	buf := make([]byte, 16*1024)
	scanner.Buffer(buf, 256*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m.emitter.Emit(Event{
			Type:      EventOutput,
			AgentID:   agentID,
			Channel:   ChannelStderr,
			Text:      line,
			Timestamp: time.Now(),
		})
	}
}

// updateContinuity records the continuity id surfaced by a terminal result
// record, but only if p is still the slot's registered handle.
func (m *Manager) updateContinuity(agentID string, p *Process, continuityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[agentID]
	if !ok || s.proc != p {
		return
	}
	s.continuityID = continuityID
}

// observeExit reaps the process and emits the exit event. This is the
// terminal-event handler: if p no longer equals the slot's registered
// handle a replacement or cancellation has occurred and the exit is a
// no-op, which is the property preventing stale process state from ever
// reaching the slot.
func (m *Manager) observeExit(agentID string, p *Process) {
	exitCode, signal := p.Wait()

	m.mu.Lock()
	s, ok := m.slots[agentID]
	if !ok || s.proc != p {
		m.mu.Unlock()
		log.Printf("[agent] ignoring stale exit for %s (pid %d)", agentID, p.PID())
		return
	}
	s.proc = nil
	continuityID := s.continuityID
	m.mu.Unlock()

	m.emitter.Emit(Event{
		Type:         EventExit,
		AgentID:      agentID,
		ExitCode:     exitCode,
		Signal:       signal,
		ContinuityID: continuityID,
		Timestamp:    time.Now(),
	})
}
