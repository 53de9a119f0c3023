package orchestrator

import "testing"

func TestEventQueueFIFO(t *testing.T) {
	q := NewEventQueue(10, 10)

	q.Enqueue(Event{Type: EventStatusChange, StoryID: "a"})
	q.Enqueue(Event{Type: EventStatusChange, StoryID: "b"})

	first, ok := q.Pop()
	if !ok || first.StoryID != "a" {
		t.Errorf("first Pop = %+v, %v; want story a", first, ok)
	}
	second, ok := q.Pop()
	if !ok || second.StoryID != "b" {
		t.Errorf("second Pop = %+v, %v; want story b", second, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue returned an event")
	}
}

func TestEventQueueOldestDropEviction(t *testing.T) {
	q := NewEventQueue(3, 10)

	for _, id := range []string{"a", "b", "c", "d"} {
		q.Enqueue(Event{Type: EventStatusChange, StoryID: id})
	}

	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", q.Dropped())
	}

	ev, _ := q.Pop()
	if ev.StoryID != "b" {
		t.Errorf("oldest after eviction = %q, want %q", ev.StoryID, "b")
	}
}

func TestEventQueueHistoryRing(t *testing.T) {
	q := NewEventQueue(10, 2)

	for _, id := range []string{"a", "b", "c"} {
		q.Enqueue(Event{Type: EventStatusChange, StoryID: id})
		q.Pop()
	}

	hist := q.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].StoryID != "b" || hist[1].StoryID != "c" {
		t.Errorf("history = [%s %s], want [b c]", hist[0].StoryID, hist[1].StoryID)
	}
}

func TestEventSummary(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"status change", Event{Type: EventStatusChange, StoryID: "1-2-login", OldStatus: "ready", NewStatus: "in_progress"},
			"story 1-2-login moved ready -> in_progress"},
		{"completion", Event{Type: EventAgentCompletion, AgentID: "dev", ExitCode: 0},
			"agent dev completed (exit 0)"},
		{"completion with name", Event{Type: EventAgentCompletion, AgentID: "dev", AgentName: "Developer", ExitCode: 1},
			"agent Developer completed (exit 1)"},
		{"timer", Event{Type: EventTimerTick}, "periodic check"},
		{"manual", Event{Type: EventManualTrigger, Reason: "user pressed go"}, "manual trigger: user pressed go"},
		{"answer", Event{Type: EventHumanResponse, QuestionID: "q1", Answer: "use X"}, "question q1 answered: use X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}
