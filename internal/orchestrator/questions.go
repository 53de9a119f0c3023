package orchestrator

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/avickers/helmsman/pkg/models"
)

// QuestionContext ties a question to the story it arose from.
type QuestionContext struct {
	// StoryID names the story, if known.
	StoryID string `json:"story_id,omitempty"`
	// StoryTitle is the story's title, if known.
	StoryTitle string `json:"story_title,omitempty"`
}

// HumanQuestion is a clarification request the orchestrator raised for a
// human. It stays pending until answered or dismissed, and is garbage
// collected after an age threshold.
type HumanQuestion struct {
	// ID is the short unique identifier for the question.
	ID string `json:"id"`
	// Timestamp is when the question was raised.
	Timestamp time.Time `json:"timestamp"`
	// Question is the question text.
	Question string `json:"question"`
	// Context ties the question to a story.
	Context QuestionContext `json:"context"`
	// Status is the lifecycle state.
	Status models.QuestionStatus `json:"status"`
	// Answer holds the human's reply once answered.
	Answer string `json:"answer,omitempty"`
}

// QuestionPersister stores questions across restarts. Persistence failures
// are logged, never fatal: the in-memory store remains authoritative for
// the running session.
type QuestionPersister interface {
	SaveQuestion(q HumanQuestion) error
	DeleteQuestion(id string) error
}

// QuestionStore collects human questions raised by the orchestrator.
type QuestionStore struct {
	mu        sync.Mutex
	questions map[string]HumanQuestion
	persister QuestionPersister
}

// NewQuestionStore creates an empty store. persister may be nil.
func NewQuestionStore(persister QuestionPersister) *QuestionStore {
	return &QuestionStore{
		questions: make(map[string]HumanQuestion),
		persister: persister,
	}
}

// Load seeds the store with previously persisted questions.
func (s *QuestionStore) Load(questions []HumanQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		s.questions[q.ID] = q
	}
}

// Add records a new question.
func (s *QuestionStore) Add(q HumanQuestion) {
	s.mu.Lock()
	s.questions[q.ID] = q
	s.mu.Unlock()

	s.persist(q)
}

// Get returns the question with the given id.
func (s *QuestionStore) Get(id string) (HumanQuestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	return q, ok
}

// Pending returns pending questions, oldest first.
func (s *QuestionStore) Pending() []HumanQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []HumanQuestion
	for _, q := range s.questions {
		if q.Status == models.QuestionPending {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Answer marks a question answered and returns it. Returns false if the
// question does not exist or is no longer pending.
func (s *QuestionStore) Answer(id, answer string) (HumanQuestion, bool) {
	s.mu.Lock()
	q, ok := s.questions[id]
	if !ok || q.Status != models.QuestionPending {
		s.mu.Unlock()
		return HumanQuestion{}, false
	}
	q.Status = models.QuestionAnswered
	q.Answer = answer
	s.questions[id] = q
	s.mu.Unlock()

	s.persist(q)
	return q, true
}

// Dismiss marks a question dismissed without an answer.
func (s *QuestionStore) Dismiss(id string) bool {
	s.mu.Lock()
	q, ok := s.questions[id]
	if !ok || q.Status != models.QuestionPending {
		s.mu.Unlock()
		return false
	}
	q.Status = models.QuestionDismissed
	s.questions[id] = q
	s.mu.Unlock()

	s.persist(q)
	return true
}

// Expire garbage-collects questions older than maxAge: pending ones are
// dismissed first, resolved ones are dropped. Returns how many were
// removed.
func (s *QuestionStore) Expire(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	var expired []string
	for id, q := range s.questions {
		if q.Timestamp.After(cutoff) {
			continue
		}
		expired = append(expired, id)
	}
	for _, id := range expired {
		delete(s.questions, id)
	}
	s.mu.Unlock()

	for _, id := range expired {
		if s.persister != nil {
			if err := s.persister.DeleteQuestion(id); err != nil {
				log.Printf("[questions] delete %s: %v", id, err)
			}
		}
	}
	if len(expired) > 0 {
		log.Printf("[questions] expired %d stale question(s)", len(expired))
	}
	return len(expired)
}

// Len returns the total number of tracked questions.
func (s *QuestionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

func (s *QuestionStore) persist(q HumanQuestion) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveQuestion(q); err != nil {
		log.Printf("[questions] persist %s: %v", q.ID, err)
	}
}
