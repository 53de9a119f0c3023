package state

import (
	"database/sql"
	"fmt"

	"github.com/avickers/helmsman/internal/orchestrator"
	"github.com/avickers/helmsman/pkg/models"
)

// SaveQuestion upserts a question row. It satisfies the question store's
// persister interface, so answered and dismissed transitions land here too.
func (db *DB) SaveQuestion(q orchestrator.HumanQuestion) error {
	_, err := db.Exec(`
		INSERT INTO questions (id, created_at, question, story_id, story_title, status, answer)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question = excluded.question,
			status = excluded.status,
			answer = excluded.answer
	`, q.ID, formatTime(q.Timestamp), q.Question, q.Context.StoryID, q.Context.StoryTitle, string(q.Status), q.Answer)
	if err != nil {
		return fmt.Errorf("save question %s: %w", q.ID, err)
	}
	return nil
}

// DeleteQuestion removes a question row.
func (db *DB) DeleteQuestion(id string) error {
	if _, err := db.Exec("DELETE FROM questions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete question %s: %w", id, err)
	}
	return nil
}

// LoadQuestions returns all persisted questions, oldest first. It seeds the
// in-memory question store on startup.
func (db *DB) LoadQuestions() ([]orchestrator.HumanQuestion, error) {
	rows, err := db.Query(`
		SELECT id, created_at, question, story_id, story_title, status, answer
		FROM questions ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []orchestrator.HumanQuestion
	for rows.Next() {
		var q orchestrator.HumanQuestion
		var createdAt, status string
		var storyID, storyTitle, answer sql.NullString
		if err := rows.Scan(&q.ID, &createdAt, &q.Question, &storyID, &storyTitle, &status, &answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		ts, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse question %s timestamp: %w", q.ID, err)
		}
		q.Timestamp = ts
		q.Context.StoryID = storyID.String
		q.Context.StoryTitle = storyTitle.String
		q.Status = models.QuestionStatus(status)
		q.Answer = answer.String
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
