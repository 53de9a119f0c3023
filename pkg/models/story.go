package models

import "time"

// StoryStatus represents the board column a story currently sits in.
type StoryStatus string

const (
	// StatusBacklog indicates the story has not been picked up.
	StatusBacklog StoryStatus = "backlog"
	// StatusReady indicates the story is refined and ready for work.
	StatusReady StoryStatus = "ready"
	// StatusInProgress indicates an agent is actively working the story.
	StatusInProgress StoryStatus = "in_progress"
	// StatusReview indicates the story is awaiting review.
	StatusReview StoryStatus = "review"
	// StatusDone indicates the story is complete.
	StatusDone StoryStatus = "done"
	// StatusBlocked indicates the story cannot proceed.
	StatusBlocked StoryStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s StoryStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusReady, StatusInProgress, StatusReview, StatusDone, StatusBlocked:
		return true
	default:
		return false
	}
}

// Story represents a unit of work on the project board.
type Story struct {
	// ID is the unique identifier for this story (e.g. "1-2-login").
	ID string `json:"id"`
	// EpicID is the ID of the epic this story belongs to, if any.
	EpicID string `json:"epic_id,omitempty"`
	// Title is the short description of the story.
	Title string `json:"title"`
	// Status is the board column the story is in.
	Status StoryStatus `json:"status"`
	// AssignedTo is the agent currently working the story, if any.
	AssignedTo string `json:"assigned_to,omitempty"`
	// UpdatedAt is when the story last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Epic groups related stories.
type Epic struct {
	// ID is the unique identifier for this epic.
	ID string `json:"id"`
	// Title is the short description of the epic.
	Title string `json:"title"`
}

// NextAction describes an action available for stories in a given status.
// The orchestrator uses these to decide what to delegate next.
type NextAction struct {
	// Label is the short name of the action (e.g. "implement").
	Label string `yaml:"label" json:"label"`
	// Agent is the agent slot that performs this action.
	Agent string `yaml:"agent" json:"agent"`
	// Description explains when the action applies.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}
