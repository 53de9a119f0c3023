package models

// AgentProfile describes a named agent slot available for delegation.
type AgentProfile struct {
	// ID is the slot identifier used in delegation syntax (e.g. "dev").
	ID string `mapstructure:"id" yaml:"id" json:"id"`
	// Name is the human-readable name shown in status output.
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	// Description explains what kind of work the agent handles.
	Description string `mapstructure:"description" yaml:"description,omitempty" json:"description,omitempty"`
}

// QuestionStatus represents the lifecycle state of a human question.
type QuestionStatus string

const (
	// QuestionPending indicates the question awaits a human answer.
	QuestionPending QuestionStatus = "pending"
	// QuestionAnswered indicates a human has answered the question.
	QuestionAnswered QuestionStatus = "answered"
	// QuestionDismissed indicates the question was dismissed without an answer.
	QuestionDismissed QuestionStatus = "dismissed"
)

// Valid returns true if the status is a known value.
func (s QuestionStatus) Valid() bool {
	switch s {
	case QuestionPending, QuestionAnswered, QuestionDismissed:
		return true
	default:
		return false
	}
}
