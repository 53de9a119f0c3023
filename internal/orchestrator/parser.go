package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avickers/helmsman/pkg/models"
)

// DefaultMaxDelegations caps how many delegations one reply may produce.
// A runaway orchestrator emitting dozens of directives is a fault, not a
// plan; excess matches are truncated with a warning.
const DefaultMaxDelegations = 5

// Delegation is an instruction directing another agent slot to perform
// work, extracted from orchestrator reply text. Ephemeral: produced and
// consumed within one dispatch cycle.
type Delegation struct {
	// TargetAgentID is the validated slot id (canonical casing).
	TargetAgentID string
	// Message is the instruction text for the target agent.
	Message string
}

// ParseResult is the pure output of ParseResponse. The caller applies side
// effects: sending delegated messages and persisting questions.
type ParseResult struct {
	// Delegations lists validated delegation commands in reply order.
	Delegations []Delegation
	// Questions lists extracted human-clarification questions.
	Questions []HumanQuestion
	// CleanContent is the reply with validated directives excised.
	CleanContent string
	// Warnings lists non-fatal anomalies (unknown targets, self-delegation,
	// truncation). The rest of the reply stays usable.
	Warnings []string
}

// ParseOptions configures ParseResponse.
type ParseOptions struct {
	// ValidAgentIDs are the slot ids delegations may target.
	ValidAgentIDs []string
	// OrchestratorID is the replying slot; delegating to it is rejected.
	OrchestratorID string
	// StoryID and StoryTitle provide ambient context for questions that do
	// not name a story themselves.
	StoryID    string
	StoryTitle string
	// MaxDelegations overrides DefaultMaxDelegations when positive.
	MaxDelegations int
}

var (
	// atMentionPattern matches "@agentId message" at line start.
	atMentionPattern = regexp.MustCompile(`^@([A-Za-z0-9_-]+)[ \t]+(.+)$`)
	// delegateToPattern matches "delegate to agentId: message" at line start.
	delegateToPattern = regexp.MustCompile(`(?i)^delegate to[ \t]+([A-Za-z0-9_-]+):[ \t]*(.+)$`)
	// questionPattern matches "[QUESTION]: text" or "[QUESTION for ref]: text".
	questionPattern = regexp.MustCompile(`(?i)^\[QUESTION(?:[ \t]+for[ \t]+([^\]]+))?\]:[ \t]*(.+)$`)
)

// ParseResponse extracts delegation directives and human questions from
// orchestrator reply text. Directives are recognized line by line; only
// successfully validated matches are excised from the clean copy, so
// rejected lines remain visible for display.
func ParseResponse(content string, opts ParseOptions) ParseResult {
	maxDelegations := opts.MaxDelegations
	if maxDelegations <= 0 {
		maxDelegations = DefaultMaxDelegations
	}

	valid := make(map[string]string, len(opts.ValidAgentIDs))
	for _, id := range opts.ValidAgentIDs {
		valid[strings.ToLower(id)] = id
	}
	self := strings.ToLower(opts.OrchestratorID)

	var result ParseResult
	seen := make(map[string]bool)
	truncated := false

	// recordDelegation validates one matched directive and reports whether
	// the line should be excised. dedupe applies only to the second syntax.
	recordDelegation := func(rawID, message string, dedupe bool) bool {
		lower := strings.ToLower(rawID)
		message = strings.TrimSpace(message)

		if lower == self && self != "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("orchestrator cannot delegate to itself (@%s)", rawID))
			return false
		}
		canonical, ok := valid[lower]
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unknown agent %q in delegation", rawID))
			return false
		}

		key := lower + "\x00" + strings.ToLower(message)
		if dedupe && seen[key] {
			// Duplicate of an already recorded delegation: dropped
			// silently, but still excised as a recognized directive.
			return true
		}

		if len(result.Delegations) >= maxDelegations {
			if !truncated {
				truncated = true
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("too many delegations; truncated to %d", maxDelegations))
			}
			return false
		}

		seen[key] = true
		result.Delegations = append(result.Delegations, Delegation{
			TargetAgentID: canonical,
			Message:       message,
		})
		return true
	}

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := questionPattern.FindStringSubmatch(trimmed); m != nil {
			result.Questions = append(result.Questions,
				newQuestion(strings.TrimSpace(m[2]), strings.TrimSpace(m[1]), opts))
			continue
		}
		if m := atMentionPattern.FindStringSubmatch(trimmed); m != nil {
			if recordDelegation(m[1], m[2], false) {
				continue
			}
		} else if m := delegateToPattern.FindStringSubmatch(trimmed); m != nil {
			if recordDelegation(m[1], m[2], true) {
				continue
			}
		}
		kept = append(kept, line)
	}

	result.CleanContent = strings.Join(kept, "\n")
	return result
}

// newQuestion builds a pending HumanQuestion. An explicit storyRef names
// the story directly and overrides the ambient context.
func newQuestion(text, storyRef string, opts ParseOptions) HumanQuestion {
	q := HumanQuestion{
		ID:        uuid.New().String()[:8],
		Timestamp: time.Now(),
		Question:  text,
		Status:    models.QuestionPending,
	}
	if storyRef != "" {
		q.Context.StoryID = storyRef
	} else {
		q.Context.StoryID = opts.StoryID
		q.Context.StoryTitle = opts.StoryTitle
	}
	return q
}
