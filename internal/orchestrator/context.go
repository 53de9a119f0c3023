package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/avickers/helmsman/pkg/models"
)

// BranchState is the version-control view the snapshot includes. It is read
// once per dispatch by an external collaborator; the builder itself never
// shells out.
type BranchState struct {
	// Current is the checked-out branch name.
	Current string
	// Base is the integration branch name (e.g. "main").
	Base string
}

// ContextInput carries everything the snapshot is derived from.
type ContextInput struct {
	Stories     []models.Story
	Epics       []models.Epic
	Questions   []HumanQuestion
	EpicFilter  string
	NextActions map[models.StoryStatus][]models.NextAction
	History     []Event
	Branch      BranchState
}

// SnapshotLimits bounds the snapshot's size. The snapshot is the
// orchestrator's only window into system state, so each list is capped
// with an overflow marker instead of growing with the board.
type SnapshotLimits struct {
	// StoriesPerStatus caps each status group.
	StoriesPerStatus int
	// Questions caps the pending-question list.
	Questions int
	// HistoryEntries caps the recent-event list.
	HistoryEntries int
}

// DefaultSnapshotLimits returns the standard snapshot bounds.
func DefaultSnapshotLimits() SnapshotLimits {
	return SnapshotLimits{
		StoriesPerStatus: 5,
		Questions:        5,
		HistoryEntries:   5,
	}
}

// statusOrder fixes the board-column order in snapshots.
var statusOrder = []models.StoryStatus{
	models.StatusInProgress,
	models.StatusReview,
	models.StatusBlocked,
	models.StatusReady,
	models.StatusBacklog,
	models.StatusDone,
}

// storyBranchPattern matches branch names following the story-branch
// convention (e.g. "story/1-2-login").
var storyBranchPattern = regexp.MustCompile(`^(?:story|epic)/([A-Za-z0-9._-]+)$`)

// BuildSnapshot renders a compact project-state snapshot for inclusion in a
// directive. Pure: re-derived on every dispatch, never cached.
func BuildSnapshot(in ContextInput, limits SnapshotLimits) string {
	var b strings.Builder

	writeBoard(&b, in, limits)
	writeEpics(&b, in)
	writeActions(&b, in)
	writeQuestions(&b, in, limits)
	writeHistory(&b, in, limits)
	writeBranch(&b, in.Branch)

	return strings.TrimRight(b.String(), "\n")
}

func writeBoard(b *strings.Builder, in ContextInput, limits SnapshotLimits) {
	groups := make(map[models.StoryStatus][]models.Story)
	for _, s := range in.Stories {
		if in.EpicFilter != "" && s.EpicID != in.EpicFilter {
			continue
		}
		groups[s.Status] = append(groups[s.Status], s)
	}

	b.WriteString("## Board\n")
	if in.EpicFilter != "" {
		fmt.Fprintf(b, "(filtered to epic %s)\n", in.EpicFilter)
	}
	for _, status := range statusOrder {
		stories := groups[status]
		if len(stories) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s (%d)\n", status, len(stories))
		shown := stories
		if len(shown) > limits.StoriesPerStatus {
			shown = shown[:limits.StoriesPerStatus]
		}
		for _, s := range shown {
			if s.AssignedTo != "" {
				fmt.Fprintf(b, "- %s: %s [%s]\n", s.ID, s.Title, s.AssignedTo)
			} else {
				fmt.Fprintf(b, "- %s: %s\n", s.ID, s.Title)
			}
		}
		if rest := len(stories) - len(shown); rest > 0 {
			fmt.Fprintf(b, "...%d more\n", rest)
		}
	}
	b.WriteString("\n")
}

func writeEpics(b *strings.Builder, in ContextInput) {
	if len(in.Epics) == 0 {
		return
	}

	total := make(map[string]int)
	done := make(map[string]int)
	for _, s := range in.Stories {
		if s.EpicID == "" {
			continue
		}
		total[s.EpicID]++
		if s.Status == models.StatusDone {
			done[s.EpicID]++
		}
	}

	b.WriteString("## Epics\n")
	for _, e := range in.Epics {
		fmt.Fprintf(b, "- %s: %s (%d/%d done)\n", e.ID, e.Title, done[e.ID], total[e.ID])
	}
	b.WriteString("\n")
}

func writeActions(b *strings.Builder, in ContextInput) {
	if len(in.NextActions) == 0 {
		return
	}

	b.WriteString("## Available actions\n")
	for _, status := range statusOrder {
		for _, a := range in.NextActions[status] {
			if a.Description != "" {
				fmt.Fprintf(b, "- %s: %s -> @%s (%s)\n", status, a.Label, a.Agent, a.Description)
			} else {
				fmt.Fprintf(b, "- %s: %s -> @%s\n", status, a.Label, a.Agent)
			}
		}
	}
	b.WriteString("\n")
}

func writeQuestions(b *strings.Builder, in ContextInput, limits SnapshotLimits) {
	if len(in.Questions) == 0 {
		return
	}

	fmt.Fprintf(b, "## Pending questions (%d)\n", len(in.Questions))
	shown := in.Questions
	if len(shown) > limits.Questions {
		shown = shown[:limits.Questions]
	}
	for _, q := range shown {
		if q.Context.StoryID != "" {
			fmt.Fprintf(b, "- [%s] %s (story %s)\n", q.ID, q.Question, q.Context.StoryID)
		} else {
			fmt.Fprintf(b, "- [%s] %s\n", q.ID, q.Question)
		}
	}
	if rest := len(in.Questions) - len(shown); rest > 0 {
		fmt.Fprintf(b, "...%d more\n", rest)
	}
	b.WriteString("\n")
}

func writeHistory(b *strings.Builder, in ContextInput, limits SnapshotLimits) {
	if len(in.History) == 0 {
		return
	}

	b.WriteString("## Recent events\n")
	hist := in.History
	if len(hist) > limits.HistoryEntries {
		hist = hist[len(hist)-limits.HistoryEntries:]
	}
	for _, ev := range hist {
		fmt.Fprintf(b, "- %s\n", ev.Summary())
	}
	b.WriteString("\n")
}

// writeBranch derives a workflow hint purely from branch-name patterns.
func writeBranch(b *strings.Builder, branch BranchState) {
	if branch.Current == "" {
		return
	}

	b.WriteString("## Branch\n")
	switch {
	case branch.Current == branch.Base:
		fmt.Fprintf(b, "On base branch %s. Story work should happen on a story/<id> branch.\n", branch.Base)
	case storyBranchPattern.MatchString(branch.Current):
		m := storyBranchPattern.FindStringSubmatch(branch.Current)
		fmt.Fprintf(b, "On story branch %s for %s (base %s).\n", branch.Current, m[1], branch.Base)
	default:
		fmt.Fprintf(b, "On branch %s (base %s).\n", branch.Current, branch.Base)
	}
}
