package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avickers/helmsman/pkg/models"
)

// actionsFile is the on-disk shape of the next-actions YAML.
type actionsFile struct {
	Actions map[string][]models.NextAction `yaml:"actions"`
}

// LoadNextActions reads the per-status next-actions catalog from a YAML
// file. Statuses that are not valid story statuses are rejected so typos
// surface at load time rather than as silently missing actions.
func LoadNextActions(path string) (map[models.StoryStatus][]models.NextAction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading actions file: %w", err)
	}

	var file actionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	actions := make(map[models.StoryStatus][]models.NextAction, len(file.Actions))
	for status, list := range file.Actions {
		st := models.StoryStatus(status)
		if !st.Valid() {
			return nil, fmt.Errorf("actions file %s: unknown status %q", path, status)
		}
		for _, a := range list {
			if a.Label == "" || a.Agent == "" {
				return nil, fmt.Errorf("actions file %s: status %q has an action missing label or agent", path, status)
			}
		}
		actions[st] = list
	}

	return actions, nil
}

// DefaultNextActions returns the built-in action catalog used when no
// actions file is configured.
func DefaultNextActions() map[models.StoryStatus][]models.NextAction {
	return map[models.StoryStatus][]models.NextAction{
		models.StatusReady: {
			{Label: "Start work", Agent: "dev", Description: "Pick up the story and begin implementation"},
		},
		models.StatusReview: {
			{Label: "Review", Agent: "reviewer", Description: "Review the finished work"},
		},
		models.StatusBlocked: {
			{Label: "Investigate blocker", Agent: "dev", Description: "Diagnose what is blocking the story"},
		},
	}
}
