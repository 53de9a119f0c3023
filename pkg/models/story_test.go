package models

import "testing"

func TestStoryStatusValid(t *testing.T) {
	tests := []struct {
		status StoryStatus
		want   bool
	}{
		{StatusBacklog, true},
		{StatusReady, true},
		{StatusInProgress, true},
		{StatusReview, true},
		{StatusDone, true},
		{StatusBlocked, true},
		{StoryStatus("unknown"), false},
		{StoryStatus(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("StoryStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestQuestionStatusValid(t *testing.T) {
	tests := []struct {
		status QuestionStatus
		want   bool
	}{
		{QuestionPending, true},
		{QuestionAnswered, true},
		{QuestionDismissed, true},
		{QuestionStatus("open"), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("QuestionStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
