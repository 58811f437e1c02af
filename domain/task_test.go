package domain

import (
	"testing"
	"time"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", StatusTodo, false},
		{"todo", StatusTodo, false},
		{"inprogress", StatusInProgress, false},
		{"In_Progress", StatusInProgress, false},
		{"done", StatusDone, false},
		{"blocked", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("NormalizeStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if tt.wantErr && !IsDomainError(err, ErrCodeInvalid) {
			t.Errorf("expected INVALID error, got %v", err)
		}
	}
}

func TestTaskNormalizeDefaults(t *testing.T) {
	task := &Task{Title: "  write docs ", ProjectID: "p1", Assignees: []string{"u1", "", "u1", " u2 "}}
	if err := task.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Title != "write docs" {
		t.Errorf("title not trimmed: %q", task.Title)
	}
	if task.Status != StatusTodo || task.Priority != PriorityMedium {
		t.Errorf("defaults not applied: status=%q priority=%q", task.Status, task.Priority)
	}
	if len(task.Assignees) != 2 || task.Assignees[0] != "u1" || task.Assignees[1] != "u2" {
		t.Errorf("assignees = %v", task.Assignees)
	}
}

func TestTaskNormalizeRejects(t *testing.T) {
	cases := map[string]*Task{
		"missing title":   {ProjectID: "p1"},
		"missing project": {Title: "x"},
		"bad priority":    {Title: "x", ProjectID: "p1", Priority: "urgent"},
	}
	for name, task := range cases {
		if err := task.Normalize(); !IsDomainError(err, ErrCodeInvalid) {
			t.Errorf("%s: expected INVALID, got %v", name, err)
		}
	}
}

func TestTaskPatchApply(t *testing.T) {
	due := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	task := &Task{Title: "a", ProjectID: "p1", Status: StatusTodo, Priority: PriorityLow, DueDate: &due}

	status := "inprogress"
	title := "b"
	if err := (TaskPatch{Status: &status, Title: &title, ClearDue: true}).Apply(task); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if task.Status != StatusInProgress || task.Title != "b" || task.DueDate != nil {
		t.Errorf("unexpected task after patch: %+v", task)
	}
	if task.Priority != PriorityLow {
		t.Errorf("priority should be untouched, got %q", task.Priority)
	}
}
