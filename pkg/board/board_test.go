package board

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/taskflow/backend/domain"
)

func seed() []domain.Task {
	return []domain.Task{
		{ID: "t1", ProjectID: "p1", Title: "one", Status: "todo"},
		{ID: "t2", ProjectID: "p1", Title: "two", Status: "inprogress"},
		{ID: "t3", ProjectID: "p1", Title: "three", Status: "done"},
	}
}

func status(t *testing.T, b *Board, id string) string {
	t.Helper()
	task, ok := b.Task(id)
	if !ok {
		t.Fatalf("task %s missing", id)
	}
	return task.Status
}

func TestColumns(t *testing.T) {
	b := New("p1", seed(), nil)
	cols := b.Columns()
	if len(cols[domain.StatusTodo]) != 1 || len(cols[domain.StatusInProgress]) != 1 || len(cols[domain.StatusDone]) != 1 {
		t.Errorf("columns = %+v", cols)
	}

	empty := New("p1", nil, nil).Columns()
	for _, s := range domain.Statuses {
		if col, ok := empty[s]; !ok || len(col) != 0 {
			t.Errorf("column %s = %v, %v", s, col, ok)
		}
	}
}

func TestMovePersists(t *testing.T) {
	var calls []string
	b := New("p1", seed(), func(_ context.Context, id, status string) error {
		calls = append(calls, id+":"+status)
		return nil
	})

	moved, err := b.Move(context.Background(), "t1", "done")
	if err != nil || !moved {
		t.Fatalf("move: %v %v", moved, err)
	}
	if got := status(t, b, "t1"); got != domain.StatusDone {
		t.Errorf("status = %s", got)
	}
	if len(calls) != 1 || calls[0] != "t1:done" {
		t.Errorf("persist calls = %v", calls)
	}
}

func TestMoveNoOps(t *testing.T) {
	calls := 0
	b := New("p1", seed(), func(context.Context, string, string) error {
		calls++
		return nil
	})
	ctx := context.Background()

	if moved, err := b.Move(ctx, "missing", "done"); moved || err != nil {
		t.Errorf("unknown task: %v %v", moved, err)
	}
	if moved, err := b.Move(ctx, "t2", "in_progress"); moved || err != nil {
		t.Errorf("same column: %v %v", moved, err)
	}
	if _, err := b.Move(ctx, "t1", "archived"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("bad column: %v", err)
	}
	if calls != 0 {
		t.Errorf("persist called %d times", calls)
	}
}

func TestMoveRollsBackOnFailure(t *testing.T) {
	b := New("p1", seed(), func(context.Context, string, string) error {
		return errors.New("offline")
	})

	moved, err := b.Move(context.Background(), "t1", "done")
	if err == nil || moved {
		t.Fatalf("expected failure, got %v %v", moved, err)
	}
	if got := status(t, b, "t1"); got != domain.StatusTodo {
		t.Errorf("status = %s, want rollback to todo", got)
	}
}

func TestRollbackKeepsConcurrentChanges(t *testing.T) {
	var b *Board
	b = New("p1", seed(), func(_ context.Context, id, _ string) error {
		// While the write is in flight another client edits t1 and t2.
		remote, _ := json.Marshal(domain.Task{ID: "t2", ProjectID: "p1", Title: "two", Status: "done"})
		b.Apply([]string{"tasks.documents.t2.update"}, remote)
		if id == "t1" {
			other, _ := json.Marshal(domain.Task{ID: "t1", ProjectID: "p1", Title: "renamed", Status: "done"})
			b.Apply([]string{"tasks.documents.t1.update"}, other)
		}
		return errors.New("conflict")
	})

	if _, err := b.Move(context.Background(), "t1", "done"); err == nil {
		t.Fatalf("expected failure")
	}
	if got := status(t, b, "t2"); got != domain.StatusDone {
		t.Errorf("unrelated task reverted to %s", got)
	}
	task, _ := b.Task("t1")
	if task.Status != domain.StatusDone || task.Title != "renamed" {
		t.Errorf("remote edit of moved task was overwritten: %+v", task)
	}
}

func TestRollbackSkippedAfterLaterMove(t *testing.T) {
	var b *Board
	first := true
	b = New("p1", seed(), func(ctx context.Context, id, status string) error {
		if first {
			first = false
			if _, err := b.Move(ctx, id, "in_progress"); err != nil {
				t.Errorf("nested move: %v", err)
			}
			return errors.New("first write lost")
		}
		return nil
	})

	if _, err := b.Move(context.Background(), "t1", "done"); err == nil {
		t.Fatalf("expected failure")
	}
	if got := status(t, b, "t1"); got != domain.StatusInProgress {
		t.Errorf("status = %s, want the later move to stand", got)
	}
}

func TestApplyEvents(t *testing.T) {
	b := New("p1", seed(), nil)

	created, _ := json.Marshal(domain.Task{ID: "t4", ProjectID: "p1", Status: "todo"})
	foreign, _ := json.Marshal(domain.Task{ID: "t5", ProjectID: "p2", Status: "todo"})
	deleted, _ := json.Marshal(domain.Task{ID: "t3", ProjectID: "p1"})

	if changed, err := b.Apply([]string{"tasks.documents.t4.create"}, created); !changed || err != nil {
		t.Errorf("create: %v %v", changed, err)
	}
	if changed, _ := b.Apply([]string{"tasks.documents.t5.create"}, foreign); changed {
		t.Errorf("other project's task accepted")
	}
	if changed, _ := b.Apply([]string{"tasks.documents.t3.delete"}, deleted); !changed {
		t.Errorf("delete ignored")
	}
	if _, err := b.Apply([]string{"tasks.documents.t3.update"}, []byte("{")); err == nil {
		t.Errorf("expected decode error")
	}

	cols := b.Columns()
	if len(cols[domain.StatusTodo]) != 2 || len(cols[domain.StatusDone]) != 0 {
		t.Errorf("columns = %+v", cols)
	}
}
