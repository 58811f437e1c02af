package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/internal/testutil"
)

type accessFunc func(ctx context.Context, userID, projectID string) (*domain.Project, error)

func (f accessFunc) AuthorizeProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	return f(ctx, userID, projectID)
}

// onlyOwner lets "alice" into project "p1" and nobody into anything else.
var onlyOwner = accessFunc(func(_ context.Context, userID, projectID string) (*domain.Project, error) {
	if projectID != "p1" {
		return nil, domain.ErrProjectNotFound
	}
	if userID != "alice" {
		return nil, domain.ErrForbidden
	}
	return &domain.Project{ID: "p1", CreatedBy: "alice"}, nil
})

type fixture struct {
	uc     *UseCase
	tasks  *testutil.Tasks
	buffer *testutil.Buffer
	pub    *testutil.Publisher
	// accessErr makes every project lookup fail.
	accessErr error
}

func newFixture() *fixture {
	f := &fixture{tasks: testutil.NewTasks(), buffer: &testutil.Buffer{}, pub: &testutil.Publisher{}}
	access := accessFunc(func(ctx context.Context, userID, projectID string) (*domain.Project, error) {
		if f.accessErr != nil {
			return nil, f.accessErr
		}
		return onlyOwner(ctx, userID, projectID)
	})
	f.uc = New(f.tasks, access, f.buffer, f.pub, nil)
	return f
}

func TestCreateTaskDefaultsAndAssignee(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.CreateTask(ctx, "alice", TaskInput{
		ProjectID: "p1",
		Title:     " Write docs ",
		Assignee:  "bob",
		Assignees: []string{"carol", "bob"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != domain.StatusTodo || task.Priority != domain.PriorityMedium {
		t.Errorf("defaults = %s/%s", task.Status, task.Priority)
	}
	if len(task.Assignees) != 2 || task.Assignees[0] != "bob" || task.Assignees[1] != "carol" {
		t.Errorf("assignees = %v", task.Assignees)
	}
	if task.CreatedBy != "alice" || task.Title != "Write docs" {
		t.Errorf("task = %+v", task)
	}

	events := f.pub.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d", len(events))
	}
	if events[0].Events[0] != "tasks.documents."+task.ID+".create" {
		t.Errorf("event name = %s", events[0].Events[0])
	}
	var payload domain.Task
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil || len(payload.Assignees) != 2 {
		t.Errorf("payload = %s (%v)", events[0].Payload, err)
	}
}

func TestCreateTaskRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		user string
		in   TaskInput
		code domain.ErrorCode
	}{
		{name: "missing title", user: "alice", in: TaskInput{ProjectID: "p1"}, code: domain.ErrCodeInvalid},
		{name: "unknown status", user: "alice", in: TaskInput{ProjectID: "p1", Title: "x", Status: "blocked"}, code: domain.ErrCodeInvalid},
		{name: "unknown priority", user: "alice", in: TaskInput{ProjectID: "p1", Title: "x", Priority: "urgent"}, code: domain.ErrCodeInvalid},
		{name: "foreign project", user: "eve", in: TaskInput{ProjectID: "p1", Title: "x"}, code: domain.ErrCodeForbidden},
		{name: "missing project", user: "alice", in: TaskInput{ProjectID: "p2", Title: "x"}, code: domain.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.uc.CreateTask(ctx, tt.user, tt.in); !domain.IsDomainError(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
		})
	}
	if len(f.pub.Events()) != 0 {
		t.Errorf("rejected writes published events")
	}
}

func TestMoveTask(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	task, _ := f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "Ship"})

	moved, err := f.uc.MoveTask(ctx, "alice", task.ID, "inprogress")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Status != domain.StatusInProgress {
		t.Errorf("status = %s", moved.Status)
	}
	stored, _ := f.tasks.GetByID(ctx, task.ID)
	if stored.Status != domain.StatusInProgress {
		t.Errorf("stored status = %s", stored.Status)
	}

	if _, err := f.uc.MoveTask(ctx, "alice", task.ID, "in_progress"); err != nil {
		t.Fatalf("same column: %v", err)
	}
	names := f.pub.Names()
	if len(names) != 2 || names[1] != "tasks.documents."+task.ID+".update" {
		t.Errorf("published %v", names)
	}

	if _, err := f.uc.MoveTask(ctx, "alice", task.ID, "archived"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("bad column: %v", err)
	}
	if _, err := f.uc.MoveTask(ctx, "eve", task.ID, "done"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("foreign user: %v", err)
	}
}

func TestUpdateTaskPatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	task, _ := f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "Ship", Priority: "low"})

	title := "Ship it"
	updated, err := f.uc.UpdateTask(ctx, "alice", task.ID, domain.TaskPatch{Title: &title, Assignees: []string{"dave"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Ship it" || updated.Priority != domain.PriorityLow || updated.Assignees[0] != "dave" {
		t.Errorf("updated = %+v", updated)
	}

	empty := " "
	if _, err := f.uc.UpdateTask(ctx, "alice", task.ID, domain.TaskPatch{Title: &empty}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("blank title: %v", err)
	}
}

func TestListTasksFiltersByStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "a"})
	f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "b", Status: "done"})

	done, err := f.uc.ListTasks(ctx, "alice", ListQuery{ProjectID: "p1", Status: "done"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(done) != 1 || done[0].Title != "b" {
		t.Errorf("done = %+v", done)
	}
	if _, err := f.uc.ListTasks(ctx, "alice", ListQuery{}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("missing project: %v", err)
	}
}

func TestWritesBufferOnOutage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	task, _ := f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "Ship"})

	f.tasks.UpdateErr = errors.New("connection reset")
	f.tasks.DeleteErr = errors.New("connection reset")
	if _, err := f.uc.MoveTask(ctx, "alice", task.ID, "done"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := f.uc.DeleteTask(ctx, "alice", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(f.buffer.Ops) != 2 {
		t.Fatalf("buffered = %+v", f.buffer.Ops)
	}
	if f.buffer.Ops[0].Operation != "update" || f.buffer.Ops[1].Operation != "delete" || f.buffer.Ops[1].ID != task.ID {
		t.Errorf("buffered = %+v", f.buffer.Ops)
	}
}

func TestDeleteTaskPublishes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	task, _ := f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "Ship"})

	if err := f.uc.DeleteTask(ctx, "alice", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.uc.DeleteTask(ctx, "alice", task.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("second delete: %v", err)
	}
	names := f.pub.Names()
	if names[len(names)-1] != "tasks.documents."+task.ID+".delete" {
		t.Errorf("published %v", names)
	}
}

func TestWritesBufferWhenReadsAlsoFail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	task, err := f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "Ship"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	refused := errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	f.accessErr = refused
	f.tasks.GetErr = refused
	f.tasks.CreateErr = refused
	f.tasks.UpdateErr = refused

	if _, err := f.uc.CreateTask(ctx, "alice", TaskInput{ProjectID: "p1", Title: "Offline"}); err != nil {
		t.Fatalf("create while down: %v", err)
	}
	moved, err := f.uc.MoveTask(ctx, "alice", task.ID, "done")
	if err != nil {
		t.Fatalf("move while down: %v", err)
	}
	if moved.Status != domain.StatusDone {
		t.Errorf("status = %s", moved.Status)
	}
	if len(f.buffer.Ops) != 2 || f.buffer.Ops[0].Operation != "create" || f.buffer.Ops[1].ID != task.ID {
		t.Errorf("buffered = %+v", f.buffer.Ops)
	}

	if _, err := f.uc.MoveTask(ctx, "eve", task.ID, "todo"); !errors.Is(err, refused) {
		t.Errorf("eve was never authorized, err = %v", err)
	}
}

func TestOutageWithoutRecentAccessIsReturned(t *testing.T) {
	f := newFixture()
	refused := errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	f.accessErr = refused
	f.tasks.CreateErr = refused

	if _, err := f.uc.CreateTask(context.Background(), "alice", TaskInput{ProjectID: "p1", Title: "Ship"}); !errors.Is(err, refused) {
		t.Fatalf("err = %v", err)
	}
	if len(f.buffer.Ops) != 0 {
		t.Errorf("buffered without a known project: %+v", f.buffer.Ops)
	}
}

func TestTaskEventsCarryProjectAudience(t *testing.T) {
	f := newFixture()
	if _, err := f.uc.CreateTask(context.Background(), "alice", TaskInput{ProjectID: "p1", Title: "Ship"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	events := f.pub.Events()
	if len(events) != 1 || events[0].Audience == nil || !events[0].Audience.Includes("alice") {
		t.Fatalf("events = %+v", events)
	}
}
