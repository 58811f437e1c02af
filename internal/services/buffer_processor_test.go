package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/internal/infrastructure/buffer"
	"github.com/taskflow/backend/internal/testutil"
)

type staticHealth bool

func (s staticHealth) IsOnline() bool { return bool(s) }

type processorFixture struct {
	processor *BufferProcessor
	bridge    *BufferBridge
	store     *buffer.Store
	projects  *testutil.Projects
	tasks     *testutil.Tasks
	comments  *testutil.Comments
}

func newProcessor(t *testing.T, health ConnectionHealth) processorFixture {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := processorFixture{
		store:    store,
		projects: testutil.NewProjects(),
		tasks:    testutil.NewTasks(),
		comments: testutil.NewComments(),
	}
	f.processor = NewBufferProcessor(store, health, ReplayTargets{
		Projects: f.projects,
		Tasks:    f.tasks,
		Comments: f.comments,
	}, nil, ProcessorConfig{MaxRetries: 2})
	f.bridge = NewBufferBridge(f.processor)
	return f
}

func TestBridgeBuffersWhileOffline(t *testing.T) {
	f := newProcessor(t, staticHealth(false))
	ctx := context.Background()

	taskID := "t1"
	if err := f.bridge.BufferProject(ctx, buffer.OperationCreate, &domain.Project{ID: "p1", Name: "P", CreatedBy: "u1"}); err != nil {
		t.Fatalf("buffer project: %v", err)
	}
	if err := f.bridge.BufferTask(ctx, buffer.OperationCreate, &domain.Task{ID: taskID, ProjectID: "p1", Title: "T"}); err != nil {
		t.Fatalf("buffer task: %v", err)
	}
	if err := f.bridge.BufferComment(ctx, buffer.OperationCreate, &domain.Comment{ID: "c1", Content: "hi", TaskID: &taskID}); err != nil {
		t.Fatalf("buffer comment: %v", err)
	}
	if f.processor.Size() != 3 {
		t.Fatalf("size = %d", f.processor.Size())
	}
	if pending := f.processor.Pending(); pending[buffer.EntityTask] != 1 {
		t.Errorf("pending = %v", pending)
	}

	// Offline drains leave the buffer untouched.
	if err := f.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 3 {
		t.Errorf("offline drain consumed items")
	}
}

func TestDrainReplaysInOrder(t *testing.T) {
	f := newProcessor(t, nil)
	ctx := context.Background()

	enqueue := func(entity, op string, data string) {
		t.Helper()
		if err := f.store.Enqueue(buffer.Item{Entity: entity, Operation: op, Data: []byte(data)}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	enqueue(buffer.EntityTask, buffer.OperationCreate, `{"id":"t1","project_id":"p1","title":"T","status":"todo"}`)
	enqueue(buffer.EntityProject, buffer.OperationCreate, `{"id":"p1","name":"P","created_by":"u1"}`)
	enqueue(buffer.EntityTask, buffer.OperationUpdate, `{"id":"t1","project_id":"p1","title":"T","status":"done"}`)

	if err := f.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 0 {
		t.Errorf("size = %d", f.processor.Size())
	}
	if _, err := f.projects.GetByID(ctx, "p1"); err != nil {
		t.Errorf("project not replayed: %v", err)
	}
	task, err := f.tasks.GetByID(ctx, "t1")
	if err != nil || task.Status != domain.StatusDone {
		t.Errorf("task = %+v, %v", task, err)
	}
}

func TestDrainDropsRejectedAndRetriesOutages(t *testing.T) {
	f := newProcessor(t, nil)
	ctx := context.Background()

	f.store.Enqueue(buffer.Item{Entity: buffer.EntityComment, Operation: buffer.OperationDelete, Data: []byte(`{"id":"missing"}`)})
	f.store.Enqueue(buffer.Item{Entity: "widget", Operation: buffer.OperationCreate, Data: []byte(`{}`)})
	f.tasks.CreateErr = errors.New("connection refused")
	f.store.Enqueue(buffer.Item{Entity: buffer.EntityTask, Operation: buffer.OperationCreate, Data: []byte(`{"id":"t1"}`)})

	if err := f.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	batch, _ := f.store.GetBatch(10)
	if len(batch) != 1 || batch[0].Entity != buffer.EntityTask || batch[0].Retries != 1 {
		t.Fatalf("after first drain = %+v", batch)
	}

	if err := f.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 0 {
		t.Errorf("item should be dropped after max retries, size = %d", f.processor.Size())
	}
}

func TestBufferOperationWritesThroughWhenOnline(t *testing.T) {
	f := newProcessor(t, staticHealth(true))
	ctx := context.Background()

	if err := f.bridge.BufferProject(ctx, buffer.OperationCreate, &domain.Project{ID: "p9", Name: "P"}); err != nil {
		t.Fatalf("buffer: %v", err)
	}
	if f.processor.Size() != 0 {
		t.Errorf("online write should not be buffered")
	}
	if _, err := f.projects.GetByID(ctx, "p9"); err != nil {
		t.Errorf("project not written: %v", err)
	}
}
