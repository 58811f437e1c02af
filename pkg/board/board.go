// Package board models a kanban board of tasks with optimistic moves.
package board

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/pkg/reconcile"
)

// Persister stores a status change remotely.
type Persister func(ctx context.Context, taskID, status string) error

// Board groups one project's tasks by status column.
type Board struct {
	mu        sync.Mutex
	projectID string
	tasks     *reconcile.List[domain.Task]
	persist   Persister
	revision  map[string]uint64
}

func New(projectID string, tasks []domain.Task, persist Persister) *Board {
	list := reconcile.New(
		func(t domain.Task) string { return t.ID },
		reconcile.WithScope(func(t domain.Task) bool { return t.ProjectID == projectID }),
	)
	normalized := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		normalized = append(normalized, withColumn(t))
	}
	list.Reset(normalized)
	return &Board{
		projectID: projectID,
		tasks:     list,
		persist:   persist,
		revision:  make(map[string]uint64),
	}
}

// Columns returns tasks per status in list order. Every column is present.
func (b *Board) Columns() map[string][]domain.Task {
	columns := make(map[string][]domain.Task, len(domain.Statuses))
	for _, status := range domain.Statuses {
		columns[status] = []domain.Task{}
	}
	for _, t := range b.tasks.Items() {
		columns[t.Status] = append(columns[t.Status], t)
	}
	return columns
}

func (b *Board) Task(id string) (domain.Task, bool) {
	return b.tasks.Get(id)
}

// Move sets the task's column locally, then persists it. It reports whether
// the move was applied. Unknown tasks and same-column drops are no-ops.
//
// On a persist failure only this task's status is restored, and only when no
// remote event or later move touched the task in the meantime.
func (b *Board) Move(ctx context.Context, taskID, column string) (bool, error) {
	column, err := domain.NormalizeStatus(column)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	task, ok := b.tasks.Get(taskID)
	if !ok || task.Status == column {
		b.mu.Unlock()
		return false, nil
	}
	previous := task.Status
	task.Status = column
	b.tasks.Apply(reconcile.Update, task)
	b.revision[taskID]++
	token := b.revision[taskID]
	b.mu.Unlock()

	if b.persist == nil {
		return true, nil
	}
	if err := b.persist(ctx, taskID, column); err != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.revision[taskID] == token {
			if current, ok := b.tasks.Get(taskID); ok && current.Status == column {
				current.Status = previous
				b.tasks.Apply(reconcile.Update, current)
			}
		}
		return false, err
	}
	return true, nil
}

// Apply reconciles a realtime task event.
func (b *Board) Apply(events []string, payload []byte) (bool, error) {
	action := reconcile.ActionOf(events)
	if action == reconcile.None {
		return false, nil
	}
	var task domain.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return false, err
	}
	task = withColumn(task)

	b.mu.Lock()
	defer b.mu.Unlock()
	changed := b.tasks.Apply(action, task)
	if changed {
		b.revision[task.ID]++
	}
	return changed, nil
}

// withColumn maps legacy or unknown statuses onto a board column.
func withColumn(t domain.Task) domain.Task {
	status, err := domain.NormalizeStatus(t.Status)
	if err != nil {
		status = domain.StatusTodo
	}
	t.Status = status
	return t
}
