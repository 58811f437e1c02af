package task

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/repository"
	"github.com/taskflow/backend/usecase"
)

type UseCase struct {
	tasks     repository.TaskRepository
	access    usecase.ProjectAccess
	recent    *usecase.Recent[domain.Task]
	buffer    usecase.OperationBuffer
	publisher usecase.EventPublisher
	logger    *zap.Logger
}

func New(tasks repository.TaskRepository, access usecase.ProjectAccess, buffer usecase.OperationBuffer, publisher usecase.EventPublisher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:     tasks,
		access:    usecase.CacheAccess(access),
		recent:    usecase.NewRecent[domain.Task](usecase.DefaultRecentTTL),
		buffer:    buffer,
		publisher: publisher,
		logger:    logger,
	}
}

// TaskInput carries a new task. Assignee is the legacy single-assignee field
// and is folded into Assignees.
type TaskInput struct {
	ProjectID   string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	Assignee    string
	Assignees   []string
}

// ListQuery narrows a project's task list.
type ListQuery struct {
	ProjectID string
	Status    string
	Assignee  string
	Limit     int
	Offset    int
}

func (uc *UseCase) ListTasks(ctx context.Context, userID string, q ListQuery) ([]domain.Task, error) {
	if q.ProjectID == "" {
		return nil, domain.Invalid("project_id is required")
	}
	if _, err := uc.access.AuthorizeProject(ctx, userID, q.ProjectID); err != nil {
		return nil, err
	}
	filter := repository.TaskFilter{
		ProjectID: q.ProjectID,
		Assignee:  q.Assignee,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if q.Status != "" {
		status, err := domain.NormalizeStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	task, _, err := uc.load(ctx, userID, id)
	return task, err
}

// load reads a task and its project for userID. Both reads fall back to
// copies seen in the last few minutes while the store is down.
func (uc *UseCase) load(ctx context.Context, userID, id string) (*domain.Task, *domain.Project, error) {
	task, err := uc.recent.Load(id, func() (domain.Task, error) {
		t, err := uc.tasks.GetByID(ctx, id)
		if err != nil {
			return domain.Task{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, nil, err
	}
	project, err := uc.access.AuthorizeProject(ctx, userID, task.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	task.Assignees = slices.Clone(task.Assignees)
	return &task, project, nil
}

func (uc *UseCase) CreateTask(ctx context.Context, userID string, in TaskInput) (*domain.Task, error) {
	assignees := in.Assignees
	if in.Assignee != "" {
		assignees = append([]string{in.Assignee}, assignees...)
	}
	task := &domain.Task{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		Assignees:   assignees,
		CreatedBy:   userID,
	}
	if err := task.Normalize(); err != nil {
		return nil, err
	}
	project, err := uc.access.AuthorizeProject(ctx, userID, task.ProjectID)
	if err != nil {
		return nil, err
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationCreate, task, err) {
			uc.recent.Put(task.ID, *task)
			return task, nil
		}
		return nil, err
	}
	uc.recent.Put(created.ID, *created)

	uc.logger.Info("task created",
		zap.String("task_id", created.ID),
		zap.String("project_id", created.ProjectID),
		zap.Strings("assignees", created.Assignees))
	uc.publish(ctx, project, domain.ActionCreate, created)
	return created, nil
}

func (uc *UseCase) UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	task, project, err := uc.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(task); err != nil {
		return nil, err
	}
	return uc.save(ctx, project, task)
}

// MoveTask changes only the status column of a task. Moving to the current
// column is a no-op and publishes nothing.
func (uc *UseCase) MoveTask(ctx context.Context, userID, id, status string) (*domain.Task, error) {
	status, err := domain.NormalizeStatus(status)
	if err != nil {
		return nil, err
	}
	task, project, err := uc.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}
	task.Status = status
	return uc.save(ctx, project, task)
}

func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	task, project, err := uc.load(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := uc.tasks.Delete(ctx, id); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationDelete, task, err) {
			uc.recent.Forget(id)
			return nil
		}
		return err
	}
	uc.recent.Forget(id)
	uc.publish(ctx, project, domain.ActionDelete, task)
	return nil
}

func (uc *UseCase) save(ctx context.Context, project *domain.Project, task *domain.Task) (*domain.Task, error) {
	if err := uc.tasks.Update(ctx, task); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationUpdate, task, err) {
			uc.recent.Put(task.ID, *task)
			return task, nil
		}
		return nil, err
	}
	uc.recent.Put(task.ID, *task)
	uc.publish(ctx, project, domain.ActionUpdate, task)
	return task, nil
}

func (uc *UseCase) publish(ctx context.Context, project *domain.Project, action string, task *domain.Task) {
	usecase.PublishDocument(ctx, uc.publisher, uc.logger, domain.ProjectAudience(project),
		domain.CollectionTasks, task.ID, action, task)
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, task *domain.Task, cause error) bool {
	if uc.buffer == nil || !usecase.IsOutage(cause) {
		return false
	}
	if err := uc.buffer.BufferTask(ctx, operation, task); err != nil {
		uc.logger.Error("failed to buffer task operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	uc.logger.Warn("task operation buffered",
		zap.String("operation", operation),
		zap.String("task_id", task.ID),
		zap.Error(cause))
	return true
}
