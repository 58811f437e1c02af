package comment

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/repository"
	"github.com/taskflow/backend/usecase"
)

type UseCase struct {
	comments  repository.CommentRepository
	tasks     repository.TaskRepository
	access    usecase.ProjectAccess
	recent    *usecase.Recent[domain.Comment]
	tasksSeen *usecase.Recent[domain.Task]
	buffer    usecase.OperationBuffer
	publisher usecase.EventPublisher
	logger    *zap.Logger
}

func New(comments repository.CommentRepository, tasks repository.TaskRepository, access usecase.ProjectAccess, buffer usecase.OperationBuffer, publisher usecase.EventPublisher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		comments:  comments,
		tasks:     tasks,
		access:    usecase.CacheAccess(access),
		recent:    usecase.NewRecent[domain.Comment](usecase.DefaultRecentTTL),
		tasksSeen: usecase.NewRecent[domain.Task](usecase.DefaultRecentTTL),
		buffer:    buffer,
		publisher: publisher,
		logger:    logger,
	}
}

// CreatedEvent is the realtime payload of a new comment. TargetUsers lists
// who should be notified about it.
type CreatedEvent struct {
	domain.Comment
	TargetUsers []string `json:"targetUsers"`
}

func (uc *UseCase) ListComments(ctx context.Context, userID string, scope domain.CommentScope, limit, offset int) ([]domain.Comment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := uc.authorizeScope(ctx, userID, scope); err != nil {
		return nil, err
	}
	return uc.comments.List(ctx, repository.CommentFilter{Scope: scope, Limit: limit, Offset: offset})
}

func (uc *UseCase) CreateComment(ctx context.Context, userID, content string, scope domain.CommentScope) (*domain.Comment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedBy: userID,
	}
	if scope.TaskID != "" {
		comment.TaskID = &scope.TaskID
	} else {
		comment.ProjectID = &scope.ProjectID
	}
	if err := comment.Validate(); err != nil {
		return nil, err
	}

	project, targets, err := uc.authorizeScope(ctx, userID, scope)
	if err != nil {
		return nil, err
	}

	created, err := uc.comments.Create(ctx, comment)
	if err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationCreate, comment, err) {
			uc.recent.Put(comment.ID, *comment)
			return comment, nil
		}
		return nil, err
	}
	uc.recent.Put(created.ID, *created)

	payload := CreatedEvent{Comment: *created, TargetUsers: targetUsers(targets, userID)}
	uc.logger.Info("comment created",
		zap.String("comment_id", created.ID),
		zap.Strings("target_users", payload.TargetUsers))
	uc.publish(ctx, project, domain.ActionCreate, created.ID, payload)
	return created, nil
}

// UpdateComment replaces the content. Only the author may edit, and only
// while they can still see the thread.
func (uc *UseCase) UpdateComment(ctx context.Context, userID, id, content string) (*domain.Comment, error) {
	comment, project, err := uc.ownComment(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	comment.Content = content
	if err := comment.Validate(); err != nil {
		return nil, err
	}

	if err := uc.comments.Update(ctx, comment); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationUpdate, comment, err) {
			uc.recent.Put(comment.ID, *comment)
			return comment, nil
		}
		return nil, err
	}
	uc.recent.Put(comment.ID, *comment)
	uc.publish(ctx, project, domain.ActionUpdate, comment.ID, comment)
	return comment, nil
}

func (uc *UseCase) DeleteComment(ctx context.Context, userID, id string) error {
	comment, project, err := uc.ownComment(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := uc.comments.Delete(ctx, id); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationDelete, comment, err) {
			uc.recent.Forget(id)
			return nil
		}
		return err
	}
	uc.recent.Forget(id)
	uc.publish(ctx, project, domain.ActionDelete, comment.ID, comment)
	return nil
}

func (uc *UseCase) publish(ctx context.Context, project *domain.Project, action, id string, payload interface{}) {
	usecase.PublishDocument(ctx, uc.publisher, uc.logger, domain.ProjectAudience(project),
		domain.CollectionComments, id, action, payload)
}

func (uc *UseCase) ownComment(ctx context.Context, userID, id string) (*domain.Comment, *domain.Project, error) {
	comment, err := uc.recent.Load(id, func() (domain.Comment, error) {
		c, err := uc.comments.GetByID(ctx, id)
		if err != nil {
			return domain.Comment{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if comment.CreatedBy != userID {
		return nil, nil, domain.NewError(domain.ErrCodeForbidden, "only the author can change a comment")
	}
	project, _, err := uc.authorizeScope(ctx, userID, comment.Scope())
	if err != nil {
		return nil, nil, err
	}
	return &comment, project, nil
}

// authorizeScope checks access to the thread and returns its project and the
// users interested in it: a task's assignees and creator, or a project's
// creator.
func (uc *UseCase) authorizeScope(ctx context.Context, userID string, scope domain.CommentScope) (*domain.Project, []string, error) {
	if scope.TaskID != "" {
		task, err := uc.tasksSeen.Load(scope.TaskID, func() (domain.Task, error) {
			t, err := uc.tasks.GetByID(ctx, scope.TaskID)
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
		return project, append(slices.Clone(task.Assignees), task.CreatedBy), nil
	}
	project, err := uc.access.AuthorizeProject(ctx, userID, scope.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return project, []string{project.CreatedBy}, nil
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, comment *domain.Comment, cause error) bool {
	if uc.buffer == nil || !usecase.IsOutage(cause) {
		return false
	}
	if err := uc.buffer.BufferComment(ctx, operation, comment); err != nil {
		uc.logger.Error("failed to buffer comment operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	uc.logger.Warn("comment operation buffered",
		zap.String("operation", operation),
		zap.String("comment_id", comment.ID),
		zap.Error(cause))
	return true
}

func targetUsers(candidates []string, author string) []string {
	out := make([]string, 0, len(candidates))
	for _, id := range domain.CompactIDs(candidates) {
		if id != author {
			out = append(out, id)
		}
	}
	return out
}
