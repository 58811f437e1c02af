package usecase

import (
	"context"

	"github.com/taskflow/backend/domain"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer abstracts the offline write buffer so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferProject(ctx context.Context, operation string, project *domain.Project) error
	BufferTask(ctx context.Context, operation string, task *domain.Task) error
	BufferComment(ctx context.Context, operation string, comment *domain.Comment) error
}
